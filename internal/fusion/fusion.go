// Package fusion combines the Text Index, Vector Store, and Symbol
// Index result lists into a single ranked list.
package fusion

import (
	"sort"
	"strings"

	"github.com/hsearch/hsearch/internal/bm25"
	"github.com/hsearch/hsearch/internal/store"
	"github.com/hsearch/hsearch/internal/vectorstore"
)

// DefaultK is the RRF smoothing constant, k_rrf.
const DefaultK = 60

// ExactPhraseBoost is added to a chunk's fused score when the raw query
// appears verbatim in its text, after fusion.
const ExactPhraseBoost = 0.20

// Weights controls each list's contribution to the fused score.
// Defaults: text 0.25, vector 0.40, symbol 0.35.
type Weights struct {
	Text   float64
	Vector float64
	Symbol float64
}

// DefaultWeights are the built-in fusion weight defaults.
var DefaultWeights = Weights{Text: 0.25, Vector: 0.40, Symbol: 0.35}

// Result is one fused hit.
type Result struct {
	ChunkID string

	RRFScore float64

	TextScore float64
	TextRank  int // 1-indexed, 0 if absent from the text list

	VectorScore float64
	VectorRank  int

	SymbolRank int // symbol hits have no numeric score, only rank

	InTextList   bool
	InVectorList bool
	InSymbolList bool

	ExactPhrase bool
}

// listCount reports how many of the three lists a result appeared in,
// used to break ties in favor of hits corroborated by more backends.
func (r *Result) listCount() int {
	n := 0
	if r.InTextList {
		n++
	}
	if r.InVectorList {
		n++
	}
	if r.InSymbolList {
		n++
	}
	return n
}

// Fuser combines ranked lists with Reciprocal Rank Fusion:
// rrf(c) = Σ_i w_i / (k + rank_i).
type Fuser struct {
	K int
}

// New returns a Fuser with the default k_rrf=60.
func New() *Fuser {
	return &Fuser{K: DefaultK}
}

// NewWithK returns a Fuser with a custom k. A non-positive k falls back
// to the default.
func NewWithK(k int) *Fuser {
	if k <= 0 {
		k = DefaultK
	}
	return &Fuser{K: k}
}

// chunkText identifies the raw text backing a chunk_id, used only to
// test the exact-phrase boost. Callers that already have chunk text in
// hand (e.g. the orchestrator, which just fetched these chunks from
// internal/store) pass it in; Fuse never re-reads storage itself.
type chunkText = map[string]string

// Fuse combines the Text Index, Vector Store, and Symbol Index result
// lists into one ranked list. texts maps chunk_id to its raw content,
// used to apply the exact-phrase boost for rawQuery; a nil or partial
// map simply skips the boost for chunks it doesn't cover.
func (f *Fuser) Fuse(textHits []bm25.Result, vecHits []vectorstore.Result, symHits []store.SymbolEntry, weights Weights, rawQuery string, texts chunkText) []*Result {
	if len(textHits) == 0 && len(vecHits) == 0 && len(symHits) == 0 {
		return []*Result{}
	}

	byID := make(map[string]*Result, len(textHits)+len(vecHits)+len(symHits))
	get := func(id string) *Result {
		if r, ok := byID[id]; ok {
			return r
		}
		r := &Result{ChunkID: id}
		byID[id] = r
		return r
	}

	for rank, hit := range textHits {
		r := get(hit.ChunkID)
		r.TextScore = hit.Score
		r.TextRank = rank + 1
		r.InTextList = true
		r.RRFScore += weights.Text / float64(f.K+rank+1)
	}
	for rank, hit := range vecHits {
		r := get(hit.ChunkID)
		r.VectorScore = float64(hit.Score)
		r.VectorRank = rank + 1
		r.InVectorList = true
		r.RRFScore += weights.Vector / float64(f.K+rank+1)
	}
	for rank, hit := range symHits {
		r := get(hit.ChunkID)
		r.SymbolRank = rank + 1
		r.InSymbolList = true
		r.RRFScore += weights.Symbol / float64(f.K+rank+1)
	}

	needle := strings.TrimSpace(rawQuery)
	if needle != "" && texts != nil {
		for id, r := range byID {
			if content, ok := texts[id]; ok && strings.Contains(content, needle) {
				r.ExactPhrase = true
				r.RRFScore += ExactPhraseBoost
			}
		}
	}

	results := toSorted(byID)
	normalize(results)
	return results
}

func toSorted(m map[string]*Result) []*Result {
	results := make([]*Result, 0, len(m))
	for _, r := range m {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		return compare(results[i], results[j])
	})
	return results
}

// compare reports whether a should rank before b: RRFScore desc, then
// the hit present in more lists, then higher text (BM25) score as an
// exact-match signal, then ChunkID asc for determinism.
func compare(a, b *Result) bool {
	if a.RRFScore != b.RRFScore {
		return a.RRFScore > b.RRFScore
	}
	if ca, cb := a.listCount(), b.listCount(); ca != cb {
		return ca > cb
	}
	if a.TextScore != b.TextScore {
		return a.TextScore > b.TextScore
	}
	return a.ChunkID < b.ChunkID
}

// normalize scales RRF scores to [0, 1] using the top score as 1.0.
// results must already be sorted descending by RRFScore.
func normalize(results []*Result) {
	if len(results) == 0 {
		return
	}
	max := results[0].RRFScore
	if max == 0 {
		return
	}
	for _, r := range results {
		r.RRFScore /= max
	}
}

// TopN truncates results to the top n (default 20).
func TopN(results []*Result, n int) []*Result {
	if n <= 0 {
		n = 20
	}
	if len(results) > n {
		return results[:n]
	}
	return results
}
