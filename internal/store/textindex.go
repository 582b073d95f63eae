package store

import (
	"context"
	"database/sql"
	"strings"
	"sync"

	"github.com/hsearch/hsearch/internal/bm25"
	"github.com/hsearch/hsearch/internal/hserr"
)

// TextIndexDocument is one unit the Text Index stores: a chunk's id, the
// path it belongs to (for delete_by_path), and its already-tokenized
// term list (internal/tokenize has normally already split/stemmed it).
type TextIndexDocument struct {
	ChunkID string
	Path    string
	Terms   []string
}

// TextIndex is the inverted text index: postings keyed by term,
// document length and corpus statistics maintained alongside so
// internal/bm25 can score independently of any library's own ranking
// function. The schema is plain relational tables rather than an FTS5
// virtual table.
type TextIndex struct {
	mu sync.RWMutex
	db *DB
}

// NewTextIndex wraps an already-open DB.
func NewTextIndex(db *DB) *TextIndex {
	return &TextIndex{db: db}
}

// Add indexes (or re-indexes) a document. A document already present
// under the same chunk_id is fully replaced: its prior postings are
// removed and doc_freq/stats adjusted before the new terms are written,
// giving reindex-on-change consistent replace semantics.
func (t *TextIndex) Add(ctx context.Context, doc TextIndexDocument) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	tx, err := t.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return hserr.Wrap(hserr.Io, "textindex: begin transaction", err)
	}
	defer tx.Rollback()

	if err := removeDocLocked(tx, doc.ChunkID); err != nil {
		return err
	}
	if err := insertDocLocked(tx, doc); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return hserr.Wrap(hserr.Io, "textindex: commit", err)
	}
	return nil
}

// AddBatch indexes many documents in a single transaction.
func (t *TextIndex) AddBatch(ctx context.Context, docs []TextIndexDocument) error {
	if len(docs) == 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	tx, err := t.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return hserr.Wrap(hserr.Io, "textindex: begin transaction", err)
	}
	defer tx.Rollback()

	for _, doc := range docs {
		if ctx.Err() != nil {
			return hserr.Wrap(hserr.Cancelled, "textindex: add batch cancelled", ctx.Err())
		}
		if err := removeDocLocked(tx, doc.ChunkID); err != nil {
			return err
		}
		if err := insertDocLocked(tx, doc); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return hserr.Wrap(hserr.Io, "textindex: commit batch", err)
	}
	return nil
}

func insertDocLocked(tx *sql.Tx, doc TextIndexDocument) error {
	tf := make(map[string]int, len(doc.Terms))
	for _, term := range doc.Terms {
		tf[term]++
	}

	if _, err := tx.Exec(`INSERT INTO doc_length (chunk_id, file_path, length) VALUES (?, ?, ?)`,
		doc.ChunkID, doc.Path, len(doc.Terms)); err != nil {
		return hserr.Wrap(hserr.Io, "textindex: insert doc_length", err)
	}

	for term, freq := range tf {
		if _, err := tx.Exec(`INSERT INTO postings (term, chunk_id, tf) VALUES (?, ?, ?)`, term, doc.ChunkID, freq); err != nil {
			return hserr.Wrap(hserr.Io, "textindex: insert posting", err)
		}
		if _, err := tx.Exec(`
			INSERT INTO doc_freq (term, df) VALUES (?, 1)
			ON CONFLICT(term) DO UPDATE SET df = df + 1`, term); err != nil {
			return hserr.Wrap(hserr.Io, "textindex: update doc_freq", err)
		}
	}

	if err := bumpStatsLocked(tx, 1, len(doc.Terms)); err != nil {
		return err
	}
	return nil
}

// removeDocLocked removes chunkID's postings, decrementing doc_freq and
// corpus stats accordingly. It is a no-op if chunkID is not indexed.
func removeDocLocked(tx *sql.Tx, chunkID string) error {
	var length int
	err := tx.QueryRow(`SELECT length FROM doc_length WHERE chunk_id = ?`, chunkID).Scan(&length)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return hserr.Wrap(hserr.Io, "textindex: read doc_length", err)
	}

	rows, err := tx.Query(`SELECT term FROM postings WHERE chunk_id = ?`, chunkID)
	if err != nil {
		return hserr.Wrap(hserr.Io, "textindex: read postings", err)
	}
	var terms []string
	for rows.Next() {
		var term string
		if err := rows.Scan(&term); err != nil {
			rows.Close()
			return hserr.Wrap(hserr.Io, "textindex: scan posting term", err)
		}
		terms = append(terms, term)
	}
	rows.Close()

	for _, term := range terms {
		if _, err := tx.Exec(`UPDATE doc_freq SET df = df - 1 WHERE term = ?`, term); err != nil {
			return hserr.Wrap(hserr.Io, "textindex: decrement doc_freq", err)
		}
		if _, err := tx.Exec(`DELETE FROM doc_freq WHERE term = ? AND df <= 0`, term); err != nil {
			return hserr.Wrap(hserr.Io, "textindex: prune doc_freq", err)
		}
	}
	if _, err := tx.Exec(`DELETE FROM postings WHERE chunk_id = ?`, chunkID); err != nil {
		return hserr.Wrap(hserr.Io, "textindex: delete postings", err)
	}
	if _, err := tx.Exec(`DELETE FROM doc_length WHERE chunk_id = ?`, chunkID); err != nil {
		return hserr.Wrap(hserr.Io, "textindex: delete doc_length", err)
	}
	return bumpStatsLocked(tx, -1, -length)
}

// bumpStatsLocked adjusts the corpus-wide total_docs/total_length
// counters that AvgDocLength is derived from.
func bumpStatsLocked(tx *sql.Tx, docDelta, lengthDelta int) error {
	if _, err := tx.Exec(`
		INSERT INTO index_stats (key, value) VALUES ('total_docs', ?)
		ON CONFLICT(key) DO UPDATE SET value = value + excluded.value`, float64(docDelta)); err != nil {
		return hserr.Wrap(hserr.Io, "textindex: bump total_docs", err)
	}
	if _, err := tx.Exec(`
		INSERT INTO index_stats (key, value) VALUES ('total_length', ?)
		ON CONFLICT(key) DO UPDATE SET value = value + excluded.value`, float64(lengthDelta)); err != nil {
		return hserr.Wrap(hserr.Io, "textindex: bump total_length", err)
	}
	return nil
}

// DeleteByPath removes every document currently indexed under path.
func (t *TextIndex) DeleteByPath(ctx context.Context, path string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	tx, err := t.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return hserr.Wrap(hserr.Io, "textindex: begin transaction", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`SELECT chunk_id FROM doc_length WHERE file_path = ?`, path)
	if err != nil {
		return hserr.Wrap(hserr.Io, "textindex: query chunks by path", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return hserr.Wrap(hserr.Io, "textindex: scan chunk id", err)
		}
		ids = append(ids, id)
	}
	rows.Close()

	for _, id := range ids {
		if err := removeDocLocked(tx, id); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return hserr.Wrap(hserr.Io, "textindex: commit delete", err)
	}
	return nil
}

// stats loads the corpus-wide Stats internal/bm25 needs to score.
func (t *TextIndex) stats() (bm25.Stats, error) {
	var totalDocs, totalLength float64
	row := t.db.conn.QueryRow(`SELECT value FROM index_stats WHERE key = 'total_docs'`)
	if err := row.Scan(&totalDocs); err != nil && err != sql.ErrNoRows {
		return bm25.Stats{}, hserr.Wrap(hserr.Io, "textindex: read total_docs", err)
	}
	row = t.db.conn.QueryRow(`SELECT value FROM index_stats WHERE key = 'total_length'`)
	if err := row.Scan(&totalLength); err != nil && err != sql.ErrNoRows {
		return bm25.Stats{}, hserr.Wrap(hserr.Io, "textindex: read total_length", err)
	}

	avg := 0.0
	if totalDocs > 0 {
		avg = totalLength / totalDocs
	}
	return bm25.Stats{
		TotalDocs:    int(totalDocs),
		AvgDocLength: avg,
		DocFrequency: make(map[string]int),
	}, nil
}

// Query returns up to k chunks ranked by BM25 score against the
// (already tokenized) query terms, highest score first, ties broken by
// ascending chunk_id (internal/bm25.Rank).
func (t *TextIndex) Query(ctx context.Context, terms []string, k int) ([]bm25.Result, error) {
	if len(terms) == 0 || k <= 0 {
		return nil, nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	unique := dedupe(terms)
	stats, err := t.stats()
	if err != nil {
		return nil, err
	}

	placeholders := strings.Repeat("?,", len(unique))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(unique))
	for i, term := range unique {
		args[i] = term
	}

	dfRows, err := t.db.conn.QueryContext(ctx, `SELECT term, df FROM doc_freq WHERE term IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, hserr.Wrap(hserr.Io, "textindex: query doc_freq", err)
	}
	for dfRows.Next() {
		var term string
		var df int
		if err := dfRows.Scan(&term, &df); err != nil {
			dfRows.Close()
			return nil, hserr.Wrap(hserr.Io, "textindex: scan doc_freq", err)
		}
		stats.DocFrequency[term] = df
	}
	dfRows.Close()

	candidateFreq := make(map[string]map[string]int) // chunk_id -> term -> tf
	candidateLen := make(map[string]float64)

	postingRows, err := t.db.conn.QueryContext(ctx, `SELECT term, chunk_id, tf FROM postings WHERE term IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, hserr.Wrap(hserr.Io, "textindex: query postings", err)
	}
	for postingRows.Next() {
		var term, chunkID string
		var tf int
		if err := postingRows.Scan(&term, &chunkID, &tf); err != nil {
			postingRows.Close()
			return nil, hserr.Wrap(hserr.Io, "textindex: scan posting", err)
		}
		if candidateFreq[chunkID] == nil {
			candidateFreq[chunkID] = make(map[string]int)
		}
		candidateFreq[chunkID][term] = tf
	}
	postingRows.Close()

	if len(candidateFreq) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(candidateFreq))
	for id := range candidateFreq {
		ids = append(ids, id)
	}
	lenPlaceholders := strings.Repeat("?,", len(ids))
	lenPlaceholders = lenPlaceholders[:len(lenPlaceholders)-1]
	lenArgs := make([]any, len(ids))
	for i, id := range ids {
		lenArgs[i] = id
	}
	lenRows, err := t.db.conn.QueryContext(ctx, `SELECT chunk_id, length FROM doc_length WHERE chunk_id IN (`+lenPlaceholders+`)`, lenArgs...)
	if err != nil {
		return nil, hserr.Wrap(hserr.Io, "textindex: query doc_length", err)
	}
	for lenRows.Next() {
		var id string
		var length int
		if err := lenRows.Scan(&id, &length); err != nil {
			lenRows.Close()
			return nil, hserr.Wrap(hserr.Io, "textindex: scan doc_length", err)
		}
		candidateLen[id] = float64(length)
	}
	lenRows.Close()

	results := make([]bm25.Result, 0, len(candidateFreq))
	for id, tf := range candidateFreq {
		score := bm25.DocumentScore(unique, tf, candidateLen[id], stats, bm25.DefaultParams)
		if score > 0 {
			results = append(results, bm25.Result{ChunkID: id, Score: score})
		}
	}
	ranked := bm25.Rank(results)
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked, nil
}

func dedupe(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
