package embed

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/blevesearch/mmap-go"
	"github.com/hsearch/hsearch/internal/hserr"
)

// sideTable is a lookup-first fast path: a precomputed map from the K
// most frequent token hashes to their already-normalized output
// vectors, stored as one contiguous K*dim*4-byte array inside the
// mmap'd metadata region. No tensor read is needed
// for a token whose hash is present here.
type sideTable struct {
	mm      mmap.MMap
	entries []vocabEntry // hash -> index into the vector array, sorted by hash
	dim     int
	base    int // byte offset of the vector array within mm
}

// newSideTable locates and indexes the lookup table immediately
// following the vocab table inside the mmap'd region.
func newSideTable(mm mmap.MMap, h header) (*sideTable, error) {
	const entrySize = 8 + 4
	vocabBytes := int(h.VocabSize) * entrySize
	tableStart := headerFixedSize + vocabBytes

	hashesStart := tableStart
	hashesLen := int(h.LookupCount) * 8
	vectorsStart := hashesStart + hashesLen
	vectorsLen := int(h.LookupCount) * int(h.Dim) * 4

	if vectorsStart+vectorsLen > len(mm) {
		return nil, hserr.New(hserr.ModelFormat, "embed: lookup table exceeds metadata region")
	}

	entries := make([]vocabEntry, h.LookupCount)
	off := hashesStart
	for i := range entries {
		entries[i] = vocabEntry{
			Hash: binary.LittleEndian.Uint64(mm[off : off+8]),
			Row:  uint32(i),
		}
		off += 8
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Hash < entries[j].Hash })

	return &sideTable{mm: mm, entries: entries, dim: int(h.Dim), base: vectorsStart}, nil
}

// lookup returns a copy of the precomputed vector for hash, if present.
func (s *sideTable) lookup(hash uint64) ([]float32, bool) {
	i := sort.Search(len(s.entries), func(i int) bool { return s.entries[i].Hash >= hash })
	if i >= len(s.entries) || s.entries[i].Hash != hash {
		return nil, false
	}
	off := s.base + int(s.entries[i].Row)*s.dim*4
	out := make([]float32, s.dim)
	for j := 0; j < s.dim; j++ {
		bits := binary.LittleEndian.Uint32(s.mm[off+j*4 : off+j*4+4])
		out[j] = math.Float32frombits(bits)
	}
	return out, true
}
