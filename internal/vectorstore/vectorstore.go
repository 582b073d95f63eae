// Package vectorstore implements a pluggable {upsert, delete_by_path,
// search} capability over fixed-dimension vectors, scored by cosine
// similarity in [-1, 1].
package vectorstore

import (
	"bufio"
	"context"
	"encoding/gob"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
	"github.com/google/renameio"

	"github.com/hsearch/hsearch/internal/hserr"
)

// Row is one upsert input: a chunk's vector keyed by chunk_id and the
// source path it belongs to (so delete_by_path can remove every chunk
// under a path without the caller tracking ids itself).
type Row struct {
	ChunkID string
	Path    string
	Vector  []float32
}

// Result is one ranked hit: chunk_id and its cosine similarity score.
type Result struct {
	ChunkID string
	Score   float32
}

// Store is an HNSW-backed approximate nearest-neighbor index using a
// lazy-deletion strategy: coder/hnsw corrupts its graph if the last
// node is physically deleted, so deletes only orphan the id mapping.
type Store struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[uint64]
	dim   int

	idToKey    map[string]uint64
	keyToID    map[uint64]string
	keyToPath  map[uint64]string
	pathToKeys map[string]map[uint64]struct{}
	nextKey    uint64

	closed bool
}

// persistedState is the gob-encoded side channel saved next to the
// HNSW graph export.
type persistedState struct {
	Dim        int
	IDToKey    map[string]uint64
	KeyToPath  map[uint64]string
	PathToKeys map[string]map[uint64]struct{}
	NextKey    uint64
}

// New constructs an empty Store for vectors of the given dimension,
// using cosine distance.
func New(dim int) *Store {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 50 // >= the fusion-headroom k=50 floor
	graph.Ml = 0.25

	return &Store{
		graph:      graph,
		dim:        dim,
		idToKey:    make(map[string]uint64),
		keyToID:    make(map[uint64]string),
		keyToPath:  make(map[uint64]string),
		pathToKeys: make(map[string]map[uint64]struct{}),
	}
}

// Upsert inserts or replaces rows. An existing chunk_id is
// lazy-deleted (its old key is orphaned, never physically removed from
// the graph) before the new vector is added under a fresh key.
func (s *Store) Upsert(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return hserr.New(hserr.Resource, "vectorstore: store is closed")
	}
	for _, r := range rows {
		if len(r.Vector) != s.dim {
			return hserr.New(hserr.Resource, "vectorstore: vector dimension mismatch")
		}
	}

	for _, r := range rows {
		if ctx.Err() != nil {
			return hserr.Wrap(hserr.Cancelled, "vectorstore: upsert cancelled", ctx.Err())
		}
		s.removeLocked(r.ChunkID)

		key := s.nextKey
		s.nextKey++

		vec := make([]float32, len(r.Vector))
		copy(vec, r.Vector)
		normalizeInPlace(vec)

		s.graph.Add(hnsw.MakeNode(key, vec))

		s.idToKey[r.ChunkID] = key
		s.keyToID[key] = r.ChunkID
		s.keyToPath[key] = r.Path
		if s.pathToKeys[r.Path] == nil {
			s.pathToKeys[r.Path] = make(map[uint64]struct{})
		}
		s.pathToKeys[r.Path][key] = struct{}{}
	}
	return nil
}

// removeLocked lazy-deletes chunkID's current key, if any. Caller must
// hold s.mu.
func (s *Store) removeLocked(chunkID string) {
	key, ok := s.idToKey[chunkID]
	if !ok {
		return
	}
	path := s.keyToPath[key]
	delete(s.idToKey, chunkID)
	delete(s.keyToID, key)
	delete(s.keyToPath, key)
	if keys := s.pathToKeys[path]; keys != nil {
		delete(keys, key)
		if len(keys) == 0 {
			delete(s.pathToKeys, path)
		}
	}
}

// DeleteByPath orphans every chunk currently indexed under path.
func (s *Store) DeleteByPath(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return hserr.New(hserr.Resource, "vectorstore: store is closed")
	}
	for key := range s.pathToKeys[path] {
		chunkID := s.keyToID[key]
		delete(s.idToKey, chunkID)
		delete(s.keyToID, key)
		delete(s.keyToPath, key)
	}
	delete(s.pathToKeys, path)
	return nil
}

// Search returns up to k nearest neighbors to query, ranked descending
// by cosine similarity score in [-1, 1]. Orphaned (lazy-deleted) graph
// nodes are filtered out of results.
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, hserr.New(hserr.Resource, "vectorstore: store is closed")
	}
	if len(query) != s.dim {
		return nil, hserr.New(hserr.Resource, "vectorstore: query dimension mismatch")
	}
	if s.graph.Len() == 0 {
		return nil, nil
	}

	q := make([]float32, len(query))
	copy(q, query)
	normalizeInPlace(q)

	// Over-fetch to compensate for orphaned nodes the graph doesn't
	// know have been deleted.
	nodes := s.graph.Search(q, k+len(s.keyToID))

	out := make([]Result, 0, k)
	for _, node := range nodes {
		if len(out) >= k {
			break
		}
		id, ok := s.keyToID[node.Key]
		if !ok {
			continue
		}
		dist := s.graph.Distance(q, node.Value)
		score := cosineScore(dist)
		out = append(out, Result{ChunkID: id, Score: score})
	}
	return out, nil
}

// cosineScore converts coder/hnsw's cosine distance (0 = identical, 2
// = opposite) into a [-1, 1] similarity score.
func cosineScore(distance float32) float32 {
	score := 1 - distance
	if score > 1 {
		score = 1
	}
	if score < -1 {
		score = -1
	}
	return score
}

func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

// Count returns the number of live (non-orphaned) vectors.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.idToKey)
}

// Close releases the store. The underlying graph is dropped; Close
// does not implicitly Save.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.graph = nil
	return nil
}

// Save persists the HNSW graph and its id/path side tables to path and
// path+".meta" respectively, using renameio for crash-safe atomic
// writes.
func (s *Store) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return hserr.New(hserr.Resource, "vectorstore: store is closed")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return hserr.Wrap(hserr.Io, "vectorstore: create directory", err)
	}

	graphFile, err := renameio.TempFile("", path)
	if err != nil {
		return hserr.Wrap(hserr.Io, "vectorstore: open temp graph file", err)
	}
	defer graphFile.Cleanup()
	if err := s.graph.Export(graphFile); err != nil {
		return hserr.Wrap(hserr.Io, "vectorstore: export graph", err)
	}
	if err := graphFile.CloseAtomicallyReplace(); err != nil {
		return hserr.Wrap(hserr.Io, "vectorstore: commit graph file", err)
	}

	metaPath := path + ".meta"
	metaFile, err := renameio.TempFile("", metaPath)
	if err != nil {
		return hserr.Wrap(hserr.Io, "vectorstore: open temp metadata file", err)
	}
	defer metaFile.Cleanup()
	state := persistedState{
		Dim:        s.dim,
		IDToKey:    s.idToKey,
		KeyToPath:  s.keyToPath,
		PathToKeys: s.pathToKeys,
		NextKey:    s.nextKey,
	}
	if err := gob.NewEncoder(metaFile).Encode(state); err != nil {
		return hserr.Wrap(hserr.Io, "vectorstore: encode metadata", err)
	}
	return metaFile.CloseAtomicallyReplace()
}

// Load replaces s's in-memory state with the graph and metadata
// persisted at path / path+".meta".
func (s *Store) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return hserr.New(hserr.Resource, "vectorstore: store is closed")
	}

	metaFile, err := os.Open(path + ".meta")
	if err != nil {
		return hserr.Wrap(hserr.Io, "vectorstore: open metadata", err)
	}
	defer metaFile.Close()
	var state persistedState
	if err := gob.NewDecoder(metaFile).Decode(&state); err != nil {
		return hserr.Wrap(hserr.Corruption, "vectorstore: decode metadata", err)
	}

	graphFile, err := os.Open(path)
	if err != nil {
		return hserr.Wrap(hserr.Io, "vectorstore: open graph file", err)
	}
	defer graphFile.Close()

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 50
	graph.Ml = 0.25
	if err := graph.Import(bufio.NewReader(graphFile)); err != nil {
		return hserr.Wrap(hserr.Corruption, "vectorstore: import graph", err)
	}

	s.graph = graph
	s.dim = state.Dim
	s.idToKey = state.IDToKey
	s.keyToPath = state.KeyToPath
	s.pathToKeys = state.PathToKeys
	s.nextKey = state.NextKey
	s.keyToID = make(map[uint64]string, len(s.idToKey))
	for id, key := range s.idToKey {
		s.keyToID[key] = id
	}
	return nil
}

// ReadDimensions reads the vector dimension recorded in an existing
// store's metadata without loading the full graph. Returns 0, nil if
// no metadata file exists yet.
func ReadDimensions(path string) (int, error) {
	f, err := os.Open(path + ".meta")
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, hserr.Wrap(hserr.Io, "vectorstore: open metadata", err)
	}
	defer f.Close()
	var state persistedState
	if err := gob.NewDecoder(f).Decode(&state); err != nil {
		return 0, hserr.Wrap(hserr.Corruption, "vectorstore: decode metadata", err)
	}
	return state.Dim, nil
}
