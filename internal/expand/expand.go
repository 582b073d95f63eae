// Package expand implements the context expander:
// given a chunk's location within a file, it returns that chunk plus
// its immediate neighbors so a search result can be shown with
// surrounding context.
package expand

import (
	"context"
	"fmt"
	"strings"

	"github.com/hsearch/hsearch/internal/hashutil"
	"github.com/hsearch/hsearch/internal/hserr"
	"github.com/hsearch/hsearch/internal/store"
)

// FormatContentHash renders a hashutil.ContentHash digest in the hex
// form stored as File.ContentHash, so callers populating that field
// (internal/indexer) and Expand's staleness check agree on encoding.
func FormatContentHash(h uint64) string {
	return fmt.Sprintf("%016x", h)
}

// Window is the {above, target, below} triple. Above
// and Below are nil when the target is the first or last chunk in the
// file's chunk sequence.
type Window struct {
	Above  *store.Chunk
	Target *store.Chunk
	Below  *store.Chunk

	// Stale is true when the file's on-disk content no longer matches
	// the content hash recorded at index time; Target has been rebuilt
	// from the current content but Above/Below still reflect the last
	// indexed state.
	Stale bool
}

// Expander locates a chunk's neighbors using the metadata store's
// per-file chunk ordering: group by file, fetch every chunk, and
// select by line-range proximity to the target.
type Expander struct {
	metadata *store.MetadataStore
}

// New wraps a metadata store.
func New(metadata *store.MetadataStore) *Expander {
	return &Expander{metadata: metadata}
}

// Expand locates the chunk whose range contains [startLine, endLine] in
// fileID's chunk sequence and returns it with its nearest neighbors.
// If currentContent is non-nil and its content hash no longer matches
// file.ContentHash, the target chunk is rebuilt from currentContent and
// Stale is set true.
func (e *Expander) Expand(ctx context.Context, file *store.File, startLine, endLine int, currentContent []byte) (*Window, error) {
	chunks, err := e.metadata.GetChunksByFile(ctx, file.ID)
	if err != nil {
		return nil, hserr.Wrap(hserr.Io, "expand: load chunks for file", err)
	}
	if len(chunks) == 0 {
		return nil, hserr.New(hserr.Resource, "expand: file has no indexed chunks").WithPath(file.Path)
	}

	i := locate(chunks, startLine, endLine)
	target := *chunks[i]

	w := &Window{Target: &target}
	if i > 0 {
		w.Above = chunks[i-1]
	}
	if i < len(chunks)-1 {
		w.Below = chunks[i+1]
	}

	if currentContent != nil && FormatContentHash(hashutil.ContentHash(currentContent)) != file.ContentHash {
		w.Stale = true
		w.Target.Content = extractLines(currentContent, target.StartLine, target.EndLine)
	}

	return w, nil
}

// locate returns the index of the chunk whose range contains
// [startLine, endLine], or the index with the greatest overlap if no
// chunk fully contains it.
func locate(chunks []*store.Chunk, startLine, endLine int) int {
	best, bestOverlap := 0, -1
	for i, c := range chunks {
		if c.StartLine <= startLine && c.EndLine >= endLine {
			return i
		}
		overlap := overlapLines(c.StartLine, c.EndLine, startLine, endLine)
		if overlap > bestOverlap {
			best, bestOverlap = i, overlap
		}
	}
	return best
}

func overlapLines(aStart, aEnd, bStart, bEnd int) int {
	start := aStart
	if bStart > start {
		start = bStart
	}
	end := aEnd
	if bEnd < end {
		end = bEnd
	}
	if end < start {
		return 0
	}
	return end - start + 1
}

// extractLines returns the 1-indexed, inclusive line range [start, end]
// of content, clamped to the content's actual bounds.
func extractLines(content []byte, start, end int) string {
	lines := strings.Split(string(content), "\n")
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end || start > len(lines) {
		return ""
	}
	return strings.Join(lines[start-1:end], "\n")
}
