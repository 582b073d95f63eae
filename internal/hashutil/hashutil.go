// Package hashutil provides the content-hashing primitives shared by
// the File and Chunk entities: a 64-bit content digest and a stable
// chunk identifier derived from it.
package hashutil

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// ContentHash returns the 64-bit digest used as File.content_hash.
func ContentHash(content []byte) uint64 {
	return xxhash.Sum64(content)
}

// ChunkID returns the stable chunk identifier: a hash of
// (path, start_line, end_line, content_hash). The result is
// hex-encoded for use as a map/row key.
func ChunkID(path string, startLine, endLine int, contentHash uint64) string {
	digest := xxhash.New()
	fmt.Fprintf(digest, "%s:%d:%d:%016x", path, startLine, endLine, contentHash)
	return fmt.Sprintf("%016x", digest.Sum64())
}
