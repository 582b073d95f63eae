// Package chunk implements a stateless, regex-boundary chunker
// operating on a file's line sequence. It is deliberately independent
// of internal/symbol's tree-sitter-based extraction: chunking and
// symbol extraction are two distinct components here rather than a
// single fused pass.
package chunk

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/hsearch/hsearch/internal/hashutil"
)

// Kind is the closed chunk-kind enum.
type Kind string

const (
	KindFunction  Kind = "function"
	KindClass     Kind = "class"
	KindStatement Kind = "statement"
	KindBlock     Kind = "block"
)

// DefaultMaxChunkLines is the default max_chunk_lines.
const DefaultMaxChunkLines = 150

// qualityFloor is the ratio-of-non-blank-lines-to-total-lines discard
// threshold.
const qualityFloor = 0.30

// Chunk is one contiguous span of a file's lines.
type Chunk struct {
	ChunkID   string
	Path      string
	StartLine int // 1-indexed, inclusive
	EndLine   int // 1-indexed, inclusive
	Kind      Kind
	Text      string
}

// boundary pairs an ordered regular expression with the Kind a matching
// line opens. Order matters: the first matching pattern wins. The set
// covers common procedural/OO language function, class/struct/
// interface/type, and SQL table declarations.
type boundary struct {
	pattern *regexp.Regexp
	kind    Kind
}

var boundaries = []boundary{
	// Go
	{regexp.MustCompile(`^\s*func\s+(\([^)]*\)\s*)?\w+\s*\(`), KindFunction},
	{regexp.MustCompile(`^\s*type\s+\w+\s+(struct|interface)\b`), KindClass},
	// Python
	{regexp.MustCompile(`^\s*def\s+\w+\s*\(`), KindFunction},
	{regexp.MustCompile(`^\s*class\s+\w+`), KindClass},
	// JS/TS
	{regexp.MustCompile(`^\s*(export\s+)?(async\s+)?function\s*\*?\s*\w+\s*\(`), KindFunction},
	{regexp.MustCompile(`^\s*(export\s+)?(default\s+)?class\s+\w+`), KindClass},
	{regexp.MustCompile(`^\s*(export\s+)?interface\s+\w+`), KindClass},
	{regexp.MustCompile(`^\s*(export\s+)?type\s+\w+\s*=`), KindClass},
	// Java/C#/C++
	{regexp.MustCompile(`^\s*(public|private|protected|internal|static|final|virtual|override)[\w\s<>\[\],]*\s+\w+\s*\([^;]*\)\s*\{?\s*$`), KindFunction},
	{regexp.MustCompile(`^\s*(public|private|protected|internal)?\s*(static\s+)?(final\s+)?(class|struct|interface|enum)\s+\w+`), KindClass},
	// Rust
	{regexp.MustCompile(`^\s*(pub\s+)?fn\s+\w+\s*\(`), KindFunction},
	{regexp.MustCompile(`^\s*(pub\s+)?(struct|enum|trait|impl)\s+\w+`), KindClass},
	// Ruby
	{regexp.MustCompile(`^\s*def\s+\w+`), KindFunction},
	{regexp.MustCompile(`^\s*(module|class)\s+\w+`), KindClass},
	// SQL
	{regexp.MustCompile(`(?i)^\s*create\s+table\s+`), KindClass},
}

func matchBoundary(line string) (Kind, bool) {
	for _, b := range boundaries {
		if b.pattern.MatchString(line) {
			return b.kind, true
		}
	}
	return "", false
}

// isBinary detects binary content by the presence of a null byte in
// the first 8 KiB.
func isBinary(content []byte) bool {
	probe := content
	if len(probe) > 8*1024 {
		probe = probe[:8*1024]
	}
	return bytes.IndexByte(probe, 0) >= 0
}

func isBlankLine(s string) bool {
	return strings.TrimSpace(s) == ""
}

type rawChunk struct {
	start, end int
	kind       Kind
}

// Chunk splits a file's content into the regex-boundary chunk sequence
// below. path is used only for chunk_id derivation;
// fileContentHash is the File entity's content_hash, so a chunk_id
// changes whenever the file it belongs to changes (the replace-on-
// reindex model). maxChunkLines <= 0 uses DefaultMaxChunkLines.
//
// The result's line ranges always partition [1, n] with no gaps or
// overlaps; malformed input never causes an error — unmatched files
// fall back to whole-file (cap-permitting) chunks, and binary files
// yield zero chunks.
func Chunk(path string, content []byte, fileContentHash uint64, maxChunkLines int) []Chunk {
	if maxChunkLines <= 0 {
		maxChunkLines = DefaultMaxChunkLines
	}
	if isBinary(content) {
		return nil
	}

	text := string(content)
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	// A trailing "" from a final newline does not represent a real
	// line; drop it so line counts match conventional editor line
	// numbering.
	if len(lines) > 1 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	n := len(lines)
	if n == 0 {
		return nil
	}

	boundaryKind := make(map[int]Kind, n)
	for i, line := range lines {
		if k, ok := matchBoundary(line); ok {
			boundaryKind[i+1] = k
		}
	}

	var raw []rawChunk
	start := 1
	kind := KindStatement
	if k, ok := boundaryKind[1]; ok {
		kind = k
	}

	closeAt := func(end int, closingKind Kind) {
		raw = append(raw, rawChunk{start: start, end: end, kind: closingKind})
	}

	for line := 2; line <= n; line++ {
		if k, ok := boundaryKind[line]; ok {
			closeAt(line-1, kind)
			start = line
			kind = k
			continue
		}
		if line-start+1 >= maxChunkLines {
			closeAt(line, KindBlock)
			start = line + 1
			kind = KindStatement
		}
	}
	if start <= n {
		raw = append(raw, rawChunk{start: start, end: n, kind: kind})
	}

	raw = mergeBlankTail(raw, lines)
	raw = mergeLowQuality(raw, lines)

	out := make([]Chunk, 0, len(raw))
	for _, r := range raw {
		segment := strings.Join(lines[r.start-1:r.end], "\n")
		out = append(out, Chunk{
			ChunkID:   hashutil.ChunkID(path, r.start, r.end, fileContentHash),
			Path:      path,
			StartLine: r.start,
			EndLine:   r.end,
			Kind:      r.kind,
			Text:      segment,
		})
	}
	return out
}

// mergeBlankTail implements "Empty-line-only tails are attached to the
// preceding chunk": if the final chunk produced by an EOF close is
// entirely blank lines, it is folded into the chunk before it rather
// than standing alone.
func mergeBlankTail(raw []rawChunk, lines []string) []rawChunk {
	if len(raw) < 2 {
		return raw
	}
	last := raw[len(raw)-1]
	if !allBlank(lines, last.start, last.end) {
		return raw
	}
	merged := raw[:len(raw)-1]
	merged[len(merged)-1].end = last.end
	return merged
}

// mergeLowQuality implements the quality filter: a chunk whose
// non-blank/total line ratio is below 0.30 is folded into a
// neighboring chunk (preserving the no-gaps invariant, since dropping
// it outright would open a gap): into the preceding chunk, or, when it
// is the first chunk, into the following one; a lone low-quality chunk
// with no neighbor stays as it is. Chunks shorter than 3 lines are kept
// standalone regardless of their ratio.
func mergeLowQuality(raw []rawChunk, lines []string) []rawChunk {
	out := make([]rawChunk, 0, len(raw))
	carry := 0
	for i, r := range raw {
		if carry > 0 {
			r.start = carry
			carry = 0
		}
		length := r.end - r.start + 1
		if length < 3 {
			out = append(out, r)
			continue
		}
		if quality(lines, r.start, r.end) >= qualityFloor {
			out = append(out, r)
			continue
		}
		if len(out) > 0 {
			out[len(out)-1].end = r.end
		} else if i+1 < len(raw) {
			carry = r.start
		} else {
			out = append(out, r)
		}
	}
	return out
}

func quality(lines []string, start, end int) float64 {
	total := end - start + 1
	if total <= 0 {
		return 1
	}
	nonBlank := 0
	for i := start; i <= end; i++ {
		if !isBlankLine(lines[i-1]) {
			nonBlank++
		}
	}
	return float64(nonBlank) / float64(total)
}

func allBlank(lines []string, start, end int) bool {
	for i := start; i <= end; i++ {
		if !isBlankLine(lines[i-1]) {
			return false
		}
	}
	return true
}
