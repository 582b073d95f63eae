package store

import "time"

// ContentType classifies a chunk's content for chunking/expansion rules.
type ContentType string

const (
	ContentTypeCode     ContentType = "code"
	ContentTypeMarkdown ContentType = "markdown"
	ContentTypeText     ContentType = "text"
)

// State keys for the kv_state table.
const (
	StateKeyIndexDimension = "index_embedding_dimension"
	StateKeyIndexModel     = "index_embedding_model"

	StateKeyCheckpointStage         = "checkpoint_stage"
	StateKeyCheckpointTotal         = "checkpoint_total"
	StateKeyCheckpointEmbedded      = "checkpoint_embedded"
	StateKeyCheckpointTimestamp     = "checkpoint_timestamp"
	StateKeyCheckpointEmbedderModel = "checkpoint_embedder_model"
)

// SymbolType is the kind of code symbol a Symbol entry names, used by
// the Symbol Index's kind-priority ordering.
type SymbolType string

const (
	SymbolTypeFunction  SymbolType = "function"
	SymbolTypeClass     SymbolType = "class"
	SymbolTypeInterface SymbolType = "interface"
	SymbolTypeType      SymbolType = "type"
	SymbolTypeVariable  SymbolType = "variable"
	SymbolTypeConstant  SymbolType = "constant"
	SymbolTypeMethod    SymbolType = "method"
)

// Chunk is a retrievable unit of content: a code function, a markdown
// section, or a capped span of plain text (internal/chunk's output,
// persisted here alongside the text/vector/symbol indexes that key off
// its ChunkID).
type Chunk struct {
	ID          string
	FileID      string
	FilePath    string
	Content     string
	RawContent  string
	Context     string
	ContentType ContentType
	Language    string
	StartLine   int
	EndLine     int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// File is a tracked file in the index, keyed by content hash so
// incremental reindexing can skip files whose hash hasn't changed.
type File struct {
	ID          string
	ProjectID   string
	Path        string
	Size        int64
	ModTime     time.Time
	ContentHash string
	Language    string
	ContentType string
	IndexedAt   time.Time
}

// Project is one indexed codebase root.
type Project struct {
	ID          string
	Name        string
	RootPath    string
	ProjectType string
	ChunkCount  int
	FileCount   int
	IndexedAt   time.Time
	Version     string
}

// IndexCheckpoint is the saved state of an in-progress indexing run, as
// written by SaveIndexCheckpoint and read by LoadIndexCheckpoint. The
// indexer driver neither saves nor loads checkpoints, so an interrupted
// run is not resumed from one.
type IndexCheckpoint struct {
	Stage         string
	Total         int
	EmbeddedCount int
	Timestamp     time.Time
	EmbedderModel string
}

// CurrentSchemaVersion is the schema_version row written by db.go.
const CurrentSchemaVersion = 3
