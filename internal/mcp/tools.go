package mcp

import "github.com/hsearch/hsearch/internal/daemon"

// IndexInput is the input schema for the index tool.
type IndexInput struct {
	Path        string `json:"path" jsonschema:"project directory to index"`
	Incremental bool   `json:"incremental,omitempty" jsonschema:"no effect; every index run skips files whose content hash is unchanged since the last index run"`
}

// IndexOutput is the output schema for the index tool.
type IndexOutput struct {
	FilesScanned int                 `json:"files_scanned"`
	FilesIndexed int                 `json:"files_indexed"`
	FilesSkipped int                 `json:"files_skipped"`
	Chunks       int                 `json:"chunks"`
	Symbols      int                 `json:"symbols"`
	Vectors      int                 `json:"vectors"`
	Errors       []daemon.IndexError `json:"errors,omitempty"`
}

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query       string `json:"query" jsonschema:"the search query to execute"`
	Limit       int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	ProjectPath string `json:"project_path,omitempty" jsonschema:"project root to search, defaults to the server's configured root"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results      []daemon.SearchResult `json:"results"`
	TotalFound   int                   `json:"total_found"`
	SearchTimeMs int64                 `json:"search_time_ms"`
	Degraded     bool                  `json:"degraded,omitempty"`
}

// ClearInput is the input schema for the clear tool (no parameters).
type ClearInput struct{}

// ClearOutput is the output schema for the clear tool.
type ClearOutput struct {
	OK bool `json:"ok"`
}

// StatusInput is the input schema for the status tool (no parameters).
type StatusInput struct{}

// StatusOutput is the output schema for the status tool.
type StatusOutput struct {
	IndexedFiles     int    `json:"indexed_files"`
	Chunks           int    `json:"chunks"`
	VectorRows       int    `json:"vector_rows"`
	SymbolRows       int    `json:"symbol_rows"`
	EmbedderState    string `json:"embedder_state"`
	MemoryUsageBytes uint64 `json:"memory_usage_bytes"`
}
