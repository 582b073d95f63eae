package mcp

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hsearch/hsearch/internal/daemon"
	"github.com/hsearch/hsearch/pkg/version"
)

// Server bridges an MCP client (Claude Code, Cursor, or any other
// go-sdk-speaking host) to a daemon.Service, registering one tool per
// core operation. It shares its Service with a plain-JSON-RPC
// daemon.Server when both are constructed over the same CoreContext
// set, so indexing done through one surface is visible through the
// other.
type Server struct {
	mcp     *mcp.Server
	service *daemon.Service
	logger  *slog.Logger
}

// NewServer builds an MCP Server over service and registers its tools.
func NewServer(service *daemon.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		service: service,
		logger:  logger,
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{Name: "hsearch", Version: version.Version},
		nil,
	)
	s.registerTools()
	return s
}

// registerTools registers the index/search/clear/status tools, the MCP
// equivalent of internal/daemon's four JSON-RPC methods.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index",
		Description: "Index a project directory for hybrid text, semantic, and symbol search.",
	}, s.handleIndex)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Search an indexed codebase using fused text, semantic, and symbol search with surrounding context.",
	}, s.handleSearch)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "clear",
		Description: "Discard all indexed data for the current project so the next index run starts from scratch.",
	}, s.handleClear)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "status",
		Description: "Report index size, embedder state, and memory usage for the current project.",
	}, s.handleStatus)

	s.logger.Debug("mcp tools registered", slog.Int("count", 4))
}

func (s *Server) handleIndex(ctx context.Context, _ *mcp.CallToolRequest, input IndexInput) (*mcp.CallToolResult, IndexOutput, error) {
	if input.Path == "" {
		return nil, IndexOutput{}, NewInvalidParamsError("path is required")
	}

	result, err := s.service.Index(ctx, daemon.IndexParams{Path: input.Path, Incremental: input.Incremental})
	if err != nil {
		return nil, IndexOutput{}, mapError(err)
	}
	return nil, IndexOutput{
		FilesScanned: result.FilesScanned,
		FilesIndexed: result.FilesIndexed,
		FilesSkipped: result.FilesSkipped,
		Chunks:       result.Chunks,
		Symbols:      result.Symbols,
		Vectors:      result.Vectors,
		Errors:       result.Errors,
	}, nil
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	if input.Query == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query is required")
	}

	result, err := s.service.Search(ctx, daemon.SearchParams{
		Query:       input.Query,
		Limit:       input.Limit,
		ProjectPath: input.ProjectPath,
	})
	if err != nil {
		return nil, SearchOutput{}, mapError(err)
	}
	return nil, SearchOutput{
		Results:      result.Results,
		TotalFound:   result.TotalFound,
		SearchTimeMs: result.SearchTimeMs,
		Degraded:     result.Degraded,
	}, nil
}

func (s *Server) handleClear(ctx context.Context, _ *mcp.CallToolRequest, _ ClearInput) (*mcp.CallToolResult, ClearOutput, error) {
	result, err := s.service.Clear(ctx)
	if err != nil {
		return nil, ClearOutput{}, mapError(err)
	}
	return nil, ClearOutput{OK: result.OK}, nil
}

func (s *Server) handleStatus(ctx context.Context, _ *mcp.CallToolRequest, _ StatusInput) (*mcp.CallToolResult, StatusOutput, error) {
	result, err := s.service.Status(ctx)
	if err != nil {
		return nil, StatusOutput{}, mapError(err)
	}
	return nil, StatusOutput{
		IndexedFiles:     result.IndexedFiles,
		Chunks:           result.Chunks,
		VectorRows:       result.VectorRows,
		SymbolRows:       result.SymbolRows,
		EmbedderState:    result.EmbedderState,
		MemoryUsageBytes: result.MemoryUsageBytes,
	}, nil
}

// Serve runs the MCP server over stdio until ctx is cancelled. Like
// internal/daemon.Server, this reserves stdout exclusively for protocol
// traffic.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("mcp server starting", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
