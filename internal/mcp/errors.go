// Package mcp exposes the same index/search/clear/status operations
// internal/daemon serves over line-delimited JSON-RPC as MCP tools, via
// github.com/modelcontextprotocol/go-sdk, a richer host-integration
// shell alongside the plain JSON-RPC reader. Only the four core
// operations are registered as tools — no resource browsing, MIME
// detection, or markdown-formatted output (see DESIGN.md).
package mcp

import (
	"errors"
	"fmt"

	"github.com/hsearch/hsearch/internal/hserr"
)

// Standard JSON-RPC error codes, the same set internal/daemon uses.
const (
	ErrCodeInvalidParams = -32602
	ErrCodeInternalError = -32603
)

// ToolError is an MCP tool-call error with a JSON-RPC-style code.
type ToolError struct {
	Code    int
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("mcp error %d: %s", e.Code, e.Message)
}

// NewInvalidParamsError builds a ToolError for a malformed tool call.
func NewInvalidParamsError(message string) *ToolError {
	return &ToolError{Code: ErrCodeInvalidParams, Message: message}
}

// mapError converts a core operation error into a ToolError, deriving
// the code from the error's hserr.Kind.
func mapError(err error) *ToolError {
	if err == nil {
		return nil
	}
	var herr *hserr.Error
	if errors.As(err, &herr) {
		if herr.Kind == hserr.Config {
			return &ToolError{Code: ErrCodeInvalidParams, Message: herr.Error()}
		}
	}
	return &ToolError{Code: ErrCodeInternalError, Message: err.Error()}
}
