package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// RequestHandler serves the four index/search/clear/status operations. A
// single implementation (Service, see service.go) backs both the CLI
// (direct calls) and the stdio server dispatch below.
type RequestHandler interface {
	Index(ctx context.Context, params IndexParams) (IndexResult, error)
	Search(ctx context.Context, params SearchParams) (SearchResponse, error)
	Clear(ctx context.Context) (ClearResult, error)
	Status(ctx context.Context) (StatusResult, error)
}

// Server reads line-delimited JSON-RPC 2.0 requests from an io.Reader
// and writes responses to an io.Writer, one request per line, over the
// host's own stdio rather than an intermediary Unix socket a separate
// CLI process dials into.
type Server struct {
	in      *bufio.Scanner
	out     io.Writer
	handler RequestHandler

	mu sync.Mutex // serializes writes to out
}

// NewServer builds a Server reading requests from in and writing
// responses to out.
func NewServer(in io.Reader, out io.Writer, handler RequestHandler) *Server {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &Server{in: scanner, out: out, handler: handler}
}

// Serve reads requests until in reaches EOF, ctx is cancelled, or a
// write fails. Each line is handled synchronously; the protocol has no
// pipelining requirement, so requests are processed one at a time in
// arrival order.
func (s *Server) Serve(ctx context.Context) error {
	for s.in.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := s.in.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			if werr := s.write(NewErrorResponse("", ErrCodeParseError, "failed to parse request")); werr != nil {
				return werr
			}
			continue
		}

		resp := s.handleRequest(ctx, req)
		if err := s.write(resp); err != nil {
			return err
		}
	}
	return s.in.Err()
}

func (s *Server) write(resp Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = s.out.Write(data)
	return err
}

// handleRequest dispatches a single decoded request to the handler by
// method name.
func (s *Server) handleRequest(ctx context.Context, req Request) Response {
	if s.handler == nil {
		return NewErrorResponse(req.ID, ErrCodeInternalError, "no handler configured")
	}

	switch req.Method {
	case MethodIndex:
		return s.handleIndex(ctx, req)
	case MethodSearch:
		return s.handleSearch(ctx, req)
	case MethodClear:
		return s.handleClear(ctx, req)
	case MethodStatus:
		return s.handleStatus(ctx, req)
	default:
		return NewErrorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

func decodeParams[T any](raw any) (T, error) {
	var out T
	data, err := json.Marshal(raw)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(data, &out)
	return out, err
}

func (s *Server) handleIndex(ctx context.Context, req Request) Response {
	params, err := decodeParams[IndexParams](req.Params)
	if err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to decode params")
	}
	if err := params.Validate(); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
	}

	result, err := s.handler.Index(ctx, params)
	if err != nil {
		slog.Error("daemon: index failed", slog.String("error", err.Error()))
		return NewErrorResponse(req.ID, ErrCodeOperationFailed, err.Error())
	}
	return NewSuccessResponse(req.ID, result)
}

func (s *Server) handleSearch(ctx context.Context, req Request) Response {
	params, err := decodeParams[SearchParams](req.Params)
	if err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to decode params")
	}
	if err := params.Validate(); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
	}

	result, err := s.handler.Search(ctx, params)
	if err != nil {
		slog.Error("daemon: search failed", slog.String("error", err.Error()))
		return NewErrorResponse(req.ID, ErrCodeOperationFailed, err.Error())
	}
	return NewSuccessResponse(req.ID, result)
}

func (s *Server) handleClear(ctx context.Context, req Request) Response {
	result, err := s.handler.Clear(ctx)
	if err != nil {
		slog.Error("daemon: clear failed", slog.String("error", err.Error()))
		return NewErrorResponse(req.ID, ErrCodeOperationFailed, err.Error())
	}
	return NewSuccessResponse(req.ID, result)
}

func (s *Server) handleStatus(ctx context.Context, req Request) Response {
	result, err := s.handler.Status(ctx)
	if err != nil {
		slog.Error("daemon: status failed", slog.String("error", err.Error()))
		return NewErrorResponse(req.ID, ErrCodeOperationFailed, err.Error())
	}
	return NewSuccessResponse(req.ID, result)
}
