package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Path is where the streamable HTTP endpoint is mounted.
const Path = "/mcp"

// Server exposes an MCP server over stdio or streamable HTTP.
type Server struct {
	mcp    *mcp.Server
	mux    *http.ServeMux
	server *http.Server
}

// Compile-time check that Server implements http.Handler
var _ http.Handler = (*Server)(nil)

// New wraps mcpServer.
func New(mcpServer *mcp.Server) (*Server, error) {
	if mcpServer == nil {
		return nil, fmt.Errorf("missing MCP server")
	}

	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return mcpServer
	}, nil)

	logger := slog.Default()
	mux := http.NewServeMux()
	mux.Handle(Path, Logging(logger)(Recovery(logger)(handler)))

	return &Server{mcp: mcpServer, mux: mux}, nil
}

// ServeHTTP implements http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// StartStdio serves a single session over stdin/stdout in the background.
// The returned channel receives a runtime error, if any, and is closed once
// the session ends, either because the host closed stdin or ctx was cancelled.
func (s *Server) StartStdio(ctx context.Context) <-chan error {
	return s.startTransport(ctx, &mcp.StdioTransport{})
}

func (s *Server) startTransport(ctx context.Context, transport mcp.Transport) <-chan error {
	errCh := make(chan error, 1)

	go func() {
		err := s.mcp.Run(ctx, transport)
		// EOF: the host closed stdin
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh
}

// Start starts the HTTP server in the background and returns immediately.
// Startup errors (port in use, permission denied) are returned immediately.
// Runtime errors are sent to the error channel.
//
// The caller is responsible for calling Shutdown() to stop the server.
func (s *Server) Start(ctx context.Context, address string) (<-chan error, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	s.server = &http.Server{
		Handler:     s,
		ReadTimeout: 30 * time.Second,
		// Bounded above the upstream timeout so long tool calls still complete
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  90 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)

	go func() {
		err := s.server.Serve(listener)
		// Only report error if not from graceful shutdown
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh, nil
}

// Shutdown performs graceful shutdown of the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	if err := s.server.Shutdown(ctx); err != nil {
		_ = s.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	return nil
}
