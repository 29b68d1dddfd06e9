package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/florianilch/ihealth-mcp/internal/ihealth"
	"github.com/florianilch/ihealth-mcp/internal/server"
	"github.com/florianilch/ihealth-mcp/internal/tokensource"
	"github.com/florianilch/ihealth-mcp/internal/tools"
)

// Name is the implementation name announced to the tool host.
const Name = "f5-ihealth"

// Version is set at build time via -ldflags.
var Version = "dev"

// App orchestrates the lifecycle of the MCP server and related services.
type App struct {
	cfg    *Config
	tools  *tools.Service
	server *server.Server
}

// New creates a new App instance.
func New(cfg *Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// I/O deferred to the first tool call
	tokenSource, err := NewTokenSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create token source: %w", err)
	}

	gateway, err := ihealth.New(tokenSource,
		ihealth.WithBaseURL(cfg.Upstream.BaseURL),
		ihealth.WithUserAgent(cfg.Upstream.UserAgent),
		ihealth.WithTimeout(cfg.Upstream.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}

	svc, err := tools.NewService(gateway, tokenSource)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool service: %w", err)
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{Name: Name, Version: Version}, nil)
	tools.Register(mcpServer, svc)

	srv, err := server.New(mcpServer)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	return &App{
		cfg:    cfg,
		tools:  svc,
		server: srv,
	}, nil
}

// Tools returns the tool service backing the MCP server.
func (a *App) Tools() *tools.Service {
	return a.tools
}

// Start starts the configured transport and blocks until shutdown is triggered
// or, for stdio, the host closes the session.
func (a *App) Start(ctx context.Context) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)
	var shutdownFuncs []func(context.Context) error

	var errCh <-chan error
	switch a.cfg.Transport {
	case TransportHTTP:
		address := a.cfg.Server.Host + ":" + strconv.FormatUint(uint64(a.cfg.Server.Port), 10)
		slog.InfoContext(gCtx, "starting streamable HTTP server", "address", address, "path", server.Path)

		httpErrCh, err := a.server.Start(gCtx, address)
		if err != nil {
			return fmt.Errorf("server startup failed: %w", err)
		}
		shutdownFuncs = append(shutdownFuncs, a.server.Shutdown)
		errCh = httpErrCh
	default:
		slog.InfoContext(gCtx, "serving on stdio")
		errCh = a.server.StartStdio(gCtx)
	}

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-errCh:
			if err != nil {
				slog.ErrorContext(gCtx, "server runtime error", "error", err)
				return fmt.Errorf("server: %w", err)
			}
			// Session ended without error, e.g. the host closed stdin
			stop()
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	slog.InfoContext(gCtx, "application ready", "transport", a.cfg.Transport)

	runtimeErr := g.Wait()

	slog.InfoContext(ctx, "shutting down services")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}

// NewTokenSource creates the token manager described by cfg.
// No I/O is performed until the first token request.
func NewTokenSource(cfg *Config) (*tokensource.Manager, error) {
	store, err := cfg.Credentials.NewStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create credentials store: %w", err)
	}

	return tokensource.New(store,
		tokensource.WithTokenURL(cfg.Auth.TokenURL),
		tokensource.WithScope(cfg.Auth.Scope),
		tokensource.WithTimeout(cfg.Auth.Timeout),
		tokensource.WithExpirySkew(cfg.Auth.ExpirySkew),
	)
}
