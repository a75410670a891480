package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/aretw0/teller/internal/logging"
	"github.com/aretw0/teller/internal/sanitize"
	"github.com/go-chi/cors"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Version is reported to MCP clients during initialization.
var Version = "dev"

// Server exposes a workflow as an MCP server.
type Server struct {
	mcpServer *server.MCPServer
	clock     func() time.Time
	logger    *slog.Logger
	maxInput  int
}

// Option configures a Server.
type Option func(*Server)

// WithClock sets the time source used for response timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) { s.clock = clock }
}

// WithLogger sets the logger. Never point it at stdout when serving stdio.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMaxInputSize bounds free-text arguments in bytes.
func WithMaxInputSize(n int) Option {
	return func(s *Server) { s.maxInput = n }
}

func newServer(name, instructions string, opts []Option) *Server {
	s := &Server{clock: time.Now, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	s.mcpServer = server.NewMCPServer(name, Version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithPromptCapabilities(false),
		server.WithInstructions(instructions),
		server.WithRecovery(),
	)
	return s
}

// MCP returns the underlying mcp-go server.
func (s *Server) MCP() *server.MCPServer { return s.mcpServer }

// ServeStdio serves on stdin/stdout until the input closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves over HTTP with server-sent events until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr: addr,
		Handler: cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "Authorization", "X-Requested-With"},
		})(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) timestamp() string {
	return s.clock().Format(time.RFC3339)
}

func (s *Server) clean(input string) (string, error) {
	return sanitize.Input(input, s.maxInput)
}

// templateArg reads a URI template variable. Depending on the matcher the
// value arrives as a string or a single-element slice, possibly still
// percent-encoded.
func templateArg(req mcp.ReadResourceRequest, name string) string {
	var raw string
	switch v := req.Params.Arguments[name].(type) {
	case string:
		raw = v
	case []string:
		if len(v) > 0 {
			raw = v[0]
		}
	case []any:
		if len(v) > 0 {
			raw, _ = v[0].(string)
		}
	}
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}
