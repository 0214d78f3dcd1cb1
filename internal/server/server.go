// Package server assembles the MCP server: tool catalog, dispatch, and the
// stdio and HTTP transports.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"ollama-mcp/internal/ollama"
)

const (
	serverName    = "ollama-mcp"
	serverVersion = "1.0.0"

	modelCacheTTL = 5 * time.Minute

	// Must outlive the backend timeout so the middleware never cuts off a
	// slow generation that the backend would still have completed.
	httpRequestTimeout = 10 * time.Minute
)

// Backend is the set of daemon operations the tools need. *ollama.Client
// satisfies it; tests substitute a stub.
type Backend interface {
	ListModels(ctx context.Context) ([]string, error)
	GenerateText(ctx context.Context, model, prompt string, opts ollama.Options) (string, error)
	ChatCompletion(ctx context.Context, model string, messages []ollama.Message, opts ollama.Options) (string, error)
	GenerateEmbedding(ctx context.Context, model, text string) ([]float64, error)
	PullModel(ctx context.Context, model string) error
}

// Server owns the tool catalog and dispatches invocations to the backend.
type Server struct {
	backend Backend
	cache   *ModelCache
	log     zerolog.Logger
	mcp     *mcpserver.MCPServer
	entries []toolEntry
}

// New constructs a Server with all seven tools registered.
func New(backend Backend, log zerolog.Logger) *Server {
	s := &Server{
		backend: backend,
		cache:   NewModelCache(modelCacheTTL),
		log:     log,
	}
	s.mcp = mcpserver.NewMCPServer(serverName, serverVersion,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithToolFilter(declarationOrder),
		mcpserver.WithRecovery(),
	)
	s.entries = s.catalog()
	for _, e := range s.entries {
		s.mcp.AddTool(e.tool, s.guard(e.tool.Name, e.handler))
	}
	return s
}

// Tools returns the catalog in declaration order.
func (s *Server) Tools() []mcp.Tool {
	tools := make([]mcp.Tool, 0, len(s.entries))
	for _, e := range s.entries {
		tools = append(tools, e.tool)
	}
	return tools
}

// Probe checks daemon connectivity once. Callers treat a failure as a
// warning, not a startup error.
func (s *Server) Probe(ctx context.Context) error {
	names, err := s.backend.ListModels(ctx)
	if err != nil {
		return err
	}
	s.cache.Put(names)
	return nil
}

// ServeStdio blocks, serving the MCP session on stdin/stdout.
func (s *Server) ServeStdio() error {
	return mcpserver.ServeStdio(s.mcp)
}

// Router exposes the HTTP transport: the streamable MCP handler at /mcp
// plus a health endpoint.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(httpRequestTimeout))

	r.Get("/health", s.handleHealth)
	r.Handle("/mcp", mcpserver.NewStreamableHTTPServer(s.mcp))

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
