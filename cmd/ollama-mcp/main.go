// Command ollama-mcp starts the Ollama MCP server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"ollama-mcp/internal/config"
	"ollama-mcp/internal/ollama"
	"ollama-mcp/internal/server"
)

var httpAddr string

var rootCmd = &cobra.Command{
	Use:   "ollama-mcp",
	Short: "MCP server backed by a local Ollama daemon",
	Long: `ollama-mcp exposes text generation, chat, embeddings, summarisation,
code generation and model management as MCP tools, each backed by one HTTP
call against a local Ollama daemon.

By default the MCP session is served on stdin/stdout. Pass --http to serve
the streamable HTTP transport instead.

Configuration comes from the environment:
  OLLAMA_BASE_URL  daemon address (default http://localhost:11434)
  OLLAMA_TIMEOUT   per-request timeout in milliseconds (default 300000)`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVar(&httpAddr, "http", "", "serve MCP over HTTP on this address instead of stdio (e.g. :3000)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	// stdout belongs to the stdio transport; all logging goes to stderr.
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	backend, err := ollama.New(cfg.BaseURL, cfg.Timeout(), nil)
	if err != nil {
		return err
	}
	srv := server.New(backend, log)

	for _, m := range ollama.KnownModels() {
		log.Debug().Str("model", m.Name).Strs("capabilities", m.Capabilities).Msg("default model")
	}

	probeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Probe(probeCtx); err != nil {
		log.Warn().Err(err).Str("base_url", cfg.BaseURL).
			Msg("Ollama daemon not reachable; tool calls will fail until it is")
	}

	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sig := <-ch
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		os.Exit(0)
	}()

	if httpAddr != "" {
		log.Info().Str("addr", httpAddr).Msg("serving MCP over HTTP")
		return http.ListenAndServe(httpAddr, srv.Router())
	}
	log.Info().Msg("serving MCP over stdio")
	return srv.ServeStdio()
}
