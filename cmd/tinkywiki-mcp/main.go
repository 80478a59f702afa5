// Package main provides the tinkywiki-mcp server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/cloudmeru/tinkywiki-mcp/config"
	"github.com/cloudmeru/tinkywiki-mcp/fallback"
	"github.com/cloudmeru/tinkywiki-mcp/indexing"
	"github.com/cloudmeru/tinkywiki-mcp/logging"
	"github.com/cloudmeru/tinkywiki-mcp/ratelimit"
	"github.com/cloudmeru/tinkywiki-mcp/resolver"
	"github.com/cloudmeru/tinkywiki-mcp/server"
	"github.com/cloudmeru/tinkywiki-mcp/source"
	"github.com/cloudmeru/tinkywiki-mcp/tools"
)

const version = "0.1.0"

var (
	// Global flags
	logLevel string
	httpAddr string
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "tinkywiki-mcp",
		Short: "MCP server for TinkyWiki documentation with DeepWiki and GitHub fallback",
		Long: `An MCP server exposing repository documentation tools backed by TinkyWiki,
falling back to DeepWiki and the GitHub API when a repository is not indexed.

Tools: list_topics, read_structure, read_contents, search_wiki, request_indexing.`,
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(serveHTTPCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve MCP over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := buildServer()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx)
		},
	}
}

func serveHTTPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve-http",
		Short: "Serve MCP over streamable HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := buildServer()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			httpServer := &http.Server{Addr: httpAddr, Handler: srv.Handler()}
			errCh := make(chan error, 1)
			go func() { errCh <- httpServer.ListenAndServe() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				return httpServer.Shutdown(context.Background())
			}
		},
	}
	cmd.Flags().StringVar(&httpAddr, "addr", ":8080", "HTTP listen address")
	return cmd
}

// buildServer wires configuration, adapters, and the tool service.
func buildServer() (*server.Server, error) {
	settings, err := config.New()
	if err != nil {
		return nil, err
	}
	logger := logging.New(os.Stderr, logging.LevelFromString(logLevel))

	tinky := source.NewTinkyWiki(settings.Upstream.TinkyWikiBaseURL, settings.Fetch.HTTPTimeout, logger)

	adapters := []source.Adapter{tinky}
	searchTiers := []source.RepoSearcher{tinky}
	if settings.Upstream.DeepWikiEnabled {
		adapters = append(adapters, source.NewDeepWiki(settings.Upstream.DeepWikiBaseURL, settings.Fetch.HTTPTimeout, logger))
	}
	if settings.Upstream.GitHubAPIEnabled {
		gh := source.NewGitHub(settings.Upstream.GitHubAPIBaseURL, settings.Upstream.GitHubToken, settings.Fetch.HTTPTimeout, logger)
		adapters = append(adapters, gh)
		searchTiers = append(searchTiers, gh)
	}

	finder := source.NewRepoFinder(logger, searchTiers...)
	res := resolver.New(finder, settings.Cache.ResolutionTTL, settings.Fetch.ElicitTimeout, settings.Response.ElicitChoices, logger)

	limiter := ratelimit.New(settings.RateLimit.MaxCalls, settings.RateLimit.Window)
	orch := fallback.New(adapters, limiter, fallback.Config{
		HardTimeout:     settings.Fetch.HardTimeout,
		MaxRetries:      settings.Fetch.MaxRetries,
		RetryDelay:      settings.Fetch.RetryDelay,
		PageTTL:         settings.Cache.PageTTL,
		SearchTTL:       settings.Cache.SearchTTL,
		FallbackEnabled: settings.Upstream.FallbackEnabled,
	}, logger)

	workflow := indexing.NewWorkflow(tinky, settings.Fetch.ElicitTimeout, logger)
	svc := tools.NewService(res, orch, workflow, settings, logger)

	logger.Info("server configured",
		"version", version,
		"tiers", len(adapters),
		"fallback_enabled", settings.Upstream.FallbackEnabled)

	return server.New(svc, version, logger), nil
}
