package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Mirec2221-dotcom/ms-365-mcp-server/internal/auth"
	"github.com/Mirec2221-dotcom/ms-365-mcp-server/internal/config"
	"github.com/Mirec2221-dotcom/ms-365-mcp-server/internal/graph"
	"github.com/Mirec2221-dotcom/ms-365-mcp-server/internal/sandbox"
	"github.com/Mirec2221-dotcom/ms-365-mcp-server/internal/skills"
	"github.com/Mirec2221-dotcom/ms-365-mcp-server/internal/store"
	filestore "github.com/Mirec2221-dotcom/ms-365-mcp-server/internal/store/file"
	sqlitestore "github.com/Mirec2221-dotcom/ms-365-mcp-server/internal/store/sqlite"
)

const version = "1.0.0"

var configPath string

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ms365-mcp",
		Short:         "Microsoft 365 MCP server with sandboxed automation skills",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.ms365-mcp/config.json5)")

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(loginCmd())
	cmd.AddCommand(logoutCmd())
	cmd.AddCommand(skillsCmd())
	cmd.AddCommand(versionCmd())
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("ms365-mcp", version)
		},
	}
}

// loadConfig reads config and installs the slog handler. Logs go to stderr so
// stdout stays clean for the MCP stdio transport.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return cfg, nil
}

// app holds the assembled service graph.
type app struct {
	cfg      *config.Config
	tokens   *auth.Manager
	client   *graph.Client
	store    store.SkillStore
	executor *skills.Executor
	watcher  *skills.Watcher // nil for the sqlite backend
}

func buildApp(cfg *config.Config) (*app, error) {
	cache := auth.NewKeyringCache(filepath.Join(config.DefaultDir(), "token"))
	tokens := auth.NewManager(cfg.ClientID, cfg.Authority, cfg.Scopes, cache)
	client := graph.NewClient(tokens, cfg.GraphRPS)

	var (
		skillStore store.SkillStore
		watcher    *skills.Watcher
	)
	switch cfg.Store.Backend {
	case "sqlite":
		s, err := sqlitestore.Open(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		skillStore = s
	default:
		fs := filestore.New(cfg.Store.Path)
		skillStore = fs
		w, err := skills.NewWatcher(fs)
		if err != nil {
			slog.Warn("skill watcher unavailable", "error", err)
		} else {
			watcher = w
		}
	}

	executor := skills.NewExecutor(skillStore, sandbox.NewEngine(), client)
	executor.SetReadOnly(cfg.ReadOnly)

	return &app{
		cfg:      cfg,
		tokens:   tokens,
		client:   client,
		store:    skillStore,
		executor: executor,
		watcher:  watcher,
	}, nil
}

func (a *app) close() {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if err := a.store.Close(); err != nil {
		slog.Warn("store close failed", "error", err)
	}
}
