package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Mirec2221-dotcom/ms-365-mcp-server/internal/mcpserver"
	"github.com/Mirec2221-dotcom/ms-365-mcp-server/internal/skills"
)

func serveCmd() *cobra.Command {
	var readOnly bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve MCP over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if readOnly {
				cfg.ReadOnly = true
			}

			a, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer a.close()

			loaded := skills.LoadBuiltins(a.store)
			slog.Info("server starting",
				"version", version,
				"store", cfg.Store.Backend,
				"read_only", cfg.ReadOnly,
				"builtins_loaded", loaded,
			)

			if a.watcher != nil {
				if err := a.watcher.Start(cmd.Context()); err != nil {
					slog.Warn("skill watcher failed to start", "error", err)
				}
			}

			srv := mcpserver.New(a.store, a.executor, mcpserver.Options{
				Version:  version,
				ReadOnly: cfg.ReadOnly,
			})
			return srv.ServeStdio()
		},
	}
	cmd.Flags().BoolVar(&readOnly, "read-only", false, "suppress skill-mutating tools and Graph writes")
	return cmd
}
