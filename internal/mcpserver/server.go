// Package mcpserver registers the skill and script tools on an MCP stdio
// server. It owns visibility filtering (read-only mode) and the mapping of
// typed failures onto tool error envelopes.
package mcpserver

import (
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/server"

	"github.com/Mirec2221-dotcom/ms-365-mcp-server/internal/sandbox"
	"github.com/Mirec2221-dotcom/ms-365-mcp-server/internal/skills"
	"github.com/Mirec2221-dotcom/ms-365-mcp-server/internal/store"
)

// Options configures the tool surface.
type Options struct {
	Version  string
	ReadOnly bool // suppress skill-mutating tools and Graph writes
}

// Server wraps the MCP server with the skill store and executor.
type Server struct {
	store    store.SkillStore
	executor *skills.Executor
	readOnly bool
	mcp      *server.MCPServer
}

// New builds the server and registers every visible tool.
func New(s store.SkillStore, executor *skills.Executor, opts Options) *Server {
	version := opts.Version
	if version == "" {
		version = "dev"
	}
	executor.SetReadOnly(opts.ReadOnly)

	srv := &Server{
		store:    s,
		executor: executor,
		readOnly: opts.ReadOnly,
		mcp: server.NewMCPServer("ms-365-mcp-server", version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
	}
	srv.registerTools()
	return srv
}

// ServeStdio blocks serving MCP over stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// errorText renders a typed failure with a stable prefix so clients can tell
// "create it first" apart from "fix the code" or "raise the deadline".
func errorText(err error) string {
	var (
		validation *store.ValidationError
		notFound   *store.NotFoundError
		storage    *store.StorageError
		execErr    *sandbox.ExecutionError
		timeout    *sandbox.TimeoutError
	)
	switch {
	case errors.As(err, &validation):
		return "validation error: " + validation.Error()
	case errors.As(err, &notFound):
		return "not found: " + notFound.Error()
	case errors.As(err, &timeout):
		return "timeout: " + timeout.Error()
	case errors.As(err, &execErr):
		if execErr.Stack != "" {
			return fmt.Sprintf("execution error: %s\n%s", execErr.Message, execErr.Stack)
		}
		return "execution error: " + execErr.Message
	case errors.As(err, &storage):
		return "storage error: " + storage.Error()
	default:
		return err.Error()
	}
}
