package sandbox

import (
	"fmt"
	"log/slog"
	"strings"
)

// consoleShim redirects script console.* calls to the host's structured
// logger. Scripts never get a real stdout/stderr stream.
type consoleShim struct{}

func newConsole() *consoleShim { return &consoleShim{} }

func (c *consoleShim) Log(args ...any)   { slog.Info("script console", "msg", joinArgs(args)) }
func (c *consoleShim) Info(args ...any)  { slog.Info("script console", "msg", joinArgs(args)) }
func (c *consoleShim) Warn(args ...any)  { slog.Warn("script console", "msg", joinArgs(args)) }
func (c *consoleShim) Error(args ...any) { slog.Error("script console", "msg", joinArgs(args)) }
func (c *consoleShim) Debug(args ...any) { slog.Debug("script console", "msg", joinArgs(args)) }

func joinArgs(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprint(a)
	}
	return strings.Join(parts, " ")
}
