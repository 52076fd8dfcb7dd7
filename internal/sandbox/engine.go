package sandbox

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dop251/goja"
)

// DefaultTimeout is the wall-clock budget applied when the caller does not
// supply one.
const DefaultTimeout = 30 * time.Second

// outerGrace is how much longer the outer race waits beyond the interrupt
// deadline before abandoning the runtime goroutine.
const outerGrace = 500 * time.Millisecond

// Ambient names a general-purpose script environment would expose. They are
// bound to undefined so a reference fails fast instead of silently working.
var blockedGlobals = []string{
	"process", "require", "module", "exports", "globalThis",
	"__dirname", "__filename",
	"setTimeout", "setInterval", "setImmediate",
	"clearTimeout", "clearInterval", "clearImmediate",
	"fetch", "XMLHttpRequest", "WebSocket", "Worker",
}

// Options controls a single execution.
type Options struct {
	Timeout time.Duration
}

// Engine compiles and runs script text inside a fresh goja runtime per call.
//
// The script body is wrapped in an async IIFE so await is legal at the top
// level and a value is produced only by an explicit return. The deadline is
// enforced twice: a runtime interrupt fires at the budget, and an outer race
// abandons the runtime goroutine shortly after. An in-flight capability call
// is not forcibly aborted beyond context cancellation; its eventual result is
// discarded. Best-effort cancellation, not guaranteed abort.
type Engine struct{}

// NewEngine creates an execution engine. Engines are stateless and safe for
// concurrent use; all per-invocation state lives in the runtime built per call.
func NewEngine() *Engine { return &Engine{} }

// Execute runs code with the given global bindings and returns the script's
// resolved value. Failures are *ExecutionError, *TimeoutError, or ctx.Err().
func (e *Engine) Execute(ctx context.Context, code string, globals map[string]any, opts Options) (any, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	prg, err := goja.Compile("script", "(async () => {\n"+code+"\n})()", false)
	if err != nil {
		return nil, &ExecutionError{Message: err.Error()}
	}

	vm := goja.New()
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())

	for _, name := range blockedGlobals {
		vm.Set(name, goja.Undefined())
	}
	vm.Set("console", newConsole())
	for name, val := range globals {
		vm.Set(name, val)
	}

	// Layer one: the runtime's own budget.
	interrupt := time.AfterFunc(timeout, func() {
		vm.Interrupt("deadline exceeded")
	})
	defer interrupt.Stop()

	start := time.Now()
	type runResult struct {
		value goja.Value
		err   error
	}
	done := make(chan runResult, 1)
	go func() {
		v, runErr := vm.RunProgram(prg)
		done <- runResult{value: v, err: runErr}
	}()

	// Layer two: race the script against the clock and the caller's context.
	var res runResult
	select {
	case res = <-done:
	case <-time.After(timeout + outerGrace):
		vm.Interrupt("deadline exceeded")
		return nil, &TimeoutError{Timeout: timeout}
	case <-ctx.Done():
		vm.Interrupt("canceled")
		return nil, ctx.Err()
	}

	slog.Debug("script executed", "duration_ms", time.Since(start).Milliseconds(), "error", res.err != nil)

	if res.err != nil {
		return nil, classifyError(res.err, timeout)
	}

	promise, ok := res.value.Export().(*goja.Promise)
	if !ok {
		// The async wrapper always yields a promise; anything else means the
		// compiled shape was tampered with.
		return nil, &ExecutionError{Message: "script did not produce a promise"}
	}

	switch promise.State() {
	case goja.PromiseStateFulfilled:
		return promise.Result().Export(), nil
	case goja.PromiseStateRejected:
		return nil, rejectionError(promise.Result())
	default:
		return nil, &ExecutionError{Message: "script never settled: a pending promise was left unresolved"}
	}
}

func classifyError(err error, timeout time.Duration) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if v, ok := interrupted.Value().(string); ok && v == "canceled" {
			return context.Canceled
		}
		return &TimeoutError{Timeout: timeout}
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return &ExecutionError{Message: exceptionMessage(ex.Value()), Stack: ex.String()}
	}
	return &ExecutionError{Message: err.Error()}
}

func rejectionError(reason goja.Value) error {
	msg := exceptionMessage(reason)
	stack := ""
	if obj, ok := reason.(*goja.Object); ok {
		if s := obj.Get("stack"); s != nil && !goja.IsUndefined(s) {
			stack = s.String()
		}
	}
	return &ExecutionError{Message: msg, Stack: stack}
}

// exceptionMessage extracts a readable message from a thrown value, which may
// be an Error object or any plain value.
func exceptionMessage(v goja.Value) string {
	if v == nil {
		return "unknown error"
	}
	if obj, ok := v.(*goja.Object); ok {
		if m := obj.Get("message"); m != nil && !goja.IsUndefined(m) {
			return m.String()
		}
	}
	return v.String()
}
