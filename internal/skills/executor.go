package skills

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Mirec2221-dotcom/ms-365-mcp-server/internal/capabilities"
	"github.com/Mirec2221-dotcom/ms-365-mcp-server/internal/sandbox"
	"github.com/Mirec2221-dotcom/ms-365-mcp-server/internal/store"
)

// capGrace is how much longer than the script budget in-flight capability
// calls keep a live context before their HTTP round-trips are canceled.
const capGrace = 500 * time.Millisecond

// RunResult is the outcome of one skill execution.
type RunResult struct {
	Result          any   `json:"result"`
	UsageCount      int   `json:"usageCount"`
	ExecutionTimeMs int64 `json:"executionTimeMs"`
}

// Executor resolves skills from the store and runs them in the sandbox.
type Executor struct {
	store    store.SkillStore
	engine   *sandbox.Engine
	client   capabilities.Client
	readOnly bool
}

// NewExecutor wires a store, engine and graph client together.
func NewExecutor(s store.SkillStore, engine *sandbox.Engine, client capabilities.Client) *Executor {
	return &Executor{store: s, engine: engine, client: client}
}

// SetReadOnly makes every facade handed to scripts reject mutating calls.
func (e *Executor) SetReadOnly(readOnly bool) { e.readOnly = readOnly }

// Run resolves idOrName (id first, then name), injects params as a frozen
// `params` binding ahead of the stored code, executes, and increments the
// usage counter after a successful return. The counter is not reverted if
// the caller later decides the result was unusable.
func (e *Executor) Run(ctx context.Context, idOrName string, params map[string]any, timeout time.Duration) (*RunResult, error) {
	skill, err := e.resolve(idOrName)
	if err != nil {
		return nil, err
	}

	// Only the stored code faces the deny list; a parameter value that merely
	// mentions a forbidden pattern must not fail the run.
	if v := sandbox.ValidateCode(skill.Code); !v.Valid {
		return nil, &store.ValidationError{Problems: v.Errors}
	}

	merged, err := mergeParams(skill.Parameters, params)
	if err != nil {
		return nil, err
	}
	paramsJSON, err := json.Marshal(merged)
	if err != nil {
		return nil, &store.ValidationError{Problems: []string{fmt.Sprintf("parameters not serializable: %v", err)}}
	}
	code := "const params = Object.freeze(" + string(paramsJSON) + ");\n" + skill.Code

	start := time.Now()
	result, err := e.execute(ctx, code, timeout)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	if err := e.store.IncrementUsage(skill.ID); err != nil {
		slog.Warn("usage increment failed", "skill", skill.ID, "error", err)
	}
	slog.Info("skill executed", "skill", skill.Name, "duration_ms", elapsed.Milliseconds())

	return &RunResult{
		Result:          result,
		UsageCount:      skill.UsageCount + 1,
		ExecutionTimeMs: elapsed.Milliseconds(),
	}, nil
}

// ExecuteScript runs ad-hoc script text against a fresh capability facade.
// The deny-list validator is applied before execution.
func (e *Executor) ExecuteScript(ctx context.Context, code string, timeout time.Duration) (any, error) {
	if v := sandbox.ValidateCode(code); !v.Valid {
		return nil, &store.ValidationError{Problems: v.Errors}
	}
	return e.execute(ctx, code, timeout)
}

// execute runs already-validated code in the sandbox.
func (e *Executor) execute(ctx context.Context, code string, timeout time.Duration) (any, error) {
	if timeout <= 0 {
		timeout = sandbox.DefaultTimeout
	}

	capCtx, cancel := context.WithTimeout(ctx, timeout+capGrace)
	defer cancel()
	facade := capabilities.New(capCtx, e.client)
	if e.readOnly {
		facade = capabilities.NewReadOnly(capCtx, e.client)
	}

	return e.engine.Execute(ctx, code, map[string]any{"cap": facade}, sandbox.Options{Timeout: timeout})
}

func (e *Executor) resolve(idOrName string) (*store.Skill, error) {
	skill, err := e.store.Get(idOrName)
	if err == nil {
		return skill, nil
	}
	var nf *store.NotFoundError
	if !errors.As(err, &nf) {
		return nil, err
	}
	return e.store.GetByName(idOrName)
}

// mergeParams applies declared defaults and checks required parameters.
func mergeParams(decls map[string]store.ParamSpec, supplied map[string]any) (map[string]any, error) {
	merged := make(map[string]any, len(supplied)+len(decls))
	for k, v := range supplied {
		merged[k] = v
	}
	var missing []string
	for name, decl := range decls {
		if _, ok := merged[name]; ok {
			continue
		}
		if decl.Default != nil {
			merged[name] = decl.Default
			continue
		}
		if decl.Required {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &store.ValidationError{Problems: []string{fmt.Sprintf("missing required parameters: %v", missing)}}
	}
	return merged, nil
}
