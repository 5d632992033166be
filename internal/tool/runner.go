package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	tysonErrors "github.com/harunnryd/tyson/internal/errors"
	"github.com/harunnryd/tyson/internal/logger"
	"github.com/harunnryd/tyson/internal/model/contract"
)

const DefaultInvokeTimeout = 10 * time.Second

// Runner executes registered tools with argument validation, a per-invocation
// deadline, and panic containment. A bad tool must never abort the turn: every
// failure comes back as an error the conversation loop converts into a
// model-visible text result.
type Runner struct {
	registry      *Registry
	invokeTimeout time.Duration
}

func NewRunner(registry *Registry, invokeTimeout time.Duration) *Runner {
	if invokeTimeout <= 0 {
		invokeTimeout = DefaultInvokeTimeout
	}
	return &Runner{
		registry:      registry,
		invokeTimeout: invokeTimeout,
	}
}

// Descriptors exposes the registry catalog through the runner so callers that
// only hold a Runner can still build completion requests.
func (r *Runner) Descriptors() []contract.ToolDef {
	if r == nil || r.registry == nil {
		return nil
	}
	return r.registry.Descriptors()
}

// Invoke runs the named tool against raw model-supplied arguments.
// Failure categories: ErrToolNotFound on a registry miss, ErrArgumentParse on
// malformed or schema-invalid arguments, ErrToolTimeout when the handler
// exceeds the invocation deadline. Handler panics are recovered and returned
// as errors.
func (r *Runner) Invoke(ctx context.Context, toolName string, rawArgs json.RawMessage) (json.RawMessage, error) {
	t, ok := r.registry.Get(toolName)
	if !ok {
		return nil, fmt.Errorf("tool %q: %w", NormalizeToolName(toolName), tysonErrors.ErrToolNotFound)
	}
	name := NormalizeToolName(t.Name())

	if len(rawArgs) == 0 {
		rawArgs = json.RawMessage(`{}`)
	}
	if err := ValidateInput(t.Parameters(), rawArgs); err != nil {
		slog.Warn("Tool input validation failed", "tool", name, "error", err)
		return nil, fmt.Errorf("tool %q: %v: %w", name, err, tysonErrors.ErrArgumentParse)
	}

	invokeCtx, cancel := context.WithTimeout(ctx, r.invokeTimeout)
	defer cancel()

	start := time.Now()
	turnID := logger.GetTurnID(ctx)
	slog.Info("Executing tool", "tool", name, "turn_id", turnID)

	result, err := r.execute(invokeCtx, t, rawArgs)

	duration := time.Since(start)
	if err != nil {
		if invokeCtx.Err() == context.DeadlineExceeded {
			slog.Error("Tool invocation timed out", "tool", name, "timeout", r.invokeTimeout, "turn_id", turnID)
			return nil, fmt.Errorf("tool %q exceeded %v: %w", name, r.invokeTimeout, tysonErrors.ErrToolTimeout)
		}
		slog.Error("Tool execution failed", "tool", name, "error", err, "duration", duration, "turn_id", turnID)
		return nil, fmt.Errorf("tool %q: %w", name, err)
	}

	slog.Info("Tool execution success", "tool", name, "duration", duration, "turn_id", turnID)
	return result, nil
}

// execute runs the handler in its own goroutine so a blocking handler cannot
// outlive the invocation deadline, and recovers panics into errors.
func (r *Runner) execute(ctx context.Context, t Tool, input json.RawMessage) (json.RawMessage, error) {
	type outcome struct {
		result json.RawMessage
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{err: fmt.Errorf("handler panic: %v", rec)}
			}
		}()
		result, err := t.Execute(ctx, input)
		done <- outcome{result: result, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out := <-done:
		return out.result, out.err
	}
}
