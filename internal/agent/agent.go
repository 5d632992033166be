package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/harunnryd/tyson/internal/config"
	tysonErrors "github.com/harunnryd/tyson/internal/errors"
	"github.com/harunnryd/tyson/internal/logger"
	"github.com/harunnryd/tyson/internal/model"
	"github.com/harunnryd/tyson/internal/model/contract"
	"github.com/harunnryd/tyson/internal/tool"
	"github.com/harunnryd/tyson/internal/transcript"

	"github.com/oklog/ulid/v2"
)

// Hooks let a surface observe the turn as it unfolds. All hooks are optional
// and run synchronously on the turn's goroutine.
type Hooks struct {
	// OnDelta receives streaming text fragments. Streaming is only attempted
	// when this hook is set and streaming is enabled.
	OnDelta model.StreamFunc

	// OnToolCall fires before a requested tool is dispatched.
	OnToolCall func(name string, args string)

	// OnToolResult fires after a tool invocation completes, success or not.
	OnToolResult func(name string, result string, err error)
}

type Options struct {
	Model            string
	SystemPrompt     string
	MaxToolIters     int
	RetryMaxAttempts int
	RetryBackoff     time.Duration
	Stream           bool
}

func OptionsFromConfig(cfg *config.Config) Options {
	backoff, _ := config.DurationOrDefault(cfg.Agent.RetryBackoff, config.DefaultAgentRetryBackoff)
	return Options{
		Model:            cfg.Models.Default,
		SystemPrompt:     cfg.Agent.SystemPrompt,
		MaxToolIters:     cfg.Agent.MaxToolIters,
		RetryMaxAttempts: cfg.Agent.RetryMaxAttempts,
		RetryBackoff:     backoff,
		Stream:           cfg.Agent.Stream,
	}
}

// Agent runs the conversation loop: append the user message, call the model
// with the full transcript and tool catalog, dispatch requested tools, feed
// results back, and repeat until the model answers in plain text or the
// iteration bound trips.
type Agent struct {
	client     model.Client
	runner     *tool.Runner
	transcript *transcript.Transcript
	opts       Options
	hooks      Hooks
}

func New(client model.Client, runner *tool.Runner, opts Options) *Agent {
	if opts.MaxToolIters <= 0 {
		opts.MaxToolIters = config.DefaultAgentMaxToolIters
	}
	if opts.RetryMaxAttempts <= 0 {
		opts.RetryMaxAttempts = config.DefaultAgentRetryMaxAttempts
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff, _ = config.DurationOrDefault("", config.DefaultAgentRetryBackoff)
	}

	a := &Agent{
		client:     client,
		runner:     runner,
		transcript: transcript.New(),
		opts:       opts,
	}
	a.seedSystemPrompt()
	return a
}

func (a *Agent) SetHooks(hooks Hooks) {
	a.hooks = hooks
}

func (a *Agent) Transcript() *transcript.Transcript {
	return a.transcript
}

// AttachTranscript swaps in a previously persisted transcript wholesale.
func (a *Agent) AttachTranscript(tr *transcript.Transcript) {
	a.transcript = tr
}

func (a *Agent) SetStreaming(on bool) {
	a.opts.Stream = on
}

func (a *Agent) Streaming() bool {
	return a.opts.Stream
}

// Reset clears the whole conversation, system entry included, then re-seeds
// the standing system prompt so the next turn starts from a fresh context.
func (a *Agent) Reset() {
	a.transcript.Clear()
	a.seedSystemPrompt()
}

func (a *Agent) seedSystemPrompt() {
	if a.opts.SystemPrompt != "" {
		a.transcript.Append(transcript.NewEntry(transcript.RoleSystem, a.opts.SystemPrompt))
	}
}

// Chat runs one user turn and returns the model's final text. On
// ErrMaxToolIterations the text accumulated so far comes back alongside the
// error. On a completion failure the user entry stays on the transcript so
// the turn can be retried as-is.
func (a *Agent) Chat(ctx context.Context, message string) (string, error) {
	turnID := ulid.Make().String()
	ctx = logger.WithTurnID(ctx, turnID)

	a.transcript.Append(transcript.NewEntry(transcript.RoleUser, message))
	slog.Info("Turn started", "turn_id", turnID, "session_id", logger.GetSessionID(ctx), "model", a.opts.Model)

	var lastContent string
	for iter := 0; iter < a.opts.MaxToolIters; iter++ {
		completion, err := a.complete(ctx)
		if err != nil {
			slog.Error("Completion failed", "turn_id", turnID, "iteration", iter, "category", tysonErrors.Category(err), "error", err)
			return "", err
		}

		entry := transcript.NewEntry(transcript.RoleAssistant, completion.Content)
		entry.ToolCalls = completion.ToolCalls
		a.transcript.Append(entry)

		if completion.Content != "" {
			lastContent = completion.Content
		}

		if completion.IsFinal() {
			slog.Info("Turn finished", "turn_id", turnID, "iterations", iter+1)
			return completion.Content, nil
		}

		a.dispatchToolCalls(ctx, completion.ToolCalls)
	}

	slog.Warn("Tool iteration bound reached", "turn_id", turnID, "max", a.opts.MaxToolIters)
	return lastContent, fmt.Errorf("gave up after %d tool rounds: %w", a.opts.MaxToolIters, tysonErrors.ErrMaxToolIterations)
}

// dispatchToolCalls runs the requested tools sequentially in the order the
// model asked for them. A tool failure never aborts the turn: the error text
// goes back to the model as the tool result.
func (a *Agent) dispatchToolCalls(ctx context.Context, calls []*contract.ToolCall) {
	for _, call := range calls {
		if a.hooks.OnToolCall != nil {
			a.hooks.OnToolCall(call.Name, call.Input)
		}

		result, err := a.runner.Invoke(ctx, call.Name, json.RawMessage(call.Input))

		var content string
		if err != nil {
			content = fmt.Sprintf("Error: %v", err)
		} else {
			content = string(result)
		}

		entry := transcript.NewEntry(transcript.RoleTool, content)
		entry.Name = call.Name
		entry.ToolCallID = call.ID
		a.transcript.Append(entry)

		if a.hooks.OnToolResult != nil {
			a.hooks.OnToolResult(call.Name, content, err)
		}
	}
}

// complete issues one completion request, retrying transient failures with
// exponential backoff within the turn's attempt budget.
func (a *Agent) complete(ctx context.Context) (*contract.Completion, error) {
	req := contract.CompletionRequest{
		Model:    a.opts.Model,
		Messages: a.transcript.Messages(),
		Tools:    a.runner.Descriptors(),
	}

	backoff := a.opts.RetryBackoff
	var lastErr error

	for attempt := 0; attempt < a.opts.RetryMaxAttempts; attempt++ {
		if attempt > 0 {
			slog.Warn("Retrying completion", "attempt", attempt+1, "backoff", backoff, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		var (
			resp *contract.Completion
			err  error
		)
		if a.opts.Stream && a.hooks.OnDelta != nil {
			resp, err = a.client.Stream(ctx, req, a.hooks.OnDelta)
		} else {
			resp, err = a.client.Complete(ctx, req)
		}
		if err == nil {
			return resp, nil
		}

		lastErr = err
		if !tysonErrors.IsRetryable(err) {
			return nil, err
		}
	}

	return nil, lastErr
}
