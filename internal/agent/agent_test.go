package agent

import (
	"context"
	"testing"
	"time"

	tysonErrors "github.com/harunnryd/tyson/internal/errors"
	"github.com/harunnryd/tyson/internal/model"
	"github.com/harunnryd/tyson/internal/model/contract"
	"github.com/harunnryd/tyson/internal/tool"
	"github.com/harunnryd/tyson/internal/tool/builtin"
	"github.com/harunnryd/tyson/internal/transcript"

	"github.com/stretchr/testify/require"
)

// step scripts one completion round for the fake client.
type step struct {
	completion *contract.Completion
	err        error
	fragments  []string
}

type fakeClient struct {
	steps []step
	calls int
	reqs  []contract.CompletionRequest
}

func (f *fakeClient) next() step {
	s := f.steps[0]
	if len(f.steps) > 1 {
		f.steps = f.steps[1:]
	}
	return s
}

func (f *fakeClient) Complete(_ context.Context, req contract.CompletionRequest) (*contract.Completion, error) {
	f.calls++
	f.reqs = append(f.reqs, req)
	s := f.next()
	return s.completion, s.err
}

func (f *fakeClient) Stream(_ context.Context, req contract.CompletionRequest, onDelta model.StreamFunc) (*contract.Completion, error) {
	f.calls++
	f.reqs = append(f.reqs, req)
	s := f.next()
	if s.err != nil {
		return nil, s.err
	}
	for _, fragment := range s.fragments {
		onDelta(fragment)
	}
	return s.completion, nil
}

func (f *fakeClient) ListModels() []string { return []string{"fake"} }

func newTestAgent(t *testing.T, client model.Client, opts Options) *Agent {
	t.Helper()

	registry := tool.NewRegistry()
	registry.Register(builtin.NewCalculateTool())
	runner := tool.NewRunner(registry, time.Second)

	if opts.Model == "" {
		opts.Model = "fake"
	}
	if opts.RetryBackoff == 0 {
		opts.RetryBackoff = time.Millisecond
	}
	return New(client, runner, opts)
}

func roles(tr *transcript.Transcript) []transcript.Role {
	var out []transcript.Role
	for _, e := range tr.Snapshot() {
		out = append(out, e.Role)
	}
	return out
}

func TestAgent_ToolRoundTrip(t *testing.T) {
	client := &fakeClient{steps: []step{
		{completion: &contract.Completion{ToolCalls: []*contract.ToolCall{
			{ID: "call_1", Name: "calculate", Input: `{"expression":"12 * 8"}`},
		}}},
		{completion: &contract.Completion{Content: "12 * 8 is 96."}},
	}}
	a := newTestAgent(t, client, Options{SystemPrompt: "You are helpful."})

	answer, err := a.Chat(context.Background(), "What's 12 * 8?")
	require.NoError(t, err)
	require.Equal(t, "12 * 8 is 96.", answer)

	require.Equal(t, []transcript.Role{
		transcript.RoleSystem,
		transcript.RoleUser,
		transcript.RoleAssistant,
		transcript.RoleTool,
		transcript.RoleAssistant,
	}, roles(a.Transcript()))

	// The tool result fed back to the model carries the computed value.
	snap := a.Transcript().Snapshot()
	require.Equal(t, "calculate", snap[3].Name)
	require.Equal(t, "call_1", snap[3].ToolCallID)
	require.Contains(t, snap[3].Content, "96")

	// The second request included the tool result message.
	require.Len(t, client.reqs, 2)
	last := client.reqs[1].Messages[len(client.reqs[1].Messages)-1]
	require.Equal(t, "tool", last.Role)
}

func TestAgent_ToolCatalogSentEveryRound(t *testing.T) {
	client := &fakeClient{steps: []step{
		{completion: &contract.Completion{Content: "hello"}},
	}}
	a := newTestAgent(t, client, Options{})

	_, err := a.Chat(context.Background(), "hi")
	require.NoError(t, err)

	require.Len(t, client.reqs[0].Tools, 1)
	require.Equal(t, "calculate", client.reqs[0].Tools[0].Name)
}

func TestAgent_ToolFailureContinuesTurn(t *testing.T) {
	client := &fakeClient{steps: []step{
		{completion: &contract.Completion{ToolCalls: []*contract.ToolCall{
			{ID: "call_1", Name: "no_such_tool", Input: `{}`},
		}}},
		{completion: &contract.Completion{Content: "I could not use that tool."}},
	}}
	a := newTestAgent(t, client, Options{})

	answer, err := a.Chat(context.Background(), "use the mystery tool")
	require.NoError(t, err)
	require.Equal(t, "I could not use that tool.", answer)

	// The failure surfaced to the model as a tool-role error text.
	snap := a.Transcript().Snapshot()
	require.Equal(t, transcript.RoleTool, snap[2].Role)
	require.Contains(t, snap[2].Content, "Error:")
	require.Contains(t, snap[2].Content, "no_such_tool")
}

func TestAgent_MaxToolIterations(t *testing.T) {
	// The model never stops asking for tools.
	client := &fakeClient{steps: []step{
		{completion: &contract.Completion{
			Content: "still working",
			ToolCalls: []*contract.ToolCall{
				{ID: "c", Name: "calculate", Input: `{"expression":"1+1"}`},
			},
		}},
	}}
	a := newTestAgent(t, client, Options{MaxToolIters: 3})

	answer, err := a.Chat(context.Background(), "loop forever")
	require.ErrorIs(t, err, tysonErrors.ErrMaxToolIterations)
	require.Equal(t, "still working", answer, "partial text comes back with the error")
	require.Equal(t, 3, client.calls)
}

func TestAgent_TransientRetryThenSuccess(t *testing.T) {
	client := &fakeClient{steps: []step{
		{err: tysonErrors.Transient("rate limited")},
		{err: tysonErrors.Transient("rate limited")},
		{completion: &contract.Completion{Content: "done"}},
	}}
	a := newTestAgent(t, client, Options{RetryMaxAttempts: 3})

	answer, err := a.Chat(context.Background(), "hi")
	require.NoError(t, err)
	require.Equal(t, "done", answer)
	require.Equal(t, 3, client.calls)

	// Retries never duplicate transcript entries: one user, one assistant.
	require.Equal(t, []transcript.Role{
		transcript.RoleUser,
		transcript.RoleAssistant,
	}, roles(a.Transcript()))
}

func TestAgent_TransientRetryBudgetExhausted(t *testing.T) {
	client := &fakeClient{steps: []step{
		{err: tysonErrors.Transient("connection refused")},
	}}
	a := newTestAgent(t, client, Options{RetryMaxAttempts: 2})

	_, err := a.Chat(context.Background(), "hi")
	require.ErrorIs(t, err, tysonErrors.ErrTransient)
	require.Equal(t, 2, client.calls)

	// The user entry stays so the turn can be retried as-is.
	require.Equal(t, []transcript.Role{transcript.RoleUser}, roles(a.Transcript()))
}

func TestAgent_FatalErrorNotRetried(t *testing.T) {
	client := &fakeClient{steps: []step{
		{err: tysonErrors.Wrap(tysonErrors.ErrAuthentication, "401")},
	}}
	a := newTestAgent(t, client, Options{RetryMaxAttempts: 3})

	_, err := a.Chat(context.Background(), "hi")
	require.ErrorIs(t, err, tysonErrors.ErrAuthentication)
	require.Equal(t, 1, client.calls)
}

func TestAgent_StreamingForwardsFragments(t *testing.T) {
	client := &fakeClient{steps: []step{
		{
			fragments:  []string{"The", " answer", " is", " 4."},
			completion: &contract.Completion{Content: "The answer is 4."},
		},
	}}
	a := newTestAgent(t, client, Options{Stream: true})

	var got []string
	a.SetHooks(Hooks{OnDelta: func(fragment string) {
		got = append(got, fragment)
	}})

	answer, err := a.Chat(context.Background(), "what is 2+2?")
	require.NoError(t, err)
	require.Equal(t, "The answer is 4.", answer)
	require.Equal(t, []string{"The", " answer", " is", " 4."}, got)

	// Streaming still yields exactly one assistant entry.
	require.Equal(t, []transcript.Role{
		transcript.RoleUser,
		transcript.RoleAssistant,
	}, roles(a.Transcript()))
}

func TestAgent_StreamingDisabledWithoutHook(t *testing.T) {
	client := &fakeClient{steps: []step{
		{completion: &contract.Completion{Content: "plain"}},
	}}
	a := newTestAgent(t, client, Options{Stream: true})

	// No OnDelta hook: the agent must fall back to a blocking completion.
	answer, err := a.Chat(context.Background(), "hi")
	require.NoError(t, err)
	require.Equal(t, "plain", answer)
}

func TestAgent_ToolHooks(t *testing.T) {
	client := &fakeClient{steps: []step{
		{completion: &contract.Completion{ToolCalls: []*contract.ToolCall{
			{ID: "c1", Name: "calculate", Input: `{"expression":"2+2"}`},
		}}},
		{completion: &contract.Completion{Content: "4"}},
	}}
	a := newTestAgent(t, client, Options{})

	var calls, results []string
	a.SetHooks(Hooks{
		OnToolCall: func(name, args string) {
			calls = append(calls, name)
		},
		OnToolResult: func(name, result string, err error) {
			require.NoError(t, err)
			results = append(results, result)
		},
	})

	_, err := a.Chat(context.Background(), "2+2?")
	require.NoError(t, err)
	require.Equal(t, []string{"calculate"}, calls)
	require.Len(t, results, 1)
	require.Contains(t, results[0], "4")
}

func TestAgent_SequentialDispatchOrder(t *testing.T) {
	client := &fakeClient{steps: []step{
		{completion: &contract.Completion{ToolCalls: []*contract.ToolCall{
			{ID: "c1", Name: "calculate", Input: `{"expression":"1+1"}`},
			{ID: "c2", Name: "calculate", Input: `{"expression":"2+2"}`},
		}}},
		{completion: &contract.Completion{Content: "2 and 4"}},
	}}
	a := newTestAgent(t, client, Options{})

	_, err := a.Chat(context.Background(), "both please")
	require.NoError(t, err)

	snap := a.Transcript().Snapshot()
	require.Equal(t, "c1", snap[2].ToolCallID)
	require.Equal(t, "c2", snap[3].ToolCallID)
}

func TestAgent_ResetReseedsSystemPrompt(t *testing.T) {
	client := &fakeClient{steps: []step{
		{completion: &contract.Completion{Content: "hi"}},
	}}
	a := newTestAgent(t, client, Options{SystemPrompt: "stay helpful"})

	_, err := a.Chat(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, 3, a.Transcript().Len())

	a.Reset()
	require.Equal(t, 1, a.Transcript().Len())
	require.Equal(t, transcript.RoleSystem, a.Transcript().Snapshot()[0].Role)
}

func TestAgent_ArgumentParseErrorVisibleToModel(t *testing.T) {
	client := &fakeClient{steps: []step{
		{completion: &contract.Completion{ToolCalls: []*contract.ToolCall{
			{ID: "c1", Name: "calculate", Input: `{not json`},
		}}},
		{completion: &contract.Completion{Content: "sorry"}},
	}}
	a := newTestAgent(t, client, Options{})

	_, err := a.Chat(context.Background(), "broken args")
	require.NoError(t, err)

	snap := a.Transcript().Snapshot()
	require.Contains(t, snap[2].Content, "Error:")
}
