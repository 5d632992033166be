package model

import (
	"context"
	"errors"
	"testing"

	"github.com/harunnryd/tyson/internal/config"
	tysonErrors "github.com/harunnryd/tyson/internal/errors"
	"github.com/harunnryd/tyson/internal/model/contract"
	anthropicProvider "github.com/harunnryd/tyson/internal/model/providers/anthropic"
	geminiProvider "github.com/harunnryd/tyson/internal/model/providers/gemini"
	"github.com/harunnryd/tyson/internal/model/providers/openaicompat"

	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name     string
	resp     *contract.Completion
	err      error
	lastReq  contract.CompletionRequest
	streamed []string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Complete(ctx context.Context, req contract.CompletionRequest) (*contract.Completion, error) {
	f.lastReq = req
	return f.resp, f.err
}

func (f *fakeProvider) Stream(ctx context.Context, req contract.CompletionRequest, onDelta StreamFunc) (*contract.Completion, error) {
	f.lastReq = req
	for _, frag := range f.streamed {
		onDelta(frag)
	}
	return f.resp, f.err
}

func newTestRouter(t *testing.T, models ...string) *Router {
	t.Helper()
	r := &Router{
		cfg:       config.ModelsConfig{Default: models[0]},
		providers: make(map[string]Provider),
	}
	for _, m := range models {
		r.SetProvider(m, &fakeProvider{name: m, resp: &contract.Completion{Content: "ok"}})
	}
	return r
}

func TestRouter_ResolvesRegisteredModel(t *testing.T) {
	r := newTestRouter(t, "sonar-pro")

	resp, err := r.Complete(context.Background(), contract.CompletionRequest{Model: "sonar-pro"})
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Content)
}

func TestRouter_FallsBackToDefault(t *testing.T) {
	r := newTestRouter(t, "sonar-pro")

	resp, err := r.Complete(context.Background(), contract.CompletionRequest{Model: "unknown-model"})
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Content)
}

func TestRouter_NoModelRegistered(t *testing.T) {
	r := &Router{cfg: config.ModelsConfig{Default: "nope"}, providers: map[string]Provider{}}

	_, err := r.Complete(context.Background(), contract.CompletionRequest{Model: "nope"})
	require.ErrorIs(t, err, tysonErrors.ErrNotFound)
}

func TestRouter_MapsProviderErrors(t *testing.T) {
	r := newTestRouter(t, "sonar-pro")
	r.SetProvider("sonar-pro", &fakeProvider{name: "sonar-pro", err: errors.New("429 too many requests")})

	_, err := r.Complete(context.Background(), contract.CompletionRequest{Model: "sonar-pro"})
	require.ErrorIs(t, err, tysonErrors.ErrTransient)
}

func TestRouter_StreamForwardsFragments(t *testing.T) {
	r := newTestRouter(t, "sonar-pro")
	r.SetProvider("sonar-pro", &fakeProvider{
		name:     "sonar-pro",
		resp:     &contract.Completion{Content: "The answer is 4."},
		streamed: []string{"The", " answer", " is", " 4."},
	})

	var got string
	resp, err := r.Stream(context.Background(), contract.CompletionRequest{Model: "sonar-pro"}, func(frag string) {
		got += frag
	})
	require.NoError(t, err)
	require.Equal(t, "The answer is 4.", got)
	require.Equal(t, "The answer is 4.", resp.Content)
}

func TestConcreteProviders_SatisfyContract(t *testing.T) {
	require.Implements(t, (*Provider)(nil), &openaicompat.Provider{})
	require.Implements(t, (*Provider)(nil), &anthropicProvider.Provider{})
	require.Implements(t, (*Provider)(nil), &geminiProvider.Provider{})
}

func TestRouter_ListModels(t *testing.T) {
	r := newTestRouter(t, "sonar-pro", "gpt-4o")
	require.Equal(t, []string{"gpt-4o", "sonar-pro"}, r.ListModels())
}
