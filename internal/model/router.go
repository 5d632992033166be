package model

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/harunnryd/tyson/internal/config"
	tysonErrors "github.com/harunnryd/tyson/internal/errors"
	"github.com/harunnryd/tyson/internal/model/contract"
	anthropicProvider "github.com/harunnryd/tyson/internal/model/providers/anthropic"
	geminiProvider "github.com/harunnryd/tyson/internal/model/providers/gemini"
	"github.com/harunnryd/tyson/internal/model/providers/openaicompat"
)

// Every provider implementation must satisfy the Provider contract.
var (
	_ Provider = (*openaicompat.Provider)(nil)
	_ Provider = (*anthropicProvider.Provider)(nil)
	_ Provider = (*geminiProvider.Provider)(nil)
)

// Router resolves a model name to its configured provider and maps provider
// failures into the error taxonomy. One provider instance per registry entry.
type Router struct {
	cfg       config.ModelsConfig
	providers map[string]Provider
	mu        sync.RWMutex
}

func NewRouter(cfg config.ModelsConfig) (*Router, error) {
	router := &Router{
		cfg:       cfg,
		providers: make(map[string]Provider),
	}

	if err := router.initProviders(); err != nil {
		return nil, err
	}

	return router, nil
}

func (r *Router) initProviders() error {
	for _, m := range r.cfg.Registry {
		var (
			provider Provider
			err      error
		)

		switch m.Provider {
		case "perplexity":
			baseURL := m.BaseURL
			if baseURL == "" {
				baseURL = openaicompat.PerplexityBaseURL
			}
			provider = openaicompat.New("perplexity", m.APIKey, baseURL)
		case "openai":
			baseURL := m.BaseURL
			if baseURL == "" {
				baseURL = openaicompat.OpenAIBaseURL
			}
			provider = openaicompat.New("openai", m.APIKey, baseURL)
		case "anthropic":
			provider = anthropicProvider.New(m.APIKey)
		case "gemini":
			provider, err = geminiProvider.New(m.APIKey)
			if err != nil {
				slog.Warn("Skipping gemini model, client init failed", "model", m.Name, "error", err)
				continue
			}
		default:
			slog.Warn("Skipping model with unknown provider", "model", m.Name, "provider", m.Provider)
			continue
		}

		r.providers[m.Name] = provider
		slog.Debug("Registered model", "model", m.Name, "provider", provider.Name())
	}

	if len(r.providers) == 0 {
		return fmt.Errorf("no usable models in registry")
	}

	return nil
}

// SetProvider binds a provider to a model name directly. Used by tests and by
// callers that construct providers out-of-band.
func (r *Router) SetProvider(model string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[model] = p
}

func (r *Router) resolve(model string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.providers[model]; ok {
		return p, nil
	}
	if p, ok := r.providers[r.cfg.Default]; ok {
		slog.Warn("Model not in registry, falling back to default", "model", model, "default", r.cfg.Default)
		return p, nil
	}
	return nil, tysonErrors.NotFound(fmt.Sprintf("model %q not registered", model))
}

func (r *Router) Complete(ctx context.Context, req contract.CompletionRequest) (*contract.Completion, error) {
	provider, err := r.resolve(req.Model)
	if err != nil {
		return nil, err
	}

	resp, err := provider.Complete(ctx, req)
	if err != nil {
		return nil, tysonErrors.MapCompletionError(err)
	}
	return resp, nil
}

func (r *Router) Stream(ctx context.Context, req contract.CompletionRequest, onDelta StreamFunc) (*contract.Completion, error) {
	provider, err := r.resolve(req.Model)
	if err != nil {
		return nil, err
	}

	resp, err := provider.Stream(ctx, req, onDelta)
	if err != nil {
		return nil, tysonErrors.MapCompletionError(err)
	}
	return resp, nil
}

func (r *Router) ListModels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
