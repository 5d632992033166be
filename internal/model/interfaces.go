package model

import (
	"context"

	"github.com/harunnryd/tyson/internal/model/contract"
)

// StreamFunc aliases the contract type so callers holding a Router don't have
// to import the contract package for the common case.
type StreamFunc = contract.StreamFunc

type Provider interface {
	Complete(ctx context.Context, req contract.CompletionRequest) (*contract.Completion, error)
	Stream(ctx context.Context, req contract.CompletionRequest, onDelta contract.StreamFunc) (*contract.Completion, error)
	Name() string
}

// Client resolves a model name to a provider and forwards requests.
type Client interface {
	Complete(ctx context.Context, req contract.CompletionRequest) (*contract.Completion, error)
	Stream(ctx context.Context, req contract.CompletionRequest, onDelta contract.StreamFunc) (*contract.Completion, error)
	ListModels() []string
}
