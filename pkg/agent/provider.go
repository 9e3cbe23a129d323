package agent

import (
	"context"
	"fmt"
)

// Provider is an interface for inference API providers
type Provider interface {
	// Complete sends one request and parses the reply into parts
	Complete(ctx context.Context, req Request) (*Response, error)

	// Name returns the provider name
	Name() string
}

// ProviderConfig selects and authenticates a provider
type ProviderConfig struct {
	Provider string
	APIKey   string
	BaseURL  string
}

// NewProvider creates a new inference provider
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch cfg.Provider {
	case "openai", "":
		return NewOpenAIProvider(cfg.APIKey, cfg.BaseURL), nil
	case "anthropic":
		return NewAnthropicProvider(cfg.APIKey, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}

func copyMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}
