package embed

import (
	"fmt"
	"time"
)

// Config contains configuration for creating an embedding provider.
type Config struct {
	// Provider specifies which embedding provider to use ("local", "openai", "mock")
	Provider string

	// Endpoint is the URL of the local embedding service
	Endpoint string

	// BaseURL overrides the OpenAI API base URL
	BaseURL string

	// APIKey for cloud providers
	APIKey string

	// Model name for providers that support several models
	Model string

	// Dimensions of the produced vectors
	Dimensions int

	// Timeout bounds a single embedding request
	Timeout time.Duration
}

// NewProvider creates an embedding provider based on the configuration.
func NewProvider(config Config) (Provider, error) {
	switch config.Provider {
	case "local", "": // empty defaults to local
		return newLocalProvider(config.Endpoint, config.Dimensions, config.Timeout)

	case "openai":
		return newOpenAIProvider(config.APIKey, config.BaseURL, config.Model, config.Dimensions), nil

	case "mock":
		return NewMockProvider(config.Dimensions), nil

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s (supported: local, openai, mock)", config.Provider)
	}
}
