package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidProvider indicates an unsupported embedding provider
	ErrInvalidProvider = errors.New("invalid embedding provider")

	// ErrInvalidDimensions indicates invalid embedding dimensions
	ErrInvalidDimensions = errors.New("invalid embedding dimensions")

	// ErrEmptyEndpoint indicates missing embedding endpoint
	ErrEmptyEndpoint = errors.New("empty embedding endpoint")

	// ErrEmptyModel indicates missing embedding model
	ErrEmptyModel = errors.New("empty embedding model")

	// ErrInvalidBatchSize indicates a non-positive embedding batch size
	ErrInvalidBatchSize = errors.New("invalid batch size")

	// ErrInvalidSynthesizer indicates an unsupported answer synthesizer
	ErrInvalidSynthesizer = errors.New("invalid synthesizer")

	// ErrInvalidTopK indicates a non-positive result count
	ErrInvalidTopK = errors.New("invalid top_k")

	// ErrInvalidTimeout indicates a negative timeout
	ErrInvalidTimeout = errors.New("invalid timeout")

	// ErrInvalidChunkSize indicates invalid chunk size configuration
	ErrInvalidChunkSize = errors.New("invalid chunk size")

	// ErrInvalidOverlap indicates invalid overlap configuration
	ErrInvalidOverlap = errors.New("invalid overlap")

	// ErrInvalidWorkers indicates a negative worker count
	ErrInvalidWorkers = errors.New("invalid workers")

	// ErrEmptyStoragePath indicates a missing index location
	ErrEmptyStoragePath = errors.New("empty storage path")

	// ErrEmptyAddr indicates a missing server address
	ErrEmptyAddr = errors.New("empty server address")
)

// Validate checks that the configuration is valid and complete.
// API keys are not required here; providers check for them on Initialize.
func Validate(cfg *Config) error {
	var errs []error

	for _, check := range []func(*Config) error{
		validateStorage,
		validateEmbedding,
		validateSemantic,
		validateChunking,
		validateBuild,
	} {
		if err := check(cfg); err != nil {
			errs = append(errs, err)
		}
	}

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		errs = append(errs, fmt.Errorf("%w: server.addr is required", ErrEmptyAddr))
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validateStorage(cfg *Config) error {
	var errs []error

	if strings.TrimSpace(cfg.Storage.StructuredDB) == "" {
		errs = append(errs, fmt.Errorf("%w: structured_db is required", ErrEmptyStoragePath))
	}
	if strings.TrimSpace(cfg.Storage.SemanticDir) == "" {
		errs = append(errs, fmt.Errorf("%w: semantic_dir is required", ErrEmptyStoragePath))
	}

	return joinErrors(errs)
}

func validateEmbedding(cfg *Config) error {
	var errs []error
	e := &cfg.Embedding

	provider := strings.ToLower(e.Provider)
	switch provider {
	case "local":
		if strings.TrimSpace(e.Endpoint) == "" {
			errs = append(errs, fmt.Errorf("%w: endpoint is required for the local provider", ErrEmptyEndpoint))
		}
	case "openai":
		if strings.TrimSpace(e.Model) == "" {
			errs = append(errs, fmt.Errorf("%w: model is required for the openai provider", ErrEmptyModel))
		}
	case "mock":
	default:
		errs = append(errs, fmt.Errorf("%w: must be 'local', 'openai' or 'mock', got '%s'", ErrInvalidProvider, e.Provider))
	}

	if e.Dimensions <= 0 {
		errs = append(errs, fmt.Errorf("%w: dimensions must be positive, got %d", ErrInvalidDimensions, e.Dimensions))
	}

	if e.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: batch_size must be positive, got %d", ErrInvalidBatchSize, e.BatchSize))
	}

	if e.Timeout < 0 {
		errs = append(errs, fmt.Errorf("%w: embedding.timeout cannot be negative, got %s", ErrInvalidTimeout, e.Timeout))
	}

	return joinErrors(errs)
}

func validateSemantic(cfg *Config) error {
	var errs []error
	s := &cfg.Semantic

	if s.TopK <= 0 {
		errs = append(errs, fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidTopK, s.TopK))
	}

	switch strings.ToLower(s.Synthesizer) {
	case "context":
	case "openai":
		if strings.TrimSpace(s.Model) == "" {
			errs = append(errs, fmt.Errorf("%w: semantic.model is required for the openai synthesizer", ErrEmptyModel))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: must be 'context' or 'openai', got '%s'", ErrInvalidSynthesizer, s.Synthesizer))
	}

	if s.Timeout < 0 {
		errs = append(errs, fmt.Errorf("%w: semantic.timeout cannot be negative, got %s", ErrInvalidTimeout, s.Timeout))
	}

	return joinErrors(errs)
}

func validateChunking(cfg *Config) error {
	var errs []error
	c := &cfg.Chunking

	if c.ChunkLines <= 0 {
		errs = append(errs, fmt.Errorf("%w: chunk_lines must be positive, got %d", ErrInvalidChunkSize, c.ChunkLines))
	}

	if c.OverlapLines < 0 {
		errs = append(errs, fmt.Errorf("%w: overlap_lines cannot be negative, got %d", ErrInvalidOverlap, c.OverlapLines))
	}

	if c.ChunkLines > 0 && c.OverlapLines >= c.ChunkLines {
		errs = append(errs, fmt.Errorf("%w: overlap_lines (%d) should be less than chunk_lines (%d)", ErrInvalidOverlap, c.OverlapLines, c.ChunkLines))
	}

	return joinErrors(errs)
}

func validateBuild(cfg *Config) error {
	if cfg.Build.Workers < 0 {
		return fmt.Errorf("%w: workers cannot be negative, got %d", ErrInvalidWorkers, cfg.Build.Workers)
	}
	return nil
}

// joinErrors combines multiple errors into a single error with clear formatting.
// The result still matches every wrapped sentinel with errors.Is.
func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	if len(errs) == 1 {
		return errs[0]
	}

	return &validationError{errs: errs}
}

type validationError struct {
	errs []error
}

func (e *validationError) Error() string {
	msgs := make([]string, 0, len(e.errs))
	for _, err := range e.errs {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

func (e *validationError) Unwrap() []error {
	return e.errs
}
