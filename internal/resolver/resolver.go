package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mvp-joe/smolex/internal/entity"
	"github.com/mvp-joe/smolex/internal/iface"
)

const (
	interfacePrompt = "Extract the interface for the given existing classes: "
	codePrompt      = "Give me the existing code for the given existing items (e.g. class, method): "

	// DefaultFallbackTimeout bounds a single semantic fallback call.
	DefaultFallbackTimeout = 60 * time.Second
)

// ErrFallbackBackend matches every *FallbackError.
var ErrFallbackBackend = errors.New("fallback backend failed")

// FallbackError reports a failed semantic fallback call.
type FallbackError struct {
	Query string
	Err   error
}

func (e *FallbackError) Error() string {
	return fmt.Sprintf("semantic fallback failed: %v", e.Err)
}

func (e *FallbackError) Unwrap() error {
	return e.Err
}

func (e *FallbackError) Is(target error) bool {
	return target == ErrFallbackBackend
}

// Source tells which backend produced a Result.
type Source int

const (
	SourceStructured Source = iota
	SourceSemantic
)

func (s Source) String() string {
	switch s {
	case SourceStructured:
		return "structured"
	case SourceSemantic:
		return "semantic"
	default:
		return "unknown"
	}
}

// Result holds either structured items or a semantic answer, as told by
// Source.
type Result[T any] struct {
	Source     Source
	Structured []T
	Semantic   string
}

// Empty reports whether the result carries no payload.
func (r Result[T]) Empty() bool {
	if r.Source == SourceSemantic {
		return strings.TrimSpace(r.Semantic) == ""
	}
	return len(r.Structured) == 0
}

// EntityQuerier is the exact lookup backend.
type EntityQuerier interface {
	Query(ctx context.Context, names []string, kind entity.Kind) ([]*entity.Entity, error)
}

// SemanticBackend answers free-text questions.
type SemanticBackend interface {
	Query(ctx context.Context, text string) (string, error)
}

// Options configures a Resolver.
type Options struct {
	FallbackTimeout time.Duration
	Logger          logrus.FieldLogger
}

// Resolver answers lookups from the structured index first and falls back to
// the semantic index when nothing matches exactly.
type Resolver struct {
	store    EntityQuerier
	semantic SemanticBackend
	reducer  *iface.Reducer
	timeout  time.Duration
	logger   logrus.FieldLogger
}

// New creates a Resolver over the two backends.
func New(store EntityQuerier, semantic SemanticBackend, opts Options) *Resolver {
	if opts.FallbackTimeout <= 0 {
		opts.FallbackTimeout = DefaultFallbackTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Resolver{
		store:    store,
		semantic: semantic,
		reducer:  iface.NewReducer(),
		timeout:  opts.FallbackTimeout,
		logger:   opts.Logger,
	}
}

// LookupInterface returns the interface of every class named in classNames.
// Names are matched exactly as given; an empty list matches nothing and goes
// to the semantic fallback like any other miss.
func (r *Resolver) LookupInterface(ctx context.Context, classNames []string) (Result[*iface.InterfaceView], error) {
	entities, err := r.store.Query(ctx, classNames, entity.KindClass)
	if err != nil {
		return Result[*iface.InterfaceView]{}, fmt.Errorf("structured lookup failed: %w", err)
	}

	if len(entities) > 0 {
		views := make([]*iface.InterfaceView, 0, len(entities))
		for _, e := range entities {
			view, err := r.reducer.Reduce(e)
			if err != nil {
				return Result[*iface.InterfaceView]{}, fmt.Errorf("failed to reduce %s: %w", e.QualifiedName(), err)
			}
			views = append(views, view)
		}
		return Result[*iface.InterfaceView]{Source: SourceStructured, Structured: views}, nil
	}

	answer, err := r.fallback(ctx, interfacePrompt+strings.Join(classNames, " "))
	if err != nil {
		return Result[*iface.InterfaceView]{}, err
	}
	return Result[*iface.InterfaceView]{Source: SourceSemantic, Semantic: answer}, nil
}

// LookupCode returns the source of every entity named in items.
func (r *Resolver) LookupCode(ctx context.Context, items []string) (Result[string], error) {
	entities, err := r.store.Query(ctx, items, "")
	if err != nil {
		return Result[string]{}, fmt.Errorf("structured lookup failed: %w", err)
	}

	if len(entities) > 0 {
		sources := make([]string, 0, len(entities))
		for _, e := range entities {
			sources = append(sources, e.Subtree.Source())
		}
		return Result[string]{Source: SourceStructured, Structured: sources}, nil
	}

	answer, err := r.fallback(ctx, codePrompt+strings.Join(items, " "))
	if err != nil {
		return Result[string]{}, err
	}
	return Result[string]{Source: SourceSemantic, Semantic: answer}, nil
}

func (r *Resolver) fallback(ctx context.Context, query string) (string, error) {
	r.logger.WithField("query", query).Debug("no exact match, falling back to semantic index")

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	answer, err := r.semantic.Query(ctx, query)
	if err != nil {
		return "", &FallbackError{Query: query, Err: err}
	}
	return answer, nil
}
