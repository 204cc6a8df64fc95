package resolver

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mvp-joe/smolex/internal/entity"
	"github.com/mvp-joe/smolex/internal/indexer/parsers"
	"github.com/mvp-joe/smolex/internal/storage"
)

// Test Plan for Resolver:
// - Exact hits never touch the semantic backend
// - Misses call the semantic backend exactly once with the lookup prompt
// - Fallback failures surface as FallbackError / ErrFallbackBackend
// - Fallback calls are bounded by the configured timeout
// - Same-named classes in different files are all returned
// - Store errors propagate
// - Empty or unmatched name lists fall back once; names are not trimmed
// - Concurrent lookups are safe

const fooSource = "class Foo:\n    def bar(self):\n        return 1\n"

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSemantic struct {
	calls   atomic.Int32
	mu      sync.Mutex
	queries []string
	answer  string
	err     error
	block   bool
}

func (f *fakeSemantic) Query(ctx context.Context, text string) (string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.queries = append(f.queries, text)
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.answer, f.err
}

type failingStore struct{ err error }

func (s failingStore) Query(context.Context, []string, entity.Kind) ([]*entity.Entity, error) {
	return nil, s.err
}

func extract(t *testing.T, path, source string) []*entity.Entity {
	t.Helper()

	file, err := parsers.NewPythonParser().Parse(path, []byte(source))
	require.NoError(t, err)
	defer file.Close()
	return parsers.Extract(file)
}

func newResolver(t *testing.T, semantic SemanticBackend, files map[string]string) *Resolver {
	t.Helper()

	var entities []*entity.Entity
	for _, path := range []string{"foo.py", "other/foo.py", "util.py"} {
		if source, ok := files[path]; ok {
			entities = append(entities, extract(t, path, source)...)
		}
	}

	logger, _ := test.NewNullLogger()
	store := storage.NewBuiltTestStore(t, entities)
	return New(store, semantic, Options{Logger: logger, FallbackTimeout: time.Second})
}

func TestLookupInterface_ExactHit(t *testing.T) {
	t.Parallel()

	semantic := &fakeSemantic{answer: "unused"}
	r := newResolver(t, semantic, map[string]string{"foo.py": fooSource})

	result, err := r.LookupInterface(context.Background(), []string{"Foo"})
	require.NoError(t, err)

	assert.Equal(t, SourceStructured, result.Source)
	require.Len(t, result.Structured, 1)
	view := result.Structured[0]
	require.Len(t, view.Methods(), 1)
	assert.Equal(t, "bar", view.Methods()[0].Name)
	assert.NotContains(t, view.Render(), "return 1")
	assert.Equal(t, int32(0), semantic.calls.Load())
}

func TestLookupCode_ExactHit(t *testing.T) {
	t.Parallel()

	semantic := &fakeSemantic{answer: "unused"}
	r := newResolver(t, semantic, map[string]string{
		"foo.py":  fooSource,
		"util.py": "def helper(x):\n    return x * 2\n",
	})

	result, err := r.LookupCode(context.Background(), []string{"Foo", "helper"})
	require.NoError(t, err)

	assert.Equal(t, SourceStructured, result.Source)
	assert.Equal(t, []string{
		"class Foo:\n    def bar(self):\n        return 1",
		"def helper(x):\n    return x * 2",
	}, result.Structured)
	assert.Equal(t, int32(0), semantic.calls.Load())
}

func TestLookupCode_MatchesMethods(t *testing.T) {
	t.Parallel()

	r := newResolver(t, &fakeSemantic{}, map[string]string{"foo.py": fooSource})

	result, err := r.LookupCode(context.Background(), []string{"bar"})
	require.NoError(t, err)
	assert.Equal(t, []string{"def bar(self):\n    return 1"}, result.Structured)
}

func TestLookupInterface_Fallback(t *testing.T) {
	t.Parallel()

	semantic := &fakeSemantic{answer: "class Baz:\n    def run(self): ..."}
	r := newResolver(t, semantic, map[string]string{"foo.py": fooSource})

	result, err := r.LookupInterface(context.Background(), []string{"Baz", "Qux"})
	require.NoError(t, err)

	assert.Equal(t, SourceSemantic, result.Source)
	assert.Equal(t, semantic.answer, result.Semantic)
	assert.Empty(t, result.Structured)
	assert.Equal(t, int32(1), semantic.calls.Load())
	assert.Equal(t, []string{"Extract the interface for the given existing classes: Baz Qux"}, semantic.queries)
}

func TestLookupInterface_FunctionsAreNotClasses(t *testing.T) {
	t.Parallel()

	semantic := &fakeSemantic{answer: "answer"}
	r := newResolver(t, semantic, map[string]string{"util.py": "def helper(x):\n    return x\n"})

	result, err := r.LookupInterface(context.Background(), []string{"helper"})
	require.NoError(t, err)
	assert.Equal(t, SourceSemantic, result.Source)
	assert.Equal(t, int32(1), semantic.calls.Load())
}

func TestLookupCode_Fallback(t *testing.T) {
	t.Parallel()

	semantic := &fakeSemantic{answer: "def missing(): pass"}
	r := newResolver(t, semantic, map[string]string{"foo.py": fooSource})

	result, err := r.LookupCode(context.Background(), []string{"missing"})
	require.NoError(t, err)

	assert.Equal(t, SourceSemantic, result.Source)
	assert.Equal(t, "def missing(): pass", result.Semantic)
	assert.Equal(t, []string{"Give me the existing code for the given existing items (e.g. class, method): missing"}, semantic.queries)
}

func TestLookup_FallbackError(t *testing.T) {
	t.Parallel()

	backendErr := errors.New("vector store unavailable")
	semantic := &fakeSemantic{err: backendErr}
	r := newResolver(t, semantic, map[string]string{"foo.py": fooSource})

	_, err := r.LookupCode(context.Background(), []string{"Baz"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFallbackBackend))
	assert.True(t, errors.Is(err, backendErr))

	var fallbackErr *FallbackError
	require.True(t, errors.As(err, &fallbackErr))
	assert.Contains(t, fallbackErr.Query, "Baz")
	assert.Equal(t, int32(1), semantic.calls.Load())
}

func TestLookup_FallbackTimeout(t *testing.T) {
	t.Parallel()

	logger, _ := test.NewNullLogger()
	semantic := &fakeSemantic{block: true}
	r := New(storage.NewBuiltTestStore(t, nil), semantic, Options{
		Logger:          logger,
		FallbackTimeout: 20 * time.Millisecond,
	})

	_, err := r.LookupInterface(context.Background(), []string{"Baz"})
	assert.True(t, errors.Is(err, ErrFallbackBackend))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestLookupInterface_Ambiguous(t *testing.T) {
	t.Parallel()

	semantic := &fakeSemantic{}
	r := newResolver(t, semantic, map[string]string{
		"foo.py":       fooSource,
		"other/foo.py": "class Foo:\n    def baz(self, x: int) -> int:\n        return x\n",
	})

	result, err := r.LookupInterface(context.Background(), []string{"Foo"})
	require.NoError(t, err)
	require.Len(t, result.Structured, 2)
	assert.Equal(t, "foo.py", result.Structured[0].Location.FilePath)
	assert.Equal(t, "other/foo.py", result.Structured[1].Location.FilePath)
	assert.Equal(t, "baz", result.Structured[1].Methods()[0].Name)
	assert.Equal(t, int32(0), semantic.calls.Load())
}

func TestLookup_StoreErrors(t *testing.T) {
	t.Parallel()

	logger, _ := test.NewNullLogger()
	semantic := &fakeSemantic{}
	r := New(failingStore{err: storage.ErrNotInitialized}, semantic, Options{Logger: logger})

	_, err := r.LookupInterface(context.Background(), []string{"Foo"})
	assert.True(t, errors.Is(err, storage.ErrNotInitialized))

	_, err = r.LookupCode(context.Background(), []string{"Foo"})
	assert.True(t, errors.Is(err, storage.ErrNotInitialized))
	assert.Equal(t, int32(0), semantic.calls.Load())
}

func TestLookup_EmptyNamesFallBack(t *testing.T) {
	t.Parallel()

	semantic := &fakeSemantic{answer: "answer"}
	r := newResolver(t, semantic, map[string]string{"foo.py": fooSource})

	result, err := r.LookupInterface(context.Background(), []string{})
	require.NoError(t, err)
	assert.Equal(t, SourceSemantic, result.Source)
	assert.Equal(t, "answer", result.Semantic)
	assert.Equal(t, int32(1), semantic.calls.Load())

	codeResult, err := r.LookupCode(context.Background(), []string{"  "})
	require.NoError(t, err)
	assert.Equal(t, SourceSemantic, codeResult.Source)
	assert.Equal(t, int32(2), semantic.calls.Load())

	assert.Equal(t, []string{
		"Extract the interface for the given existing classes: ",
		"Give me the existing code for the given existing items (e.g. class, method):   ",
	}, semantic.queries)
}

func TestLookup_NamesMatchExactly(t *testing.T) {
	t.Parallel()

	semantic := &fakeSemantic{answer: "answer"}
	r := newResolver(t, semantic, map[string]string{"foo.py": fooSource})

	result, err := r.LookupInterface(context.Background(), []string{"Foo "})
	require.NoError(t, err)
	assert.Equal(t, SourceSemantic, result.Source)
	assert.Equal(t, int32(1), semantic.calls.Load())
}

func TestLookup_Concurrent(t *testing.T) {
	t.Parallel()

	semantic := &fakeSemantic{answer: "fallback"}
	r := newResolver(t, semantic, map[string]string{"foo.py": fooSource})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := "Foo"
			if i%2 == 1 {
				name = "Missing"
			}
			result, err := r.LookupInterface(context.Background(), []string{name})
			if assert.NoError(t, err) {
				assert.False(t, result.Empty())
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(8), semantic.calls.Load())
}

func TestResult_Empty(t *testing.T) {
	t.Parallel()

	assert.True(t, Result[string]{}.Empty())
	assert.False(t, Result[string]{Structured: []string{"x"}}.Empty())
	assert.True(t, Result[string]{Source: SourceSemantic, Semantic: "  "}.Empty())
	assert.False(t, Result[string]{Source: SourceSemantic, Semantic: "x"}.Empty())
	assert.Equal(t, "semantic", SourceSemantic.String())
}
