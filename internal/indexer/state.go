package indexer

import (
	"github.com/mvp-joe/smolex/internal/semantic"
	"github.com/mvp-joe/smolex/internal/storage"
)

// BuildState records which persisted indexes were present at startup.
type BuildState struct {
	StructuredReady bool
	SemanticReady   bool
}

// RequiresRefresh reports whether either index is missing.
func (s BuildState) RequiresRefresh() bool {
	return !s.StructuredReady || !s.SemanticReady
}

// DetectBuildState inspects the structured database file and the semantic
// index directory. A structured file that is not a committed index counts as
// missing.
func DetectBuildState(structuredPath, semanticDir string) BuildState {
	return BuildState{
		StructuredReady: storage.Valid(structuredPath),
		SemanticReady:   semantic.DirReady(semanticDir),
	}
}
