package entity

import (
	"fmt"
	"strings"
)

// Kind classifies an extracted definition.
type Kind string

const (
	KindClass    Kind = "class"
	KindFunction Kind = "function"
	KindMethod   Kind = "method"
	KindOther    Kind = "other"
)

// ParseKind maps a stored kind string back to a Kind.
// Unknown values become KindOther.
func ParseKind(s string) Kind {
	switch Kind(strings.ToLower(s)) {
	case KindClass:
		return KindClass
	case KindFunction:
		return KindFunction
	case KindMethod:
		return KindMethod
	default:
		return KindOther
	}
}

// Entity is a single named definition extracted from a source file.
// Entities are immutable once built; a rebuild replaces the full set.
type Entity struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Kind          Kind           `json:"kind"`
	QualifiedPath string         `json:"qualified_path"`
	Subtree       Subtree        `json:"subtree"`
	Location      SourceLocation `json:"location"`
}

// QualifiedName joins the qualified path and the entity name.
func (e *Entity) QualifiedName() string {
	if e.QualifiedPath == "" {
		return e.Name
	}
	return e.QualifiedPath + "." + e.Name
}

func (e *Entity) String() string {
	return fmt.Sprintf("%s %s (%s)", e.Kind, e.QualifiedName(), e.Location)
}

// Subtree is the serialized form of a definition's syntax tree.
//
// Text holds the definition's source, dedented by Indent columns so that it
// parses as a standalone module. Parsing Text again yields the same
// definition, which is what the interface reducer relies on.
type Subtree struct {
	Language string `json:"language"`
	Text     string `json:"text"`
	Indent   int    `json:"indent"`
}

// Source regenerates the source text of the definition.
func (s Subtree) Source() string {
	return s.Text
}

// SourceLocation points back at the definition in the indexed tree.
type SourceLocation struct {
	FilePath  string `json:"file_path"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	StartByte int    `json:"start_byte"`
	EndByte   int    `json:"end_byte"`
}

func (l SourceLocation) String() string {
	return fmt.Sprintf("%s:%d-%d", l.FilePath, l.StartLine, l.EndLine)
}
