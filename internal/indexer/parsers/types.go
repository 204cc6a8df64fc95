package parsers

import (
	"errors"
	"fmt"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// ErrParseFailure matches every *ParseError via errors.Is.
var ErrParseFailure = errors.New("parse failure")

// ParseError reports a source file that could not be parsed cleanly.
// The indexer skips such files instead of aborting the build.
type ParseError struct {
	Path     string
	Language string
	Line     int
	Column   int
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("failed to parse %s file %s: syntax error at %d:%d", e.Language, e.Path, e.Line, e.Column)
	}
	return fmt.Sprintf("failed to parse %s file %s", e.Language, e.Path)
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParseFailure
}

// ParsedFile is one successfully parsed source file.
// Close must be called to release the underlying tree.
type ParsedFile struct {
	Path     string // relative to the index root, slash separated
	Language string
	Source   []byte
	tree     *sitter.Tree
}

// Root returns the root node of the syntax tree.
func (f *ParsedFile) Root() *sitter.Node {
	return f.tree.RootNode()
}

// Close releases the syntax tree.
func (f *ParsedFile) Close() {
	if f.tree != nil {
		f.tree.Close()
		f.tree = nil
	}
}
