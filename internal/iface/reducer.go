package iface

import (
	"errors"
	"fmt"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/mvp-joe/smolex/internal/entity"
	"github.com/mvp-joe/smolex/internal/indexer/parsers"
)

// ErrInvalidEntityKind is returned when a non-class entity is reduced.
var ErrInvalidEntityKind = errors.New("invalid entity kind")

// Reducer turns class entities into interface views.
// It is safe for concurrent use.
type Reducer struct {
	parser *parsers.PythonParser
}

// NewReducer creates a Reducer for Python class subtrees.
func NewReducer() *Reducer {
	return &Reducer{parser: parsers.NewPythonParser()}
}

// Reduce re-parses the class subtree of e and keeps only member signatures,
// docstrings and nested classes.
func (r *Reducer) Reduce(e *entity.Entity) (*InterfaceView, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: nil entity", ErrInvalidEntityKind)
	}
	if e.Kind != entity.KindClass {
		return nil, fmt.Errorf("%w: %s is a %s, not a class", ErrInvalidEntityKind, e.QualifiedName(), e.Kind)
	}

	file, err := r.parser.Parse(e.Location.FilePath, []byte(e.Subtree.Source()))
	if err != nil {
		return nil, fmt.Errorf("failed to parse subtree of %s: %w", e.QualifiedName(), err)
	}
	defer file.Close()

	def, wrapper := firstDefinition(file.Root())
	if def == nil || def.Kind() != "class_definition" {
		return nil, fmt.Errorf("subtree of %s does not hold a class definition", e.QualifiedName())
	}

	b := &viewBuilder{source: file.Source, filePath: e.Location.FilePath}
	view := b.class(def, wrapper, e.QualifiedPath, e.Location.StartLine)
	view.Location = e.Location
	return view, nil
}

type viewBuilder struct {
	source   []byte
	filePath string
}

// class builds the view of a class_definition node. baseLine is the
// 1-based line of row 0 of the parsed subtree in the original file.
func (b *viewBuilder) class(def, wrapper *sitter.Node, qualifiedPath string, baseLine int) *InterfaceView {
	name := b.text(def.ChildByFieldName("name"))

	header := "class " + name + b.text(def.ChildByFieldName("type_parameters")) +
		b.text(def.ChildByFieldName("superclasses")) + ":"

	view := &InterfaceView{
		Name:          name,
		QualifiedPath: qualifiedPath,
		Location: entity.SourceLocation{
			FilePath:  b.filePath,
			StartLine: baseLine + int(spanOf(def, wrapper).StartPosition().Row),
			EndLine:   baseLine + int(spanOf(def, wrapper).EndPosition().Row),
		},
		Decorators: b.decorators(wrapper),
		Header:     header,
		Members:    []Member{},
	}

	body := def.ChildByFieldName("body")
	if body == nil {
		return view
	}
	view.Docstring = b.docstring(body)

	inner := view.QualifiedName()
	var comments []*sitter.Node
	for i := uint(0); i < body.NamedChildCount(); i++ {
		child := body.NamedChild(i)

		member, memberWrapper := child, (*sitter.Node)(nil)
		if child.Kind() == "decorated_definition" {
			member, memberWrapper = child.ChildByFieldName("definition"), child
		}
		if member == nil {
			comments = nil
			continue
		}

		switch member.Kind() {
		case "comment":
			if len(comments) > 0 && !adjacent(comments[len(comments)-1], child) {
				comments = nil
			}
			comments = append(comments, child)
			continue
		case "function_definition":
			m := b.method(member, memberWrapper)
			if len(comments) > 0 && adjacent(comments[len(comments)-1], child) {
				for _, c := range comments {
					m.Comments = append(m.Comments, b.text(c))
				}
			}
			view.Members = append(view.Members, Member{Method: m})
		case "class_definition":
			view.Members = append(view.Members, Member{Class: b.class(member, memberWrapper, inner, baseLine)})
		}
		comments = nil
	}

	return view
}

func (b *viewBuilder) method(def, wrapper *sitter.Node) *Method {
	m := &Method{
		Name:           b.text(def.ChildByFieldName("name")),
		TypeParameters: b.text(def.ChildByFieldName("type_parameters")),
		Parameters:     b.text(def.ChildByFieldName("parameters")),
		ReturnType:     b.text(def.ChildByFieldName("return_type")),
		Decorators:     b.decorators(wrapper),
	}
	if m.Parameters == "" {
		m.Parameters = "()"
	}
	if def.ChildCount() > 0 && def.Child(0).Kind() == "async" {
		m.Async = true
	}
	if body := def.ChildByFieldName("body"); body != nil {
		m.Docstring = b.docstring(body)
	}
	return m
}

func (b *viewBuilder) decorators(wrapper *sitter.Node) []string {
	if wrapper == nil {
		return nil
	}
	var out []string
	for i := uint(0); i < wrapper.NamedChildCount(); i++ {
		child := wrapper.NamedChild(i)
		if child.Kind() == "decorator" {
			out = append(out, b.text(child))
		}
	}
	return out
}

// docstring returns the raw string literal opening a block, dedented so
// continuation lines are relative to the literal's own column.
func (b *viewBuilder) docstring(block *sitter.Node) string {
	if block.NamedChildCount() == 0 {
		return ""
	}
	first := block.NamedChild(0)
	if first.Kind() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}
	str := first.NamedChild(0)
	if str.Kind() != "string" && str.Kind() != "concatenated_string" {
		return ""
	}
	return parsers.Dedent(b.text(str), int(str.StartPosition().Column))
}

func (b *viewBuilder) text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return string(b.source[node.StartByte():node.EndByte()])
}

// firstDefinition returns the first top-level definition of a module and its
// decorated wrapper, if any.
func firstDefinition(root *sitter.Node) (def, wrapper *sitter.Node) {
	for i := uint(0); i < root.NamedChildCount(); i++ {
		child := root.NamedChild(i)
		switch child.Kind() {
		case "decorated_definition":
			return child.ChildByFieldName("definition"), child
		case "class_definition", "function_definition":
			return child, nil
		}
	}
	return nil, nil
}

func spanOf(def, wrapper *sitter.Node) *sitter.Node {
	if wrapper != nil {
		return wrapper
	}
	return def
}

// adjacent reports whether next starts on the line right after prev ends.
func adjacent(prev, next *sitter.Node) bool {
	return prev.EndPosition().Row+1 == next.StartPosition().Row
}
