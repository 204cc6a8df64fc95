package parsers

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	sitter "github.com/tree-sitter/go-tree-sitter"
	python "github.com/tree-sitter/tree-sitter-python/bindings/go"

	"github.com/mvp-joe/smolex/internal/entity"
)

// LanguagePython is the language tag stored on Python subtrees.
const LanguagePython = "python"

// PythonParser parses Python files.
type PythonParser struct {
	*treeSitterParser
}

// NewPythonParser creates a new Python parser.
func NewPythonParser() *PythonParser {
	lang := sitter.NewLanguage(python.Language())
	return &PythonParser{
		treeSitterParser: newTreeSitterParser(lang, LanguagePython),
	}
}

// Parse parses Python source. relPath is recorded on the result and is used
// to derive module paths during extraction.
func (p *PythonParser) Parse(relPath string, source []byte) (*ParsedFile, error) {
	tree, err := p.parse(relPath, source)
	if err != nil {
		return nil, err
	}
	return &ParsedFile{
		Path:     relPath,
		Language: p.lang,
		Source:   source,
		tree:     tree,
	}, nil
}

// Extract returns one Entity per class and function definition in file,
// depth-first in source order. Functions declared directly in a class body
// are tagged as methods and carry the class in their qualified path.
func Extract(file *ParsedFile) []*entity.Entity {
	x := &extractor{
		file:   file,
		module: ModulePath(file.Path),
	}
	x.walk(file.Root(), nil, false)
	return x.entities
}

// ModulePath converts a slash separated file path into a dotted module path.
// "pkg/mod.py" becomes "pkg.mod" and "pkg/__init__.py" becomes "pkg".
func ModulePath(relPath string) string {
	p := strings.TrimSuffix(path.Clean(relPath), path.Ext(relPath))
	p = strings.TrimPrefix(p, "./")
	p = strings.TrimSuffix(p, "/__init__")
	if p == "__init__" || p == "." {
		return ""
	}
	return strings.ReplaceAll(p, "/", ".")
}

type extractor struct {
	file     *ParsedFile
	module   string
	entities []*entity.Entity
}

// walk visits the named children of node. inClass is true while walking the
// body of a class (including compound statements nested in it).
func (x *extractor) walk(node *sitter.Node, scope []string, inClass bool) {
	if node == nil {
		return
	}
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		switch child.Kind() {
		case "decorated_definition":
			def := child.ChildByFieldName("definition")
			if def != nil {
				x.visit(def, child, scope, inClass)
			}
		case "class_definition", "function_definition":
			x.visit(child, child, scope, inClass)
		default:
			x.walk(child, scope, inClass)
		}
	}
}

// visit emits an entity for def. span is def itself or its decorated wrapper.
func (x *extractor) visit(def, span *sitter.Node, scope []string, inClass bool) {
	nameNode := def.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := extractNodeText(nameNode, x.file.Source)

	isClass := def.Kind() == "class_definition"
	kind := entity.KindFunction
	switch {
	case isClass:
		kind = entity.KindClass
	case inClass:
		kind = entity.KindMethod
	}

	x.entities = append(x.entities, x.newEntity(name, kind, span, scope))

	inner := make([]string, len(scope), len(scope)+1)
	copy(inner, scope)
	inner = append(inner, name)
	x.walk(def.ChildByFieldName("body"), inner, isClass)
}

func (x *extractor) newEntity(name string, kind entity.Kind, span *sitter.Node, scope []string) *entity.Entity {
	startByte := int(span.StartByte())
	endByte := int(span.EndByte())
	column := int(span.StartPosition().Column)

	parts := make([]string, 0, len(scope)+1)
	if x.module != "" {
		parts = append(parts, x.module)
	}
	parts = append(parts, scope...)

	return &entity.Entity{
		ID:            entityID(x.file.Path, startByte, kind),
		Name:          name,
		Kind:          kind,
		QualifiedPath: strings.Join(parts, "."),
		Subtree: entity.Subtree{
			Language: x.file.Language,
			Text:     Dedent(string(x.file.Source[startByte:endByte]), column),
			Indent:   column,
		},
		Location: entity.SourceLocation{
			FilePath:  x.file.Path,
			StartLine: int(span.StartPosition().Row) + 1,
			EndLine:   int(span.EndPosition().Row) + 1,
			StartByte: startByte,
			EndByte:   endByte,
		},
	}
}

func entityID(filePath string, startByte int, kind entity.Kind) string {
	h := xxhash.Sum64String(fmt.Sprintf("%s:%d:%s", filePath, startByte, kind))
	return strconv.FormatUint(h, 16)
}
