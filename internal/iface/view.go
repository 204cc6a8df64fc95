package iface

import (
	"strings"

	"github.com/mvp-joe/smolex/internal/entity"
)

const indentUnit = "    "

// InterfaceView is the reduced form of a class: member signatures and
// docstrings with every implementation body removed. Views are derived on
// demand and never stored.
type InterfaceView struct {
	Name          string                `json:"name"`
	QualifiedPath string                `json:"qualified_path"`
	Location      entity.SourceLocation `json:"location"`
	Decorators    []string              `json:"decorators,omitempty"`
	Header        string                `json:"header"`
	Docstring     string                `json:"docstring,omitempty"`
	Members       []Member              `json:"members"`
}

// Member is either a method or a nested class, in source order.
type Member struct {
	Method *Method        `json:"method,omitempty"`
	Class  *InterfaceView `json:"class,omitempty"`
}

// Method is a function declared directly in a class body.
type Method struct {
	Name           string   `json:"name"`
	Async          bool     `json:"async,omitempty"`
	TypeParameters string   `json:"type_parameters,omitempty"`
	Parameters     string   `json:"parameters"`
	ReturnType     string   `json:"return_type,omitempty"`
	Decorators     []string `json:"decorators,omitempty"`
	Comments       []string `json:"comments,omitempty"`
	Docstring      string   `json:"docstring,omitempty"`
}

// Signature renders the def line without the trailing colon.
func (m *Method) Signature() string {
	var b strings.Builder
	if m.Async {
		b.WriteString("async ")
	}
	b.WriteString("def ")
	b.WriteString(m.Name)
	b.WriteString(m.TypeParameters)
	b.WriteString(m.Parameters)
	if m.ReturnType != "" {
		b.WriteString(" -> ")
		b.WriteString(m.ReturnType)
	}
	return b.String()
}

// QualifiedName joins the qualified path and the class name.
func (v *InterfaceView) QualifiedName() string {
	if v.QualifiedPath == "" {
		return v.Name
	}
	return v.QualifiedPath + "." + v.Name
}

// Methods returns the direct methods of the class.
func (v *InterfaceView) Methods() []*Method {
	var out []*Method
	for _, m := range v.Members {
		if m.Method != nil {
			out = append(out, m.Method)
		}
	}
	return out
}

// Classes returns the nested class views.
func (v *InterfaceView) Classes() []*InterfaceView {
	var out []*InterfaceView
	for _, m := range v.Members {
		if m.Class != nil {
			out = append(out, m.Class)
		}
	}
	return out
}

// Render prints the view as Python source. Bodies are replaced by the
// member's docstring or by "...", so the output is itself valid Python.
func (v *InterfaceView) Render() string {
	var b strings.Builder
	v.render(&b, "")
	return b.String()
}

func (v *InterfaceView) render(b *strings.Builder, indent string) {
	for _, d := range v.Decorators {
		writeLine(b, indent, d)
	}
	writeLine(b, indent, v.Header)

	inner := indent + indentUnit
	wrote := false
	if v.Docstring != "" {
		writeBlock(b, inner, v.Docstring)
		wrote = true
	}

	for _, m := range v.Members {
		if wrote {
			b.WriteString("\n")
		}
		switch {
		case m.Method != nil:
			m.Method.render(b, inner)
		case m.Class != nil:
			m.Class.render(b, inner)
		}
		wrote = true
	}

	if !wrote {
		writeLine(b, inner, "...")
	}
}

func (m *Method) render(b *strings.Builder, indent string) {
	for _, c := range m.Comments {
		writeLine(b, indent, c)
	}
	for _, d := range m.Decorators {
		writeLine(b, indent, d)
	}
	writeLine(b, indent, m.Signature()+":")

	inner := indent + indentUnit
	if m.Docstring != "" {
		writeBlock(b, inner, m.Docstring)
		return
	}
	writeLine(b, inner, "...")
}

func writeLine(b *strings.Builder, indent, line string) {
	b.WriteString(indent)
	b.WriteString(line)
	b.WriteString("\n")
}

// writeBlock writes a possibly multi-line text, indenting every non-blank line.
func writeBlock(b *strings.Builder, indent, text string) {
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			b.WriteString("\n")
			continue
		}
		writeLine(b, indent, line)
	}
}
