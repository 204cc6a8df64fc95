package indexer

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/mvp-joe/smolex/internal/semantic"
)

const (
	DefaultChunkLines   = 60
	DefaultOverlapLines = 10
)

var headerPattern = regexp.MustCompile(`^##\s+`)

// Chunker splits files into overlapping line windows for the semantic index.
// Markdown files are first split at level-2 headers so a window never spans
// two sections.
type Chunker struct {
	chunkLines   int
	overlapLines int
}

// NewChunker creates a chunker. Non-positive sizes fall back to defaults and
// the overlap is kept below the window size.
func NewChunker(chunkLines, overlapLines int) *Chunker {
	if chunkLines <= 0 {
		chunkLines = DefaultChunkLines
	}
	if overlapLines < 0 {
		overlapLines = 0
	}
	if overlapLines >= chunkLines {
		overlapLines = chunkLines - 1
	}
	return &Chunker{chunkLines: chunkLines, overlapLines: overlapLines}
}

// section is a run of lines starting at a 1-based line number.
type section struct {
	startLine int
	lines     []string
}

// Chunk returns the documents for one file. Blank windows are dropped.
func (c *Chunker) Chunk(relPath, content string) []semantic.Document {
	content = strings.TrimRight(content, "\n")
	if strings.TrimSpace(content) == "" {
		return nil
	}

	lines := strings.Split(content, "\n")
	sections := []section{{startLine: 1, lines: lines}}
	if isMarkdown(relPath) {
		sections = splitByHeaders(lines)
	}

	var docs []semantic.Document
	for _, sec := range sections {
		docs = append(docs, c.window(relPath, sec)...)
	}
	return docs
}

func (c *Chunker) window(relPath string, sec section) []semantic.Document {
	var docs []semantic.Document
	step := c.chunkLines - c.overlapLines

	for start := 0; start < len(sec.lines); start += step {
		end := min(start+c.chunkLines, len(sec.lines))
		text := strings.Join(sec.lines[start:end], "\n")

		if strings.TrimSpace(text) != "" {
			startLine := sec.startLine + start
			docs = append(docs, semantic.Document{
				ID:        chunkID(relPath, startLine),
				FilePath:  relPath,
				StartLine: startLine,
				EndLine:   sec.startLine + end - 1,
				Text:      text,
			})
		}

		if end == len(sec.lines) {
			break
		}
	}
	return docs
}

// splitByHeaders splits the document into sections by ## headers.
func splitByHeaders(lines []string) []section {
	sections := []section{}
	current := section{startLine: 1}

	for i, line := range lines {
		if headerPattern.MatchString(line) && i > 0 {
			if len(current.lines) > 0 {
				sections = append(sections, current)
			}
			current = section{startLine: i + 1, lines: []string{line}}
		} else {
			current.lines = append(current.lines, line)
		}
	}

	if len(current.lines) > 0 {
		sections = append(sections, current)
	}
	return sections
}

func isMarkdown(relPath string) bool {
	switch strings.ToLower(path.Ext(relPath)) {
	case ".md", ".markdown", ".mdx":
		return true
	}
	return false
}

func chunkID(relPath string, startLine int) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(fmt.Sprintf("%s:%d", relPath, startLine)))
}
