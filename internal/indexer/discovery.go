package indexer

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// StateDir is the per-project directory holding config and indexes.
// It is never indexed.
const StateDir = ".smolex"

// FileKind separates source code from documentation.
type FileKind string

const (
	FileKindCode FileKind = "code"
	FileKindDocs FileKind = "docs"
)

// SourceFile is a discovered file.
type SourceFile struct {
	Path    string // absolute or root-joined path
	RelPath string // slash-separated path relative to the root
	Kind    FileKind
}

// compiledPattern holds both the pattern string and compiled glob
type compiledPattern struct {
	pattern string
	glob    glob.Glob
	// root matches files at the top level for patterns starting with **/.
	root glob.Glob
}

// FileDiscovery handles file discovery with glob patterns and ignore rules.
type FileDiscovery struct {
	rootDir        string
	codePatterns   []compiledPattern
	docsPatterns   []compiledPattern
	ignorePatterns []compiledPattern
}

// NewFileDiscovery creates a new file discovery instance.
func NewFileDiscovery(rootDir string, codePatterns, docsPatterns, ignorePatterns []string) (*FileDiscovery, error) {
	fd := &FileDiscovery{rootDir: rootDir}

	var err error
	if fd.codePatterns, err = compilePatterns(codePatterns); err != nil {
		return nil, err
	}
	if fd.docsPatterns, err = compilePatterns(docsPatterns); err != nil {
		return nil, err
	}
	if fd.ignorePatterns, err = compilePatterns(ignorePatterns); err != nil {
		return nil, err
	}
	return fd, nil
}

func compilePatterns(patterns []string) ([]compiledPattern, error) {
	compiled := make([]compiledPattern, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, err
		}
		cp := compiledPattern{pattern: pattern, glob: g}

		// "**/*.md" should match both "README.md" and "docs/guide.md".
		if simplified, ok := strings.CutPrefix(pattern, "**/"); ok {
			if root, err := glob.Compile(simplified, '/'); err == nil {
				cp.root = root
			}
		}
		compiled = append(compiled, cp)
	}
	return compiled, nil
}

// RootDir returns the directory discovery starts from.
func (fd *FileDiscovery) RootDir() string {
	return fd.rootDir
}

// DiscoverFiles walks the directory tree and returns code and doc files in
// lexical order.
func (fd *FileDiscovery) DiscoverFiles() ([]SourceFile, error) {
	files := []SourceFile{}

	err := filepath.WalkDir(fd.rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(fd.rootDir, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if relPath != "." && fd.shouldIgnore(relPath) {
				return filepath.SkipDir
			}
			return nil
		}

		if kind, ok := fd.classify(relPath); ok {
			files = append(files, SourceFile{Path: path, RelPath: relPath, Kind: kind})
		}
		return nil
	})

	return files, err
}

// classify returns the kind of a relative path, or false when the path is
// ignored or matches no pattern.
func (fd *FileDiscovery) classify(relPath string) (FileKind, bool) {
	if fd.shouldIgnore(relPath) {
		return "", false
	}
	if matchesAnyPattern(relPath, fd.codePatterns) {
		return FileKindCode, true
	}
	if matchesAnyPattern(relPath, fd.docsPatterns) {
		return FileKindDocs, true
	}
	return "", false
}

// shouldIgnore checks if a path matches any ignore pattern.
func (fd *FileDiscovery) shouldIgnore(relPath string) bool {
	if relPath == StateDir || strings.HasPrefix(relPath, StateDir+"/") {
		return true
	}

	if matchesAnyPattern(relPath, fd.ignorePatterns) {
		return true
	}

	// "node_modules" should match pattern "node_modules/**".
	return matchesAnyPattern(relPath+"/**", fd.ignorePatterns)
}

func matchesAnyPattern(path string, patterns []compiledPattern) bool {
	rootLevel := !strings.Contains(path, "/")
	for _, cp := range patterns {
		if cp.glob.Match(path) {
			return true
		}
		if rootLevel && cp.root != nil && cp.root.Match(path) {
			return true
		}
	}
	return false
}
