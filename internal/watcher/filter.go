package watcher

import (
	"path/filepath"

	"symprefix/internal/scanner"
)

// DefaultIgnorePatterns returns patterns for editor backup and lock files.
func DefaultIgnorePatterns() []string {
	return []string{
		".*", // Hidden files, including emacs .#lock files
		"*~", // Backup copies
		"*.orig",
		"*.rej",
	}
}

// FileFilter decides which changed files are handed to the FileHandler.
type FileFilter struct {
	include []string
	ignore  []string
}

// NewFileFilter creates a FileFilter. A path is processed when its base name
// matches an include pattern and no ignore pattern. A nil ignore list uses
// DefaultIgnorePatterns; an empty non-nil list ignores nothing.
func NewFileFilter(include, ignore []string) *FileFilter {
	if ignore == nil {
		ignore = DefaultIgnorePatterns()
	}
	return &FileFilter{
		include: include,
		ignore:  ignore,
	}
}

// ShouldProcess reports whether the file at path should be rewritten.
func (f *FileFilter) ShouldProcess(path string) bool {
	name := filepath.Base(path)
	return scanner.Matches(name, f.include) && !scanner.Matches(name, f.ignore)
}
