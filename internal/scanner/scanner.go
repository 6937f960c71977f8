// Package scanner discovers the source and header files to be rewritten.
package scanner

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScanErrorType represents the type of scanning error.
type ScanErrorType string

const (
	// DirectoryNotFound indicates the directory does not exist or is not a directory.
	DirectoryNotFound ScanErrorType = "DIRECTORY_NOT_FOUND"
	// PermissionDenied indicates insufficient permissions to read the directory.
	PermissionDenied ScanErrorType = "PERMISSION_DENIED"
	// InvalidPattern indicates a malformed glob pattern.
	InvalidPattern ScanErrorType = "INVALID_PATTERN"
	// SymlinkError indicates a symlink was encountered with "error" policy.
	SymlinkError ScanErrorType = "SYMLINK_ERROR"
)

// Symlink policy constants
const (
	SymlinkPolicyFollow = "follow"
	SymlinkPolicySkip   = "skip"
	SymlinkPolicyError  = "error"
)

// ScanError represents an error that occurred during file discovery.
type ScanError struct {
	Type ScanErrorType
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	if e.Err != nil {
		return string(e.Type) + ": " + e.Path + ": " + e.Err.Error()
	}
	return string(e.Type) + ": " + e.Path
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// DefaultPatterns returns the C and C++ source and header patterns.
func DefaultPatterns() []string {
	return []string{"*.cc", "*.h", "*.c", "*.cpp"}
}

// ScanOptions configures scanning behavior.
type ScanOptions struct {
	Patterns      []string // Glob patterns matched against base names
	MaxDepth      int      // Maximum depth to scan (0 = immediate only, -1 = unlimited)
	SymlinkPolicy string   // "follow", "skip", or "error"
}

// DefaultScanOptions returns the default scan options.
func DefaultScanOptions() ScanOptions {
	return ScanOptions{
		Patterns:      DefaultPatterns(),
		MaxDepth:      0,
		SymlinkPolicy: SymlinkPolicyFollow,
	}
}

// FileEntry represents a file found during scanning.
type FileEntry struct {
	Name string // Filename only
	Path string // Directory joined with the relative path of the file
}

// ScanWithOptions lists the files under directory whose base name matches any
// of opts.Patterns. Hidden entries are skipped. The result is sorted by path
// and holds each file once even when several patterns match it.
func ScanWithOptions(directory string, opts ScanOptions) ([]FileEntry, error) {
	for _, pattern := range opts.Patterns {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return nil, &ScanError{
				Type: InvalidPattern,
				Path: pattern,
				Err:  err,
			}
		}
	}

	info, err := os.Stat(directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ScanError{
				Type: DirectoryNotFound,
				Path: directory,
				Err:  err,
			}
		}
		if os.IsPermission(err) {
			return nil, &ScanError{
				Type: PermissionDenied,
				Path: directory,
				Err:  err,
			}
		}
		return nil, err
	}

	if !info.IsDir() {
		return nil, &ScanError{
			Type: DirectoryNotFound,
			Path: directory,
			Err:  errors.New("path is not a directory"),
		}
	}

	files, err := scanDirectory(directory, opts, 0)
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})
	return files, nil
}

// Matches reports whether name matches any of patterns.
func Matches(name string, patterns []string) bool {
	for _, pattern := range patterns {
		if matched, err := filepath.Match(pattern, name); err == nil && matched {
			return true
		}
	}
	return false
}

// scanDirectory recursively scans a directory up to the specified depth.
func scanDirectory(directory string, opts ScanOptions, currentDepth int) ([]FileEntry, error) {
	entries, err := os.ReadDir(directory)
	if err != nil {
		if os.IsPermission(err) {
			return nil, &ScanError{
				Type: PermissionDenied,
				Path: directory,
				Err:  err,
			}
		}
		return nil, err
	}

	var files []FileEntry
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		fullPath := filepath.Join(directory, entry.Name())

		info, err := os.Lstat(fullPath)
		if err != nil {
			return nil, err
		}

		if info.Mode()&os.ModeSymlink != 0 {
			switch opts.SymlinkPolicy {
			case SymlinkPolicyError:
				return nil, &ScanError{
					Type: SymlinkError,
					Path: fullPath,
					Err:  errors.New("symlink encountered with error policy"),
				}
			case SymlinkPolicySkip:
				continue
			default:
				info, err = os.Stat(fullPath)
				if err != nil {
					continue // Broken symlink
				}
			}
		}

		if info.IsDir() {
			if opts.MaxDepth == -1 || currentDepth < opts.MaxDepth {
				subFiles, err := scanDirectory(fullPath, opts, currentDepth+1)
				if err != nil {
					return nil, err
				}
				files = append(files, subFiles...)
			}
			continue
		}

		if !Matches(entry.Name(), opts.Patterns) {
			continue
		}

		files = append(files, FileEntry{
			Name: entry.Name(),
			Path: fullPath,
		})
	}

	return files, nil
}
