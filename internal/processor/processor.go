// Package processor applies the symbol rewrite to files on disk.
package processor

import (
	"errors"
	"io/fs"
	"os"
	"sync"
	"unicode/utf8"

	"symprefix/internal/rewriter"
)

// FileErrorType represents the stage at which processing a file failed.
type FileErrorType string

const (
	// ReadError indicates the file could not be read or is not text.
	ReadError FileErrorType = "READ_ERROR"
	// WriteError indicates the rewritten content could not be persisted.
	WriteError FileErrorType = "WRITE_ERROR"
)

// ErrNotText is wrapped by a ReadError when the file is not valid UTF-8.
var ErrNotText = errors.New("content is not valid UTF-8 text")

// FileError represents a failure while processing a single file.
type FileError struct {
	Type FileErrorType
	Path string
	Err  error
}

// Error formats as "<path>: <cause>", dropping the path an *fs.PathError
// would repeat.
func (e *FileError) Error() string {
	cause := e.Err
	var pathErr *fs.PathError
	if errors.As(cause, &pathErr) && pathErr.Path == e.Path {
		cause = pathErr.Err
	}
	return e.Path + ": " + cause.Error()
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// Rewriter transforms the content of one file.
type Rewriter interface {
	Apply(content string) rewriter.Result
}

// Options configures a Driver.
type Options struct {
	DryRun bool // Compute changes without writing them
}

// Result is the outcome of processing one file.
type Result struct {
	Path     string
	Modified bool           // Content changed (and was written unless dry-run)
	Renamed  int            // Tokens renamed
	ByPrefix map[string]int // Renamed tokens per prefix
}

// Driver reads a file, rewrites it and writes it back only when it changed.
// Calls for the same path are serialized; different paths run independently.
type Driver struct {
	rw    Rewriter
	opts  Options
	locks sync.Map // path -> *sync.Mutex
}

// NewDriver creates a Driver using rw for the content transform.
func NewDriver(rw Rewriter, opts Options) *Driver {
	return &Driver{
		rw:   rw,
		opts: opts,
	}
}

// DryRun reports whether the driver skips writes.
func (d *Driver) DryRun() bool {
	return d.opts.DryRun
}

// Process rewrites the file at path in place. The returned Result has
// Modified set when the rewritten content differs from what was read.
// Errors are *FileError values.
func (d *Driver) Process(path string) (*Result, error) {
	mu := d.lock(path)
	mu.Lock()
	defer mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FileError{Type: ReadError, Path: path, Err: err}
	}
	if !utf8.Valid(data) {
		return nil, &FileError{Type: ReadError, Path: path, Err: ErrNotText}
	}

	content := string(data)
	res := d.rw.Apply(content)
	result := &Result{
		Path:     path,
		Modified: res.Changed(content),
		Renamed:  res.Renamed,
		ByPrefix: res.ByPrefix,
	}
	if !result.Modified || d.opts.DryRun {
		return result, nil
	}

	if err := writeInPlace(path, res.Content); err != nil {
		return nil, &FileError{Type: WriteError, Path: path, Err: err}
	}
	return result, nil
}

func (d *Driver) lock(path string) *sync.Mutex {
	mu, _ := d.locks.LoadOrStore(path, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// writeInPlace truncates and rewrites an existing file, keeping its mode.
func writeInPlace(path, content string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
