// Package output prints the user-facing lines of a prefixing run: the banner,
// one line per modified file, the completion line and a TTY progress indicator.
package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Config holds output configuration.
type Config struct {
	Verbose   bool      // Enable verbose output
	Writer    io.Writer // Output destination (default: os.Stdout)
	ErrWriter io.Writer // Error output destination (default: os.Stderr)
	IsTTY     bool      // Whether output is a terminal
}

// Output handles formatted output with verbose and progress support.
type Output struct {
	config          Config
	progressActive  bool
	progressTotal   int
	progressCurrent int
	progressMu      sync.Mutex
}

// New creates a new Output instance with the given configuration.
func New(config Config) *Output {
	if config.Writer == nil {
		config.Writer = os.Stdout
	}
	if config.ErrWriter == nil {
		config.ErrWriter = os.Stderr
	}
	return &Output{
		config: config,
	}
}

// DefaultConfig returns a Config with sensible defaults and TTY detection.
func DefaultConfig() Config {
	return Config{
		Verbose:   false,
		Writer:    os.Stdout,
		ErrWriter: os.Stderr,
		IsTTY:     IsTerminal(os.Stdout),
	}
}

// IsTerminal reports whether w is a file attached to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Verbose prints a message only when verbose mode is enabled.
func (o *Output) Verbose(format string, args ...interface{}) {
	if !o.config.Verbose {
		return
	}
	o.clearProgressLine()
	msg := fmt.Sprintf(format, args...)
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	fmt.Fprint(o.config.Writer, msg)
}

// Info prints an informational message (always shown).
func (o *Output) Info(format string, args ...interface{}) {
	o.clearProgressLine()
	msg := fmt.Sprintf(format, args...)
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	fmt.Fprint(o.config.Writer, msg)
}

// Error prints an error message to stderr.
func (o *Output) Error(format string, args ...interface{}) {
	o.clearProgressLine()
	msg := fmt.Sprintf(format, args...)
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	fmt.Fprint(o.config.ErrWriter, msg)
}

// clearProgressLine clears the current progress line if active.
func (o *Output) clearProgressLine() {
	o.progressMu.Lock()
	defer o.progressMu.Unlock()
	if o.progressActive && o.config.IsTTY {
		// Clear the line with spaces and return to start
		fmt.Fprint(o.config.Writer, "\r"+strings.Repeat(" ", 60)+"\r")
	}
}

// StartProgress begins a progress indicator session.
func (o *Output) StartProgress(total int) {
	// Suppress progress when not TTY or when verbose mode is enabled
	if !o.config.IsTTY || o.config.Verbose {
		return
	}
	o.progressMu.Lock()
	defer o.progressMu.Unlock()
	o.progressActive = true
	o.progressTotal = total
	o.progressCurrent = 0
}

// UpdateProgress updates the progress indicator.
func (o *Output) UpdateProgress(current int, message string) {
	// Suppress progress when not TTY or when verbose mode is enabled
	if !o.config.IsTTY || o.config.Verbose {
		return
	}
	o.progressMu.Lock()
	defer o.progressMu.Unlock()
	if !o.progressActive {
		return
	}
	o.progressCurrent = current
	// Use carriage return for in-place updates
	progressMsg := fmt.Sprintf("\rProcessing file %d/%d...", current, o.progressTotal)
	if message != "" {
		progressMsg = fmt.Sprintf("\r%s %d/%d...", message, current, o.progressTotal)
	}
	fmt.Fprint(o.config.Writer, progressMsg)
}

// EndProgress clears the progress indicator.
func (o *Output) EndProgress() {
	// Suppress progress when not TTY or when verbose mode is enabled
	if !o.config.IsTTY || o.config.Verbose {
		return
	}
	o.progressMu.Lock()
	defer o.progressMu.Unlock()
	if !o.progressActive {
		return
	}
	o.progressActive = false
	// Clear the line with spaces and return to start
	fmt.Fprint(o.config.Writer, "\r"+strings.Repeat(" ", 60)+"\r")
}

// Banner prints the start-of-run line.
func (o *Output) Banner(sourceDir string, dryRun bool) {
	if dryRun {
		o.Info("Prefixing symbols in %s source files (dry run)...", sourceDir)
		return
	}
	o.Info("Prefixing symbols in %s source files...", sourceDir)
}

// Modified prints the line for a file whose content changed.
func (o *Output) Modified(path string, dryRun bool) {
	if dryRun {
		o.Info("Would modify: %s", path)
		return
	}
	o.Info("Modified: %s", path)
}

// Complete prints a blank line followed by the completion line.
func (o *Output) Complete(modified int, dryRun bool) {
	if dryRun {
		o.Info("\nDry run complete! %d %s would be modified.", modified, files(modified))
		return
	}
	o.Info("\nSymbol prefixing complete! Modified %d files.", modified)
}

// PrefixBreakdown prints, in verbose mode only, how many symbols each
// prefix renamed, ordered by prefix.
func (o *Output) PrefixBreakdown(byPrefix map[string]int) {
	if !o.config.Verbose || len(byPrefix) == 0 {
		return
	}
	prefixes := make([]string, 0, len(byPrefix))
	for p := range byPrefix {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)
	for _, p := range prefixes {
		o.Verbose("  %-12s %d", p, byPrefix[p])
	}
}

func files(n int) string {
	if n == 1 {
		return "file"
	}
	return "files"
}

// IsVerbose returns whether verbose mode is enabled.
func (o *Output) IsVerbose() bool {
	return o.config.Verbose
}

// IsTTY returns whether the output is a terminal.
func (o *Output) IsTTY() bool {
	return o.config.IsTTY
}
