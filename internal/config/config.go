// Package config handles configuration loading and validation for symprefix.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"symprefix/internal/rewriter"
	"symprefix/internal/scanner"
	"symprefix/internal/watcher"
)

// DefaultSourceDir is scanned when no directory is configured.
const DefaultSourceDir = "src"

// ConfigErrorType represents the type of configuration error.
type ConfigErrorType string

const (
	FileNotFound    ConfigErrorType = "FILE_NOT_FOUND"
	InvalidFormat   ConfigErrorType = "INVALID_FORMAT"
	ValidationError ConfigErrorType = "VALIDATION_ERROR"
)

// ConfigError represents an error that occurred during configuration loading.
type ConfigError struct {
	Type    ConfigErrorType
	Path    string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	switch e.Type {
	case FileNotFound:
		if e.Message != "" {
			return fmt.Sprintf("configuration file not readable: %s: %s", e.Path, e.Message)
		}
		return fmt.Sprintf("configuration file not found: %s", e.Path)
	case InvalidFormat:
		return fmt.Sprintf("invalid configuration file %s: %s", e.Path, e.Message)
	case ValidationError:
		return fmt.Sprintf("configuration validation error: %s", e.Message)
	default:
		return fmt.Sprintf("configuration error: %s", e.Message)
	}
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Configuration holds all settings for symprefix.
type Configuration struct {
	SourceDir     string               `json:"sourceDir" yaml:"sourceDir"`
	Extensions    []string             `json:"extensions" yaml:"extensions"`
	Prefixes      []string             `json:"prefixes" yaml:"prefixes"`
	Marker        string               `json:"marker" yaml:"marker"`
	ScanDepth     *int                 `json:"scanDepth,omitempty" yaml:"scanDepth,omitempty"`
	SymlinkPolicy string               `json:"symlinkPolicy,omitempty" yaml:"symlinkPolicy,omitempty"`
	Workers       int                  `json:"workers,omitempty" yaml:"workers,omitempty"`
	Watch         *watcher.WatchConfig `json:"watch,omitempty" yaml:"watch,omitempty"`
}

// Default returns the configuration used when no file is given: the
// FFmpeg prefix set and marker over C/C++ files directly inside src.
func Default() *Configuration {
	cfg := &Configuration{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every unset field with its default value.
func (c *Configuration) ApplyDefaults() {
	scan := scanner.DefaultScanOptions()
	if c.SourceDir == "" {
		c.SourceDir = DefaultSourceDir
	}
	if len(c.Extensions) == 0 {
		c.Extensions = scan.Patterns
	}
	if len(c.Prefixes) == 0 {
		c.Prefixes = rewriter.DefaultPrefixes()
	}
	if c.Marker == "" {
		c.Marker = rewriter.DefaultMarker
	}
	if c.SymlinkPolicy == "" {
		c.SymlinkPolicy = scan.SymlinkPolicy
	}
	if c.Workers == 0 {
		c.Workers = 1
	}
	if c.Watch == nil {
		c.Watch = watcher.DefaultWatchConfig()
	}
}

// GetScanDepth returns the configured scan depth, 0 when unset.
func (c *Configuration) GetScanDepth() int {
	if c.ScanDepth == nil {
		return 0
	}
	return *c.ScanDepth
}

// ScanOptions builds scanner options from the configuration.
func (c *Configuration) ScanOptions() scanner.ScanOptions {
	return scanner.ScanOptions{
		Patterns:      c.Extensions,
		MaxDepth:      c.GetScanDepth(),
		SymlinkPolicy: c.SymlinkPolicy,
	}
}

// NewRewriter builds the symbol rewriter described by the configuration.
func (c *Configuration) NewRewriter() (*rewriter.Rewriter, error) {
	rw, err := rewriter.New(c.Prefixes, c.Marker)
	if err != nil {
		return nil, &ConfigError{Type: ValidationError, Message: err.Error(), Err: err}
	}
	return rw, nil
}

// Validate checks the fields that would make a run impossible.
func (c *Configuration) Validate() error {
	if c.SourceDir == "" {
		return &ConfigError{
			Type:    ValidationError,
			Message: "sourceDir cannot be empty",
		}
	}

	if len(c.Prefixes) == 0 {
		return &ConfigError{
			Type:    ValidationError,
			Message: "prefixes must contain at least one prefix",
		}
	}
	for i, p := range c.Prefixes {
		if !rewriter.IsIdentifier(p) {
			return &ConfigError{
				Type:    ValidationError,
				Message: fmt.Sprintf("prefixes[%d] %q must contain only letters, digits and underscores", i, p),
			}
		}
	}

	if !rewriter.IsIdentifier(c.Marker) {
		return &ConfigError{
			Type:    ValidationError,
			Message: fmt.Sprintf("marker %q must be non-empty and contain only letters, digits and underscores", c.Marker),
		}
	}

	if len(c.Extensions) == 0 {
		return &ConfigError{
			Type:    ValidationError,
			Message: "extensions must contain at least one pattern",
		}
	}
	for i, pattern := range c.Extensions {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return &ConfigError{
				Type:    ValidationError,
				Message: fmt.Sprintf("extensions[%d] %q is not a valid glob pattern", i, pattern),
				Err:     err,
			}
		}
	}

	if c.Workers < 0 {
		return &ConfigError{
			Type:    ValidationError,
			Message: "workers cannot be negative",
		}
	}

	return nil
}

// Load reads a JSON or YAML configuration file, fills in defaults for
// anything it leaves out and validates the result.
func Load(filePath string) (*Configuration, error) {
	config, err := Read(filePath)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Read is Load without validation, for callers that layer further
// overrides on top of the file and validate the final result.
func Read(filePath string) (*Configuration, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &ConfigError{
				Type: FileNotFound,
				Path: filePath,
				Err:  err,
			}
		}
		return nil, &ConfigError{
			Type:    FileNotFound,
			Path:    filePath,
			Message: err.Error(),
			Err:     err,
		}
	}

	config, err := Parse(data, formatFor(filePath))
	if err != nil {
		return nil, &ConfigError{
			Type:    InvalidFormat,
			Path:    filePath,
			Message: err.Error(),
			Err:     err,
		}
	}

	config.ApplyDefaults()
	return config, nil
}

// Format identifies a configuration file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func formatFor(filePath string) Format {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Parse decodes configuration data without applying defaults.
// Unknown YAML keys are rejected.
func Parse(data []byte, format Format) (*Configuration, error) {
	var config Configuration
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	default:
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, err
		}
	}
	return &config, nil
}
