package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"symprefix/internal/rewriter"
	"symprefix/internal/scanner"
)

// ValidationSeverity represents the severity of a validation issue.
type ValidationSeverity string

const (
	SeverityError   ValidationSeverity = "error"
	SeverityWarning ValidationSeverity = "warning"
)

// ConfigValidationError represents a single validation issue.
type ConfigValidationError struct {
	Field    string             // Config field with issue (e.g., "prefixes[3]")
	Message  string             // Human-readable description
	Severity ValidationSeverity // "error" or "warning"
}

func (e ConfigValidationError) String() string {
	return string(e.Severity) + ": " + e.Field + ": " + e.Message
}

// ValidationResult contains all validation findings.
type ValidationResult struct {
	Errors   []ConfigValidationError
	Warnings []ConfigValidationError
	Valid    bool // True if no errors (warnings OK)
}

// ValidateConfig checks the configuration and returns every finding, unlike
// Validate which stops at the first fatal problem.
func ValidateConfig(cfg *Configuration) *ValidationResult {
	result := &ValidationResult{
		Errors:   []ConfigValidationError{},
		Warnings: []ConfigValidationError{},
	}

	var findings []ConfigValidationError
	findings = append(findings, ValidateSourceDir(cfg)...)
	findings = append(findings, ValidatePrefixes(cfg)...)
	findings = append(findings, ValidateMarker(cfg)...)
	findings = append(findings, ValidateExtensions(cfg)...)
	findings = append(findings, ValidatePolicies(cfg)...)

	for _, f := range findings {
		if f.Severity == SeverityError {
			result.Errors = append(result.Errors, f)
		} else {
			result.Warnings = append(result.Warnings, f)
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// ValidateSourceDir checks that the source directory exists and is a directory.
func ValidateSourceDir(cfg *Configuration) []ConfigValidationError {
	if cfg.SourceDir == "" {
		return []ConfigValidationError{{
			Field:    "sourceDir",
			Message:  "sourceDir cannot be empty",
			Severity: SeverityError,
		}}
	}

	info, err := os.Stat(cfg.SourceDir)
	switch {
	case os.IsNotExist(err):
		return []ConfigValidationError{{
			Field:    "sourceDir",
			Message:  "directory does not exist: " + cfg.SourceDir,
			Severity: SeverityError,
		}}
	case os.IsPermission(err):
		return []ConfigValidationError{{
			Field:    "sourceDir",
			Message:  "directory is not accessible: " + cfg.SourceDir,
			Severity: SeverityError,
		}}
	case err != nil:
		return []ConfigValidationError{{
			Field:    "sourceDir",
			Message:  "error accessing directory: " + err.Error(),
			Severity: SeverityError,
		}}
	case !info.IsDir():
		return []ConfigValidationError{{
			Field:    "sourceDir",
			Message:  "path is not a directory: " + cfg.SourceDir,
			Severity: SeverityError,
		}}
	}
	return nil
}

// ValidatePrefixes checks prefix characters, duplicates and the trailing underscore convention.
func ValidatePrefixes(cfg *Configuration) []ConfigValidationError {
	var errors []ConfigValidationError

	if len(cfg.Prefixes) == 0 {
		return append(errors, ConfigValidationError{
			Field:    "prefixes",
			Message:  "prefixes must contain at least one prefix",
			Severity: SeverityError,
		})
	}

	seen := make(map[string]int)
	for i, p := range cfg.Prefixes {
		field := formatField("prefixes", i)
		if !rewriter.IsIdentifier(p) {
			errors = append(errors, ConfigValidationError{
				Field:    field,
				Message:  "prefix must contain only letters, digits and underscores: \"" + p + "\"",
				Severity: SeverityError,
			})
			continue
		}
		if first, exists := seen[p]; exists {
			errors = append(errors, ConfigValidationError{
				Field:    field,
				Message:  "duplicate prefix \"" + p + "\" also at index " + strconv.Itoa(first),
				Severity: SeverityWarning,
			})
			continue
		}
		seen[p] = i
		if !strings.HasSuffix(p, "_") {
			errors = append(errors, ConfigValidationError{
				Field:    field,
				Message:  "prefix \"" + p + "\" does not end with an underscore and may match unrelated identifiers",
				Severity: SeverityWarning,
			})
		}
	}

	return errors
}

// ValidateMarker checks the marker characters and its interaction with the prefixes.
func ValidateMarker(cfg *Configuration) []ConfigValidationError {
	if !rewriter.IsIdentifier(cfg.Marker) {
		return []ConfigValidationError{{
			Field:    "marker",
			Message:  "marker must be non-empty and contain only letters, digits and underscores: \"" + cfg.Marker + "\"",
			Severity: SeverityError,
		}}
	}

	var errors []ConfigValidationError
	if !strings.HasSuffix(cfg.Marker, "_") {
		errors = append(errors, ConfigValidationError{
			Field:    "marker",
			Message:  "marker \"" + cfg.Marker + "\" does not end with an underscore; renamed symbols will run into the original name",
			Severity: SeverityWarning,
		})
	}
	for i, p := range cfg.Prefixes {
		if p != "" && strings.HasPrefix(cfg.Marker, p) {
			errors = append(errors, ConfigValidationError{
				Field:    "marker",
				Message:  "marker starts with prefix \"" + p + "\" at index " + strconv.Itoa(i) + "; symbols that already begin with the marker are never renamed",
				Severity: SeverityWarning,
			})
		}
	}
	return errors
}

// ValidateExtensions checks that every extension pattern is a valid glob.
func ValidateExtensions(cfg *Configuration) []ConfigValidationError {
	var errors []ConfigValidationError

	if len(cfg.Extensions) == 0 {
		return append(errors, ConfigValidationError{
			Field:    "extensions",
			Message:  "extensions must contain at least one pattern",
			Severity: SeverityError,
		})
	}

	for i, pattern := range cfg.Extensions {
		if _, err := filepath.Match(pattern, ""); err != nil {
			errors = append(errors, ConfigValidationError{
				Field:    formatField("extensions", i),
				Message:  "invalid glob pattern \"" + pattern + "\": " + err.Error(),
				Severity: SeverityError,
			})
			continue
		}
		if strings.ContainsRune(pattern, filepath.Separator) {
			errors = append(errors, ConfigValidationError{
				Field:    formatField("extensions", i),
				Message:  "pattern \"" + pattern + "\" contains a path separator but is matched against file names only",
				Severity: SeverityWarning,
			})
		}
	}

	return errors
}

// ValidatePolicies checks symlink policy, scan depth, workers and watch settings.
func ValidatePolicies(cfg *Configuration) []ConfigValidationError {
	var errors []ConfigValidationError

	if cfg.SymlinkPolicy != "" {
		validPolicies := map[string]bool{
			scanner.SymlinkPolicyFollow: true,
			scanner.SymlinkPolicySkip:   true,
			scanner.SymlinkPolicyError:  true,
		}
		if !validPolicies[cfg.SymlinkPolicy] {
			errors = append(errors, ConfigValidationError{
				Field:    "symlinkPolicy",
				Message:  "invalid symlink policy: \"" + cfg.SymlinkPolicy + "\". Must be \"follow\", \"skip\", or \"error\"",
				Severity: SeverityError,
			})
		}
	}

	if cfg.ScanDepth != nil && *cfg.ScanDepth < -1 {
		errors = append(errors, ConfigValidationError{
			Field:    "scanDepth",
			Message:  "scanDepth must be -1 (unlimited) or a non-negative integer",
			Severity: SeverityError,
		})
	}

	if cfg.Workers < 0 {
		errors = append(errors, ConfigValidationError{
			Field:    "workers",
			Message:  "workers cannot be negative",
			Severity: SeverityError,
		})
	}

	if cfg.Watch != nil {
		if cfg.Watch.DebounceMs < 0 {
			errors = append(errors, ConfigValidationError{
				Field:    "watch.debounceMs",
				Message:  "debounceMs cannot be negative",
				Severity: SeverityError,
			})
		}
		if cfg.Watch.StableThresholdMs < 0 {
			errors = append(errors, ConfigValidationError{
				Field:    "watch.stableThresholdMs",
				Message:  "stableThresholdMs cannot be negative",
				Severity: SeverityError,
			})
		}
	}

	return errors
}

// formatField creates a field reference string for validation errors.
func formatField(name string, index int) string {
	return name + "[" + strconv.Itoa(index) + "]"
}
