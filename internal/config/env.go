package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Environment variables read by ApplyEnvOverrides.
const (
	EnvSourceDir  = "SYMPREFIX_SOURCE_DIR"
	EnvMarker     = "SYMPREFIX_MARKER"
	EnvPrefixes   = "SYMPREFIX_PREFIXES"
	EnvExtensions = "SYMPREFIX_EXTENSIONS"
	EnvWorkers    = "SYMPREFIX_WORKERS"
)

// ApplyEnvOverrides replaces configured values with the non-empty
// SYMPREFIX_* environment variables. List variables are comma-separated.
func (c *Configuration) ApplyEnvOverrides() error {
	if v := strings.TrimSpace(os.Getenv(EnvSourceDir)); v != "" {
		c.SourceDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvMarker)); v != "" {
		c.Marker = v
	}
	if list := splitList(os.Getenv(EnvPrefixes)); len(list) > 0 {
		c.Prefixes = list
	}
	if list := splitList(os.Getenv(EnvExtensions)); len(list) > 0 {
		c.Extensions = list
	}
	if v := strings.TrimSpace(os.Getenv(EnvWorkers)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &ConfigError{
				Type:    ValidationError,
				Message: fmt.Sprintf("%s must be an integer, got %q", EnvWorkers, v),
				Err:     err,
			}
		}
		c.Workers = n
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
