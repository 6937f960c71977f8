package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"gopkg.in/yaml.v3"

	"symprefix/internal/rewriter"
	"symprefix/internal/scanner"
	"symprefix/internal/watcher"
)

// genPrefix generates identifier-shaped prefixes ending in an underscore.
func genPrefix() gopter.Gen {
	return gen.Identifier().Map(func(s string) string {
		return s + "_"
	})
}

// genPattern picks one of the given glob patterns.
func genPattern(patterns ...string) gopter.Gen {
	return gen.IntRange(0, len(patterns)-1).Map(func(i int) string {
		return patterns[i]
	})
}

func genWatchConfig() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, 5000),
		gen.IntRange(0, 2000),
		gen.SliceOfN(2, genPattern("*~", ".*", "*.orig", "*_gen.h")),
	).Map(func(vals []interface{}) *watcher.WatchConfig {
		return &watcher.WatchConfig{
			DebounceMs:        vals[0].(int),
			StableThresholdMs: vals[1].(int),
			IgnorePatterns:    vals[2].([]string),
		}
	})
}

// genConfiguration generates a Configuration with every field populated.
func genConfiguration() gopter.Gen {
	return gopter.CombineGens(
		gen.Identifier(),
		gen.SliceOfN(2, genPattern("*.c", "*.h", "*.cc", "*.cpp", "*.inc")),
		gen.SliceOfN(3, genPrefix()),
		genPrefix(),
		gen.IntRange(-1, 5),
		gen.OneConstOf(scanner.SymlinkPolicyFollow, scanner.SymlinkPolicySkip, scanner.SymlinkPolicyError),
		gen.IntRange(1, 16),
		genWatchConfig(),
	).Map(func(vals []interface{}) *Configuration {
		depth := vals[4].(int)
		return &Configuration{
			SourceDir:     vals[0].(string),
			Extensions:    vals[1].([]string),
			Prefixes:      vals[2].([]string),
			Marker:        vals[3].(string),
			ScanDepth:     &depth,
			SymlinkPolicy: vals[5].(string),
			Workers:       vals[6].(int),
			Watch:         vals[7].(*watcher.WatchConfig),
		}
	})
}

func TestConfigurationRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("JSON round-trip preserves data", prop.ForAll(
		func(config *Configuration) bool {
			data, err := json.Marshal(config)
			if err != nil {
				t.Logf("Marshal failed: %v", err)
				return false
			}
			parsed, err := Parse(data, FormatJSON)
			if err != nil {
				t.Logf("Parse failed: %v", err)
				return false
			}
			return reflect.DeepEqual(config, parsed)
		},
		genConfiguration(),
	))

	properties.Property("YAML round-trip preserves data", prop.ForAll(
		func(config *Configuration) bool {
			data, err := yaml.Marshal(config)
			if err != nil {
				t.Logf("Marshal failed: %v", err)
				return false
			}
			parsed, err := Parse(data, FormatYAML)
			if err != nil {
				t.Logf("Parse failed: %v", err)
				return false
			}
			return reflect.DeepEqual(config, parsed)
		},
		genConfiguration(),
	))

	properties.TestingRun(t)
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.SourceDir != "src" {
		t.Errorf("expected source dir src, got %q", cfg.SourceDir)
	}
	if cfg.Marker != "ffmpeg_static_" {
		t.Errorf("expected marker ffmpeg_static_, got %q", cfg.Marker)
	}
	if diff := cmp.Diff(rewriter.DefaultPrefixes(), cfg.Prefixes); diff != "" {
		t.Errorf("prefixes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"*.cc", "*.h", "*.c", "*.cpp"}, cfg.Extensions); diff != "" {
		t.Errorf("extensions mismatch (-want +got):\n%s", diff)
	}
	if cfg.Workers != 1 {
		t.Errorf("expected 1 worker, got %d", cfg.Workers)
	}
	if cfg.GetScanDepth() != 0 {
		t.Errorf("expected scan depth 0, got %d", cfg.GetScanDepth())
	}
	if cfg.SymlinkPolicy != scanner.SymlinkPolicyFollow {
		t.Errorf("expected follow symlink policy, got %q", cfg.SymlinkPolicy)
	}
	if cfg.Watch == nil {
		t.Fatal("expected default watch config")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default configuration should validate, got %v", err)
	}
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	depth := -1
	cfg := &Configuration{
		SourceDir: "third_party/src",
		Prefixes:  []string{"lua_"},
		Marker:    "static_lua_",
		ScanDepth: &depth,
		Workers:   4,
	}
	cfg.ApplyDefaults()

	if cfg.SourceDir != "third_party/src" || cfg.Marker != "static_lua_" || cfg.Workers != 4 {
		t.Errorf("explicit values overwritten: %+v", cfg)
	}
	if diff := cmp.Diff([]string{"lua_"}, cfg.Prefixes); diff != "" {
		t.Errorf("prefixes mismatch (-want +got):\n%s", diff)
	}
	if len(cfg.Extensions) != 4 {
		t.Errorf("expected default extensions, got %v", cfg.Extensions)
	}
	if cfg.GetScanDepth() != -1 {
		t.Errorf("expected scan depth -1, got %d", cfg.GetScanDepth())
	}
}

func TestScanOptions(t *testing.T) {
	depth := 2
	cfg := Default()
	cfg.ScanDepth = &depth
	cfg.SymlinkPolicy = scanner.SymlinkPolicySkip

	opts := cfg.ScanOptions()
	want := scanner.ScanOptions{
		Patterns:      cfg.Extensions,
		MaxDepth:      2,
		SymlinkPolicy: scanner.SymlinkPolicySkip,
	}
	if diff := cmp.Diff(want, opts); diff != "" {
		t.Errorf("ScanOptions mismatch (-want +got):\n%s", diff)
	}
}

func TestNewRewriter(t *testing.T) {
	cfg := Default()
	cfg.Prefixes = []string{"lua_"}
	cfg.Marker = "static_"

	rw, err := cfg.NewRewriter()
	if err != nil {
		t.Fatalf("NewRewriter() error = %v", err)
	}
	if got := rw.Rewrite("lua_State *L;"); got != "static_lua_State *L;" {
		t.Errorf("Rewrite() = %q", got)
	}

	cfg.Marker = "bad marker"
	_, err = cfg.NewRewriter()
	var configErr *ConfigError
	if !errors.As(err, &configErr) || configErr.Type != ValidationError {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Configuration)
	}{
		{"empty source dir", func(c *Configuration) { c.SourceDir = "" }},
		{"no prefixes", func(c *Configuration) { c.Prefixes = nil }},
		{"prefix with dash", func(c *Configuration) { c.Prefixes = []string{"av-"} }},
		{"empty marker", func(c *Configuration) { c.Marker = "" }},
		{"marker with space", func(c *Configuration) { c.Marker = "ffmpeg static_" }},
		{"no extensions", func(c *Configuration) { c.Extensions = nil }},
		{"bad glob", func(c *Configuration) { c.Extensions = []string{"[.c"} }},
		{"negative workers", func(c *Configuration) { c.Workers = -2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			var configErr *ConfigError
			if !errors.As(err, &configErr) {
				t.Fatalf("expected *ConfigError, got %v", err)
			}
			if configErr.Type != ValidationError {
				t.Errorf("expected ValidationError, got %s", configErr.Type)
			}
		})
	}
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_JSON(t *testing.T) {
	path := writeConfig(t, "symprefix.json", `{
  "sourceDir": "vendor/ffmpeg",
  "prefixes": ["av_", "sws_"],
  "workers": 3
}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SourceDir != "vendor/ffmpeg" {
		t.Errorf("expected sourceDir vendor/ffmpeg, got %q", cfg.SourceDir)
	}
	if diff := cmp.Diff([]string{"av_", "sws_"}, cfg.Prefixes); diff != "" {
		t.Errorf("prefixes mismatch (-want +got):\n%s", diff)
	}
	if cfg.Workers != 3 {
		t.Errorf("expected 3 workers, got %d", cfg.Workers)
	}
	if cfg.Marker != rewriter.DefaultMarker {
		t.Errorf("expected default marker, got %q", cfg.Marker)
	}
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, "symprefix.yaml", `sourceDir: src
marker: lib_static_
extensions: ["*.c", "*.h"]
scanDepth: -1
watch:
  debounceMs: 250
  stableThresholdMs: 0
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Marker != "lib_static_" {
		t.Errorf("expected marker lib_static_, got %q", cfg.Marker)
	}
	if diff := cmp.Diff([]string{"*.c", "*.h"}, cfg.Extensions); diff != "" {
		t.Errorf("extensions mismatch (-want +got):\n%s", diff)
	}
	if cfg.GetScanDepth() != -1 {
		t.Errorf("expected scan depth -1, got %d", cfg.GetScanDepth())
	}
	if cfg.Watch.DebounceMs != 250 || cfg.Watch.StableThresholdMs != 0 {
		t.Errorf("unexpected watch config %+v", cfg.Watch)
	}
	if len(cfg.Prefixes) != len(rewriter.DefaultPrefixes()) {
		t.Errorf("expected default prefixes, got %v", cfg.Prefixes)
	}
}

func TestLoad_EmptyYAMLUsesDefaults(t *testing.T) {
	path := writeConfig(t, "symprefix.yml", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		content  string
		wantType ConfigErrorType
	}{
		{"malformed json", "c.json", `{"sourceDir": `, InvalidFormat},
		{"wrong json type", "c.json", `{"workers": "many"}`, InvalidFormat},
		{"unknown yaml key", "c.yaml", "sourceDirectory: src\n", InvalidFormat},
		{"invalid marker", "c.json", `{"marker": "ffmpeg-static"}`, ValidationError},
		{"invalid prefix", "c.yaml", "prefixes: [\"av.\"]\n", ValidationError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.file, tt.content)

			_, err := Load(path)
			var configErr *ConfigError
			if !errors.As(err, &configErr) {
				t.Fatalf("expected *ConfigError, got %v", err)
			}
			if configErr.Type != tt.wantType {
				t.Errorf("expected %s, got %s (%v)", tt.wantType, configErr.Type, err)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")

	_, err := Load(path)
	var configErr *ConfigError
	if !errors.As(err, &configErr) || configErr.Type != FileNotFound {
		t.Fatalf("expected FileNotFound, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Error("expected error to unwrap to os.ErrNotExist")
	}
	if configErr.Path != path {
		t.Errorf("expected path %s, got %s", path, configErr.Path)
	}
}

func TestRead_DefersValidation(t *testing.T) {
	path := writeConfig(t, "symprefix.json", `{"marker": "ffmpeg-static", "workers": 2}`)

	cfg, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if cfg.Marker != "ffmpeg-static" || cfg.Workers != 2 {
		t.Errorf("unexpected configuration %+v", cfg)
	}
	if len(cfg.Extensions) == 0 {
		t.Error("expected defaults to be applied")
	}

	cfg.Marker = "ffmpeg_static_"
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected overridden configuration to validate, got %v", err)
	}

	if _, err := Read(writeConfig(t, "broken.json", `{"marker": `)); err == nil {
		t.Error("expected Read to report malformed files")
	}
}
