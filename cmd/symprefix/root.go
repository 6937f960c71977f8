package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"symprefix/internal/config"
	"symprefix/internal/orchestrator"
	"symprefix/internal/output"
)

// newLogger builds the process logger. Tests replace it.
var newLogger = func(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

type options struct {
	configPath string
	sourceDir  string
	marker     string
	prefixes   []string
	extensions []string
	workers    int
	dryRun     bool
	watch      bool
	verbose    bool
}

// rootCommand builds the symprefix command writing user-facing lines to
// stdout and warnings to stderr.
func rootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "symprefix [flags]",
		Short: "Prefix statically linked library symbols in C/C++ sources",
		Long: `symprefix renames every symbol that starts with one of the configured
prefixes (by default the FFmpeg library prefixes such as av_, avcodec_ and
sws_) by prepending a marker (by default ffmpeg_static_), so that a statically
linked copy of the library cannot collide with a shared one at link time.
Running it again on already prefixed sources changes nothing.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPrefix(cmd, opts, stdout, stderr)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "JSON or YAML configuration file")
	flags.StringVar(&opts.sourceDir, "source-dir", config.DefaultSourceDir, "directory containing the sources to rewrite")
	flags.StringVar(&opts.marker, "marker", "", "marker prepended to matching symbols")
	flags.StringArrayVar(&opts.prefixes, "prefix", nil, "symbol prefix to rename (repeatable, replaces the default set)")
	flags.StringArrayVar(&opts.extensions, "ext", nil, "file name pattern to process (repeatable, replaces *.cc *.h *.c *.cpp)")
	flags.IntVarP(&opts.workers, "workers", "j", 1, "number of files processed in parallel")
	flags.BoolVarP(&opts.dryRun, "dry-run", "n", false, "report files that would change without writing them")
	flags.BoolVarP(&opts.watch, "watch", "w", false, "keep watching the source directory after the first pass")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging and the per-prefix breakdown")

	return cmd
}

func runPrefix(cmd *cobra.Command, opts *options, stdout, stderr io.Writer) error {
	logger, err := newLogger(opts.verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	logger.Debug("configuration loaded",
		zap.String("source_dir", cfg.SourceDir),
		zap.String("marker", cfg.Marker),
		zap.Strings("prefixes", cfg.Prefixes),
		zap.Strings("extensions", cfg.Extensions),
		zap.Int("workers", cfg.Workers),
	)

	out := output.New(output.Config{
		Verbose:   opts.verbose,
		Writer:    stdout,
		ErrWriter: stderr,
		IsTTY:     output.IsTerminal(stdout),
	})

	result := config.ValidateConfig(cfg)
	for _, w := range result.Warnings {
		out.Error("Warning: %s: %s", w.Field, w.Message)
	}
	if !result.Valid {
		msgs := make([]string, len(result.Errors))
		for i, e := range result.Errors {
			msgs[i] = e.Field + ": " + e.Message
		}
		return &config.ConfigError{Type: config.ValidationError, Message: strings.Join(msgs, "; ")}
	}

	o, err := orchestrator.New(cfg, out, logger, orchestrator.Options{DryRun: opts.dryRun})
	if err != nil {
		return err
	}

	if _, err := o.Run(cmd.Context()); err != nil {
		return err
	}
	if !opts.watch {
		return nil
	}
	_, err = o.Watch(cmd.Context())
	return err
}

// loadConfig layers the configuration file (or the defaults), the
// environment and the explicitly set flags, in that order. The result is
// validated by the caller.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Configuration, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Read(opts.configPath); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("source-dir") {
		cfg.SourceDir = opts.sourceDir
	}
	if flags.Changed("marker") {
		cfg.Marker = opts.marker
	}
	if flags.Changed("prefix") {
		cfg.Prefixes = opts.prefixes
	}
	if flags.Changed("ext") {
		cfg.Extensions = opts.extensions
	}
	if flags.Changed("workers") {
		cfg.Workers = opts.workers
	}
	return cfg, nil
}
