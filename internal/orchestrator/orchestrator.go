// Package orchestrator runs the symbol rewrite over a source tree, once as a
// batch and optionally again for every file that changes afterwards.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"symprefix/internal/config"
	"symprefix/internal/output"
	"symprefix/internal/processor"
	"symprefix/internal/scanner"
	"symprefix/internal/watcher"
)

// Options configures an Orchestrator.
type Options struct {
	DryRun bool // Report changes without writing files
}

// Orchestrator wires configuration, scanner, processor and output together.
type Orchestrator struct {
	config *config.Configuration
	out    *output.Output
	logger *zap.Logger
	driver *processor.Driver
	dryRun bool

	mu sync.Mutex // serializes user-facing output from workers
}

// New creates an Orchestrator. A nil out prints to the terminal and a nil
// logger discards log output.
func New(cfg *config.Configuration, out *output.Output, logger *zap.Logger, opts Options) (*Orchestrator, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	rw, err := cfg.NewRewriter()
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = output.New(output.DefaultConfig())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		config: cfg,
		out:    out,
		logger: logger,
		driver: processor.NewDriver(rw, processor.Options{DryRun: opts.DryRun}),
		dryRun: opts.DryRun,
	}, nil
}

func (o *Orchestrator) workers() int {
	if o.config.Workers < 1 {
		return 1
	}
	return o.config.Workers
}

// Run rewrites every matching file under the source directory. Files are
// processed by up to config.Workers goroutines. The first failure cancels
// the remaining work and is returned together with a summary of the files
// modified before it; files already written stay written.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	o.out.Banner(o.config.SourceDir, o.dryRun)

	files, err := scanner.ScanWithOptions(o.config.SourceDir, o.config.ScanOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", o.config.SourceDir, err)
	}
	o.logger.Debug("scan complete",
		zap.String("dir", o.config.SourceDir),
		zap.Int("files", len(files)),
		zap.Int("workers", o.workers()),
	)

	summary := newSummary(len(files), o.dryRun)
	done := 0

	o.out.StartProgress(len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers())
	for _, file := range files {
		if gctx.Err() != nil {
			break
		}
		file := file
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := o.driver.Process(file.Path)
			if err != nil {
				o.logger.Debug("file failed", zap.String("path", file.Path), zap.Error(err))
				return err
			}

			o.mu.Lock()
			defer o.mu.Unlock()
			summary.add(res)
			if res.Modified {
				o.out.Modified(res.Path, o.dryRun)
				o.logger.Debug("file modified", zap.String("path", res.Path), zap.Int("renamed", res.Renamed))
			}
			done++
			o.out.UpdateProgress(done, "")
			return nil
		})
	}
	err = g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	o.out.EndProgress()
	summary.finish(start)

	if err != nil {
		return summary, err
	}

	o.out.Complete(summary.ModifiedCount(), o.dryRun)
	o.out.PrefixBreakdown(summary.ByPrefix)
	o.out.Verbose("%s", summary.PrintSummary())
	o.logger.Info("run complete",
		zap.Int("files", summary.TotalFiles),
		zap.Int("modified", summary.ModifiedCount()),
		zap.Int("renamed", summary.Renamed),
		zap.Duration("duration", summary.Duration),
		zap.Bool("dry_run", summary.DryRun),
	)
	return summary, nil
}

// ProcessFile rewrites one file and reports whether it changed. It is the
// watcher's file handler.
func (o *Orchestrator) ProcessFile(path string) (bool, error) {
	res, err := o.driver.Process(path)
	if err != nil {
		return false, err
	}
	if res.Modified {
		o.mu.Lock()
		o.out.Modified(res.Path, o.dryRun)
		o.mu.Unlock()
		o.logger.Debug("file modified", zap.String("path", res.Path), zap.Int("renamed", res.Renamed))
	}
	return res.Modified, nil
}

// Watch re-processes matching files under the source directory as they are
// created or written, until ctx is cancelled. Directories are those the scan
// depth reaches when Watch starts.
func (o *Orchestrator) Watch(ctx context.Context) (*watcher.WatchSummary, error) {
	dirs, err := watchDirs(o.config.SourceDir, o.config.GetScanDepth())
	if err != nil {
		return nil, fmt.Errorf("failed to list directories under %s: %w", o.config.SourceDir, err)
	}

	w := watcher.New(o.config.Watch, o.config.Extensions, o.ProcessFile, o.logger)
	if err := w.Start(dirs); err != nil {
		return nil, fmt.Errorf("failed to watch %s: %w", o.config.SourceDir, err)
	}
	o.out.Info("Watching %s for changes...", o.config.SourceDir)
	o.logger.Info("watch started", zap.Strings("dirs", dirs))

	<-ctx.Done()

	summary := w.Stop()
	o.logger.Info("watch stopped",
		zap.Int("modified", summary.FilesModified),
		zap.Int("unchanged", summary.FilesUnchanged),
		zap.Int("ignored", summary.FilesIgnored),
		zap.Int("errors", summary.Errors),
		zap.Duration("duration", summary.Duration),
	)
	return summary, nil
}

// watchDirs lists root and the non-hidden directories below it down to
// maxDepth (0 = root only, -1 = unlimited).
func watchDirs(root string, maxDepth int) ([]string, error) {
	dirs := []string{root}
	if maxDepth == 0 {
		return dirs, nil
	}

	var walk func(dir string, depth int) error
	walk = func(dir string, depth int) error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			sub := filepath.Join(dir, entry.Name())
			dirs = append(dirs, sub)
			if maxDepth < 0 || depth+1 < maxDepth {
				if err := walk(sub, depth+1); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := walk(root, 0); err != nil {
		return nil, err
	}
	return dirs, nil
}
