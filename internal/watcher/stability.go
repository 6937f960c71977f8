package watcher

import (
	"context"
	"errors"
	"os"
	"time"
)

// ErrFileNotFound is returned when the file disappears while waiting.
var ErrFileNotFound = errors.New("file not found")

// ErrFileUnstable is returned when the file does not stabilize within the timeout.
var ErrFileUnstable = errors.New("file did not stabilize within timeout")

// StabilityChecker waits for a file's size to stop changing, so that a
// file still being saved is not read half-written.
type StabilityChecker struct {
	threshold time.Duration // Time the file size must remain unchanged
	timeout   time.Duration // Maximum time to wait for stability
	interval  time.Duration // How often to check file size
}

// NewStabilityChecker creates a StabilityChecker with a 30 second timeout,
// polling every threshold/4 but no more often than every 20ms.
func NewStabilityChecker(threshold time.Duration) *StabilityChecker {
	interval := threshold / 4
	if interval < 20*time.Millisecond {
		interval = 20 * time.Millisecond
	}
	return newStabilityChecker(threshold, 30*time.Second, interval)
}

func newStabilityChecker(threshold, timeout, interval time.Duration) *StabilityChecker {
	return &StabilityChecker{
		threshold: threshold,
		timeout:   timeout,
		interval:  interval,
	}
}

// WaitForStable blocks until the size of path has not changed for the
// threshold duration, the timeout expires, or ctx is cancelled.
func (s *StabilityChecker) WaitForStable(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	lastSize, err := fileSize(path)
	if err != nil {
		return err
	}
	lastChange := time.Now()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrFileUnstable
			}
			return ctx.Err()
		case <-ticker.C:
			size, err := fileSize(path)
			if err != nil {
				return err
			}
			if size != lastSize {
				lastSize = size
				lastChange = time.Now()
			} else if time.Since(lastChange) >= s.threshold {
				return nil
			}
		}
	}
}

// Threshold returns the configured stability threshold.
func (s *StabilityChecker) Threshold() time.Duration {
	return s.threshold
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrFileNotFound
		}
		return 0, err
	}
	return info.Size(), nil
}
