package orchestrator

import (
	"fmt"
	"sort"
	"time"

	"symprefix/internal/processor"
)

// Summary contains statistics from a prefixing run.
type Summary struct {
	TotalFiles int            // Files matched by the scan
	Modified   []string       // Paths whose content changed, sorted
	Renamed    int            // Symbols renamed across all files
	ByPrefix   map[string]int // Renamed symbols per prefix
	Duration   time.Duration  // Total processing time
	DryRun     bool           // Nothing was written
}

func newSummary(totalFiles int, dryRun bool) *Summary {
	return &Summary{
		TotalFiles: totalFiles,
		Modified:   make([]string, 0),
		ByPrefix:   make(map[string]int),
		DryRun:     dryRun,
	}
}

// add folds one file result into the summary. Callers serialize access.
func (s *Summary) add(res *processor.Result) {
	if !res.Modified {
		return
	}
	s.Modified = append(s.Modified, res.Path)
	s.Renamed += res.Renamed
	for prefix, n := range res.ByPrefix {
		s.ByPrefix[prefix] += n
	}
}

// finish sorts the modified paths and records the elapsed time.
func (s *Summary) finish(start time.Time) {
	sort.Strings(s.Modified)
	s.Duration = time.Since(start)
}

// ModifiedCount returns the number of files whose content changed.
func (s *Summary) ModifiedCount() int {
	return len(s.Modified)
}

// PrintSummary returns the one-line run statistics shown in verbose mode.
func (s *Summary) PrintSummary() string {
	verb := "modified"
	if s.DryRun {
		verb = "would be modified"
	}
	return fmt.Sprintf("Scanned %d files: %d %s, %d symbols renamed in %s",
		s.TotalFiles, s.ModifiedCount(), verb, s.Renamed, s.Duration.Round(time.Millisecond))
}
