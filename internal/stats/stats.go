package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"image-optimizer-go/internal/optimizer"
)

// Statistics aggregates the outcome of one optimization batch.
type Statistics struct {
	ItemsProcessed int64
	ItemsSucceeded int64
	ItemsFailed    int64
	BytesOriginal  int64
	BytesOptimized int64

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	mutex    sync.RWMutex
	failures []ItemError
}

// ItemError records one failed item.
type ItemError struct {
	FilePath  string    `json:"file"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// NewStatistics returns a new Statistics instance with the clock started.
func NewStatistics() *Statistics {
	return &Statistics{
		StartTime: time.Now(),
		failures:  make([]ItemError, 0),
	}
}

// RecordResult folds one per-item result into the statistics. Safe for
// concurrent use from batch workers.
func (s *Statistics) RecordResult(r optimizer.Result) {
	atomic.AddInt64(&s.ItemsProcessed, 1)
	if r.Success {
		atomic.AddInt64(&s.ItemsSucceeded, 1)
		atomic.AddInt64(&s.BytesOriginal, r.OriginalSize)
		atomic.AddInt64(&s.BytesOptimized, r.OptimizedSize)
		return
	}

	atomic.AddInt64(&s.ItemsFailed, 1)
	s.mutex.Lock()
	s.failures = append(s.failures, ItemError{
		FilePath:  r.InputPath,
		Error:     r.Error,
		Timestamp: time.Now(),
	})
	s.mutex.Unlock()
}

// Finalize stops the clock and freezes the duration.
func (s *Statistics) Finalize() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)
}

// BytesSaved returns the total byte reduction across successful items.
func (s *Statistics) BytesSaved() int64 {
	return atomic.LoadInt64(&s.BytesOriginal) - atomic.LoadInt64(&s.BytesOptimized)
}

// OverallReduction returns the aggregate size reduction percentage across all
// successful items.
func (s *Statistics) OverallReduction() float64 {
	original := atomic.LoadInt64(&s.BytesOriginal)
	if original <= 0 {
		return 0
	}
	return float64(s.BytesSaved()) / float64(original) * 100
}

// Failures returns a copy of the recorded per-item errors.
func (s *Statistics) Failures() []ItemError {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]ItemError, len(s.failures))
	copy(out, s.failures)
	return out
}

// GetSummary returns a formatted summary of the batch.
func (s *Statistics) GetSummary() string {
	s.mutex.RLock()
	duration := s.Duration
	s.mutex.RUnlock()

	return fmt.Sprintf(`Optimization Summary:

Items:
		Processed: %d
		Succeeded: %d
		Failed: %d

Size:
		Original: %s
		Optimized: %s
		Saved: %s (%.2f%%)

Performance:
		Duration: %v`,
		atomic.LoadInt64(&s.ItemsProcessed),
		atomic.LoadInt64(&s.ItemsSucceeded),
		atomic.LoadInt64(&s.ItemsFailed),
		FormatBytes(atomic.LoadInt64(&s.BytesOriginal)),
		FormatBytes(atomic.LoadInt64(&s.BytesOptimized)),
		FormatBytes(s.BytesSaved()),
		s.OverallReduction(),
		duration)
}

// GetErrorSummary returns a summary of failed items, capped at ten lines.
func (s *Statistics) GetErrorSummary() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.failures) == 0 {
		return "No errors occurred during processing"
	}

	result := fmt.Sprintf("Errors (%d total):\n", len(s.failures))
	for i, f := range s.failures {
		if i >= 10 {
			result += fmt.Sprintf("  ... and %d more errors\n", len(s.failures)-10)
			break
		}
		result += fmt.Sprintf("  [%s] %s - %s\n",
			f.Timestamp.Format("15:04:05"),
			f.FilePath,
			f.Error)
	}
	return result
}

// FormatBytes returns a human-readable string for a byte count.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
