package stats

import (
	"strings"
	"testing"

	"image-optimizer-go/internal/optimizer"
)

func TestRecordResult(t *testing.T) {
	s := NewStatistics()

	s.RecordResult(optimizer.Result{
		InputPath:     "a.png",
		OutputPath:    "a.webp",
		OriginalSize:  1000,
		OptimizedSize: 400,
		Reduction:     60,
		Success:       true,
	})
	s.RecordResult(optimizer.Result{
		InputPath: "b.png",
		Success:   false,
		Error:     "decode source image: unexpected EOF",
	})
	s.Finalize()

	if s.ItemsProcessed != 2 {
		t.Errorf("processed = %d, want 2", s.ItemsProcessed)
	}
	if s.ItemsSucceeded != 1 {
		t.Errorf("succeeded = %d, want 1", s.ItemsSucceeded)
	}
	if s.ItemsFailed != 1 {
		t.Errorf("failed = %d, want 1", s.ItemsFailed)
	}
	if s.BytesSaved() != 600 {
		t.Errorf("saved = %d, want 600", s.BytesSaved())
	}
	if got := s.OverallReduction(); got != 60 {
		t.Errorf("overall reduction = %v, want 60", got)
	}

	failures := s.Failures()
	if len(failures) != 1 {
		t.Fatalf("got %d failures, want 1", len(failures))
	}
	if failures[0].FilePath != "b.png" {
		t.Errorf("failure file = %q, want b.png", failures[0].FilePath)
	}
}

func TestOverallReductionEmpty(t *testing.T) {
	s := NewStatistics()
	if got := s.OverallReduction(); got != 0 {
		t.Errorf("reduction with no data = %v, want 0", got)
	}
}

func TestGetSummary(t *testing.T) {
	s := NewStatistics()
	s.RecordResult(optimizer.Result{OriginalSize: 2048, OptimizedSize: 1024, Success: true})
	s.Finalize()

	summary := s.GetSummary()
	for _, want := range []string{"Processed: 1", "Succeeded: 1", "Failed: 0", "2.0 KB", "1.0 KB"} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q:\n%s", want, summary)
		}
	}
}

func TestGetErrorSummaryEmpty(t *testing.T) {
	s := NewStatistics()
	if got := s.GetErrorSummary(); !strings.Contains(got, "No errors") {
		t.Errorf("unexpected error summary: %q", got)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{5 * 1024 * 1024 * 1024, "5.0 GB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.bytes); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}
