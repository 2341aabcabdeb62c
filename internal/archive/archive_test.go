package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func writeFile(t *testing.T, path string, content []byte) {
	t.Helper()
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func readArchive(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	entries := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open entry %s: %v", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read entry %s: %v", f.Name, err)
		}
		entries[f.Name] = content
	}
	return entries
}

func TestStreamRoundTrip(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.webp")
	b := filepath.Join(dir, "sub-b.webp")
	writeFile(t, a, bytes.Repeat([]byte("alpha "), 100))
	writeFile(t, b, bytes.Repeat([]byte("bravo "), 200))

	var buf bytes.Buffer
	written, err := NewBuilder(testLogger()).Stream(&buf, []string{a, b})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if written != int64(buf.Len()) {
		t.Errorf("written = %d, buffer has %d", written, buf.Len())
	}

	entries := readArchive(t, buf.Bytes())
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	// Entries are named by base filename and decompress byte-identical to
	// the source files.
	for _, path := range []string{a, b} {
		want, _ := os.ReadFile(path)
		got, ok := entries[filepath.Base(path)]
		if !ok {
			t.Fatalf("missing entry %s", filepath.Base(path))
		}
		if !bytes.Equal(got, want) {
			t.Errorf("entry %s differs from source file", filepath.Base(path))
		}
	}
}

func TestStreamSkipsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.webp")
	writeFile(t, a, []byte("content"))
	missing := filepath.Join(dir, "vanished.webp")

	var buf bytes.Buffer
	if _, err := NewBuilder(testLogger()).Stream(&buf, []string{missing, a}); err != nil {
		t.Fatalf("Stream should skip missing entries, got: %v", err)
	}

	entries := readArchive(t, buf.Bytes())
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if _, ok := entries["a.webp"]; !ok {
		t.Error("surviving file missing from archive")
	}
}

func TestBuildMatchesStream(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.webp")
	writeFile(t, a, bytes.Repeat([]byte("payload"), 50))

	builder := NewBuilder(testLogger())
	data, err := builder.Build([]string{a})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	entries := readArchive(t, data)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
}

func TestStreamEmptyList(t *testing.T) {
	var buf bytes.Buffer
	if _, err := NewBuilder(testLogger()).Stream(&buf, nil); err != nil {
		t.Fatalf("Stream with no entries: %v", err)
	}
	// Still a valid, empty archive.
	if _, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len())); err != nil {
		t.Errorf("empty archive not readable: %v", err)
	}
}

// failingWriter errors after a fixed number of bytes.
type failingWriter struct {
	remaining int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	if len(p) > w.remaining {
		n := w.remaining
		w.remaining = 0
		return n, errors.New("disk full")
	}
	w.remaining -= len(p)
	return len(p), nil
}

func TestStreamWriteFailureIsTerminal(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.webp")
	writeFile(t, a, bytes.Repeat([]byte("data"), 4096))

	_, err := NewBuilder(testLogger()).Stream(&failingWriter{remaining: 64}, []string{a})
	if err == nil {
		t.Fatal("expected terminal error from write failure")
	}
}
