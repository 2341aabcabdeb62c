package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/flate"
	"github.com/sirupsen/logrus"
)

// Builder packages files into a deflate-compressed ZIP archive. Entry names
// are base filenames; name collisions are not de-duplicated.
type Builder struct {
	logger *logrus.Logger
}

// NewBuilder returns a new Builder.
func NewBuilder(logger *logrus.Logger) *Builder {
	return &Builder{logger: logger}
}

// Stream writes the archive to w and returns the number of bytes written.
// It returns only after the full archive, including the central directory
// trailer, has been flushed to w. Paths that no longer exist are skipped with
// a warning; an underlying write failure is terminal.
func (b *Builder) Stream(w io.Writer, paths []string) (int64, error) {
	cw := &countingWriter{w: w}

	zw := zip.NewWriter(cw)
	// Swap the stdlib deflater for klauspost's at maximum compression.
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			b.logger.WithField("file", path).Warnf("skipping missing archive entry: %v", err)
			continue
		}

		header, err := zip.FileInfoHeader(info)
		if err != nil {
			zw.Close()
			return cw.written, fmt.Errorf("build entry header for %s: %w", path, err)
		}
		header.Name = filepath.Base(path)
		header.Method = zip.Deflate

		entry, err := zw.CreateHeader(header)
		if err != nil {
			zw.Close()
			return cw.written, fmt.Errorf("create archive entry %s: %w", header.Name, err)
		}

		f, err := os.Open(path)
		if err != nil {
			zw.Close()
			return cw.written, fmt.Errorf("open %s: %w", path, err)
		}
		_, err = io.Copy(entry, f)
		f.Close()
		if err != nil {
			zw.Close()
			return cw.written, fmt.Errorf("write archive entry %s: %w", header.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return cw.written, fmt.Errorf("finalize archive: %w", err)
	}
	return cw.written, nil
}

// Build assembles the archive fully in memory, for environments that cannot
// stream a response body incrementally.
func (b *Builder) Build(paths []string) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := b.Stream(&buf, paths); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type countingWriter struct {
	w       io.Writer
	written int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.written += int64(n)
	return n, err
}
