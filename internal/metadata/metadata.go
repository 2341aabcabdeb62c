package metadata

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/barasher/go-exiftool"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/sirupsen/logrus"
)

// Preserver copies EXIF metadata from source JPEGs onto freshly encoded
// outputs. Re-encoding drops every tag, so without this step optimized JPEGs
// lose camera data, orientation and timestamps.
type Preserver struct {
	logger *logrus.Logger
}

// NewPreserver returns a new Preserver.
func NewPreserver(logger *logrus.Logger) *Preserver {
	return &Preserver{logger: logger}
}

// HasEXIF reports whether the file contains a decodable EXIF block.
func (p *Preserver) HasEXIF(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	_, err = exif.Decode(f)
	return err == nil
}

// Copy transfers all tags from src to dst using the exiftool binary.
// The destination file is rewritten in place.
func (p *Preserver) Copy(src, dst string) error {
	cmd := exec.Command("exiftool", "-TagsFromFile", src, "-overwrite_original", dst)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("exiftool copy failed: %v, output: %s", err, output)
	}
	return nil
}

// Describe extracts all metadata fields from the file.
func Describe(path string) (map[string]interface{}, error) {
	et, err := exiftool.NewExiftool()
	if err != nil {
		return nil, fmt.Errorf("initialize exiftool: %w", err)
	}
	defer et.Close()

	files := et.ExtractMetadata(path)
	if len(files) == 0 {
		return nil, fmt.Errorf("no metadata extracted from %s", path)
	}
	if files[0].Err != nil {
		return nil, fmt.Errorf("extract metadata: %w", files[0].Err)
	}
	return files[0].Fields, nil
}
