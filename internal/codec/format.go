package codec

import (
	"fmt"
	"math"
	"strings"
)

// Format identifies a supported target encoding.
type Format int

const (
	FormatWebP Format = iota
	FormatPNG
	FormatJPEG
)

// DefaultFormat is used when no target format is requested.
const DefaultFormat = FormatWebP

// webpEffort is the CPU effort level passed to the webp encoder (0-6 scale).
// Encoding speed is traded for compression ratio.
const webpEffort = 6

type formatSpec struct {
	name      string
	extension string
}

// formatTable maps each format to its canonical name and file extension.
// The JPEG extension is always "jpg", never "jpeg".
var formatTable = map[Format]formatSpec{
	FormatWebP: {name: "webp", extension: "webp"},
	FormatPNG:  {name: "png", extension: "png"},
	FormatJPEG: {name: "jpg", extension: "jpg"},
}

// String returns the canonical format name.
func (f Format) String() string {
	spec, ok := formatTable[f]
	if !ok {
		return fmt.Sprintf("Format(%d)", int(f))
	}
	return spec.name
}

// Extension returns the file extension for the format, without a leading dot.
func (f Format) Extension() string {
	spec, ok := formatTable[f]
	if !ok {
		return ""
	}
	return spec.extension
}

// ParseFormat converts a user-supplied format name into a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "webp":
		return FormatWebP, nil
	case "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	default:
		return 0, fmt.Errorf("unsupported format: %q (expected webp, png or jpg)", s)
	}
}

// PNGCompressionLevel maps a 0-100 quality value onto the 0-9 zlib
// compression scale used by PNG encoders. PNG output is lossless, so quality
// acts as an effort/size trade-off: higher quality means less compression
// effort. The result is clamped to [0, 9].
func PNGCompressionLevel(quality int) int {
	level := int(math.Round(float64(100-quality) / 11.11))
	if level < 0 {
		level = 0
	}
	if level > 9 {
		level = 9
	}
	return level
}
