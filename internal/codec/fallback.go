//go:build !govips || !cgo

package codec

import (
	"bytes"
	"context"
	"fmt"
	"image/png"

	"github.com/disintegration/imaging"

	// Register webp decoding for image.Decode.
	_ "golang.org/x/image/webp"
)

// Startup is a no-op for the pure-Go codec.
func Startup() {}

// Shutdown is a no-op for the pure-Go codec.
func Shutdown() {}

func newCodec() Codec {
	return imagingCodec{}
}

// imagingCodec is the pure-Go encoder. It decodes png, jpeg and webp sources
// and encodes png and jpeg targets; webp targets need the govips build.
type imagingCodec struct{}

func (c imagingCodec) Encode(ctx context.Context, src []byte, format Format, quality int) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	img, err := imaging.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("decode source image: %w", err)
	}

	var buf bytes.Buffer
	switch format {
	case FormatJPEG:
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality(quality))); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
	case FormatPNG:
		level := stdlibPNGLevel(PNGCompressionLevel(quality))
		if err := imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(level)); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
	case FormatWebP:
		return nil, ErrWebPUnsupported
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	return buf.Bytes(), nil
}

// jpegQuality guards the stdlib encoder against out-of-range values, which it
// treats as its own default otherwise.
func jpegQuality(quality int) int {
	if quality < 1 {
		return 1
	}
	if quality > 100 {
		return 100
	}
	return quality
}

// stdlibPNGLevel buckets the 0-9 zlib scale onto the four levels the stdlib
// png encoder exposes.
func stdlibPNGLevel(level int) png.CompressionLevel {
	switch {
	case level <= 0:
		return png.NoCompression
	case level <= 3:
		return png.BestSpeed
	case level <= 6:
		return png.DefaultCompression
	default:
		return png.BestCompression
	}
}
