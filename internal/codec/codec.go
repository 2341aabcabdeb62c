package codec

import (
	"context"
	"errors"
)

// ErrWebPUnsupported is returned by the pure-Go codec when a webp target is
// requested. Building with the govips tag provides webp encoding via libvips.
var ErrWebPUnsupported = errors.New("webp encoding requires the govips build")

// Codec re-encodes raw image bytes into a target format at a given quality.
// Implementations decode and encode whole images in memory.
type Codec interface {
	Encode(ctx context.Context, src []byte, format Format, quality int) ([]byte, error)
}

// New returns the codec for the current build: libvips-backed when compiled
// with the govips tag, a pure-Go encoder otherwise.
func New() Codec {
	return newCodec()
}
