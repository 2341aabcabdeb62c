package optimizer

import (
	"image-optimizer-go/internal/codec"
)

// Options configures a single optimization run or batch.
type Options struct {
	// Quality is the 0-100 encoder quality. The codec decides how it is
	// interpreted per format; it is not clamped here.
	Quality int
	// Format is the target encoding.
	Format codec.Format
	// OutputDir is the destination directory. When empty, outputs are
	// written alongside their inputs. Created recursively when missing.
	OutputDir string
	// KeepOriginal prevents deletion of the source file after a successful
	// conversion to a different extension.
	KeepOriginal bool
	// PreserveEXIF copies EXIF tags onto JPEG outputs converted from JPEG
	// sources. Failures are logged, never failing the item.
	PreserveEXIF bool
	// Workers caps batch parallelism. Zero means one worker per CPU, with a
	// minimum of two.
	Workers int
	// OnResult, when set, is invoked once per finished item. It may be
	// called from multiple goroutines.
	OnResult func(Result)
}

// Result describes the outcome of optimizing a single image. Exactly one of
// the two shapes holds: Success with a non-empty OutputPath and a computed
// Reduction, or failure with Error populated.
type Result struct {
	InputPath     string  `json:"inputPath"`
	OutputPath    string  `json:"outputPath"`
	OriginalSize  int64   `json:"originalSize"`
	OptimizedSize int64   `json:"optimizedSize"`
	Reduction     float64 `json:"reduction"`
	Success       bool    `json:"success"`
	Error         string  `json:"error,omitempty"`
}

// failure returns a failed Result for the given input. Sizes stay zero on
// failure regardless of how far processing got.
func failure(inputPath string, err error) Result {
	return Result{
		InputPath: inputPath,
		Success:   false,
		Error:     err.Error(),
	}
}
