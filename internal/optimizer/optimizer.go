package optimizer

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"image-optimizer-go/internal/codec"
	"image-optimizer-go/internal/logger"
	"image-optimizer-go/internal/metadata"
)

// Optimizer converts images into a target format and reports per-item
// size results. Per-item failures never escape as errors; they are captured
// into the returned Result.
type Optimizer struct {
	codec  codec.Codec
	meta   *metadata.Preserver
	logger *logrus.Logger
}

// New returns a new Optimizer. meta may be nil to disable EXIF preservation.
func New(c codec.Codec, meta *metadata.Preserver, log *logrus.Logger) *Optimizer {
	return &Optimizer{
		codec:  c,
		meta:   meta,
		logger: log,
	}
}

// Optimize converts a single image according to opts. All failure modes are
// captured into the Result; the method never panics past its boundary.
func (o *Optimizer) Optimize(ctx context.Context, inputPath string, opts Options) Result {
	info, err := os.Stat(inputPath)
	if err != nil {
		return failure(inputPath, fmt.Errorf("cannot access input: %w", err))
	}
	originalSize := info.Size()

	outputPath, err := o.targetPath(inputPath, opts)
	if err != nil {
		return failure(inputPath, err)
	}

	src, err := os.ReadFile(inputPath)
	if err != nil {
		return failure(inputPath, fmt.Errorf("read input: %w", err))
	}

	encoded, err := o.codec.Encode(ctx, src, opts.Format, opts.Quality)
	if err != nil {
		return failure(inputPath, err)
	}

	if err := writeAtomic(outputPath, encoded); err != nil {
		return failure(inputPath, err)
	}

	o.preserveEXIF(inputPath, outputPath, opts)

	outInfo, err := os.Stat(outputPath)
	if err != nil {
		return failure(inputPath, fmt.Errorf("stat output: %w", err))
	}
	optimizedSize := outInfo.Size()

	o.deleteOriginal(inputPath, opts)

	return Result{
		InputPath:     inputPath,
		OutputPath:    outputPath,
		OriginalSize:  originalSize,
		OptimizedSize: optimizedSize,
		Reduction:     reduction(originalSize, optimizedSize),
		Success:       true,
	}
}

// OptimizeBatch runs Optimize over every input using a worker pool. It always
// returns exactly one Result per input, in input order, regardless of
// individual failures.
func (o *Optimizer) OptimizeBatch(ctx context.Context, inputs []string, opts Options) []Result {
	results := make([]Result, len(inputs))
	if len(inputs) == 0 {
		return results
	}

	numWorkers := opts.Workers
	if numWorkers <= 0 {
		numWorkers = max(runtime.NumCPU(), 2)
	}
	if numWorkers > len(inputs) {
		numWorkers = len(inputs)
	}

	type job struct {
		index int
		path  string
	}
	type indexed struct {
		index int
		res   Result
	}

	jobs := make(chan job, len(inputs))
	out := make(chan indexed, len(inputs))

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				r := o.Optimize(ctx, j.path, opts)
				if opts.OnResult != nil {
					opts.OnResult(r)
				}
				out <- indexed{index: j.index, res: r}
			}
		}()
	}

	for i, path := range inputs {
		jobs <- job{index: i, path: path}
	}
	close(jobs)

	wg.Wait()
	close(out)

	for r := range out {
		results[r.index] = r.res
	}

	// Items skipped by cancellation still get a result, keeping the
	// one-result-per-input contract. The hook fires for them too so
	// consumers see one event per result.
	for i := range results {
		if results[i].InputPath == "" {
			results[i] = failure(inputs[i], fmt.Errorf("canceled before processing"))
			if opts.OnResult != nil {
				opts.OnResult(results[i])
			}
		}
	}

	return results
}

// targetPath computes <outputDir or sourceDir>/<base>.<ext> and creates the
// output directory when needed.
func (o *Optimizer) targetPath(inputPath string, opts Options) (string, error) {
	dir := opts.OutputDir
	if dir == "" {
		dir = filepath.Dir(inputPath)
	} else if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	base := filepath.Base(inputPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, base+"."+opts.Format.Extension()), nil
}

// preserveEXIF copies tags from JPEG sources onto JPEG outputs. Errors are
// warnings only.
func (o *Optimizer) preserveEXIF(inputPath, outputPath string, opts Options) {
	if !opts.PreserveEXIF || o.meta == nil || opts.Format != codec.FormatJPEG {
		return
	}
	ext := strings.ToLower(filepath.Ext(inputPath))
	if ext != ".jpg" && ext != ".jpeg" {
		return
	}
	if !o.meta.HasEXIF(inputPath) {
		return
	}
	if err := o.meta.Copy(inputPath, outputPath); err != nil {
		logger.WithFile(o.logger, inputPath).Warnf("EXIF not preserved: %v", err)
	}
}

// deleteOriginal removes the source file after a successful conversion unless
// the caller asked to keep it. When the source and target extensions match
// the output may occupy the same path, so deletion is always skipped.
func (o *Optimizer) deleteOriginal(inputPath string, opts Options) {
	if opts.KeepOriginal {
		return
	}
	sourceExt := strings.ToLower(filepath.Ext(inputPath))
	if sourceExt == "."+opts.Format.Extension() {
		return
	}
	if err := os.Remove(inputPath); err != nil {
		logger.WithFile(o.logger, inputPath).Warnf("failed to delete original: %v", err)
	}
}

// writeAtomic writes data to path via a unique temp file in the same
// directory followed by a rename, so concurrent items never share a partial
// file and no partial output is left behind on failure.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".opt-*")
	if err != nil {
		return fmt.Errorf("create temp output: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close output: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod output: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename output: %w", err)
	}
	return nil
}

// reduction computes the percentage size decrease, rounded to two decimal
// places. May be negative when the output grew.
func reduction(originalSize, optimizedSize int64) float64 {
	if originalSize <= 0 {
		return 0
	}
	pct := float64(originalSize-optimizedSize) / float64(originalSize) * 100
	return math.Round(pct*100) / 100
}
