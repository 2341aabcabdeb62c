package web

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"image-optimizer-go/internal/codec"
	"image-optimizer-go/internal/logger"
	"image-optimizer-go/internal/optimizer"
	"image-optimizer-go/internal/stats"
)

// multipartMemoryLimit is the in-memory threshold for multipart parsing;
// larger parts spill to disk.
const multipartMemoryLimit = 32 << 20

// handleOptimize receives uploaded images, converts them and answers with a
// ZIP archive of the successful outputs. Failed items are omitted from the
// archive; their count is exposed in the X-Optimize-Failed header.
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout())
	defer cancel()

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxRequestBytes())
	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		s.writeError(w, http.StatusBadRequest, errorResponse{
			Error:   "invalid multipart request",
			Message: err.Error(),
		})
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		s.writeError(w, http.StatusBadRequest, errorResponse{
			Error: "no images uploaded",
		})
		return
	}
	if len(files) > s.cfg.Server.MaxFiles {
		s.writeError(w, http.StatusBadRequest, errorResponse{
			Error: fmt.Sprintf("too many files: %d uploaded, limit is %d", len(files), s.cfg.Server.MaxFiles),
		})
		return
	}

	opts, err := s.parseOptions(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errorResponse{
			Error: err.Error(),
		})
		return
	}

	// Every request owns its own temp namespace so concurrent requests never
	// collide on file paths.
	token := uuid.NewString()
	reqLog := logger.WithRequest(s.log, token)

	requestDir, err := os.MkdirTemp(s.cfg.Server.TempDirectory, "optimize-"+token+"-")
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, errorResponse{
			Error:   "failed to allocate temporary storage",
			Message: err.Error(),
		})
		return
	}
	defer func() {
		// Cleanup is best-effort and never replaces the primary response.
		if err := os.RemoveAll(requestDir); err != nil {
			reqLog.Warnf("temp cleanup failed: %v", err)
		}
	}()

	uploadDir := filepath.Join(requestDir, "uploads")
	outputDir := filepath.Join(requestDir, "outputs")
	for _, dir := range []string{uploadDir, outputDir} {
		if err := os.Mkdir(dir, 0755); err != nil {
			s.writeError(w, http.StatusInternalServerError, errorResponse{
				Error:   "failed to allocate temporary storage",
				Message: err.Error(),
			})
			return
		}
	}

	inputs, saveFailures := s.saveUploads(files, uploadDir, reqLog)

	opts.OutputDir = outputDir

	batchStats := stats.NewStatistics()
	s.statsMutex.Lock()
	s.lastStats = batchStats
	s.statsMutex.Unlock()

	opts.OnResult = func(res optimizer.Result) {
		batchStats.RecordResult(res)
		s.broadcastWSMessage("item_completed", res)
	}

	atomic.AddInt64(&s.activeBatches, 1)
	defer atomic.AddInt64(&s.activeBatches, -1)

	s.broadcastWSMessage("batch_started", map[string]interface{}{
		"request": token,
		"items":   len(files),
		"format":  opts.Format.String(),
		"quality": opts.Quality,
	})

	results := s.optimizer.OptimizeBatch(ctx, inputs, opts)
	batchStats.Finalize()

	details := saveFailures
	var successPaths []string
	for _, res := range results {
		if res.Success {
			successPaths = append(successPaths, res.OutputPath)
			continue
		}
		details = append(details, itemErrorDetail{
			File:  filepath.Base(res.InputPath),
			Error: res.Error,
		})
	}

	s.broadcastWSMessage("batch_completed", map[string]interface{}{
		"request":   token,
		"succeeded": len(successPaths),
		"failed":    len(details),
	})

	if len(successPaths) == 0 {
		s.writeError(w, http.StatusBadRequest, errorResponse{
			Error:   "no images could be optimized",
			Details: details,
		})
		return
	}

	filename := fmt.Sprintf("imagens-otimizadas-%d.zip", time.Now().UnixMilli())
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if len(details) > 0 {
		w.Header().Set("X-Optimize-Failed", strconv.Itoa(len(details)))
	}

	if s.cfg.Server.BufferedResponses {
		data, err := s.archiver.Build(successPaths)
		if err != nil {
			reqLog.Errorf("archive build failed: %v", err)
			s.writeArchiveError(w, err)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(data); err != nil {
			reqLog.Errorf("archive delivery failed: %v", err)
		}
		return
	}

	written, err := s.archiver.Stream(w, successPaths)
	if err != nil {
		reqLog.Errorf("archive streaming failed after %d bytes: %v", written, err)
		if written == 0 {
			// Nothing reached the wire yet, so a structured error can still
			// be sent.
			s.writeArchiveError(w, err)
		}
		return
	}

	reqLog.WithFields(logrus.Fields{
		"items":     len(successPaths),
		"failed":    len(details),
		"zip_bytes": written,
	}).Info("batch delivered")
}

// writeArchiveError resets the archive headers and reports a 500.
func (s *Server) writeArchiveError(w http.ResponseWriter, err error) {
	w.Header().Del("Content-Disposition")
	w.Header().Del("Content-Length")
	w.Header().Del("X-Optimize-Failed")
	s.writeError(w, http.StatusInternalServerError, errorResponse{
		Error:   "failed to create archive",
		Message: err.Error(),
	})
}

// parseOptions reads quality, format and keepOriginal form fields, applying
// configured defaults for absent values.
func (s *Server) parseOptions(r *http.Request) (optimizer.Options, error) {
	opts := optimizer.Options{
		Quality:      s.cfg.Defaults.Quality,
		Format:       s.cfg.DefaultFormat(),
		KeepOriginal: s.cfg.Defaults.KeepOriginal,
		PreserveEXIF: s.cfg.Metadata.PreserveEXIF,
		Workers:      s.cfg.Performance.WorkerThreads,
	}

	if v := r.FormValue("quality"); v != "" {
		quality, err := strconv.Atoi(v)
		if err != nil {
			return opts, fmt.Errorf("invalid quality: %q", v)
		}
		if quality < 0 || quality > 100 {
			return opts, fmt.Errorf("quality must be between 0 and 100, got %d", quality)
		}
		opts.Quality = quality
	}

	if v := r.FormValue("format"); v != "" {
		format, err := codec.ParseFormat(v)
		if err != nil {
			return opts, err
		}
		opts.Format = format
	}

	if v := r.FormValue("keepOriginal"); v != "" {
		opts.KeepOriginal = v == "true"
	}

	return opts, nil
}

// saveUploads writes each uploaded part into uploadDir under its base
// filename. Parts that cannot be saved become error details instead of
// aborting the request.
func (s *Server) saveUploads(files []*multipart.FileHeader, uploadDir string, reqLog *logrus.Entry) ([]string, []itemErrorDetail) {
	var inputs []string
	var failures []itemErrorDetail

	maxSize := s.cfg.MaxFileSizeBytes()
	for i, fh := range files {
		name := filepath.Base(fh.Filename)
		if name == "" || name == "." || name == string(filepath.Separator) {
			name = fmt.Sprintf("upload-%d", i)
		}

		if fh.Size > maxSize {
			failures = append(failures, itemErrorDetail{
				File:  name,
				Error: fmt.Sprintf("file exceeds the %d MB limit", s.cfg.Server.MaxFileSizeMB),
			})
			continue
		}

		dst := filepath.Join(uploadDir, name)
		if err := saveUpload(fh, dst); err != nil {
			reqLog.Warnf("failed to save upload %s: %v", name, err)
			failures = append(failures, itemErrorDetail{
				File:  name,
				Error: fmt.Sprintf("failed to save upload: %v", err),
			})
			continue
		}
		inputs = append(inputs, dst)
	}

	return inputs, failures
}

func saveUpload(fh *multipart.FileHeader, dst string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return err
	}
	return out.Sync()
}
