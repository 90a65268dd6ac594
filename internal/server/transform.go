package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ghibli-stylizer/internal/events"
	"ghibli-stylizer/internal/storage"
	"ghibli-stylizer/internal/stylize"
)

var allowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// handleTransform accepts a multipart upload in the "file" field, saves the
// original as <name>_original<ext>, runs the stylization chain and saves the
// result as <name>_transformed<ext>. The response carries the public paths
// of both files.
func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		s.logger.Warning("server", "No file part in request", map[string]interface{}{
			"error": err.Error(),
		})
		s.respondError(w, http.StatusBadRequest, "No file part")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		s.respondError(w, http.StatusBadRequest, "No selected file")
		return
	}

	filename := sanitizeFilename(header.Filename)
	rawExt := filepath.Ext(filename)
	ext := strings.ToLower(rawExt)
	if !allowedExtensions[ext] {
		s.logger.Warning("server", "File type not allowed", map[string]interface{}{
			"filename": header.Filename,
		})
		s.respondError(w, http.StatusBadRequest, "File type not allowed")
		return
	}
	base := strings.TrimSuffix(filename, rawExt)

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(file); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		s.respondError(w, http.StatusInternalServerError, "Failed to read upload")
		return
	}

	originalName := fmt.Sprintf("%s_original%s", base, rawExt)
	originalPath := filepath.Join(s.cfg.UploadDirectory, originalName)
	if err := os.WriteFile(originalPath, buf.Bytes(), 0o644); err != nil {
		s.logger.Error("server", err, map[string]interface{}{
			"path": originalPath,
		})
		s.respondError(w, http.StatusInternalServerError, "Failed to save upload")
		return
	}
	s.logger.Info("server", "Original image saved", map[string]interface{}{
		"path": originalPath,
	})

	src, _, err := image.Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		s.logger.Error("server", err, map[string]interface{}{
			"filename": filename,
		})
		s.respondError(w, http.StatusInternalServerError,
			fmt.Sprintf("An error occurred during transformation: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	s.hub.Publish(events.Event{Type: events.TypeTransformStarted, Name: filename})

	start := time.Now()
	result, err := s.chain.Stylize(ctx, src)
	elapsed := time.Since(start)

	if err != nil {
		s.hub.Publish(events.Event{
			Type:  events.TypeTransformFailed,
			Name:  filename,
			Error: err.Error(),
		})
		s.logger.Error("server", err, map[string]interface{}{
			"filename":    filename,
			"duration_ms": elapsed.Milliseconds(),
		})
		s.respondError(w, http.StatusInternalServerError,
			fmt.Sprintf("An error occurred during transformation: %v", err))
		return
	}

	transformedName := fmt.Sprintf("%s_transformed%s", base, rawExt)
	transformedPath := filepath.Join(s.cfg.UploadDirectory, transformedName)
	if err := encodeImage(transformedPath, ext, result.Image); err != nil {
		s.logger.Error("server", err, map[string]interface{}{
			"path": transformedPath,
		})
		s.respondError(w, http.StatusInternalServerError,
			fmt.Sprintf("An error occurred during transformation: %v", err))
		return
	}

	s.recordTransform(filename, originalPath, transformedPath, src, result, elapsed)
	s.publishStageOutcomes(filename, result.Stages)
	s.hub.Publish(events.Event{
		Type:       events.TypeTransformCompleted,
		Name:       filename,
		Level:      result.Level.String(),
		DurationMs: elapsed.Milliseconds(),
	})
	s.logger.Info("server", "Transformation complete", map[string]interface{}{
		"filename":    filename,
		"level":       result.Level.String(),
		"duration_ms": elapsed.Milliseconds(),
	})

	s.respondJSON(w, http.StatusOK, map[string]string{
		"original":    "/static/uploads/" + originalName,
		"transformed": "/static/uploads/" + transformedName,
		"level":       result.Level.String(),
	})
}

// publishStageOutcomes mirrors the trace onto the event hub so subscribers
// see which stages ran, where the chain descended and what each step cost.
func (s *Server) publishStageOutcomes(name string, stages []stylize.StageOutcome) {
	for _, stage := range stages {
		evt := events.Event{
			Type:       events.TypeStageOutcome,
			Name:       name,
			Stage:      stage.Stage,
			Level:      stage.Level.String(),
			DurationMs: stage.Duration.Milliseconds(),
		}
		if stage.Err != nil {
			evt.Error = stage.Err.Error()
		}
		s.hub.Publish(evt)
	}
}

// recordTransform persists the history row. History is best effort; a
// storage failure is logged and the request still succeeds.
func (s *Server) recordTransform(name, originalPath, transformedPath string, src image.Image, result *stylize.PipelineResult, elapsed time.Duration) {
	bounds := src.Bounds()
	record := &storage.Transform{
		OriginalName:    name,
		OriginalPath:    originalPath,
		TransformedPath: transformedPath,
		Level:           result.Level.String(),
		Width:           bounds.Dx(),
		Height:          bounds.Dy(),
		DurationMs:      elapsed.Milliseconds(),
		CreatedAt:       time.Now().UTC(),
	}

	if _, err := s.transforms.Insert(record); err != nil {
		s.logger.Warning("server", "Failed to record transform history", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// encodeImage writes img to path in the format the extension names.
func encodeImage(path, ext string, img image.Image) error {
	out, err := os.Create(path)
	if err != nil {
		return &stylize.EncodeError{Format: ext, Err: err}
	}
	defer out.Close()

	switch ext {
	case ".png":
		err = png.Encode(out, img)
	case ".jpg", ".jpeg":
		err = jpeg.Encode(out, img, &jpeg.Options{Quality: jpeg.DefaultQuality})
	default:
		err = fmt.Errorf("unsupported extension %q", ext)
	}
	if err != nil {
		return &stylize.EncodeError{Format: ext, Err: err}
	}
	return nil
}

// sanitizeFilename reduces an upload name to a safe basename: path
// separators stripped, spaces collapsed to underscores, anything outside
// letters, digits, dot, dash and underscore removed.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, " ", "_")

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		}
	}

	cleaned := strings.Trim(b.String(), "._")
	if cleaned == "" {
		return "upload"
	}
	return cleaned
}
