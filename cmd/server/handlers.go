package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/himanishpuri/NoteGram/internal/audio"
	"github.com/himanishpuri/NoteGram/internal/render"
	"github.com/himanishpuri/NoteGram/internal/spectral"
	"github.com/himanishpuri/NoteGram/internal/spectrogram"
	"github.com/himanishpuri/NoteGram/internal/storage"
	"github.com/himanishpuri/NoteGram/pkg/logger"
	"github.com/himanishpuri/NoteGram/pkg/notegram"
	"github.com/himanishpuri/NoteGram/pkg/utils"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service notegram.Service
	config  *ServerConfig
	log     notegram.Logger
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	DBPath         string
	WindowLength   int
	Backend        string
	AllowedOrigins []string
}

// NewServer creates a new server instance
func NewServer(service notegram.Service, config *ServerConfig) *Server {
	return &Server{
		service: service,
		config:  config,
		log:     logger.GetLogger().WithPrefix("[server]"),
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// statusFor maps pipeline and catalog errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, notegram.ErrCatalogDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, spectral.ErrInvalidWindowLength):
		return http.StatusBadRequest
	case errors.Is(err, audio.ErrNotWave),
		errors.Is(err, audio.ErrMissingFormat),
		errors.Is(err, audio.ErrMissingData),
		errors.Is(err, audio.ErrUnsupportedFormat),
		errors.Is(err, audio.ErrUnsupportedBitDepth),
		errors.Is(err, audio.ErrUnsupportedChannels),
		errors.Is(err, spectrogram.ErrInsufficientSamples):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"service": "NoteGram API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":      "GET /health",
			"metrics":     "GET /api/health/metrics",
			"spectrogram": "POST /api/spectrograms[?format=png|bmp|tiff]",
			"runs":        "GET /api/runs",
			"getRun":      "GET /api/runs/{id}",
			"deleteRun":   "DELETE /api/runs/{id}",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleMetrics handles GET /api/health/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	resp := MetricsResponse{
		Status:       "healthy",
		DatabasePath: s.config.DBPath,
		WindowLength: s.config.WindowLength,
		Backend:      s.config.Backend,
	}

	runs, err := s.service.ListRuns()
	switch {
	case errors.Is(err, notegram.ErrCatalogDisabled):
		resp.DatabasePath = ""
	case err != nil:
		s.log.Errorf("Failed to count runs: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics")
		return
	default:
		resp.RunCount = len(runs)
	}

	s.respondJSON(w, http.StatusOK, resp)
}

// handleCreateSpectrogram handles POST /api/spectrograms (multipart upload)
func (s *Server) handleCreateSpectrogram(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		s.log.Errorf("Failed to parse form: %v", err)
		s.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	req, err := parseSpectrogramRequest(r.FormValue("window"), r.URL.Query().Get("format"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		s.log.Errorf("Failed to get audio file: %v", err)
		s.respondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	s.log.Infof("Analyzing upload: %s (%d bytes)", header.Filename, header.Size)
	res, err := s.service.Analyze(ctx, header.Filename, file, req.Window)
	if err != nil {
		s.log.Warnf("Failed to analyze %s: %v", header.Filename, err)
		s.respondError(w, statusFor(err), fmt.Sprintf("Failed to analyze audio: %v", err))
		return
	}

	if req.Format == "" {
		s.respondJSON(w, http.StatusOK, newSpectrogramResponse(res))
		return
	}

	img, err := s.service.Render(res.Spectrogram)
	if err != nil {
		s.respondError(w, statusFor(err), fmt.Sprintf("Failed to render spectrogram: %v", err))
		return
	}
	var buf bytes.Buffer
	if err := render.Encode(&buf, img, req.Format); err != nil {
		s.log.Errorf("Failed to encode %s: %v", req.Format, err)
		s.respondError(w, http.StatusInternalServerError, "Failed to encode image")
		return
	}

	w.Header().Set("Content-Type", req.Format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", utils.ReplaceExt(res.Source, req.Format.Ext())))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		s.log.Errorf("Failed to write image: %v", err)
	}
}

// handleListRuns handles GET /api/runs
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.service.ListRuns()
	if err != nil {
		s.log.Errorf("Failed to list runs: %v", err)
		s.respondError(w, statusFor(err), "Failed to retrieve runs")
		return
	}
	if runs == nil {
		runs = []notegram.Run{}
	}

	s.respondJSON(w, http.StatusOK, ListRunsResponse{
		Runs:  runs,
		Count: len(runs),
	})
}

// handleGetRun handles GET /api/runs/{id}
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request, id string) {
	run, err := s.service.GetRun(id)
	if err != nil {
		s.log.Warnf("Run lookup failed for %s: %v", id, err)
		s.respondError(w, statusFor(err), err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, run)
}

// handleDeleteRun handles DELETE /api/runs/{id}
func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.service.DeleteRun(id); err != nil {
		s.log.Warnf("Failed to delete run %s: %v", id, err)
		s.respondError(w, statusFor(err), err.Error())
		return
	}

	s.log.Infof("Deleted run %s", id)
	s.respondJSON(w, http.StatusOK, DeleteRunResponse{
		Message: "Run deleted successfully",
		ID:      id,
	})
}

// handleSpectrograms routes requests to /api/spectrograms
func (s *Server) handleSpectrograms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.handleCreateSpectrogram(w, r)
}

// handleRuns routes requests to /api/runs
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.handleListRuns(w, r)
}

// handleRun routes requests to /api/runs/{id}
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	if id == "" || strings.Contains(id, "/") {
		s.respondError(w, http.StatusBadRequest, "Run ID required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetRun(w, r, id)
	case http.MethodDelete:
		s.handleDeleteRun(w, r, id)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
