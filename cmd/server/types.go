package main

import (
	"fmt"
	"strconv"

	"github.com/himanishpuri/NoteGram/internal/render"
	"github.com/himanishpuri/NoteGram/internal/spectral"
	"github.com/himanishpuri/NoteGram/internal/spectrogram"
	"github.com/himanishpuri/NoteGram/pkg/notegram"
)

// MaxUploadBytes bounds the multipart form held in memory.
const MaxUploadBytes = 100 << 20

// SpectrogramRequest holds the optional fields of POST /api/spectrograms.
// The audio itself travels as the multipart file "audio".
type SpectrogramRequest struct {
	// Window overrides the server's window length; 0 keeps it.
	Window int

	// Format selects an image response instead of JSON.
	Format render.Format
}

// parseSpectrogramRequest reads the window form value and the format query
// parameter.
func parseSpectrogramRequest(window, format string) (SpectrogramRequest, error) {
	var req SpectrogramRequest
	if window != "" {
		n, err := strconv.Atoi(window)
		if err != nil || !spectral.IsPowerOfTwo(n) {
			return req, fmt.Errorf("%w (got %q)", spectral.ErrInvalidWindowLength, window)
		}
		req.Window = n
	}
	if format != "" {
		f, err := render.ParseFormat(format)
		if err != nil {
			return req, err
		}
		req.Format = f
	}
	return req, nil
}

// SpectrogramResponse is the JSON response for POST /api/spectrograms
type SpectrogramResponse struct {
	Source      string                   `json:"source"`
	SampleRate  int                      `json:"sample_rate"`
	BitDepth    int                      `json:"bit_depth"`
	Windows     int                      `json:"windows"`
	Notes       int                      `json:"notes"`
	Spectrogram *spectrogram.Spectrogram `json:"spectrogram"`
}

func newSpectrogramResponse(res *notegram.Result) SpectrogramResponse {
	return SpectrogramResponse{
		Source:      res.Source,
		SampleRate:  res.Format.SampleRate,
		BitDepth:    res.Format.BitDepth,
		Windows:     res.Windows,
		Notes:       res.Notes,
		Spectrogram: res.Spectrogram,
	}
}

// ListRunsResponse is the response for GET /api/runs
type ListRunsResponse struct {
	Runs  []notegram.Run `json:"runs"`
	Count int            `json:"count"`
}

// DeleteRunResponse is the response for DELETE /api/runs/{id}
type DeleteRunResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// MetricsResponse provides server health and catalog metrics
type MetricsResponse struct {
	Status       string `json:"status"`
	DatabasePath string `json:"database_path,omitempty"`
	RunCount     int    `json:"run_count"`
	WindowLength int    `json:"window_length"`
	Backend      string `json:"backend"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
