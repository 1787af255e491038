package notegram

import (
	"time"

	"github.com/himanishpuri/NoteGram/internal/audio"
	"github.com/himanishpuri/NoteGram/internal/spectrogram"
)

// Result describes one processed input.
type Result struct {
	Source    string // base file name
	Path      string // full input path, empty for uploads and generated audio
	Format    audio.Format
	Windows   int
	Notes     int
	JSONPath  string
	ImagePath string
	RunID     string

	Spectrogram *spectrogram.Spectrogram
}

// FileError pairs a skipped input with the reason.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string {
	return e.Path + ": " + e.Err.Error()
}

func (e FileError) Unwrap() error {
	return e.Err
}

// BatchResult is the outcome of a folder run.
type BatchResult struct {
	Results    []Result
	Failed     []FileError
	CropBudget int // 0 when cropping is off
}

// Run is a catalog entry for a processed file.
type Run struct {
	ID           string    `json:"id"`
	Source       string    `json:"source"`
	SampleRate   int       `json:"sample_rate"`
	BitDepth     int       `json:"bit_depth"`
	WindowLength int       `json:"window_length"`
	Windows      int       `json:"windows"`
	Notes        int       `json:"notes"`
	CropBudget   int       `json:"crop_budget,omitempty"`
	JSONPath     string    `json:"json_path,omitempty"`
	ImagePath    string    `json:"image_path,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
