package notegram

import (
	"context"
	"image"
	"io"

	"github.com/himanishpuri/NoteGram/internal/spectrogram"
)

type Service interface {
	ProcessFolder(ctx context.Context, dir string) (*BatchResult, error)
	ProcessFile(ctx context.Context, path string, limit int) (*Result, error)
	Analyze(ctx context.Context, name string, r io.Reader, windowLength int) (*Result, error)
	AnalyzeSamples(ctx context.Context, name string, samples []float64, sampleRate int) (*Result, error)
	Render(s *spectrogram.Spectrogram) (image.Image, error)
	Watch(ctx context.Context, dir string) error
	GetRun(id string) (*Run, error)
	ListRuns() ([]Run, error)
	DeleteRun(id string) error
	Close() error
}

type Storage interface {
	RegisterRun(run Run) (string, error)
	GetRun(id string) (*Run, error)
	ListRuns() ([]Run, error)
	DeleteRun(id string) error
	Close() error
}

type Publisher interface {
	Send(ctx context.Context, url string, payload any) error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
