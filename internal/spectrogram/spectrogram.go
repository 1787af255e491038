package spectrogram

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/himanishpuri/NoteGram/pkg/utils"
	"gonum.org/v1/gonum/floats"
)

// Spectrogram is a time-major note magnitude matrix: Frames[window][note].
// Every frame has the same length as the note axis it was resampled onto.
type Spectrogram struct {
	Source       string      `json:"source"`
	SampleRate   int         `json:"sample_rate"`
	WindowLength int         `json:"window_length"`
	Notes        []string    `json:"notes,omitempty"`
	Frames       [][]float64 `json:"frames"`
}

// Windows is the number of time steps.
func (s *Spectrogram) Windows() int {
	return len(s.Frames)
}

// Height is the number of notes per frame, 0 for an empty spectrogram.
func (s *Spectrogram) Height() int {
	if len(s.Frames) == 0 {
		return len(s.Notes)
	}
	return len(s.Frames[0])
}

// Validate checks that all frames share one length and that the note
// names, when present, match it.
func (s *Spectrogram) Validate() error {
	h := s.Height()
	for i, f := range s.Frames {
		if len(f) != h {
			return fmt.Errorf("frame %d has %d notes, expected %d", i, len(f), h)
		}
	}
	if len(s.Notes) > 0 && len(s.Notes) != h {
		return fmt.Errorf("%d note names for %d notes", len(s.Notes), h)
	}
	return nil
}

// Peak returns the largest magnitude, 0 when there are no frames.
func (s *Spectrogram) Peak() float64 {
	peak := 0.0
	for _, f := range s.Frames {
		if len(f) > 0 {
			peak = max(peak, floats.Max(f))
		}
	}
	return peak
}

// Normalize scales every magnitude so the largest one equals peak, which
// is what the renderer expects with peak 255. An all-zero spectrogram is
// left unchanged. It returns the applied factor.
func (s *Spectrogram) Normalize(peak float64) float64 {
	current := s.Peak()
	if current <= 0 {
		return 1
	}
	factor := peak / current
	for _, f := range s.Frames {
		floats.Scale(factor, f)
	}
	return factor
}

// Truncate drops every frame past n.
func (s *Spectrogram) Truncate(n int) {
	if n >= 0 && n < len(s.Frames) {
		s.Frames = s.Frames[:n]
	}
}

// Encode writes s as JSON indented with four spaces.
func Encode(w io.Writer, s *Spectrogram) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encoding spectrogram: %w", err)
	}
	return nil
}

// Decode reads a spectrogram written by Encode and validates its shape.
func Decode(r io.Reader) (*Spectrogram, error) {
	var s Spectrogram
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding spectrogram: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// WriteFile encodes s to path, creating parent directories. The file is
// replaced atomically.
func WriteFile(path string, s *Spectrogram) error {
	return utils.WriteFileAtomic(path, func(f *os.File) error {
		return Encode(f, s)
	})
}

func ReadFile(path string) (*Spectrogram, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
