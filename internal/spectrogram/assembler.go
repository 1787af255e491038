package spectrogram

import (
	"errors"
	"fmt"

	"github.com/himanishpuri/NoteGram/internal/audio"
	"github.com/himanishpuri/NoteGram/internal/notegrid"
	"github.com/himanishpuri/NoteGram/internal/spectral"
)

var (
	ErrEmptyBatch          = errors.New("crop batch is empty")
	ErrInsufficientSamples = errors.New("fewer samples than one window")
)

// Assembler turns decoded audio into note spectrograms. It holds no
// per-file state and may be reused for every file of a batch.
type Assembler struct {
	Axis     notegrid.Axis
	Analyzer spectral.Analyzer
}

// NewAssembler uses the default semitone axis.
func NewAssembler(backend spectral.Backend) *Assembler {
	return &Assembler{
		Axis:     notegrid.DefaultAxis(),
		Analyzer: spectral.Analyzer{Backend: backend},
	}
}

// Assemble analyzes windows 0..n-1 of buf in order, where n is the number
// of full windows, capped at limit when limit > 0.
func (a *Assembler) Assemble(source string, buf *audio.PCMBuffer, windowLength, limit int) (*Spectrogram, error) {
	if !spectral.IsPowerOfTwo(windowLength) {
		return nil, fmt.Errorf("%w (got %d)", spectral.ErrInvalidWindowLength, windowLength)
	}
	if err := buf.Format.Validate(); err != nil {
		return nil, err
	}

	n := buf.WindowCount(windowLength)
	if n == 0 {
		return nil, fmt.Errorf("%s: %w (%d samples, window %d)",
			source, ErrInsufficientSamples, buf.SampleCount(), windowLength)
	}
	if limit > 0 && limit < n {
		n = limit
	}

	s := &Spectrogram{
		Source:       source,
		SampleRate:   buf.Format.SampleRate,
		WindowLength: windowLength,
		Notes:        a.Axis.Names(),
		Frames:       make([][]float64, 0, n),
	}
	for i := 0; i < n; i++ {
		window, err := buf.Window(i, windowLength)
		if err != nil {
			return nil, fmt.Errorf("window %d: %w", i, err)
		}
		frame, err := a.Analyzer.Analyze(window, buf.Format.SampleRate)
		if err != nil {
			return nil, fmt.Errorf("window %d: %w", i, err)
		}
		vec, err := notegrid.Resample(frame, a.Axis)
		if err != nil {
			return nil, fmt.Errorf("window %d: %w", i, err)
		}
		s.Frames = append(s.Frames, vec)
	}
	return s, nil
}

// Assemble uses a fresh default Assembler.
func Assemble(source string, buf *audio.PCMBuffer, windowLength, limit int) (*Spectrogram, error) {
	return NewAssembler(spectral.GoDSP).Assemble(source, buf, windowLength, limit)
}

// BatchFile is what the crop budget needs to know about one file.
type BatchFile struct {
	Name        string
	Size        int64 // bytes on disk
	SampleCount int
}

// CropBudget returns the shared window count for a batch: the window count
// of the smallest file by byte size. If another file decodes to fewer
// windows (a lower bit depth, say) the budget drops to that count so every
// file in the batch can fill it.
func CropBudget(batch []BatchFile, windowLength int) (int, error) {
	if len(batch) == 0 {
		return 0, ErrEmptyBatch
	}
	if !spectral.IsPowerOfTwo(windowLength) {
		return 0, fmt.Errorf("%w (got %d)", spectral.ErrInvalidWindowLength, windowLength)
	}

	smallest := 0
	for i, f := range batch {
		if audio.WindowCount(f.SampleCount, windowLength) == 0 {
			return 0, fmt.Errorf("%s: %w (%d samples, window %d)",
				f.Name, ErrInsufficientSamples, f.SampleCount, windowLength)
		}
		if f.Size < batch[smallest].Size {
			smallest = i
		}
	}

	budget := audio.WindowCount(batch[smallest].SampleCount, windowLength)
	for _, f := range batch {
		budget = min(budget, audio.WindowCount(f.SampleCount, windowLength))
	}
	return budget, nil
}
