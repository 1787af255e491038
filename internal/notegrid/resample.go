package notegrid

import (
	"errors"
	"fmt"

	"github.com/himanishpuri/NoteGram/internal/spectral"
	"gonum.org/v1/gonum/interp"
)

var ErrEmptyFrame = errors.New("spectral frame has no bins")

// Resample interpolates the frame's magnitudes onto the axis. Inside the
// observed frequency range the interpolation is piecewise linear; targets
// below the first bin or above the last take that boundary's magnitude.
// The result always has len(axis) entries.
func Resample(frame *spectral.Frame, axis Axis) ([]float64, error) {
	if frame == nil || len(frame.Frequencies) == 0 {
		return nil, ErrEmptyFrame
	}
	if len(frame.Frequencies) != len(frame.Magnitudes) {
		return nil, fmt.Errorf("frame has %d frequencies but %d magnitudes",
			len(frame.Frequencies), len(frame.Magnitudes))
	}

	out := make([]float64, len(axis))
	if len(frame.Frequencies) == 1 {
		for i := range out {
			out[i] = frame.Magnitudes[0]
		}
		return out, nil
	}

	for k := 1; k < len(frame.Frequencies); k++ {
		if frame.Frequencies[k] <= frame.Frequencies[k-1] {
			return nil, fmt.Errorf("frame frequencies not increasing at bin %d", k)
		}
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(frame.Frequencies, frame.Magnitudes); err != nil {
		return nil, fmt.Errorf("fitting spectrum: %w", err)
	}
	for i, f := range axis {
		out[i] = pl.Predict(f)
	}
	return out, nil
}
