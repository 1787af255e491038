package spectral

import (
	"errors"
	"fmt"
	"math/cmplx"
	"strings"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"
)

var ErrInvalidWindowLength = errors.New("window length must be a positive power of two")

// Backend selects the FFT implementation.
type Backend int

const (
	GoDSP Backend = iota
	Gonum
)

func (b Backend) String() string {
	switch b {
	case Gonum:
		return "gonum"
	default:
		return "godsp"
	}
}

// ParseBackend accepts "godsp" (default) or "gonum".
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "godsp", "go-dsp":
		return GoDSP, nil
	case "gonum":
		return Gonum, nil
	}
	return GoDSP, fmt.Errorf("unknown FFT backend %q", s)
}

// Frame is the non-negative half of one window's spectrum. Frequencies and
// Magnitudes are parallel and hold window length / 2 entries.
type Frame struct {
	Frequencies []float64
	Magnitudes  []float64
}

// Analyzer computes spectral frames. The zero value uses go-dsp and holds no
// state between calls.
type Analyzer struct {
	Backend Backend
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Analyze runs the FFT over window and returns bin frequencies
// k*sampleRate/n with magnitudes |X[k]| for k in [0, n/2).
func (a Analyzer) Analyze(window []float64, sampleRate int) (*Frame, error) {
	n := len(window)
	if !IsPowerOfTwo(n) {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidWindowLength, n)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	var spectrum []complex128
	switch a.Backend {
	case Gonum:
		spectrum = fourier.NewFFT(n).Coefficients(nil, window)
	default:
		spectrum = fft.FFTReal(window)
	}

	half := n / 2
	frame := &Frame{
		Frequencies: make([]float64, half),
		Magnitudes:  MagnitudeSpectrum(spectrum, half),
	}
	step := float64(sampleRate) / float64(n)
	for k := range frame.Frequencies {
		frame.Frequencies[k] = float64(k) * step
	}
	return frame, nil
}

// Analyze uses the default backend.
func Analyze(window []float64, sampleRate int) (*Frame, error) {
	return Analyzer{}.Analyze(window, sampleRate)
}

// MagnitudeSpectrum returns |spectrum[k]| for the first bins coefficients.
func MagnitudeSpectrum(spectrum []complex128, bins int) []float64 {
	mag := make([]float64, bins)
	for i := range mag {
		mag[i] = cmplx.Abs(spectrum[i])
	}
	return mag
}
