package notegrid

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
)

// Grid constants: C0, one equal-tempered semitone, and the upper cutoff.
const (
	C0           = 16.35
	MaxFrequency = 22000.0
)

// SemitoneRatio is 2^(1/12).
var SemitoneRatio = math.Pow(2, 1.0/12)

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Axis is an increasing geometric sequence of target frequencies. Treat it
// as read-only once built; it is shared across windows and files.
type Axis []float64

// BuildAxis returns c0, c0*ratio, c0*ratio^2, ... while the value stays at
// or below maxFrequency. Each entry is the previous one times ratio.
func BuildAxis(c0, ratio, maxFrequency float64) (Axis, error) {
	if c0 <= 0 || ratio <= 1 {
		return nil, fmt.Errorf("invalid axis parameters: c0=%v ratio=%v", c0, ratio)
	}
	if maxFrequency < c0 {
		return nil, errors.New("max frequency below first note")
	}

	var axis Axis
	for f := c0; f <= maxFrequency; f *= ratio {
		axis = append(axis, f)
	}
	return axis, nil
}

var defaultAxis = sync.OnceValue(func() Axis {
	axis, err := BuildAxis(C0, SemitoneRatio, MaxFrequency)
	if err != nil {
		panic(err)
	}
	return axis
})

// DefaultAxis is the C0..22 kHz semitone grid, built once per process.
func DefaultAxis() Axis {
	return defaultAxis()
}

// Nearest returns the index of the entry closest to f on a log scale.
func (a Axis) Nearest(f float64) int {
	if len(a) == 0 {
		return -1
	}
	i := sort.SearchFloat64s(a, f)
	if i == 0 {
		return 0
	}
	if i == len(a) {
		return len(a) - 1
	}
	if math.Log(f/a[i-1]) <= math.Log(a[i]/f) {
		return i - 1
	}
	return i
}

// NoteName names the i-th semitone above C0, e.g. 0 -> "C0", 57 -> "A4".
func NoteName(i int) string {
	if i < 0 {
		return ""
	}
	return fmt.Sprintf("%s%d", noteNames[i%12], i/12)
}

// Names returns the note name of every axis entry.
func (a Axis) Names() []string {
	names := make([]string, len(a))
	for i := range a {
		names[i] = NoteName(i)
	}
	return names
}
