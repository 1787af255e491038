package spectral

import (
	"errors"
	"math"
	"testing"
)

func sine(freq float64, sampleRate, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate))
	}
	return out
}

func TestIsPowerOfTwo(t *testing.T) {
	for _, n := range []int{1, 2, 4, 1024, 65536} {
		if !IsPowerOfTwo(n) {
			t.Errorf("Expected %d to be a power of two", n)
		}
	}
	for _, n := range []int{0, -2, 3, 1000, 1023} {
		if IsPowerOfTwo(n) {
			t.Errorf("Expected %d not to be a power of two", n)
		}
	}
}

func TestAnalyzeRejectsInvalidWindowLength(t *testing.T) {
	for _, n := range []int{0, 3, 1000} {
		_, err := Analyze(make([]float64, n), 44100)
		if !errors.Is(err, ErrInvalidWindowLength) {
			t.Errorf("n=%d: expected ErrInvalidWindowLength, got %v", n, err)
		}
	}
}

func TestAnalyzeFrequencies(t *testing.T) {
	frame, err := Analyze(make([]float64, 1024), 44100)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if len(frame.Frequencies) != 512 || len(frame.Magnitudes) != 512 {
		t.Fatalf("Expected 512 bins, got %d/%d", len(frame.Frequencies), len(frame.Magnitudes))
	}
	if frame.Frequencies[0] != 0 {
		t.Errorf("Expected DC bin at 0 Hz, got %v", frame.Frequencies[0])
	}
	step := 44100.0 / 1024
	if math.Abs(frame.Frequencies[511]-511*step) > 1e-9 {
		t.Errorf("Expected last bin at %v Hz, got %v", 511*step, frame.Frequencies[511])
	}
}

func TestAnalyzeDC(t *testing.T) {
	window := make([]float64, 128)
	for i := range window {
		window[i] = 1
	}

	frame, err := Analyze(window, 8000)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if math.Abs(frame.Magnitudes[0]-128) > 1e-9 {
		t.Errorf("Expected DC magnitude 128, got %v", frame.Magnitudes[0])
	}
	for k := 1; k < len(frame.Magnitudes); k++ {
		if frame.Magnitudes[k] > 1e-9 {
			t.Errorf("Expected zero magnitude at bin %d, got %v", k, frame.Magnitudes[k])
		}
	}
}

func TestAnalyzeSinePeak(t *testing.T) {
	// bin 32 of a 1024 window at 44100 Hz is exactly periodic
	freq := 32 * 44100.0 / 1024
	frame, err := Analyze(sine(freq, 44100, 1024), 44100)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	peak := 0
	for k, m := range frame.Magnitudes {
		if m > frame.Magnitudes[peak] {
			peak = k
		}
	}
	if peak != 32 {
		t.Errorf("Expected peak at bin 32, got %d", peak)
	}
	if math.Abs(frame.Magnitudes[32]-512) > 1e-6 {
		t.Errorf("Expected peak magnitude n/2=512, got %v", frame.Magnitudes[32])
	}
}

func TestBackendsAgree(t *testing.T) {
	window := sine(440, 44100, 2048)
	for i := range window {
		window[i] += 0.3 * math.Cos(float64(i)*0.01)
	}

	a, err := Analyzer{Backend: GoDSP}.Analyze(window, 44100)
	if err != nil {
		t.Fatalf("go-dsp Analyze failed: %v", err)
	}
	b, err := Analyzer{Backend: Gonum}.Analyze(window, 44100)
	if err != nil {
		t.Fatalf("gonum Analyze failed: %v", err)
	}

	for k := range a.Magnitudes {
		if math.Abs(a.Magnitudes[k]-b.Magnitudes[k]) > 1e-6 {
			t.Fatalf("Bin %d differs: go-dsp %v, gonum %v", k, a.Magnitudes[k], b.Magnitudes[k])
		}
	}
}

func TestParseBackend(t *testing.T) {
	tests := []struct {
		in      string
		want    Backend
		wantErr bool
	}{
		{"", GoDSP, false},
		{"godsp", GoDSP, false},
		{"GONUM", Gonum, false},
		{"fftw", GoDSP, true},
	}

	for _, tt := range tests {
		got, err := ParseBackend(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseBackend(%q) = %v, %v", tt.in, got, err)
		}
	}
	if Gonum.String() != "gonum" || GoDSP.String() != "godsp" {
		t.Error("Unexpected backend names")
	}
}

func TestMagnitudeSpectrum(t *testing.T) {
	spectrum := []complex128{
		complex(1.0, 0.0),
		complex(0.0, 1.0),
		complex(3.0, 4.0),
		complex(0.0, 0.0),
	}

	mag := MagnitudeSpectrum(spectrum, 3)
	want := []float64{1, 1, 5}
	for i := range want {
		if mag[i] != want[i] {
			t.Errorf("Bin %d: expected %v, got %v", i, want[i], mag[i])
		}
	}
}
