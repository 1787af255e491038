package spectrogram

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestJSONRoundTrip(t *testing.T) {
	orig, err := Assemble("tone.wav", pcm16(t, 8192), 1024, 0)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "tone.json")
	if err := WriteFile(path, orig); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	if got.Source != orig.Source || got.SampleRate != orig.SampleRate || got.WindowLength != orig.WindowLength {
		t.Errorf("Attributes differ: %+v", got)
	}
	if got.Windows() != orig.Windows() || got.Height() != orig.Height() {
		t.Fatalf("Shape %dx%d, expected %dx%d", got.Windows(), got.Height(), orig.Windows(), orig.Height())
	}
	for i := range orig.Frames {
		for j := range orig.Frames[i] {
			if math.Abs(got.Frames[i][j]-orig.Frames[i][j]) > 1e-6 {
				t.Fatalf("Frame %d note %d: %v != %v", i, j, got.Frames[i][j], orig.Frames[i][j])
			}
		}
	}
}

func TestEncodeIndent(t *testing.T) {
	var buf bytes.Buffer
	s := &Spectrogram{Source: "a.wav", SampleRate: 8000, WindowLength: 2, Frames: [][]float64{{1}}}
	if err := Encode(&buf, s); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !strings.Contains(buf.String(), "\n    \"source\": \"a.wav\"") {
		t.Errorf("Expected four-space indentation, got:\n%s", buf.String())
	}
	if strings.Contains(buf.String(), "notes") {
		t.Error("Empty note names should be omitted")
	}
}

func TestDecodeRejectsRaggedFrames(t *testing.T) {
	ragged := `{"source":"x","sample_rate":1,"window_length":2,"frames":[[1,2],[3]]}`
	if _, err := Decode(strings.NewReader(ragged)); err == nil {
		t.Error("Expected error for ragged frames")
	}

	names := `{"source":"x","sample_rate":1,"window_length":2,"notes":["C0"],"frames":[[1,2]]}`
	if _, err := Decode(strings.NewReader(names)); err == nil {
		t.Error("Expected error for note name mismatch")
	}

	if _, err := Decode(strings.NewReader("not json")); err == nil {
		t.Error("Expected error for garbage")
	}
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.json"))
	if !os.IsNotExist(err) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
}

func TestNormalize(t *testing.T) {
	s := &Spectrogram{Frames: [][]float64{{0, 2}, {4, 1}}}
	factor := s.Normalize(255)

	if factor != 255.0/4 {
		t.Errorf("Expected factor %v, got %v", 255.0/4, factor)
	}
	if s.Frames[1][0] != 255 || s.Frames[0][1] != 127.5 || s.Frames[0][0] != 0 {
		t.Errorf("Unexpected frames %v", s.Frames)
	}

	silent := &Spectrogram{Frames: [][]float64{{0, 0}}}
	if f := silent.Normalize(255); f != 1 || silent.Frames[0][1] != 0 {
		t.Errorf("Silent spectrogram should be unchanged, factor %v", f)
	}
}

func TestTruncate(t *testing.T) {
	s := &Spectrogram{Frames: [][]float64{{1}, {2}, {3}}}
	s.Truncate(5)
	if s.Windows() != 3 {
		t.Errorf("Truncate past end should keep 3 windows, got %d", s.Windows())
	}
	s.Truncate(2)
	if s.Windows() != 2 || s.Frames[1][0] != 2 {
		t.Errorf("Expected first two windows, got %v", s.Frames)
	}
}
