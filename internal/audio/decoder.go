package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// Encoding is the sample representation inside the WAV data chunk.
type Encoding int

const (
	PCMInt Encoding = iota
	PCMFloat
)

func (e Encoding) String() string {
	if e == PCMFloat {
		return "float"
	}
	return "int"
}

var (
	ErrUnsupportedBitDepth = errors.New("unsupported bit depth")
	ErrUnsupportedChannels = errors.New("unsupported channel count: only mono supported")
)

// Format describes how the bytes of a PCMBuffer are laid out.
type Format struct {
	SampleRate int
	BitDepth   int
	Channels   int
	Encoding   Encoding
}

// BytesPerSample is the byte stride of one sample in the source encoding.
func (f Format) BytesPerSample() int {
	return f.BitDepth / 8
}

// Validate checks the format is one the decoder can unpack.
func (f Format) Validate() error {
	if f.Channels != 1 {
		return fmt.Errorf("%w (got %d)", ErrUnsupportedChannels, f.Channels)
	}
	if f.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", f.SampleRate)
	}
	switch f.Encoding {
	case PCMInt:
		switch f.BitDepth {
		case 8, 16, 24, 32:
			return nil
		}
	case PCMFloat:
		if f.BitDepth == 32 {
			return nil
		}
	}
	return fmt.Errorf("%w: %d-bit %s", ErrUnsupportedBitDepth, f.BitDepth, f.Encoding)
}

// RangeError reports a window request that reaches past the end of the
// buffer. Callers must only ask for windows below WindowCount.
type RangeError struct {
	Start     int // first sample index requested
	Length    int // samples requested
	Available int // samples in the buffer
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("range error: samples [%d, %d) requested, buffer holds %d",
		e.Start, e.Start+e.Length, e.Available)
}

// PCMBuffer is the raw data chunk of one mono recording together with its
// format. It is never modified after decoding.
type PCMBuffer struct {
	Format Format
	Data   []byte
}

// SampleCount is the number of whole samples in the buffer.
func (b *PCMBuffer) SampleCount() int {
	bps := b.Format.BytesPerSample()
	if bps == 0 {
		return 0
	}
	return len(b.Data) / bps
}

// WindowCount is the number of full windows of windowLength samples. A
// trailing partial window is not counted.
func (b *PCMBuffer) WindowCount(windowLength int) int {
	return WindowCount(b.SampleCount(), windowLength)
}

// Window returns the i-th window of length samples.
func (b *PCMBuffer) Window(i, length int) ([]float64, error) {
	return ExtractWindow(b.Data, b.Format, i*length, length)
}

// Samples decodes the whole buffer.
func (b *PCMBuffer) Samples() ([]float64, error) {
	return ExtractWindow(b.Data, b.Format, 0, b.SampleCount())
}

// Duration is the playing time of the buffer.
func (b *PCMBuffer) Duration() time.Duration {
	if b.Format.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(b.SampleCount()) / float64(b.Format.SampleRate) * float64(time.Second))
}

// WindowCount returns floor(sampleCount / windowLength), or 0 for a
// non-positive window length.
func WindowCount(sampleCount, windowLength int) int {
	if windowLength <= 0 || sampleCount <= 0 {
		return 0
	}
	return sampleCount / windowLength
}

// ExtractWindow unpacks length samples starting at sample index start.
// Byte offsets are start*(bits/8); the result is normalized to [-1, 1).
func ExtractWindow(data []byte, f Format, start, length int) ([]float64, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	bps := f.BytesPerSample()
	available := len(data) / bps
	if start < 0 || length < 0 || start+length > available {
		return nil, &RangeError{Start: start, Length: length, Available: available}
	}

	out := make([]float64, length)
	raw := data[start*bps : (start+length)*bps]
	for i := range out {
		out[i] = decodeSample(raw[i*bps:(i+1)*bps], f)
	}
	return out, nil
}

func decodeSample(b []byte, f Format) float64 {
	if f.Encoding == PCMFloat {
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	}
	switch f.BitDepth {
	case 8:
		// 8-bit WAV is unsigned with 128 as silence
		return (float64(b[0]) - 128) / 128
	case 16:
		return float64(int16(binary.LittleEndian.Uint16(b))) / 32768
	case 24:
		v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		if v&0x800000 != 0 {
			v |= ^0xffffff
		}
		return float64(v) / 8388608
	default:
		return float64(int32(binary.LittleEndian.Uint32(b))) / 2147483648
	}
}
