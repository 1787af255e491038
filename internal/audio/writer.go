package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Sine generates n samples of a sine wave at freq Hz.
func Sine(freq float64, sampleRate, n int, amplitude float64) []float64 {
	out := make([]float64, n)
	step := 2 * math.Pi * freq / float64(sampleRate)
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}
	return out
}

// FromSamples packs samples as a 32-bit float buffer so generated audio
// goes through the same windowing as decoded files.
func FromSamples(samples []float64, sampleRate int) *PCMBuffer {
	data := make([]byte, 4*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(data[4*i:], math.Float32bits(float32(s)))
	}
	return &PCMBuffer{
		Format: Format{SampleRate: sampleRate, BitDepth: 32, Channels: 1, Encoding: PCMFloat},
		Data:   data,
	}
}

// EncodeWav writes mono samples in [-1, 1] as integer PCM of the given bit
// depth (8, 16, 24 or 32).
func EncodeWav(w io.WriteSeeker, samples []float64, sampleRate, bitDepth int) error {
	if err := (Format{SampleRate: sampleRate, BitDepth: bitDepth, Channels: 1}).Validate(); err != nil {
		return err
	}

	full := float64(int64(1)<<(bitDepth-1) - 1)
	data := make([]int, len(samples))
	for i, s := range samples {
		s = math.Max(-1, math.Min(1, s))
		v := int(math.Round(s * full))
		if bitDepth == 8 {
			v += 128
		}
		data[i] = v
	}

	enc := wav.NewEncoder(w, sampleRate, bitDepth, 1, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encoding samples: %w", err)
	}
	return enc.Close()
}

// WriteWav writes samples to a new WAV file at path.
func WriteWav(path string, samples []float64, sampleRate, bitDepth int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := EncodeWav(f, samples, sampleRate, bitDepth); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
