package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/riff"
)

// WAV audio format tags understood by the reader.
const (
	wavFormatPCM   = 1
	wavFormatFloat = 3
)

var (
	ErrNotWave            = errors.New("not a WAV/RIFF file")
	ErrMissingFormat      = errors.New("fmt chunk not found")
	ErrMissingData        = errors.New("data chunk not found")
	ErrUnsupportedFormat  = errors.New("unsupported WAV audio format: only PCM (1) and IEEE float (3) supported")
	errStopAfterDataChunk = errors.New("stop")
)

// Info is what ProbeWav learns from the headers without reading samples.
type Info struct {
	Format      Format
	DataSize    int
	SampleCount int
}

// formatFromParser converts the fmt chunk fields decoded by riff.
func formatFromParser(p *riff.Parser) (Format, error) {
	f := Format{
		SampleRate: int(p.SampleRate),
		BitDepth:   int(p.BitsPerSample),
		Channels:   int(p.NumChannels),
	}
	switch p.WavAudioFormat {
	case wavFormatPCM:
		f.Encoding = PCMInt
	case wavFormatFloat:
		f.Encoding = PCMFloat
	default:
		return f, fmt.Errorf("%w (got %d)", ErrUnsupportedFormat, p.WavAudioFormat)
	}
	return f, f.Validate()
}

// maxFmtChunk bounds the fmt chunk; riff allocates its extension bytes.
const maxFmtChunk = 1 << 10

// scanWavChunks walks the RIFF chunks, decoding fmt and handing the data
// chunk to onData. Unknown chunks (LIST, INFO, junk) are skipped. Chunk
// sizes are taken as declared; odd-sized chunks are followed by a pad byte
// that belongs to no chunk. The chunk passed to onData reads at most the
// bytes actually present.
func scanWavChunks(r io.Reader, onData func(ch *riff.Chunk) error) (*riff.Parser, error) {
	p := riff.New(r)
	if err := p.ParseHeaders(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotWave, err)
	}
	if p.ID != riff.RiffID || p.Format != riff.WavFormatID {
		return nil, ErrNotWave
	}

	fmtFound := false
	dataFound := false
	for !(fmtFound && dataFound) {
		id, size, err := p.IDnSize()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("reading chunk header: %w", err)
		}
		ch := &riff.Chunk{ID: id, Size: int(size), R: io.LimitReader(r, int64(size))}

		switch id {
		case riff.FmtID:
			if size > maxFmtChunk {
				return nil, fmt.Errorf("%w: fmt chunk of %d bytes", ErrMissingFormat, size)
			}
			if err := ch.DecodeWavHeader(p); err != nil {
				return nil, fmt.Errorf("decoding fmt chunk: %w", err)
			}
			fmtFound = true
		case riff.DataFormatID:
			dataFound = true
			if err := onData(ch); err != nil {
				if !errors.Is(err, errStopAfterDataChunk) {
					return nil, err
				}
				if fmtFound {
					return p, nil
				}
			}
		}

		if _, err := io.Copy(io.Discard, ch.R); err != nil {
			return nil, fmt.Errorf("skipping %s chunk: %w", id, err)
		}
		if size%2 == 1 {
			if _, err := io.CopyN(io.Discard, r, 1); err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("skipping pad byte: %w", err)
			}
		}
	}

	if !fmtFound {
		return nil, ErrMissingFormat
	}
	if !dataFound {
		return nil, ErrMissingData
	}
	return p, nil
}

// DecodeWav reads a mono linear-PCM or float WAV stream into a PCMBuffer.
// The sample rate travels with the buffer's Format.
func DecodeWav(r io.Reader) (*PCMBuffer, error) {
	var data []byte
	p, err := scanWavChunks(r, func(ch *riff.Chunk) error {
		// grows with the bytes present, not the declared size; a data
		// chunk that overruns the file is truncated
		var err error
		data, err = io.ReadAll(ch.R)
		if err != nil {
			return fmt.Errorf("reading data chunk: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	f, err := formatFromParser(p)
	if err != nil {
		return nil, err
	}
	whole := len(data) / f.BytesPerSample() * f.BytesPerSample()
	return &PCMBuffer{Format: f, Data: data[:whole]}, nil
}

// ReadWav opens and decodes a WAV file.
func ReadWav(path string) (*PCMBuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, err := DecodeWav(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return buf, nil
}

// ProbeWav reads the headers of a WAV file and counts the data bytes
// actually present without keeping them, so SampleCount always matches what
// ReadWav decodes.
func ProbeWav(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var size int
	p, err := scanWavChunks(f, func(ch *riff.Chunk) error {
		n, err := io.Copy(io.Discard, ch.R)
		if err != nil {
			return fmt.Errorf("reading data chunk: %w", err)
		}
		size = int(n)
		return errStopAfterDataChunk
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	format, err := formatFromParser(p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Info{
		Format:      format,
		DataSize:    size,
		SampleCount: size / format.BytesPerSample(),
	}, nil
}
