package notegram

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/himanishpuri/NoteGram/internal/audio"
	"github.com/himanishpuri/NoteGram/internal/publish"
	"github.com/himanishpuri/NoteGram/internal/render"
	"github.com/himanishpuri/NoteGram/internal/spectral"
	"github.com/himanishpuri/NoteGram/internal/spectrogram"
	"github.com/himanishpuri/NoteGram/pkg/logger"
	"github.com/himanishpuri/NoteGram/pkg/utils"
	"golang.org/x/sync/errgroup"
)

var ErrCatalogDisabled = errors.New("run catalog is disabled")

// notegramService is the default implementation of the Service interface.
type notegramService struct {
	storage   Storage
	publisher Publisher
	log       Logger
	config    *Config
	assembler *spectrogram.Assembler
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if !spectral.IsPowerOfTwo(cfg.WindowLength) {
		return nil, fmt.Errorf("%w (got %d)", spectral.ErrInvalidWindowLength, cfg.WindowLength)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger().WithPrefix("[notegram]")
	}

	stor := cfg.Storage
	if stor == nil && cfg.DBPath != "" {
		var err error
		stor, err = NewSQLiteStorage(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
	}

	pub := cfg.Publisher
	if pub == nil && cfg.PublishURL != "" {
		pub = publish.NewClient()
	}

	return &notegramService{
		storage:   stor,
		publisher: pub,
		log:       cfg.Logger,
		config:    cfg,
		assembler: spectrogram.NewAssembler(cfg.Backend),
	}, nil
}

// ProcessFolder runs every .wav file in dir, in name order, one at a time.
// With cropping on, all files are first probed in parallel to find the
// crop budget. Results carry no spectrogram matrix so a large batch holds
// at most one in memory.
func (s *notegramService) ProcessFolder(ctx context.Context, dir string) (*BatchResult, error) {
	files, err := utils.ListFiles(dir, ".wav")
	if err != nil {
		return nil, err
	}
	s.log.Infof("Found %d WAV files in %s", len(files), dir)

	batch := &BatchResult{}
	if s.config.Crop {
		budget, err := s.cropBudget(ctx, files)
		if err != nil {
			return nil, fmt.Errorf("crop budget: %w", err)
		}
		batch.CropBudget = budget
		s.log.Infof("Cropping every file to %d windows", budget)
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return batch, err
		}

		res, err := s.processFile(ctx, path, batch.CropBudget, s.config.Crop)
		if err != nil {
			if !s.config.ContinueOnError {
				return batch, fmt.Errorf("processing %s: %w", path, err)
			}
			s.log.Warnf("Skipping %s: %v", path, err)
			batch.Failed = append(batch.Failed, FileError{Path: path, Err: err})
			continue
		}
		res.Spectrogram = nil
		batch.Results = append(batch.Results, *res)
	}

	s.log.Infof("Processed %d files, %d failed", len(batch.Results), len(batch.Failed))
	return batch, nil
}

// cropBudget stats and probes every file concurrently.
func (s *notegramService) cropBudget(ctx context.Context, files []string) (int, error) {
	batch := make([]spectrogram.BatchFile, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, s.config.ProbeWorkers))
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			st, err := os.Stat(path)
			if err != nil {
				return err
			}
			info, err := audio.ProbeWav(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			batch[i] = spectrogram.BatchFile{
				Name:        filepath.Base(path),
				Size:        st.Size(),
				SampleCount: info.SampleCount,
			}
			s.log.Debugf("Probed %s: %s, %d samples", batch[i].Name, humanize.Bytes(uint64(st.Size())), info.SampleCount)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	return spectrogram.CropBudget(batch, s.config.WindowLength)
}

// ProcessFile decodes and assembles one WAV file, keeping at most limit
// windows when limit > 0, then writes the configured outputs.
func (s *notegramService) ProcessFile(ctx context.Context, path string, limit int) (*Result, error) {
	return s.processFile(ctx, path, limit, false)
}

// processFile is ProcessFile; with exact set, a file yielding fewer than
// limit windows fails before any output is written, so every spectrogram
// of a cropped batch has the same width.
func (s *notegramService) processFile(ctx context.Context, path string, limit int, exact bool) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf, err := audio.ReadWav(path)
	if err != nil {
		return nil, err
	}
	f := buf.Format
	s.log.Infof("Processing %s (%d Hz, %d-bit %s, %s)", path, f.SampleRate, f.BitDepth, f.Encoding, buf.Duration())

	source := filepath.Base(path)
	spec, err := s.assembler.Assemble(source, buf, s.config.WindowLength, limit)
	if err != nil {
		return nil, err
	}
	if exact && spec.Windows() != limit {
		return nil, fmt.Errorf("%s yields %d windows, crop budget is %d: %w",
			source, spec.Windows(), limit, spectrogram.ErrInsufficientSamples)
	}

	res := &Result{Source: source, Path: path, Format: f}
	if err := s.finish(ctx, res, spec, limit); err != nil {
		return nil, err
	}
	return res, nil
}

// Analyze decodes a WAV stream, typically an upload, and returns its
// spectrogram without writing outputs or recording a run. A windowLength
// of 0 uses the configured one.
func (s *notegramService) Analyze(ctx context.Context, name string, r io.Reader, windowLength int) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if windowLength == 0 {
		windowLength = s.config.WindowLength
	}

	buf, err := audio.DecodeWav(r)
	if err != nil {
		return nil, err
	}
	source := filepath.Base(name)
	spec, err := s.assembler.Assemble(source, buf, windowLength, 0)
	if err != nil {
		return nil, err
	}
	if s.config.Normalize {
		spec.Normalize(render.MaxMagnitude)
	}
	s.log.Debugf("Analyzed upload %s: %d windows", source, spec.Windows())

	return &Result{
		Source:      source,
		Format:      buf.Format,
		Windows:     spec.Windows(),
		Notes:       spec.Height(),
		Spectrogram: spec,
	}, nil
}

// AnalyzeSamples runs generated audio through the pipeline and writes the
// configured outputs under name.
func (s *notegramService) AnalyzeSamples(ctx context.Context, name string, samples []float64, sampleRate int) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf := audio.FromSamples(samples, sampleRate)
	source := filepath.Base(name)
	spec, err := s.assembler.Assemble(source, buf, s.config.WindowLength, 0)
	if err != nil {
		return nil, err
	}

	res := &Result{Source: source, Format: buf.Format}
	if err := s.finish(ctx, res, spec, 0); err != nil {
		return nil, err
	}
	return res, nil
}

// finish normalizes spec and writes, records and publishes it as configured.
func (s *notegramService) finish(ctx context.Context, res *Result, spec *spectrogram.Spectrogram, cropBudget int) error {
	if s.config.Normalize {
		spec.Normalize(render.MaxMagnitude)
	}
	res.Spectrogram = spec
	res.Windows = spec.Windows()
	res.Notes = spec.Height()

	if s.config.JSONDir != "" {
		path := filepath.Join(s.config.JSONDir, utils.ReplaceExt(res.Source, ".json"))
		if err := spectrogram.WriteFile(path, spec); err != nil {
			return fmt.Errorf("saving spectrogram: %w", err)
		}
		res.JSONPath = path
		s.log.Debugf("Saved %s", path)
	}

	if s.config.DrawDir != "" {
		img, err := s.Render(spec)
		if err != nil {
			return fmt.Errorf("drawing spectrogram: %w", err)
		}
		path := filepath.Join(s.config.DrawDir, utils.ReplaceExt(res.Source, s.config.ImageFormat.Ext()))
		if err := render.WriteFile(path, img, s.config.ImageFormat); err != nil {
			return err
		}
		res.ImagePath = path
		s.log.Debugf("Drew %s", path)
	}

	if s.storage != nil {
		id, err := s.storage.RegisterRun(Run{
			Source:       res.Source,
			SampleRate:   res.Format.SampleRate,
			BitDepth:     res.Format.BitDepth,
			WindowLength: spec.WindowLength,
			Windows:      res.Windows,
			Notes:        res.Notes,
			CropBudget:   cropBudget,
			JSONPath:     res.JSONPath,
			ImagePath:    res.ImagePath,
		})
		if err != nil {
			return fmt.Errorf("failed to register run: %w", err)
		}
		res.RunID = id
	}

	if s.publisher != nil && s.config.PublishURL != "" {
		if err := s.publisher.Send(ctx, s.config.PublishURL, spec); err != nil {
			return err
		}
		s.log.Debugf("Published %s to %s", res.Source, s.config.PublishURL)
	}

	s.log.Infof("%s: %d windows x %d notes", res.Source, res.Windows, res.Notes)
	return nil
}

// Render draws spec at the configured scale.
func (s *notegramService) Render(spec *spectrogram.Spectrogram) (image.Image, error) {
	img, err := render.Render(spec)
	if err != nil {
		return nil, err
	}
	return render.Scale(img, s.config.ImageScale), nil
}

func (s *notegramService) GetRun(id string) (*Run, error) {
	if s.storage == nil {
		return nil, ErrCatalogDisabled
	}
	return s.storage.GetRun(id)
}

// ListRuns returns all runs in the catalog, newest first.
func (s *notegramService) ListRuns() ([]Run, error) {
	if s.storage == nil {
		return nil, ErrCatalogDisabled
	}
	return s.storage.ListRuns()
}

func (s *notegramService) DeleteRun(id string) error {
	if s.storage == nil {
		return ErrCatalogDisabled
	}
	return s.storage.DeleteRun(id)
}

// Close releases all resources held by the service.
func (s *notegramService) Close() error {
	if s.storage == nil {
		return nil
	}
	return s.storage.Close()
}
