package notegram

import (
	"fmt"
	"time"

	"github.com/himanishpuri/NoteGram/internal/config"
	"github.com/himanishpuri/NoteGram/internal/render"
	"github.com/himanishpuri/NoteGram/internal/spectral"
)

type Config struct {
	WindowLength    int
	Backend         spectral.Backend
	Crop            bool
	Normalize       bool
	ContinueOnError bool

	// Outputs. An empty directory disables that output.
	JSONDir     string
	DrawDir     string
	ImageFormat render.Format
	ImageScale  int

	PublishURL string

	// DBPath locates the run catalog; empty disables it unless Storage is set.
	DBPath string

	ProbeWorkers  int
	WatchDebounce time.Duration

	Logger    Logger
	Storage   Storage
	Publisher Publisher
}

type Option func(*Config)

func WithWindowLength(n int) Option {
	return func(c *Config) {
		c.WindowLength = n
	}
}

func WithBackend(b spectral.Backend) Option {
	return func(c *Config) {
		c.Backend = b
	}
}

// WithCrop truncates every file of a folder run to the crop budget.
func WithCrop(crop bool) Option {
	return func(c *Config) {
		c.Crop = crop
	}
}

// WithNormalize scales each spectrogram so its peak is 255.
func WithNormalize(normalize bool) Option {
	return func(c *Config) {
		c.Normalize = normalize
	}
}

// WithContinueOnError logs and skips failing files instead of aborting.
func WithContinueOnError(cont bool) Option {
	return func(c *Config) {
		c.ContinueOnError = cont
	}
}

// WithJSONDir saves each spectrogram as JSON in dir.
func WithJSONDir(dir string) Option {
	return func(c *Config) {
		c.JSONDir = dir
	}
}

// WithDrawDir renders each spectrogram into dir.
func WithDrawDir(dir string) Option {
	return func(c *Config) {
		c.DrawDir = dir
	}
}

func WithImageFormat(f render.Format) Option {
	return func(c *Config) {
		c.ImageFormat = f
	}
}

func WithImageScale(factor int) Option {
	return func(c *Config) {
		c.ImageScale = factor
	}
}

// WithPublishURL POSTs every finished spectrogram to url.
func WithPublishURL(url string) Option {
	return func(c *Config) {
		c.PublishURL = url
	}
}

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

func WithProbeWorkers(n int) Option {
	return func(c *Config) {
		c.ProbeWorkers = n
	}
}

func WithWatchDebounce(d time.Duration) Option {
	return func(c *Config) {
		c.WatchDebounce = d
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithStorage(storage Storage) Option {
	return func(c *Config) {
		c.Storage = storage
	}
}

func WithPublisher(p Publisher) Option {
	return func(c *Config) {
		c.Publisher = p
	}
}

// OptionsFromConfig translates loaded settings into service options.
// Save and Draw off leave the matching directory unset.
func OptionsFromConfig(cfg *config.Config) ([]Option, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	backend, err := spectral.ParseBackend(cfg.FFTBackend)
	if err != nil {
		return nil, err
	}
	format, err := render.ParseFormat(cfg.ImageFormat)
	if err != nil {
		return nil, fmt.Errorf("image format: %w", err)
	}

	opts := []Option{
		WithWindowLength(cfg.WindowLength),
		WithBackend(backend),
		WithCrop(cfg.Crop),
		WithNormalize(cfg.Normalize),
		WithContinueOnError(cfg.ContinueOnError),
		WithImageFormat(format),
		WithImageScale(cfg.ImageScale),
		WithPublishURL(cfg.PublishURL),
		WithDBPath(cfg.DBPath),
	}
	if cfg.Save {
		opts = append(opts, WithJSONDir(cfg.JSONDir))
	}
	if cfg.Draw {
		opts = append(opts, WithDrawDir(cfg.DrawDir))
	}
	return opts, nil
}

func defaultConfig() *Config {
	return &Config{
		WindowLength:  config.DefaultWindowLength,
		Backend:       spectral.GoDSP,
		Normalize:     true,
		ImageFormat:   render.PNG,
		ImageScale:    1,
		ProbeWorkers:  4,
		WatchDebounce: 500 * time.Millisecond,
		Logger:        nil,
	}
}
