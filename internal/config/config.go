package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultWindowLength = 1024

// Config holds every setting the CLI and server read from the environment
// or a config file. Field tags name the keys in TOML and YAML files.
type Config struct {
	InputDir        string `toml:"input_dir" yaml:"input_dir"`
	JSONDir         string `toml:"json_dir" yaml:"json_dir"`
	DrawDir         string `toml:"draw_dir" yaml:"draw_dir"`
	WindowLength    int    `toml:"window_length" yaml:"window_length"`
	Save            bool   `toml:"save" yaml:"save"`
	Draw            bool   `toml:"draw" yaml:"draw"`
	Crop            bool   `toml:"crop" yaml:"crop"`
	Normalize       bool   `toml:"normalize" yaml:"normalize"`
	ContinueOnError bool   `toml:"continue_on_error" yaml:"continue_on_error"`
	ImageFormat     string `toml:"image_format" yaml:"image_format"`
	ImageScale      int    `toml:"image_scale" yaml:"image_scale"`
	FFTBackend      string `toml:"fft_backend" yaml:"fft_backend"`
	PublishURL      string `toml:"publish_url" yaml:"publish_url"`
	DBPath          string `toml:"db_path" yaml:"db_path"`
	LogLevel        string `toml:"log_level" yaml:"log_level"`
}

func Default() *Config {
	return &Config{
		InputDir:     "audio",
		JSONDir:      "out/json",
		DrawDir:      "out/draw",
		WindowLength: DefaultWindowLength,
		Normalize:    true,
		ImageFormat:  "png",
		ImageScale:   1,
		FFTBackend:   "godsp",
		DBPath:       "notegram.sqlite3",
		LogLevel:     "INFO",
	}
}

// Load builds a Config from defaults, then the optional file at path, then
// the environment. A .env file in the working directory is loaded into the
// environment first; variables already set win over it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads path into the environment. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadFile(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, c); err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config file %s: use .toml, .yaml or .yml", path)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("AUDIO_IN_FOLDER", &c.InputDir)
	str("OUT_FOLDER_JSON", &c.JSONDir)
	str("OUT_FOLDER_DRAW", &c.DrawDir)
	num("RESOLUTION", &c.WindowLength)
	flag("SAVE", &c.Save)
	flag("DRAW", &c.Draw)
	flag("CROP", &c.Crop)
	flag("NORMALIZE", &c.Normalize)
	flag("CONTINUE_ON_ERROR", &c.ContinueOnError)
	str("IMAGE_FORMAT", &c.ImageFormat)
	num("IMAGE_SCALE", &c.ImageScale)
	str("FFT_BACKEND", &c.FFTBackend)
	str("PUBLISH_URL", &c.PublishURL)
	str("NOTEGRAM_DB_PATH", &c.DBPath)
	str("LOG_LEVEL", &c.LogLevel)

	return errors.Join(errs...)
}

// Validate rejects settings no pipeline run could use.
func (c *Config) Validate() error {
	if c.WindowLength <= 0 || c.WindowLength&(c.WindowLength-1) != 0 {
		return fmt.Errorf("window length %d is not a positive power of two", c.WindowLength)
	}
	if c.ImageScale < 1 {
		return fmt.Errorf("image scale %d must be at least 1", c.ImageScale)
	}
	if c.InputDir == "" {
		return errors.New("input folder is not set")
	}
	return nil
}
