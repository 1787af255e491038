package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func envMap(m map[string]string) lookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.WindowLength != 1024 || cfg.ImageFormat != "png" || !cfg.Normalize {
		t.Errorf("Unexpected defaults %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Defaults should validate: %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(envMap(map[string]string{
		"AUDIO_IN_FOLDER": "wavs",
		"OUT_FOLDER_JSON": "json",
		"RESOLUTION":      "2048",
		"SAVE":            "true",
		"DRAW":            "1",
		"CROP":            "TRUE",
		"NORMALIZE":       "false",
		"IMAGE_SCALE":     "4",
		"FFT_BACKEND":     "gonum",
		"OUT_FOLDER_DRAW": "",
	}))
	if err != nil {
		t.Fatalf("applyEnv failed: %v", err)
	}

	if cfg.InputDir != "wavs" || cfg.JSONDir != "json" || cfg.WindowLength != 2048 {
		t.Errorf("String and number overrides not applied: %+v", cfg)
	}
	if !cfg.Save || !cfg.Draw || !cfg.Crop || cfg.Normalize {
		t.Errorf("Flag overrides not applied: %+v", cfg)
	}
	if cfg.ImageScale != 4 || cfg.FFTBackend != "gonum" {
		t.Errorf("Unexpected %+v", cfg)
	}
	if cfg.DrawDir != "out/draw" {
		t.Errorf("Empty variable should keep default, got %q", cfg.DrawDir)
	}
}

func TestApplyEnvErrors(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(envMap(map[string]string{
		"RESOLUTION": "lots",
		"SAVE":       "maybe",
	}))
	if err == nil {
		t.Fatal("Expected error")
	}
	if !strings.Contains(err.Error(), "RESOLUTION") || !strings.Contains(err.Error(), "SAVE") {
		t.Errorf("Expected both keys reported, got %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	tomlPath := filepath.Join(dir, "notegram.toml")
	os.WriteFile(tomlPath, []byte("input_dir = \"in\"\nwindow_length = 512\ndraw = true\n"), 0644)

	yamlPath := filepath.Join(dir, "notegram.yaml")
	os.WriteFile(yamlPath, []byte("input_dir: in\nwindow_length: 4096\ncrop: true\nimage_format: bmp\n"), 0644)

	cfg := Default()
	if err := cfg.loadFile(tomlPath); err != nil {
		t.Fatalf("TOML load failed: %v", err)
	}
	if cfg.InputDir != "in" || cfg.WindowLength != 512 || !cfg.Draw || cfg.JSONDir != "out/json" {
		t.Errorf("Unexpected TOML config %+v", cfg)
	}

	cfg = Default()
	if err := cfg.loadFile(yamlPath); err != nil {
		t.Fatalf("YAML load failed: %v", err)
	}
	if cfg.WindowLength != 4096 || !cfg.Crop || cfg.ImageFormat != "bmp" {
		t.Errorf("Unexpected YAML config %+v", cfg)
	}

	if err := Default().loadFile(filepath.Join(dir, "notegram.ini")); err == nil {
		t.Error("Expected error for unknown extension")
	}
	if err := Default().loadFile(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notegram.toml")
	os.WriteFile(path, []byte("window_length = 512\ninput_dir = \"from-file\"\n"), 0644)

	t.Setenv("RESOLUTION", "256")
	t.Setenv("AUDIO_IN_FOLDER", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.WindowLength != 256 {
		t.Errorf("Environment should override the file, got %d", cfg.WindowLength)
	}
	if cfg.InputDir != "from-file" {
		t.Errorf("File should override defaults, got %q", cfg.InputDir)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	os.WriteFile(path, []byte("NOTEGRAM_TEST_DOTENV=loaded\n"), 0644)
	t.Setenv("NOTEGRAM_TEST_DOTENV", "")
	os.Unsetenv("NOTEGRAM_TEST_DOTENV")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv failed: %v", err)
	}
	if got := os.Getenv("NOTEGRAM_TEST_DOTENV"); got != "loaded" {
		t.Errorf("Expected variable from .env, got %q", got)
	}

	if err := LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("Missing .env should be ignored, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"window not power of two", func(c *Config) { c.WindowLength = 1000 }},
		{"zero window", func(c *Config) { c.WindowLength = 0 }},
		{"zero scale", func(c *Config) { c.ImageScale = 0 }},
		{"no input", func(c *Config) { c.InputDir = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}
