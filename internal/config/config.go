package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config is the persisted runtime configuration for a batch run.
type Config struct {
	// OutputRoot is the directory output webp files and the aggregate
	// data.json are written under.
	OutputRoot string `yaml:"output_root"`

	// Inputs is a list of file paths or glob patterns identifying the
	// images to process. Resolved at startup, not re-read per run.
	Inputs []string `yaml:"inputs"`

	// Workers is the number of images processed concurrently (default:
	// runtime.NumCPU(); values below 1 are raised to 1).
	Workers int `yaml:"workers"`

	// FFmpegPath is the path to the ffmpeg binary used for VMAF scoring
	// (default: "ffmpeg").
	FFmpegPath string `yaml:"ffmpeg_path"`

	// TempDir is the scratch directory for rawvideo YUV frames written
	// during scoring. If empty, os.TempDir() is used.
	TempDir string `yaml:"temp_dir"`

	// LogLevel controls logging verbosity: debug, info, warn, error
	// (default: info).
	LogLevel string `yaml:"log_level"`

	// Resume enables the optional SQLite cache of completed images,
	// stored at <output_root>/.webpq-cache.sqlite, so a rerun over the
	// same inputs skips images already processed successfully. Off by
	// default: with it disabled the run persists nothing beyond the
	// output images and data.json.
	Resume bool `yaml:"resume"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		OutputRoot: "./out",
		Inputs:     nil,
		Workers:    runtime.NumCPU(),
		FFmpegPath: "ffmpeg",
		TempDir:    "",
		LogLevel:   "info",
		Resume:     false,
	}
}

// Load reads config from a YAML file, applying defaults for missing
// values. If path does not exist, a default config is written there
// and returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if saveErr := cfg.Save(path); saveErr != nil {
				fmt.Printf("Warning: Could not create config file: %v\n", saveErr)
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.OutputRoot == "" {
		cfg.OutputRoot = "./out"
	}

	return cfg, nil
}

// Save writes the config to a YAML file, creating parent directories
// as needed.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

// CacheFile returns the path of the optional resume cache, always
// inside OutputRoot so no state is persisted outside it.
func (c *Config) CacheFile() string {
	return filepath.Join(c.OutputRoot, ".webpq-cache.sqlite")
}

// ScratchDir returns the directory scoring scratch files are written
// under, defaulting to the OS temp directory.
func (c *Config) ScratchDir() string {
	if c.TempDir != "" {
		return c.TempDir
	}
	return os.TempDir()
}
