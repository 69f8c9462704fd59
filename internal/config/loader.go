package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults applied by [LoadFromReader] for fields left empty.
const (
	DefaultLiveModel        = "gemini-2.0-flash-live-001"
	DefaultGradingModel     = "gemini-2.0-flash"
	DefaultVoice            = "Puck"
	DefaultCaptureRate      = 16000
	DefaultPlaybackRate     = 24000
	DefaultFrameSize        = 4096
	DefaultBoardWidth       = 1024
	DefaultBoardHeight      = 768
	DefaultSampleIntervalMS = 1000
	DefaultJPEGQuality      = 60
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and the
// GEMINI_API_KEY environment override, and validates the result. Useful in
// tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.Gemini.APIKey = key
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero-valued fields with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = LogInfo
	}
	if cfg.Gemini.LiveModel == "" {
		cfg.Gemini.LiveModel = DefaultLiveModel
	}
	if cfg.Gemini.GradingModel == "" {
		cfg.Gemini.GradingModel = DefaultGradingModel
	}
	if cfg.Gemini.Voice == "" {
		cfg.Gemini.Voice = DefaultVoice
	}
	if cfg.Audio.CaptureRate == 0 {
		cfg.Audio.CaptureRate = DefaultCaptureRate
	}
	if cfg.Audio.PlaybackRate == 0 {
		cfg.Audio.PlaybackRate = DefaultPlaybackRate
	}
	if cfg.Audio.FrameSize == 0 {
		cfg.Audio.FrameSize = DefaultFrameSize
	}
	if cfg.Board.Width == 0 {
		cfg.Board.Width = DefaultBoardWidth
	}
	if cfg.Board.Height == 0 {
		cfg.Board.Height = DefaultBoardHeight
	}
	if cfg.Board.SampleIntervalMS == 0 {
		cfg.Board.SampleIntervalMS = DefaultSampleIntervalMS
	}
	if cfg.Board.JPEGQuality == 0 {
		cfg.Board.JPEGQuality = DefaultJPEGQuality
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}
	if cfg.Gemini.APIKey == "" {
		errs = append(errs, errors.New("gemini.api_key is required (or set GEMINI_API_KEY)"))
	}
	if cfg.Audio.CaptureRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.capture_rate %d must be positive", cfg.Audio.CaptureRate))
	}
	if cfg.Audio.PlaybackRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.playback_rate %d must be positive", cfg.Audio.PlaybackRate))
	}
	if cfg.Audio.FrameSize <= 0 {
		errs = append(errs, fmt.Errorf("audio.frame_size %d must be positive", cfg.Audio.FrameSize))
	}
	if cfg.Board.Width <= 0 || cfg.Board.Height <= 0 {
		errs = append(errs, fmt.Errorf("board dimensions %dx%d must be positive", cfg.Board.Width, cfg.Board.Height))
	}
	if cfg.Board.SampleIntervalMS < 100 {
		errs = append(errs, fmt.Errorf("board.sample_interval_ms %d is below the 100ms minimum", cfg.Board.SampleIntervalMS))
	}
	if cfg.Board.JPEGQuality < 1 || cfg.Board.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("board.jpeg_quality %d is out of range [1, 100]", cfg.Board.JPEGQuality))
	}

	return errors.Join(errs...)
}
