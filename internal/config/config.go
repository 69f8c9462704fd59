// Package config provides the configuration schema and loader for the
// sketchmentor tutoring client.
package config

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader].
type Config struct {
	// LogLevel controls verbosity. Defaults to info.
	LogLevel LogLevel `yaml:"log_level"`

	Gemini GeminiConfig `yaml:"gemini"`
	Audio  AudioConfig  `yaml:"audio"`
	Board  BoardConfig  `yaml:"board"`

	// Rubric describes the drawing exercise. The mentor greets the student
	// with it and the grader assesses against it. Optional.
	Rubric string `yaml:"rubric"`
}

// GeminiConfig holds credentials and model selection for both the live
// session and the one-shot grading call.
type GeminiConfig struct {
	// APIKey authenticates against the Generative Language API. The
	// GEMINI_API_KEY environment variable takes precedence when set.
	APIKey string `yaml:"api_key"`

	// LiveModel is the realtime speech model.
	LiveModel string `yaml:"live_model"`

	// GradingModel is the non-streaming model used for assessment.
	GradingModel string `yaml:"grading_model"`

	// Voice selects the prebuilt voice for synthesized speech.
	Voice string `yaml:"voice"`

	// BaseURL overrides the WebSocket endpoint, mainly for tests.
	BaseURL string `yaml:"base_url"`
}

// AudioConfig holds sample-rate and framing settings.
type AudioConfig struct {
	// CaptureRate is the microphone sample rate in Hz. The uplink expects
	// 16000.
	CaptureRate int `yaml:"capture_rate"`

	// PlaybackRate is the synthesized speech sample rate in Hz. The service
	// delivers 24000.
	PlaybackRate int `yaml:"playback_rate"`

	// FrameSize is the number of samples per uplink chunk.
	FrameSize int `yaml:"frame_size"`
}

// BoardConfig holds drawing surface and visual uplink settings.
type BoardConfig struct {
	// Width and Height are the board's pixel dimensions.
	Width  int `yaml:"width"`
	Height int `yaml:"height"`

	// SampleIntervalMS is the delay between visual frames in milliseconds.
	SampleIntervalMS int `yaml:"sample_interval_ms"`

	// JPEGQuality is the frame encode quality, 1-100.
	JPEGQuality int `yaml:"jpeg_quality"`
}
