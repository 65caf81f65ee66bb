package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the voicebot process.
// The same struct serves both surfaces; each surface reads the fields it needs.
type Config struct {
	// Web surface
	Port string `envconfig:"PORT" default:"8080"`

	// Completion service (OpenRouter-compatible chat completions endpoint).
	// A missing key is allowed: every completion then falls back.
	CompletionAPIKey  string `envconfig:"OPENROUTER_API_KEY" default:""`
	CompletionModel   string `envconfig:"DEFAULT_MODEL" default:"deepseek/deepseek-chat-v3-0324:free"`
	CompletionURL     string `envconfig:"COMPLETION_URL" default:"https://openrouter.ai/api/v1/chat/completions"`
	CompletionReferer string `envconfig:"COMPLETION_REFERER" default:"https://github.com/"`
	CompletionTitle   string `envconfig:"COMPLETION_TITLE" default:"AI Voice Bot"`

	// The two surfaces intentionally use different completion budgets (seconds)
	WebCompletionTimeout   int     `envconfig:"WEB_COMPLETION_TIMEOUT" default:"10"`
	VoiceCompletionTimeout int     `envconfig:"VOICE_COMPLETION_TIMEOUT" default:"30"`
	WebTemperature         float64 `envconfig:"WEB_TEMPERATURE" default:"0.7"`
	WebMaxTokens           int     `envconfig:"WEB_MAX_TOKENS" default:"150"`

	// Persona selection; PersonaFile is an optional YAML catalogue
	Persona     string `envconfig:"PERSONA" default:"assistant"`
	PersonaFile string `envconfig:"PERSONA_FILE" default:""`

	// Speech synthesis
	TTSProviders   string `envconfig:"TTS_PROVIDERS" default:"gtts"` // comma separated, tried in order
	TTSLanguage    string `envconfig:"TTS_LANGUAGE" default:"en"`
	TTSSlow        bool   `envconfig:"TTS_SLOW" default:"false"`
	TTSTimeout     int    `envconfig:"TTS_TIMEOUT" default:"20"` // seconds
	GTTSURL        string `envconfig:"GTTS_URL" default:"https://translate.google.com/translate_tts"`
	OpenAIAPIKey   string `envconfig:"OPENAI_API_KEY" default:""`
	OpenAITTSModel string `envconfig:"OPENAI_TTS_MODEL" default:"tts-1"`
	OpenAITTSVoice string `envconfig:"OPENAI_TTS_VOICE" default:"alloy"`

	// Cartesia TTS API configuration
	CartesiaAPIKey  string `envconfig:"CARTESIA_API_KEY" default:""`
	CartesiaVoiceID string `envconfig:"CARTESIA_VOICE_ID" default:"a0e99841-438c-4a64-b679-ae501e7d6091"`
	CartesiaModelID string `envconfig:"CARTESIA_MODEL_ID" default:"sonic-english"`

	// Response caches and synthesis pool
	CacheSize        int `envconfig:"CACHE_SIZE" default:"100"`
	AudioCacheSize   int `envconfig:"AUDIO_CACHE_SIZE" default:"100"`
	SynthesisWorkers int `envconfig:"SYNTHESIS_WORKERS" default:"3"`

	// Deepgram STT API configuration (voice surface only)
	DeepgramAPIKey   string `envconfig:"DEEPGRAM_API_KEY" default:""`
	DeepgramModel    string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"` // nova-2, enhanced, base
	DeepgramLanguage string `envconfig:"DEEPGRAM_LANGUAGE" default:"en"`

	// Microphone capture and voice activity detection
	RecorderCommand    string  `envconfig:"RECORDER_COMMAND" default:""` // empty picks arecord/sox by OS
	MicSampleRate      int     `envconfig:"MIC_SAMPLE_RATE" default:"16000"`
	AudioBufferSize    int     `envconfig:"AUDIO_BUFFER_SIZE" default:"16000"` // pre-roll ring buffer in bytes
	VADEnergyThreshold float64 `envconfig:"VAD_ENERGY_THRESHOLD" default:"300.0"`
	VADSilenceFrames   int     `envconfig:"VAD_SILENCE_FRAMES" default:"40"` // 20ms frames
	CalibrationMs      int     `envconfig:"CALIBRATION_MS" default:"1000"`
	MaxUtteranceMs     int     `envconfig:"MAX_UTTERANCE_MS" default:"15000"`

	// Playback
	PlayerCommand     string `envconfig:"PLAYER_COMMAND" default:""`         // empty picks xdg-open/open/start by OS
	PlaybackCharDelay int    `envconfig:"PLAYBACK_CHAR_DELAY" default:"100"` // ms per character when duration is unknown

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // seconds
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"2"`
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"` // milliseconds
	ReconnectMaxAttempts       int `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"3"`
	ReconnectBackoff           int `envconfig:"RECONNECT_BACKOFF" default:"500"` // milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
	GRPCHealthPort string `envconfig:"GRPC_HEALTH_PORT" default:""` // empty disables the gRPC health server
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	positive := map[string]int{
		"CACHE_SIZE":               c.CacheSize,
		"AUDIO_CACHE_SIZE":         c.AudioCacheSize,
		"SYNTHESIS_WORKERS":        c.SynthesisWorkers,
		"WEB_COMPLETION_TIMEOUT":   c.WebCompletionTimeout,
		"VOICE_COMPLETION_TIMEOUT": c.VoiceCompletionTimeout,
		"TTS_TIMEOUT":              c.TTSTimeout,
		"MIC_SAMPLE_RATE":          c.MicSampleRate,
		"AUDIO_BUFFER_SIZE":        c.AudioBufferSize,
	}
	for name, v := range positive {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, v)
		}
	}
	if c.TTSProviders == "" {
		return fmt.Errorf("TTS_PROVIDERS must name at least one provider")
	}
	return nil
}

// WebCompletionBudget is the completion timeout used by the web surface.
func (c *Config) WebCompletionBudget() time.Duration {
	return time.Duration(c.WebCompletionTimeout) * time.Second
}

// VoiceCompletionBudget is the completion timeout used by the voice surface.
func (c *Config) VoiceCompletionBudget() time.Duration {
	return time.Duration(c.VoiceCompletionTimeout) * time.Second
}

// SynthesisBudget bounds a single synthesis call.
func (c *Config) SynthesisBudget() time.Duration {
	return time.Duration(c.TTSTimeout) * time.Second
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
