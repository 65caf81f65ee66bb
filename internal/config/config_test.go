package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	os.Setenv("OPENROUTER_API_KEY", "test-openrouter-key")
	os.Setenv("DEEPGRAM_API_KEY", "test-deepgram-key")
	defer os.Unsetenv("OPENROUTER_API_KEY")
	defer os.Unsetenv("DEEPGRAM_API_KEY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.CompletionAPIKey != "test-openrouter-key" {
		t.Errorf("Expected CompletionAPIKey 'test-openrouter-key', got '%s'", cfg.CompletionAPIKey)
	}

	if cfg.DeepgramAPIKey != "test-deepgram-key" {
		t.Errorf("Expected DeepgramAPIKey 'test-deepgram-key', got '%s'", cfg.DeepgramAPIKey)
	}
}

func TestLoad_MissingKeysAllowed(t *testing.T) {
	os.Unsetenv("OPENROUTER_API_KEY")
	os.Unsetenv("DEEPGRAM_API_KEY")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("Expected missing keys to be allowed, got %v", err)
	}
	if cfg.CompletionAPIKey != "" {
		t.Errorf("Expected empty CompletionAPIKey, got '%s'", cfg.CompletionAPIKey)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected default Port '8080', got '%s'", cfg.Port)
	}

	if cfg.CompletionModel != "deepseek/deepseek-chat-v3-0324:free" {
		t.Errorf("Expected default CompletionModel, got '%s'", cfg.CompletionModel)
	}

	if cfg.CompletionURL != "https://openrouter.ai/api/v1/chat/completions" {
		t.Errorf("Expected default CompletionURL, got '%s'", cfg.CompletionURL)
	}

	if cfg.CacheSize != 100 || cfg.AudioCacheSize != 100 {
		t.Errorf("Expected default cache sizes 100/100, got %d/%d", cfg.CacheSize, cfg.AudioCacheSize)
	}

	if cfg.SynthesisWorkers != 3 {
		t.Errorf("Expected default SynthesisWorkers 3, got %d", cfg.SynthesisWorkers)
	}

	if cfg.TTSLanguage != "en" || cfg.TTSSlow {
		t.Errorf("Expected default TTS locale 'en' and non-slow rate, got '%s' slow=%v", cfg.TTSLanguage, cfg.TTSSlow)
	}

	if cfg.Persona != "assistant" {
		t.Errorf("Expected default Persona 'assistant', got '%s'", cfg.Persona)
	}

	if cfg.DeepgramModel != "nova-2" {
		t.Errorf("Expected default DeepgramModel 'nova-2', got '%s'", cfg.DeepgramModel)
	}
}

func TestConfig_SurfaceBudgets(t *testing.T) {
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.WebCompletionBudget() != 10*time.Second {
		t.Errorf("Expected web budget 10s, got %v", cfg.WebCompletionBudget())
	}
	if cfg.VoiceCompletionBudget() != 30*time.Second {
		t.Errorf("Expected voice budget 30s, got %v", cfg.VoiceCompletionBudget())
	}
	if cfg.SynthesisBudget() != 20*time.Second {
		t.Errorf("Expected synthesis budget 20s, got %v", cfg.SynthesisBudget())
	}
	if cfg.WebTemperature != 0.7 || cfg.WebMaxTokens != 150 {
		t.Errorf("Expected web temperature 0.7 / max tokens 150, got %v / %d", cfg.WebTemperature, cfg.WebMaxTokens)
	}
}

func TestLoad_RejectsNonPositive(t *testing.T) {
	os.Setenv("SYNTHESIS_WORKERS", "0")
	defer os.Unsetenv("SYNTHESIS_WORKERS")

	_, err := LoadFromEnv()
	if err == nil {
		t.Error("Expected error for SYNTHESIS_WORKERS=0")
	}
}

func TestGetEnv(t *testing.T) {
	os.Setenv("TEST_KEY", "test-value")
	defer os.Unsetenv("TEST_KEY")

	value := GetEnv("TEST_KEY", "default")
	if value != "test-value" {
		t.Errorf("Expected 'test-value', got '%s'", value)
	}

	value = GetEnv("NON_EXISTENT_KEY", "default")
	if value != "default" {
		t.Errorf("Expected 'default', got '%s'", value)
	}
}

func TestConfig_ObservabilityDefaults(t *testing.T) {
	os.Unsetenv("LOG_LEVEL")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected default LogLevel 'info', got '%s'", cfg.LogLevel)
	}

	if cfg.LogPretty {
		t.Error("Expected default LogPretty false, got true")
	}

	if !cfg.MetricsEnabled {
		t.Error("Expected default MetricsEnabled true, got false")
	}

	if cfg.GRPCHealthPort != "" {
		t.Errorf("Expected gRPC health server disabled by default, got port '%s'", cfg.GRPCHealthPort)
	}
}
