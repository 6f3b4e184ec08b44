package config

import (
	"strings"
	"testing"
	"time"
)

var (
	_ Validatable = LLMProviderConfig{}
	_ Validatable = ChannelConfig{}
	_ Validatable = DatabaseConfig{}
	_ Validatable = ColdStoreConfig{}
	_ Validatable = EngineConfig{}
)

func baseValidConfig() *Config {
	return &Config{
		Database:  DatabaseConfig{DSN: "postgres://u:p@db/convoyd"},
		ColdStore: ColdStoreConfig{URI: "mongodb://db", Collection: "order_logs"},
		Engine:    EngineConfig{MaxToolIterations: 6},
		LLM: map[string]LLMProviderConfig{
			"default": {Provider: "anthropic", APIKey: "k", Model: "m", RequestTimeout: time.Second},
		},
		Channels: map[string]ChannelConfig{
			"telegram": {Enabled: true, Token: "t"},
		},
	}
}

func TestValidate_HardFailNoLLM(t *testing.T) {
	cfg := baseValidConfig()
	cfg.LLM = map[string]LLMProviderConfig{}

	_, err := ValidateStartup(cfg)
	if err == nil {
		t.Fatalf("expected error for missing llm profiles")
	}
}

func TestValidate_MissingChannelsIsWarningNotError(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Channels = map[string]ChannelConfig{}

	report, err := ValidateStartup(cfg)
	if err != nil {
		t.Fatalf("expected no hard error for missing channels, got %v", err)
	}
	if len(report.Warnings) == 0 {
		t.Fatalf("expected a warning about missing channels")
	}
}

func TestValidate_AnthropicRequiresAPIKey(t *testing.T) {
	cfg := baseValidConfig()
	llm := cfg.LLM["default"]
	llm.APIKey = ""
	cfg.LLM["default"] = llm

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "api_key is required") {
		t.Fatalf("expected anthropic api_key validation error, got %v", err)
	}
}

func TestValidate_UnsupportedProviderFails(t *testing.T) {
	cfg := baseValidConfig()
	llm := cfg.LLM["default"]
	llm.Provider = "ollama"
	cfg.LLM["default"] = llm

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "unsupported provider") {
		t.Fatalf("expected unsupported provider error, got %v", err)
	}
}

func TestValidate_MissingDatabaseDSNFails(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Database.DSN = ""

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "dsn is required") {
		t.Fatalf("expected dsn validation error, got %v", err)
	}
}

func TestValidate_MissingColdStoreCollectionFails(t *testing.T) {
	cfg := baseValidConfig()
	cfg.ColdStore.Collection = ""

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "collection is required") {
		t.Fatalf("expected collection validation error, got %v", err)
	}
}

func TestValidate_NonPositiveMaxToolIterationsFails(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Engine.MaxToolIterations = 0

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "max_tool_iterations must be positive") {
		t.Fatalf("expected max_tool_iterations validation error, got %v", err)
	}
}

func TestValidate_ChannelEnabledWithoutTokenFails(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Channels["telegram"] = ChannelConfig{Enabled: true, Token: ""}

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "token is required") {
		t.Fatalf("expected token validation error, got %v", err)
	}
}

func TestValidate_DisabledChannelWithoutTokenPasses(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Channels["telegram"] = ChannelConfig{Enabled: false}

	if err := Validate(cfg); err != nil {
		t.Fatalf("expected disabled channel without token to pass, got %v", err)
	}
}
