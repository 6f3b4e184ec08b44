package config

import (
	"errors"
	"fmt"
)

// Validatable is implemented by config sections that can self-validate.
type Validatable interface {
	Validate() error
}

// ValidationReport carries non-fatal startup warnings.
type ValidationReport struct {
	Warnings []string
}

func (c LLMProviderConfig) Validate() error {
	if c.Provider == "" {
		return errors.New("provider is required")
	}
	if c.Model == "" {
		return errors.New("model is required")
	}
	switch c.Provider {
	case "anthropic", "openrouter":
		if c.APIKey == "" {
			return errors.New("api_key is required")
		}
	default:
		return fmt.Errorf("unsupported provider %q", c.Provider)
	}
	return nil
}

func (c ChannelConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Token == "" {
		return errors.New("token is required when enabled=true")
	}
	return nil
}

func (c DatabaseConfig) Validate() error {
	if c.DSN == "" {
		return errors.New("dsn is required")
	}
	return nil
}

func (c ColdStoreConfig) Validate() error {
	if c.URI == "" {
		return errors.New("uri is required")
	}
	if c.Collection == "" {
		return errors.New("collection is required")
	}
	return nil
}

func (c EngineConfig) Validate() error {
	if c.MaxToolIterations <= 0 {
		return errors.New("max_tool_iterations must be positive")
	}
	return nil
}

// Validate checks a fully-loaded Config and returns the first hard error.
// Use ValidateStartup for a full report including non-fatal warnings.
func Validate(cfg *Config) error {
	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := cfg.ColdStore.Validate(); err != nil {
		return fmt.Errorf("coldstore: %w", err)
	}
	if err := cfg.Engine.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	for name, llmCfg := range cfg.LLM {
		if err := llmCfg.Validate(); err != nil {
			return fmt.Errorf("llm.%s: %w", name, err)
		}
	}
	for name, chCfg := range cfg.Channels {
		if err := chCfg.Validate(); err != nil {
			return fmt.Errorf("channels.%s: %w", name, err)
		}
	}
	return nil
}

// ValidateStartup validates startup configuration and returns warning
// messages alongside a joined error for anything fatal.
func ValidateStartup(cfg *Config) (*ValidationReport, error) {
	var errs []error
	report := &ValidationReport{}

	if len(cfg.LLM) == 0 {
		errs = append(errs, errors.New("at least one llm.* profile is required"))
	}
	if len(cfg.Channels) == 0 {
		report.Warnings = append(report.Warnings, "no channels.* entries configured; outbound dispatch has nothing to send through")
	}

	if err := Validate(cfg); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return report, errors.Join(errs...)
	}
	return report, nil
}
