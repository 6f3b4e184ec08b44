package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), ".convoyd")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		t.Fatalf("mkdir data dir: %v", err)
	}
	t.Setenv("CONVOYD_HOME", dataDir)

	configBody := `
[llm.default]
api_key = "test-key"
provider = "openrouter"
model = "deepseek/deepseek-chat"
request_timeout = "45s"

[channels.telegram]
enabled = false
token = "bot-token"

[database]
dsn = "postgres://u:p@db:5432/convoyd"
`
	if err := os.WriteFile(filepath.Join(dataDir, "config.toml"), []byte(configBody), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	llm := cfg.DefaultLLM()
	if llm.APIKey != "test-key" {
		t.Fatalf("expected api key %q, got %q", "test-key", llm.APIKey)
	}
	if llm.Provider != "openrouter" {
		t.Fatalf("expected provider %q, got %q", "openrouter", llm.Provider)
	}
	if llm.RequestTimeout != 45*time.Second {
		t.Fatalf("expected request timeout %v, got %v", 45*time.Second, llm.RequestTimeout)
	}

	telegram := cfg.Channel("telegram")
	if telegram.Enabled {
		t.Fatalf("expected telegram channel to be disabled from file")
	}
	if telegram.Token != "bot-token" {
		t.Fatalf("expected telegram token from file, got %q", telegram.Token)
	}
	if cfg.Database.DSN != "postgres://u:p@db:5432/convoyd" {
		t.Fatalf("expected database dsn override, got %q", cfg.Database.DSN)
	}
}

func TestLoad_ExpandsEnvVarsInStringValues(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), ".convoyd")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		t.Fatalf("mkdir data dir: %v", err)
	}
	t.Setenv("CONVOYD_HOME", dataDir)
	t.Setenv("ANTHROPIC_API_KEY", "expanded-key")

	configBody := `
[llm.default]
api_key = "$ANTHROPIC_API_KEY"
provider = "anthropic"
model = "claude-sonnet-4-6"
`
	if err := os.WriteFile(filepath.Join(dataDir, "config.toml"), []byte(configBody), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DefaultLLM().APIKey != "expanded-key" {
		t.Fatalf("expected expanded api key %q, got %q", "expanded-key", cfg.DefaultLLM().APIKey)
	}
}

func TestLoad_DefaultsApplyWithoutConfigFile(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), ".convoyd")
	t.Setenv("CONVOYD_HOME", dataDir)
	t.Setenv("ANTHROPIC_API_KEY", "test-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.DataDir != dataDir {
		t.Fatalf("expected data dir %q, got %q", dataDir, cfg.DataDir)
	}
	llm := cfg.DefaultLLM()
	if llm.Provider != defaultConfig.LLM["default"].Provider {
		t.Fatalf("expected default provider %q, got %q", defaultConfig.LLM["default"].Provider, llm.Provider)
	}
	if llm.MaxTokens != defaultConfig.LLM["default"].MaxTokens {
		t.Fatalf("expected default max tokens %d, got %d", defaultConfig.LLM["default"].MaxTokens, llm.MaxTokens)
	}
	if cfg.Engine.MaxToolIterations != 6 {
		t.Fatalf("expected default max tool iterations 6, got %d", cfg.Engine.MaxToolIterations)
	}
	if cfg.Engine.IdleSessionTimeout != 30*time.Minute {
		t.Fatalf("expected default idle session timeout 30m, got %v", cfg.Engine.IdleSessionTimeout)
	}
	if cfg.Scheduler.ArchiveCron != "0 2 * * *" {
		t.Fatalf("expected default archive cron, got %q", cfg.Scheduler.ArchiveCron)
	}
	if cfg.Scheduler.ArchiveOrderAge != 24*time.Hour {
		t.Fatalf("expected default archive order age 24h, got %v", cfg.Scheduler.ArchiveOrderAge)
	}

	telegram := cfg.Channel("telegram")
	if telegram.Enabled {
		t.Fatalf("expected default telegram channel disabled while it has no token")
	}
	if telegram.Token != "" {
		t.Fatalf("expected default empty token, got %q", telegram.Token)
	}
}

func TestLoad_ArchiveEnvOverrides(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), ".convoyd")
	t.Setenv("CONVOYD_HOME", dataDir)
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	t.Setenv("ARCHIVE_JOB_CRON", "30 3 * * *")
	t.Setenv("ARCHIVE_ORDER_AGE_HOURS", "48")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Scheduler.ArchiveCron != "30 3 * * *" {
		t.Fatalf("expected ARCHIVE_JOB_CRON to override, got %q", cfg.Scheduler.ArchiveCron)
	}
	if cfg.Scheduler.ArchiveOrderAge != 48*time.Hour {
		t.Fatalf("expected ARCHIVE_ORDER_AGE_HOURS to override, got %v", cfg.Scheduler.ArchiveOrderAge)
	}
}

func TestLoad_ArchiveEnvOverrideIgnoresGarbageAge(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), ".convoyd")
	t.Setenv("CONVOYD_HOME", dataDir)
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	t.Setenv("ARCHIVE_ORDER_AGE_HOURS", "a day or so")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Scheduler.ArchiveOrderAge != 24*time.Hour {
		t.Fatalf("expected unparseable override to keep the default, got %v", cfg.Scheduler.ArchiveOrderAge)
	}
}

func TestHomeDir_DefaultsToUserHome(t *testing.T) {
	t.Setenv("CONVOYD_HOME", "")
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("get user home: %v", err)
	}

	dir, err := HomeDir()
	if err != nil {
		t.Fatalf("home dir: %v", err)
	}
	expected := filepath.Join(home, ".convoyd")
	if dir != expected {
		t.Fatalf("expected %q, got %q", expected, dir)
	}
}

func TestHomeDir_RespectsEnvVar(t *testing.T) {
	customDir := "/tmp/my-convoyd"
	t.Setenv("CONVOYD_HOME", customDir)

	dir, err := HomeDir()
	if err != nil {
		t.Fatalf("home dir: %v", err)
	}
	if dir != customDir {
		t.Fatalf("expected %q, got %q", customDir, dir)
	}
}

func TestWrite_PrintsDefaultsAndOverrides(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), ".convoyd")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		t.Fatalf("mkdir data dir: %v", err)
	}
	t.Setenv("CONVOYD_HOME", dataDir)

	configBody := `
[llm.default]
api_key = "test-key"
provider = "openrouter"
model = "deepseek/deepseek-chat"
`
	if err := os.WriteFile(filepath.Join(dataDir, "config.toml"), []byte(configBody), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var out bytes.Buffer
	if err := Write(&out); err != nil {
		t.Fatalf("write merged toml: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "[llm.default]") {
		t.Fatalf("expected llm.default section, got %q", got)
	}
	if !strings.Contains(got, "provider = 'openrouter'") {
		t.Fatalf("expected override provider in output, got %q", got)
	}
	if !strings.Contains(got, "[scheduler]") {
		t.Fatalf("expected defaults section scheduler in output, got %q", got)
	}
}
