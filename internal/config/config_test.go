package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"stockmeta/internal/config"
)

func TestLoadDefaultConfigWithoutFile(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	wantPath := filepath.Join(tempHome, ".config", "stockmeta", "config.toml")
	if resolved != wantPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, wantPath)
	}
	if cfg.Provider.BaseURL != "https://api.openai.com/v1" {
		t.Fatalf("unexpected base url: %q", cfg.Provider.BaseURL)
	}
	if cfg.Model.Default != "gpt-4o" {
		t.Fatalf("unexpected default model: %q", cfg.Model.Default)
	}
	if cfg.Model.MaxTokens != config.Default().Model.MaxTokens {
		t.Fatalf("unexpected max tokens: %d", cfg.Model.MaxTokens)
	}
	if cfg.Encoding.MaxDimension != 0 {
		t.Fatalf("expected downscaling disabled by default, got %d", cfg.Encoding.MaxDimension)
	}
	if cfg.Server.Bind != "127.0.0.1:8787" {
		t.Fatalf("unexpected bind: %q", cfg.Server.Bind)
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "stockmeta.toml")

	type payload struct {
		Provider struct {
			BaseURL        string `toml:"base_url"`
			TimeoutSeconds int    `toml:"timeout_seconds"`
		} `toml:"provider"`
		Model struct {
			Default       string   `toml:"default"`
			VisionInclude []string `toml:"vision_include"`
		} `toml:"model"`
		Logging struct {
			Format string `toml:"format"`
			Level  string `toml:"level"`
		} `toml:"logging"`
	}
	custom := payload{}
	custom.Provider.BaseURL = "https://example.com/v1/"
	custom.Provider.TimeoutSeconds = 30
	custom.Model.Default = " gpt-4.1-mini "
	custom.Model.VisionInclude = []string{"GPT-4.1", "gpt-4.1", " "}
	custom.Logging.Format = "JSON"
	custom.Logging.Level = "Debug"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Provider.BaseURL != "https://example.com/v1" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Provider.BaseURL)
	}
	if cfg.Provider.TimeoutSeconds != 30 {
		t.Fatalf("expected timeout 30, got %d", cfg.Provider.TimeoutSeconds)
	}
	if cfg.Model.Default != "gpt-4.1-mini" {
		t.Fatalf("expected trimmed default model, got %q", cfg.Model.Default)
	}
	if len(cfg.Model.VisionInclude) != 1 || cfg.Model.VisionInclude[0] != "gpt-4.1" {
		t.Fatalf("expected deduplicated include patterns, got %v", cfg.Model.VisionInclude)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging settings: %+v", cfg.Logging)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "stockmeta.toml")
	contents := "[provider]\napi_key = \"sk-should-not-live-here\"\n"
	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected unknown api_key field to be rejected")
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if strings.Contains(string(contents), "api_key") {
		t.Fatalf("sample config must not carry an api key field: %s", contents)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Model.Default != "gpt-4o" {
		t.Fatalf("unexpected sample default model %q", cfg.Model.Default)
	}
}

func TestPromptFileOverride(t *testing.T) {
	dir := t.TempDir()
	promptPath := filepath.Join(dir, "prompt.txt")
	if err := os.WriteFile(promptPath, []byte("  Describe the photo.\n"), 0o644); err != nil {
		t.Fatalf("write prompt: %v", err)
	}
	cfg := config.Default()
	cfg.Model.PromptFile = promptPath
	prompt, err := cfg.Prompt()
	if err != nil {
		t.Fatalf("Prompt returned error: %v", err)
	}
	if prompt != "Describe the photo." {
		t.Fatalf("unexpected prompt %q", prompt)
	}

	cfg.Model.PromptFile = ""
	prompt, err = cfg.Prompt()
	if err != nil || prompt != "" {
		t.Fatalf("expected empty override, got %q (%v)", prompt, err)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cfg := config.Default()
	cfg.Provider.BaseURL = "ftp://example.com"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-http base url")
	}

	cfg = config.Default()
	cfg.Provider.TimeoutSeconds = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive timeout")
	}

	cfg = config.Default()
	cfg.Encoding.JPEGQuality = 101
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for jpeg quality above 100")
	}

	cfg = config.Default()
	cfg.Server.Bind = "no-port"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for bind without port")
	}

	cfg = config.Default()
	cfg.Logging.Level = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown log level")
	}

	cfg = config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}
