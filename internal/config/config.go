package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"stockmeta/internal/fileutil"
)

//go:embed sample_config.toml
var sampleConfig string

// Provider contains connection settings for the OpenAI-compatible API. The
// credential itself is never part of the configuration; it is entered per
// session and held only in memory.
type Provider struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Model contains model selection and request shaping settings.
type Model struct {
	// Default is preselected when the verified model list contains it.
	Default   string `toml:"default"`
	MaxTokens int    `toml:"max_tokens"`
	// PromptFile replaces the built-in instruction template when set.
	PromptFile string `toml:"prompt_file"`
	// VisionInclude lists id prefixes; a model is vision-capable when its id
	// starts with any of them.
	VisionInclude []string `toml:"vision_include"`
	// VisionExclude drops models whose id contains any of these substrings
	// even when they match VisionInclude.
	VisionExclude []string `toml:"vision_exclude"`
}

// Encoding contains settings for the image to data URI conversion.
type Encoding struct {
	// MaxDimension downsizes images whose longer edge exceeds it. Zero sends
	// the original bytes.
	MaxDimension int `toml:"max_dimension"`
	JPEGQuality  int `toml:"jpeg_quality"`
}

// Server contains settings for the local HTTP service.
type Server struct {
	Bind               string `toml:"bind"`
	MaxUploadMB        int    `toml:"max_upload_mb"`
	SessionIdleMinutes int    `toml:"session_idle_minutes"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	// File adds a JSON log file next to the console output when set.
	File string `toml:"file"`
}

// Config encapsulates all configuration values for stockmeta.
//
// Configuration sections by subsystem:
//   - Provider: API base URL and request timeout
//   - Model: default model, token ceiling, prompt override, vision filters
//   - Encoding: optional downscaling before upload
//   - Server: HTTP bind address, upload limits, session expiry
//   - Logging: log format, level, and optional JSON file
type Config struct {
	Provider Provider `toml:"provider"`
	Model    Model    `toml:"model"`
	Encoding Encoding `toml:"encoding"`
	Server   Server   `toml:"server"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/stockmeta/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("stockmeta.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// Prompt returns the instruction template override, or an empty string when
// the built-in template should be used.
func (c *Config) Prompt() (string, error) {
	if c == nil || strings.TrimSpace(c.Model.PromptFile) == "" {
		return "", nil
	}
	data, err := os.ReadFile(c.Model.PromptFile)
	if err != nil {
		return "", fmt.Errorf("read prompt file: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("prompt file %s is empty", c.Model.PromptFile)
	}
	return prompt, nil
}

// MaxUploadBytes returns the per-file upload ceiling for the HTTP service.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if err := fileutil.WriteFileAtomic(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
