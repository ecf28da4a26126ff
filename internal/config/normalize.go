package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeProvider()
	if err := c.normalizeModel(); err != nil {
		return err
	}
	c.normalizeEncoding()
	c.normalizeServer()
	return c.normalizeLogging()
}

func (c *Config) normalizeProvider() {
	c.Provider.BaseURL = strings.TrimRight(strings.TrimSpace(c.Provider.BaseURL), "/")
	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = defaultBaseURL
	}
	if c.Provider.TimeoutSeconds <= 0 {
		c.Provider.TimeoutSeconds = defaultTimeoutSeconds
	}
}

func (c *Config) normalizeModel() error {
	c.Model.Default = strings.TrimSpace(c.Model.Default)
	if c.Model.MaxTokens <= 0 {
		c.Model.MaxTokens = defaultMaxTokens
	}
	c.Model.PromptFile = strings.TrimSpace(c.Model.PromptFile)
	if c.Model.PromptFile != "" {
		expanded, err := expandPath(c.Model.PromptFile)
		if err != nil {
			return fmt.Errorf("model.prompt_file: %w", err)
		}
		c.Model.PromptFile = expanded
	}
	c.Model.VisionInclude = normalizePatterns(c.Model.VisionInclude)
	if len(c.Model.VisionInclude) == 0 {
		c.Model.VisionInclude = append([]string(nil), defaultVisionInclude...)
	}
	c.Model.VisionExclude = normalizePatterns(c.Model.VisionExclude)
	return nil
}

func (c *Config) normalizeEncoding() {
	if c.Encoding.MaxDimension < 0 {
		c.Encoding.MaxDimension = 0
	}
	if c.Encoding.JPEGQuality == 0 {
		c.Encoding.JPEGQuality = defaultJPEGQuality
	}
}

func (c *Config) normalizeServer() {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultServerBind
	}
	if c.Server.MaxUploadMB <= 0 {
		c.Server.MaxUploadMB = defaultMaxUploadMB
	}
	if c.Server.SessionIdleMinutes <= 0 {
		c.Server.SessionIdleMinutes = defaultSessionIdleMinutes
	}
}

func (c *Config) normalizeLogging() error {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.File = strings.TrimSpace(c.Logging.File)
	if c.Logging.File != "" {
		expanded, err := expandPath(c.Logging.File)
		if err != nil {
			return fmt.Errorf("logging.file: %w", err)
		}
		c.Logging.File = expanded
	}
	return nil
}

func normalizePatterns(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		normalized := strings.ToLower(strings.TrimSpace(value))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}
