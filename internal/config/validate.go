package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateProvider(); err != nil {
		return err
	}
	if err := c.validateModel(); err != nil {
		return err
	}
	if err := c.validateEncoding(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateProvider() error {
	parsed, err := url.Parse(c.Provider.BaseURL)
	if err != nil {
		return fmt.Errorf("provider.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("provider.base_url must use http or https, got %q", c.Provider.BaseURL)
	}
	if parsed.Host == "" {
		return errors.New("provider.base_url must include a host")
	}
	return ensurePositiveMap(map[string]int{
		"provider.timeout_seconds": c.Provider.TimeoutSeconds,
	})
}

func (c *Config) validateModel() error {
	if c.Model.MaxTokens <= 0 {
		return errors.New("model.max_tokens must be positive")
	}
	if len(c.Model.VisionInclude) == 0 {
		return errors.New("model.vision_include must list at least one pattern")
	}
	return nil
}

func (c *Config) validateEncoding() error {
	if c.Encoding.MaxDimension < 0 {
		return errors.New("encoding.max_dimension must be >= 0")
	}
	if c.Encoding.JPEGQuality < 1 || c.Encoding.JPEGQuality > 100 {
		return errors.New("encoding.jpeg_quality must be between 1 and 100")
	}
	return nil
}

func (c *Config) validateServer() error {
	if _, _, err := net.SplitHostPort(c.Server.Bind); err != nil {
		return fmt.Errorf("server.bind: %w", err)
	}
	return ensurePositiveMap(map[string]int{
		"server.max_upload_mb":        c.Server.MaxUploadMB,
		"server.session_idle_minutes": c.Server.SessionIdleMinutes,
	})
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
