package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"stockmeta/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a default config rooted in a per-test temp directory,
// with the server bound to an ephemeral port.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	cfgVal := config.Default()
	cfgVal.Server.Bind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: t.TempDir(),
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithProvider points the config at a fake provider base URL.
func WithProvider(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Provider.BaseURL = baseURL
		b.cfg.Provider.TimeoutSeconds = 5
	}
}

// WithPrompt writes a prompt override file and references it from the config.
func WithPrompt(prompt string) ConfigOption {
	return func(b *configBuilder) {
		path := filepath.Join(b.baseDir, "prompt.txt")
		if err := os.WriteFile(path, []byte(prompt), 0o644); err != nil {
			b.t.Fatalf("write prompt file: %v", err)
		}
		b.cfg.Model.PromptFile = path
	}
}

// WithMaxDimension enables encoder downscaling.
func WithMaxDimension(px int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Encoding.MaxDimension = px
	}
}
