package config

const (
	defaultBaseURL            = "https://api.openai.com/v1"
	defaultTimeoutSeconds     = 120
	defaultModel              = "gpt-4o"
	defaultMaxTokens          = 1024
	defaultJPEGQuality        = 90
	defaultServerBind         = "127.0.0.1:8787"
	defaultMaxUploadMB        = 25
	defaultSessionIdleMinutes = 60
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

var (
	defaultVisionInclude = []string{"gpt-4o", "gpt-4.1", "gpt-4-turbo", "gpt-4-vision", "gpt-5", "chatgpt-4o", "o1", "o3", "o4"}
	defaultVisionExclude = []string{"audio", "realtime", "transcribe", "tts", "search", "embedding", "instruct"}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Provider: Provider{
			BaseURL:        defaultBaseURL,
			TimeoutSeconds: defaultTimeoutSeconds,
		},
		Model: Model{
			Default:       defaultModel,
			MaxTokens:     defaultMaxTokens,
			VisionInclude: append([]string(nil), defaultVisionInclude...),
			VisionExclude: append([]string(nil), defaultVisionExclude...),
		},
		Encoding: Encoding{
			JPEGQuality: defaultJPEGQuality,
		},
		Server: Server{
			Bind:               defaultServerBind,
			MaxUploadMB:        defaultMaxUploadMB,
			SessionIdleMinutes: defaultSessionIdleMinutes,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
