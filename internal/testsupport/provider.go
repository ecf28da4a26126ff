package testsupport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// ValidMetadataJSON is a well-formed completion payload.
const ValidMetadataJSON = `{"title":"Blue square","description":"A flat blue square on white.","keywords":["blue","square","flat"]}`

// CompletionRequest captures the parts of a chat completion the fake provider saw.
type CompletionRequest struct {
	Model     string
	Prompt    string
	ImageURL  string
	MaxTokens int
}

// CompletionReply is what the fake provider answers for one completion.
type CompletionReply struct {
	Status  int
	Content string
	// Raw, when set, is written verbatim instead of a completion envelope.
	Raw string
}

// Provider is an OpenAI-compatible fake serving /models and /chat/completions.
type Provider struct {
	Server *httptest.Server

	apiKey string
	models []string
	reply  func(index int, req CompletionRequest) CompletionReply

	mu          sync.Mutex
	modelCalls  int
	completions []CompletionRequest
}

// ProviderOption customizes the fake provider.
type ProviderOption func(*Provider)

// WithModels overrides the model list (default gpt-4o, gpt-4o-mini, whisper-1).
func WithModels(models ...string) ProviderOption {
	return func(p *Provider) { p.models = models }
}

// WithAPIKey sets the only accepted bearer token (default "sk-test").
func WithAPIKey(key string) ProviderOption {
	return func(p *Provider) { p.apiKey = key }
}

// WithReply sets the completion responder. index counts completions from zero.
func WithReply(fn func(index int, req CompletionRequest) CompletionReply) ProviderOption {
	return func(p *Provider) { p.reply = fn }
}

// NewProvider starts a fake provider that is closed when the test ends.
func NewProvider(t testing.TB, opts ...ProviderOption) *Provider {
	t.Helper()
	p := &Provider{
		apiKey: "sk-test",
		models: []string{"gpt-4o", "gpt-4o-mini", "whisper-1"},
		reply: func(int, CompletionRequest) CompletionReply {
			return CompletionReply{Content: ValidMetadataJSON}
		},
	}
	for _, opt := range opts {
		opt(p)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /models", p.handleModels)
	mux.HandleFunc("POST /chat/completions", p.handleCompletion)
	p.Server = httptest.NewServer(mux)
	t.Cleanup(p.Server.Close)
	return p
}

// URL returns the base URL to configure clients with.
func (p *Provider) URL() string { return p.Server.URL }

// APIKey returns the accepted bearer token.
func (p *Provider) APIKey() string { return p.apiKey }

// ModelCalls returns how many model listings were served.
func (p *Provider) ModelCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.modelCalls
}

// Completions returns the completion requests received so far.
func (p *Provider) Completions() []CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]CompletionRequest, len(p.completions))
	copy(out, p.completions)
	return out
}

func (p *Provider) authorized(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("Authorization") == "Bearer "+p.apiKey {
		return true
	}
	writeError(w, http.StatusUnauthorized, "Incorrect API key provided.")
	return false
}

func (p *Provider) handleModels(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.modelCalls++
	p.mu.Unlock()
	if !p.authorized(w, r) {
		return
	}
	data := make([]map[string]string, 0, len(p.models))
	for _, id := range p.models {
		data = append(data, map[string]string{"id": id, "object": "model"})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data})
}

func (p *Provider) handleCompletion(w http.ResponseWriter, r *http.Request) {
	if !p.authorized(w, r) {
		return
	}
	var body struct {
		Model     string `json:"model"`
		MaxTokens int    `json:"max_tokens"`
		Messages  []struct {
			Content []struct {
				Type     string `json:"type"`
				Text     string `json:"text"`
				ImageURL *struct {
					URL string `json:"url"`
				} `json:"image_url"`
			} `json:"content"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	req := CompletionRequest{Model: body.Model, MaxTokens: body.MaxTokens}
	for _, msg := range body.Messages {
		for _, part := range msg.Content {
			switch part.Type {
			case "text":
				req.Prompt = part.Text
			case "image_url":
				if part.ImageURL != nil {
					req.ImageURL = part.ImageURL.URL
				}
			}
		}
	}

	p.mu.Lock()
	index := len(p.completions)
	p.completions = append(p.completions, req)
	p.mu.Unlock()

	reply := p.reply(index, req)
	status := reply.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if reply.Raw != "" {
		_, _ = w.Write([]byte(reply.Raw))
		return
	}
	if status >= http.StatusMultipleChoices {
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": reply.Content}})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"choices": []any{map[string]any{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": reply.Content},
			"finish_reason": "stop",
		}},
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": strings.TrimSpace(message)}})
}
