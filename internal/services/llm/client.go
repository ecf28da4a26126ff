package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	jsonResponseType   = "json_object"
	defaultHTTPTimeout = 120 * time.Second
	defaultBaseURL     = "https://api.openai.com/v1"

	// FallbackVerifyMessage is reported when model listing fails without a
	// usable error body.
	FallbackVerifyMessage = "Failed to verify API key."
	// FallbackCompletionMessage is reported when a completion fails without a
	// usable error body.
	FallbackCompletionMessage = "Failed to generate metadata."
)

// Config captures the runtime settings required to talk to the provider.
type Config struct {
	APIKey         string
	BaseURL        string
	TimeoutSeconds int
}

// DefaultHTTPTimeout returns the default timeout used for provider requests.
func DefaultHTTPTimeout() time.Duration {
	return defaultHTTPTimeout
}

// Client wraps an OpenAI-compatible models and chat completion API. Every
// call is a single attempt.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	return client
}

// APIError reports a non-success HTTP response. Message holds the provider's
// error.message, or a fallback when the body carried none.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: http %d: %s", e.Op, e.StatusCode, e.Message)
}

// EmptyContentError reports a successful response without usable completion text.
type EmptyContentError struct {
	Op           string
	FinishReason string
	Refusal      string
	Snippet      string
}

func (e *EmptyContentError) Error() string {
	return fmt.Sprintf(
		"%s: empty content (finish_reason=%q, refusal=%q, response_snippet=%s)",
		e.Op,
		e.FinishReason,
		e.Refusal,
		e.Snippet,
	)
}

// ListModels returns every model identifier visible to the API key.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	if c.cfg.APIKey == "" {
		return nil, errors.New("llm models: api key required")
	}
	body, err := c.do(ctx, http.MethodGet, "models", nil, "llm models", FallbackVerifyMessage)
	if err != nil {
		return nil, err
	}
	var listing struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("llm models: decode response: %w", err)
	}
	ids := make([]string, 0, len(listing.Data))
	for _, model := range listing.Data {
		if id := strings.TrimSpace(model.ID); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// VisionRequest describes one multimodal completion: a text instruction plus
// one image reference, answered as a JSON object.
type VisionRequest struct {
	Model     string
	Prompt    string
	ImageURL  string
	MaxTokens int
}

// CompleteVision issues a JSON-mode chat completion carrying one text part and
// one image part. It returns the first completion's message content.
func (c *Client) CompleteVision(ctx context.Context, req VisionRequest) (string, error) {
	const op = "llm complete"
	if c.cfg.APIKey == "" {
		return "", errors.New("llm complete: api key required")
	}
	if strings.TrimSpace(req.Model) == "" {
		return "", errors.New("llm complete: model required")
	}
	if strings.TrimSpace(req.ImageURL) == "" {
		return "", errors.New("llm complete: image url required")
	}
	payload := chatCompletionRequest{
		Model: req.Model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: req.Prompt},
				{Type: "image_url", ImageURL: &imageURL{URL: req.ImageURL}},
			},
		}},
		MaxTokens:      req.MaxTokens,
		ResponseFormat: map[string]string{"type": jsonResponseType},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("llm complete: encode body: %w", err)
	}
	body, err := c.do(ctx, http.MethodPost, "chat/completions", encoded, op, FallbackCompletionMessage)
	if err != nil {
		return "", err
	}
	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("llm complete: decode response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", &EmptyContentError{Op: op, Snippet: summarizePayloadSnippet(string(body))}
	}
	choice := completion.Choices[0]
	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		return "", &EmptyContentError{
			Op:           op,
			FinishReason: strings.TrimSpace(choice.FinishReason),
			Refusal:      strings.TrimSpace(choice.Message.Refusal),
			Snippet:      summarizePayloadSnippet(string(body)),
		}
	}
	return content, nil
}

type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type errorEnvelope struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, op, fallback string) ([]byte, error) {
	endpoint, err := url.JoinPath(c.cfg.BaseURL, path)
	if err != nil {
		return nil, fmt.Errorf("%s: build url: %w", op, err)
	}
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: new request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: http error (timeout=%s): %w", op, c.timeoutDuration(), err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read body (timeout=%s): %w", op, c.timeoutDuration(), err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &APIError{Op: op, StatusCode: resp.StatusCode, Message: remoteMessage(body, fallback)}
	}
	return body, nil
}

func remoteMessage(body []byte, fallback string) string {
	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		if msg := strings.TrimSpace(envelope.Error.Message); msg != "" {
			return msg
		}
	}
	return fallback
}

func (c *Client) timeoutDuration() time.Duration {
	if c == nil || c.httpClient == nil || c.httpClient.Timeout <= 0 {
		return defaultHTTPTimeout
	}
	return c.httpClient.Timeout
}
