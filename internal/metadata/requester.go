package metadata

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"stockmeta/internal/logging"
	"stockmeta/internal/queue"
	"stockmeta/internal/services"
	"stockmeta/internal/services/llm"
)

//go:embed prompt.txt
var defaultPrompt string

// ParseFailureMessage is shown when completion text is not a valid metadata object.
const ParseFailureMessage = "Failed to parse metadata response."

// DefaultPrompt returns the built-in instruction template.
func DefaultPrompt() string {
	return strings.TrimSpace(defaultPrompt)
}

// Completer issues one multimodal completion.
type Completer interface {
	CompleteVision(ctx context.Context, req llm.VisionRequest) (string, error)
}

// Requester turns an image data URI into stock metadata with one completion
// call. It holds no per-item state.
type Requester struct {
	client    Completer
	prompt    string
	maxTokens int
	logger    *slog.Logger
}

// NewRequester builds a requester. An empty prompt selects DefaultPrompt.
func NewRequester(client Completer, prompt string, maxTokens int, logger *slog.Logger) *Requester {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		prompt = DefaultPrompt()
	}
	return &Requester{
		client:    client,
		prompt:    prompt,
		maxTokens: maxTokens,
		logger:    logging.NewComponentLogger(logger, "metadata"),
	}
}

// Prompt returns the instruction template in use.
func (r *Requester) Prompt() string {
	return r.prompt
}

// Request sends the instruction template and image to model and parses the
// structured reply. Transport and non-success responses are request errors;
// malformed or incomplete replies are parse errors.
func (r *Requester) Request(ctx context.Context, model, imageURL string) (queue.Metadata, error) {
	logger := logging.WithContext(ctx, r.logger)
	content, err := r.client.CompleteVision(ctx, llm.VisionRequest{
		Model:     model,
		Prompt:    r.prompt,
		ImageURL:  imageURL,
		MaxTokens: r.maxTokens,
	})
	if err != nil {
		var apiErr *llm.APIError
		var emptyErr *llm.EmptyContentError
		switch {
		case errors.As(err, &apiErr):
			logger.Debug("completion rejected",
				logging.Int("status", apiErr.StatusCode),
				logging.String("remote_message", apiErr.Message),
			)
			return queue.Metadata{}, services.Fail(services.ErrRequest, apiErr.Message, err)
		case errors.As(err, &emptyErr):
			return queue.Metadata{}, services.Fail(services.ErrParse, ParseFailureMessage, err)
		default:
			return queue.Metadata{}, services.Fail(services.ErrRequest, llm.FallbackCompletionMessage, err)
		}
	}

	md, err := Parse(content)
	if err != nil {
		logger.Debug("completion not parseable", logging.Error(err))
		return queue.Metadata{}, services.Fail(services.ErrParse, ParseFailureMessage, err)
	}
	return md, nil
}

type reply struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Keywords    *[]string `json:"keywords"`
}

// Parse decodes completion text holding exactly title, description and
// keywords. Lengths and keyword counts are not checked.
func Parse(content string) (queue.Metadata, error) {
	var parsed reply
	if err := llm.DecodeStrictJSON(content, &parsed); err != nil {
		return queue.Metadata{}, fmt.Errorf("decode metadata: %w", err)
	}
	var missing []string
	if parsed.Title == nil {
		missing = append(missing, "title")
	}
	if parsed.Description == nil {
		missing = append(missing, "description")
	}
	if parsed.Keywords == nil {
		missing = append(missing, "keywords")
	}
	if len(missing) > 0 {
		return queue.Metadata{}, fmt.Errorf("decode metadata: missing %s", strings.Join(missing, ", "))
	}
	keywords := *parsed.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	return queue.Metadata{
		Title:       *parsed.Title,
		Description: *parsed.Description,
		Keywords:    keywords,
	}, nil
}
