package metadata_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"stockmeta/internal/logging"
	"stockmeta/internal/metadata"
	"stockmeta/internal/services"
	"stockmeta/internal/services/llm"
	"stockmeta/internal/testsupport"
)

func newRequester(t *testing.T, provider *testsupport.Provider, prompt string) *metadata.Requester {
	t.Helper()
	client := llm.NewClient(llm.Config{APIKey: provider.APIKey(), BaseURL: provider.URL(), TimeoutSeconds: 5})
	return metadata.NewRequester(client, prompt, 256, logging.NewNop())
}

func TestRequestSuccess(t *testing.T) {
	provider := testsupport.NewProvider(t)
	requester := newRequester(t, provider, "")

	md, err := requester.Request(context.Background(), "gpt-4o", "data:image/png;base64,AAAA")
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if md.Title != "Blue square" || len(md.Keywords) != 3 || md.Keywords[0] != "blue" {
		t.Fatalf("unexpected metadata %+v", md)
	}

	calls := provider.Completions()
	if len(calls) != 1 {
		t.Fatalf("expected one completion, got %d", len(calls))
	}
	if calls[0].Model != "gpt-4o" || calls[0].ImageURL != "data:image/png;base64,AAAA" || calls[0].MaxTokens != 256 {
		t.Fatalf("unexpected request %+v", calls[0])
	}
	if calls[0].Prompt != metadata.DefaultPrompt() {
		t.Fatal("expected default prompt")
	}
}

func TestRequestUsesPromptOverride(t *testing.T) {
	provider := testsupport.NewProvider(t)
	requester := newRequester(t, provider, "  custom prompt  ")
	if _, err := requester.Request(context.Background(), "gpt-4o", "data:x"); err != nil {
		t.Fatalf("Request: %v", err)
	}
	if got := provider.Completions()[0].Prompt; got != "custom prompt" {
		t.Fatalf("prompt = %q", got)
	}
}

func TestRequestRemoteErrorIsRequestError(t *testing.T) {
	provider := testsupport.NewProvider(t, testsupport.WithReply(func(int, testsupport.CompletionRequest) testsupport.CompletionReply {
		return testsupport.CompletionReply{Status: http.StatusBadRequest, Content: "Invalid image."}
	}))
	requester := newRequester(t, provider, "")

	_, err := requester.Request(context.Background(), "gpt-4o", "data:x")
	if !errors.Is(err, services.ErrRequest) {
		t.Fatalf("expected request error, got %v", err)
	}
	if services.DisplayMessage(err) != "Invalid image." {
		t.Fatalf("display message = %q", services.DisplayMessage(err))
	}
}

func TestRequestErrorWithoutBodyUsesFallback(t *testing.T) {
	provider := testsupport.NewProvider(t, testsupport.WithReply(func(int, testsupport.CompletionRequest) testsupport.CompletionReply {
		return testsupport.CompletionReply{Status: http.StatusServiceUnavailable, Raw: "upstream unavailable"}
	}))
	requester := newRequester(t, provider, "")

	_, err := requester.Request(context.Background(), "gpt-4o", "data:x")
	if services.Kind(err) != services.KindRequest || services.DisplayMessage(err) != llm.FallbackCompletionMessage {
		t.Fatalf("unexpected error %v (%q)", err, services.DisplayMessage(err))
	}
}

func TestRequestTransportFailureIsRequestError(t *testing.T) {
	provider := testsupport.NewProvider(t)
	client := llm.NewClient(llm.Config{APIKey: "sk-test", BaseURL: provider.URL()})
	provider.Server.Close()

	requester := metadata.NewRequester(client, "", 0, nil)
	_, err := requester.Request(context.Background(), "gpt-4o", "data:x")
	if services.Kind(err) != services.KindRequest {
		t.Fatalf("expected request error, got %v", err)
	}
}

func TestRequestMalformedReplyIsParseError(t *testing.T) {
	replies := []string{
		"I cannot describe this image.",
		`{"title":"t","description":"d"}`,
		`{"title":"t","description":"d","keywords":["a"],"category":"x"}`,
		`{"title":"t","description":"d","keywords":"a, b"}`,
	}
	for _, content := range replies {
		provider := testsupport.NewProvider(t, testsupport.WithReply(func(int, testsupport.CompletionRequest) testsupport.CompletionReply {
			return testsupport.CompletionReply{Content: content}
		}))
		requester := newRequester(t, provider, "")
		_, err := requester.Request(context.Background(), "gpt-4o", "data:x")
		if services.Kind(err) != services.KindParse {
			t.Fatalf("content %q: expected parse error, got %v", content, err)
		}
		if services.DisplayMessage(err) != metadata.ParseFailureMessage {
			t.Fatalf("unexpected display message %q", services.DisplayMessage(err))
		}
	}
}

func TestRequestEmptyContentIsParseError(t *testing.T) {
	provider := testsupport.NewProvider(t, testsupport.WithReply(func(int, testsupport.CompletionRequest) testsupport.CompletionReply {
		return testsupport.CompletionReply{Raw: `{"choices":[]}`}
	}))
	requester := newRequester(t, provider, "")
	if _, err := requester.Request(context.Background(), "gpt-4o", "data:x"); services.Kind(err) != services.KindParse {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestParseAcceptsAnyLengths(t *testing.T) {
	md, err := metadata.Parse("```json\n{\"title\":\"\",\"description\":\"" + strings.Repeat("d", 500) + "\",\"keywords\":[]}\n```")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if md.Title != "" || len(md.Description) != 500 || md.Keywords == nil || len(md.Keywords) != 0 {
		t.Fatalf("unexpected metadata %+v", md)
	}
}

func TestDefaultPromptMentionsKeys(t *testing.T) {
	prompt := metadata.DefaultPrompt()
	for _, key := range []string{`"title"`, `"description"`, `"keywords"`} {
		if !strings.Contains(prompt, key) {
			t.Fatalf("default prompt missing %s", key)
		}
	}
}
