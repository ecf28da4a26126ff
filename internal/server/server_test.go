package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"stockmeta/internal/api"
	"stockmeta/internal/logging"
	"stockmeta/internal/server"
	"stockmeta/internal/testsupport"
)

type harness struct {
	t        *testing.T
	http     *httptest.Server
	provider *testsupport.Provider
}

func newHarness(t *testing.T, opts ...testsupport.ProviderOption) *harness {
	t.Helper()
	provider := testsupport.NewProvider(t, opts...)
	cfg := testsupport.NewConfig(t, testsupport.WithProvider(provider.URL()))
	srv, err := server.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &harness{t: t, http: ts, provider: provider}
}

func (h *harness) do(method, path string, body io.Reader, contentType string) *http.Response {
	h.t.Helper()
	req, err := http.NewRequest(method, h.http.URL+path, body)
	if err != nil {
		h.t.Fatalf("new request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := h.http.Client().Do(req)
	if err != nil {
		h.t.Fatalf("%s %s: %v", method, path, err)
	}
	h.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (h *harness) doJSON(method, path string, payload any) *http.Response {
	h.t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			h.t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(data)
	}
	return h.do(method, path, body, "application/json")
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected status %d, got %d: %s", want, resp.StatusCode, body)
	}
}

func (h *harness) createSession() string {
	h.t.Helper()
	resp := h.doJSON(http.MethodPost, "/api/sessions", nil)
	expectStatus(h.t, resp, http.StatusCreated)
	created := decode[api.SessionResponse](h.t, resp)
	if created.ID == "" {
		h.t.Fatal("expected session id")
	}
	return created.ID
}

func (h *harness) upload(sessionID string, files map[string][]byte) *http.Response {
	h.t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for name, data := range files {
		part, err := writer.CreateFormFile("files", name)
		if err != nil {
			h.t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(data); err != nil {
			h.t.Fatalf("write form file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		h.t.Fatalf("close multipart: %v", err)
	}
	return h.do(http.MethodPost, "/api/sessions/"+sessionID+"/queue", &buf, writer.FormDataContentType())
}

func (h *harness) waitForRun(sessionID string) api.QueueResponse {
	h.t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp := h.doJSON(http.MethodGet, "/api/sessions/"+sessionID+"/queue", nil)
		expectStatus(h.t, resp, http.StatusOK)
		view := decode[api.QueueResponse](h.t, resp)
		if view.Summary.RunState == "done" {
			return view
		}
		time.Sleep(10 * time.Millisecond)
	}
	h.t.Fatal("run did not finish")
	return api.QueueResponse{}
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)
	resp := h.doJSON(http.MethodGet, "/healthz", nil)
	expectStatus(t, resp, http.StatusOK)

	h.doJSON(http.MethodGet, "/api/sessions/missing/queue", nil)
	resp = h.doJSON(http.MethodGet, "/metrics", nil)
	expectStatus(t, resp, http.StatusOK)
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "stockmeta_http_requests_total") {
		t.Fatalf("expected http request metrics, got:\n%s", body)
	}
}

func TestUnknownSessionIsNotFound(t *testing.T) {
	h := newHarness(t)
	resp := h.doJSON(http.MethodGet, "/api/sessions/nope/queue", nil)
	expectStatus(t, resp, http.StatusNotFound)
}

func TestEndToEndRun(t *testing.T) {
	h := newHarness(t, testsupport.WithReply(func(index int, _ testsupport.CompletionRequest) testsupport.CompletionReply {
		if index == 1 {
			return testsupport.CompletionReply{Content: "no json here"}
		}
		return testsupport.CompletionReply{Content: testsupport.ValidMetadataJSON}
	}))
	id := h.createSession()

	resp := h.doJSON(http.MethodPost, "/api/sessions/"+id+"/run", nil)
	expectStatus(t, resp, http.StatusBadRequest)
	if got := decode[api.ErrorResponse](t, resp); got.Kind != "credential" {
		t.Fatalf("expected credential kind, got %+v", got)
	}

	resp = h.doJSON(http.MethodPost, "/api/sessions/"+id+"/verify", api.VerifyRequest{APIKey: "sk-wrong"})
	expectStatus(t, resp, http.StatusUnauthorized)

	resp = h.doJSON(http.MethodPost, "/api/sessions/"+id+"/verify", api.VerifyRequest{APIKey: h.provider.APIKey()})
	expectStatus(t, resp, http.StatusOK)
	models := decode[api.ModelsResponse](t, resp)
	if models.Selected != "gpt-4o" || len(models.Models) != 2 {
		t.Fatalf("unexpected models %+v", models)
	}

	resp = h.doJSON(http.MethodPut, "/api/sessions/"+id+"/model", api.SelectModelRequest{Model: "whisper-1"})
	expectStatus(t, resp, http.StatusBadRequest)
	resp = h.doJSON(http.MethodPut, "/api/sessions/"+id+"/model", api.SelectModelRequest{Model: "gpt-4o-mini"})
	expectStatus(t, resp, http.StatusOK)

	resp = h.upload(id, map[string][]byte{
		"a.png":     testsupport.PNGBytes(t, 4, 4),
		"b.jpg":     testsupport.JPEGBytes(t, 4, 4),
		"notes.txt": []byte("plain text"),
	})
	expectStatus(t, resp, http.StatusOK)
	added := decode[api.AddFilesResponse](t, resp)
	if len(added.Added) != 2 || added.Received != 3 || added.Skipped != 1 {
		t.Fatalf("unexpected add response %+v", added)
	}

	resp = h.doJSON(http.MethodPost, "/api/sessions/"+id+"/run", nil)
	expectStatus(t, resp, http.StatusAccepted)
	accepted := decode[api.RunAccepted](t, resp)
	if accepted.Pending != 2 || accepted.Model != "gpt-4o-mini" {
		t.Fatalf("unexpected run response %+v", accepted)
	}

	view := h.waitForRun(id)
	if view.Summary.Completed != 1 || view.Summary.Error != 1 {
		t.Fatalf("unexpected summary %+v", view.Summary)
	}
	var failed *api.QueueItem
	for i := range view.Items {
		if view.Items[i].Status == "error" {
			failed = &view.Items[i]
		}
	}
	if failed == nil || failed.ErrorKind != "parse" || failed.ErrorMessage == "" {
		t.Fatalf("expected parse failure, got %+v", view.Items)
	}
	for _, req := range h.provider.Completions() {
		if req.Model != "gpt-4o-mini" {
			t.Fatalf("expected selected model, got %q", req.Model)
		}
	}

	resp = h.doJSON(http.MethodDelete, fmt.Sprintf("/api/sessions/%s/queue/%d", id, failed.ID), nil)
	expectStatus(t, resp, http.StatusNoContent)
	resp = h.doJSON(http.MethodDelete, fmt.Sprintf("/api/sessions/%s/queue/%d", id, failed.ID), nil)
	expectStatus(t, resp, http.StatusNotFound)

	resp = h.doJSON(http.MethodDelete, "/api/sessions/"+id+"/queue", nil)
	expectStatus(t, resp, http.StatusNoContent)
	resp = h.doJSON(http.MethodGet, "/api/sessions/"+id+"/queue", nil)
	if view := decode[api.QueueResponse](t, resp); view.Summary.Total != 0 || view.Summary.RunState != "idle" {
		t.Fatalf("expected empty idle queue, got %+v", view.Summary)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	h := newHarness(t)
	first := h.createSession()
	second := h.createSession()

	resp := h.doJSON(http.MethodPost, "/api/sessions/"+first+"/verify", api.VerifyRequest{APIKey: h.provider.APIKey()})
	expectStatus(t, resp, http.StatusOK)
	resp = h.upload(first, map[string][]byte{"a.png": testsupport.PNGBytes(t, 2, 2)})
	expectStatus(t, resp, http.StatusOK)

	resp = h.doJSON(http.MethodGet, "/api/sessions/"+second+"/models", nil)
	expectStatus(t, resp, http.StatusOK)
	if models := decode[api.ModelsResponse](t, resp); len(models.Models) != 0 || models.Selected != "" {
		t.Fatalf("second session should be unverified, got %+v", models)
	}
	resp = h.doJSON(http.MethodGet, "/api/sessions/"+second+"/queue", nil)
	if view := decode[api.QueueResponse](t, resp); view.Summary.Total != 0 {
		t.Fatalf("second session queue should be empty, got %+v", view.Summary)
	}

	resp = h.doJSON(http.MethodDelete, "/api/sessions/"+second, nil)
	expectStatus(t, resp, http.StatusNoContent)
	resp = h.doJSON(http.MethodGet, "/api/sessions/"+second+"/queue", nil)
	expectStatus(t, resp, http.StatusNotFound)
}

func TestDeleteSessionRefusedDuringRun(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, testsupport.WithReply(func(int, testsupport.CompletionRequest) testsupport.CompletionReply {
		<-release
		return testsupport.CompletionReply{Content: testsupport.ValidMetadataJSON}
	}))
	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }
	t.Cleanup(unblock)

	id := h.createSession()
	resp := h.doJSON(http.MethodPost, "/api/sessions/"+id+"/verify", api.VerifyRequest{APIKey: h.provider.APIKey()})
	expectStatus(t, resp, http.StatusOK)
	resp = h.upload(id, map[string][]byte{"a.png": testsupport.PNGBytes(t, 2, 2)})
	expectStatus(t, resp, http.StatusOK)
	resp = h.doJSON(http.MethodPost, "/api/sessions/"+id+"/run", nil)
	expectStatus(t, resp, http.StatusAccepted)

	resp = h.doJSON(http.MethodDelete, "/api/sessions/"+id, nil)
	expectStatus(t, resp, http.StatusConflict)
	resp = h.doJSON(http.MethodGet, "/api/sessions/"+id+"/queue", nil)
	expectStatus(t, resp, http.StatusOK)

	unblock()
	if view := h.waitForRun(id); view.Summary.Completed != 1 {
		t.Fatalf("run should finish after a refused delete, got %+v", view.Summary)
	}
	resp = h.doJSON(http.MethodDelete, "/api/sessions/"+id, nil)
	expectStatus(t, resp, http.StatusNoContent)
	resp = h.doJSON(http.MethodDelete, "/api/sessions/"+id, nil)
	expectStatus(t, resp, http.StatusNotFound)
}

func TestRejectsUnknownRequestFields(t *testing.T) {
	h := newHarness(t)
	id := h.createSession()
	resp := h.do(http.MethodPost, "/api/sessions/"+id+"/verify", strings.NewReader(`{"apiKey":"x","extra":1}`), "application/json")
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestRunServesUntilCancelled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	srv, err := server.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("GET healthz: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
