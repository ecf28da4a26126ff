package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"stockmeta/internal/batch"
	"stockmeta/internal/metrics"
	"stockmeta/internal/queue"
)

func counterValue(t *testing.T, m *metrics.Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			matched := true
			for _, pair := range metric.GetLabel() {
				if want, ok := labels[pair.GetName()]; ok && want != pair.GetValue() {
					matched = false
				}
			}
			if !matched {
				continue
			}
			switch {
			case metric.GetCounter() != nil:
				return metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				return metric.GetGauge().GetValue()
			}
		}
	}
	return 0
}

func TestObserverCounts(t *testing.T) {
	m := metrics.New()
	var obs batch.Observer = m

	obs.RunStarted("r1", 2)
	if got := counterValue(t, m, "stockmeta_runs_in_flight", nil); got != 1 {
		t.Fatalf("in flight = %v", got)
	}
	obs.ItemStarted("r1", queue.Item{})
	obs.ItemFinished("r1", queue.Item{Status: queue.StatusCompleted}, time.Second)
	obs.ItemFinished("r1", queue.Item{Status: queue.StatusError, ErrorKind: "parse"}, time.Second)
	obs.RunFinished("r1", batch.Summary{})

	if got := counterValue(t, m, "stockmeta_runs_total", nil); got != 1 {
		t.Fatalf("runs = %v", got)
	}
	if got := counterValue(t, m, "stockmeta_runs_in_flight", nil); got != 0 {
		t.Fatalf("in flight after finish = %v", got)
	}
	if got := counterValue(t, m, "stockmeta_items_total", map[string]string{"outcome": "error", "error_kind": "parse"}); got != 1 {
		t.Fatalf("parse errors = %v", got)
	}
	if got := counterValue(t, m, "stockmeta_items_total", map[string]string{"outcome": "completed"}); got != 1 {
		t.Fatalf("completed = %v", got)
	}

	m.CredentialVerified(true)
	m.CredentialVerified(false)
	m.CredentialVerified(false)
	if got := counterValue(t, m, "stockmeta_credential_verifications_total", map[string]string{"result": "failure"}); got != 2 {
		t.Fatalf("failed verifications = %v", got)
	}
}

func TestMiddlewareAndHandler(t *testing.T) {
	m := metrics.New()
	router := chi.NewRouter()
	router.Use(m.Middleware)
	router.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	router.Handle("/metrics", m.Handler())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/7", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `stockmeta_http_requests_total{code="418",method="GET",path="/items/{id}"} 1`) {
		t.Fatalf("request counter missing from exposition:\n%s", body)
	}
}
