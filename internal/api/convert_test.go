package api_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"stockmeta/internal/api"
	"stockmeta/internal/batch"
	"stockmeta/internal/queue"
)

func TestFromQueueItemCompleted(t *testing.T) {
	md := &queue.Metadata{Title: "Harbor", Description: "Boats at dawn", Keywords: []string{"boat", "harbor"}}
	dto := api.FromQueueItem(queue.Item{ID: 3, Name: "h.jpg", MediaType: "image/jpeg", Size: 10, Status: queue.StatusCompleted, Metadata: md})

	if dto.StatusLabel != "Completed" || dto.Metadata == nil || dto.Metadata.Keywords[1] != "harbor" {
		t.Fatalf("unexpected dto %+v", dto)
	}
	md.Keywords[0] = "changed"
	if dto.Metadata.Keywords[0] != "boat" {
		t.Fatal("dto must not alias queue metadata")
	}

	raw, err := json.Marshal(dto)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(raw), "errorMessage") {
		t.Fatalf("completed item should omit errorMessage: %s", raw)
	}
}

func TestFromQueueItemError(t *testing.T) {
	dto := api.FromQueueItem(queue.Item{ID: 4, Status: queue.StatusError, ErrorMessage: "boom", ErrorKind: "request"})
	if dto.Metadata != nil || dto.ErrorMessage != "boom" || dto.StatusLabel != "Error" {
		t.Fatalf("unexpected dto %+v", dto)
	}
}

func TestFromQueueItemEmptyKeywordsMarshalAsArray(t *testing.T) {
	dto := api.FromQueueItem(queue.Item{Status: queue.StatusCompleted, Metadata: &queue.Metadata{}})
	raw, _ := json.Marshal(dto)
	if !strings.Contains(string(raw), `"keywords":[]`) {
		t.Fatalf("expected empty keyword array: %s", raw)
	}
}

func TestQueueView(t *testing.T) {
	q := queue.New()
	if _, err := q.Add(queue.Candidate{Name: "a.png", MediaType: "image/png"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	view := api.QueueView(q)
	if len(view.Items) != 1 || view.Items[0].StatusLabel != "Pending" {
		t.Fatalf("unexpected items %+v", view.Items)
	}
	if view.Summary.Pending != 1 || view.Summary.RunState != "idle" {
		t.Fatalf("unexpected summary %+v", view.Summary)
	}
	if empty := api.QueueView(queue.New()); empty.Items == nil {
		t.Fatal("items must marshal as an array")
	}
}

func TestFromRunSummary(t *testing.T) {
	dto := api.FromRunSummary(batch.Summary{
		RunID:     "r",
		Processed: 2,
		Completed: 1,
		Errored:   1,
		ErrorKind: map[string]int{"parse": 1},
		Duration:  1500 * time.Millisecond,
	}, "gpt-4o")
	if dto.DurationMS != 1500 || dto.ErrorKinds["parse"] != 1 || dto.Model != "gpt-4o" {
		t.Fatalf("unexpected dto %+v", dto)
	}
	if api.FromRunSummary(batch.Summary{ErrorKind: map[string]int{}}, "").ErrorKinds != nil {
		t.Fatal("empty error kinds should be omitted")
	}
}
