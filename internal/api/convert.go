package api

import (
	"slices"

	"stockmeta/internal/batch"
	"stockmeta/internal/queue"
)

// FromQueueItem converts a queue item to its API representation.
func FromQueueItem(item queue.Item) QueueItem {
	dto := QueueItem{
		ID:           item.ID,
		Name:         item.Name,
		MediaType:    item.MediaType,
		Size:         item.Size,
		Status:       string(item.Status),
		StatusLabel:  item.Status.Label(),
		ErrorMessage: item.ErrorMessage,
		ErrorKind:    item.ErrorKind,
	}
	if item.Metadata != nil {
		keywords := slices.Clone(item.Metadata.Keywords)
		if keywords == nil {
			keywords = []string{}
		}
		dto.Metadata = &Metadata{
			Title:       item.Metadata.Title,
			Description: item.Metadata.Description,
			Keywords:    keywords,
		}
	}
	return dto
}

// FromQueueItems converts a slice of queue items, never returning nil.
func FromQueueItems(items []queue.Item) []QueueItem {
	out := make([]QueueItem, 0, len(items))
	for _, item := range items {
		out = append(out, FromQueueItem(item))
	}
	return out
}

// FromQueueSummary converts queue counts.
func FromQueueSummary(summary queue.Summary) QueueSummary {
	return QueueSummary{
		Total:      summary.Total,
		Pending:    summary.Pending,
		Processing: summary.Processing,
		Completed:  summary.Completed,
		Error:      summary.Errored,
		RunState:   string(summary.RunState),
	}
}

// QueueView snapshots a queue for API responses. Items and counts come from
// the same instant.
func QueueView(q *queue.Queue) QueueResponse {
	items, summary := q.Snapshot()
	return QueueResponse{
		Items:   FromQueueItems(items),
		Summary: FromQueueSummary(summary),
	}
}

// FromRunSummary converts a batch run summary.
func FromRunSummary(summary batch.Summary, model string) RunSummary {
	dto := RunSummary{
		RunID:      summary.RunID,
		Model:      model,
		Processed:  summary.Processed,
		Completed:  summary.Completed,
		Errored:    summary.Errored,
		DurationMS: summary.Duration.Milliseconds(),
	}
	if len(summary.ErrorKind) > 0 {
		dto.ErrorKinds = make(map[string]int, len(summary.ErrorKind))
		for kind, count := range summary.ErrorKind {
			dto.ErrorKinds[kind] = count
		}
	}
	return dto
}
