package queue

import (
	"fmt"
	"strings"
)

// MarkProcessing moves a pending item to processing and returns its snapshot.
func (q *Queue) MarkProcessing(id int64) (Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	item, err := q.transitionLocked(id, StatusProcessing)
	if err != nil {
		return Item{}, err
	}
	return item.clone(), nil
}

// Complete records metadata for a processing item.
func (q *Queue) Complete(id int64, metadata Metadata) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	item, err := q.transitionLocked(id, StatusCompleted)
	if err != nil {
		return err
	}
	md := metadata.clone()
	item.Metadata = &md
	item.ErrorMessage = ""
	item.ErrorKind = ""
	return nil
}

// Fail records an error for a processing item.
func (q *Queue) Fail(id int64, kind, message string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	item, err := q.transitionLocked(id, StatusError)
	if err != nil {
		return err
	}
	message = strings.TrimSpace(message)
	if message == "" {
		message = "Unknown error"
	}
	item.Metadata = nil
	item.ErrorMessage = message
	item.ErrorKind = kind
	return nil
}

func (q *Queue) transitionLocked(id int64, to Status) (*Item, error) {
	item, ok := q.index[id]
	if !ok {
		return nil, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	if _, ok := allowedTransitions[statusTransition{from: item.Status, to: to}]; !ok {
		return nil, fmt.Errorf("item %d %s -> %s: %w", id, item.Status, to, ErrInvalidTransition)
	}
	item.Status = to
	return item, nil
}
