package queue

import (
	"fmt"
	"strings"
	"sync"
)

// Queue holds the ordered set of files for one batch. It lives in memory only
// and is safe for concurrent use.
type Queue struct {
	mu       sync.Mutex
	items    []*Item
	index    map[int64]*Item
	nextID   int64
	runState RunState
	closed   bool
}

// New returns an empty, idle queue.
func New() *Queue {
	return &Queue{index: make(map[int64]*Item), runState: RunIdle}
}

// Add appends candidates as pending items. Candidates whose media type is not
// image/* or whose name already exists in the queue are dropped without error.
// The returned slice holds the accepted items in insertion order.
func (q *Queue) Add(candidates ...Candidate) ([]Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.mutableLocked(); err != nil {
		return nil, err
	}

	names := make(map[string]struct{}, len(q.items)+len(candidates))
	for _, item := range q.items {
		names[item.Name] = struct{}{}
	}

	accepted := make([]Item, 0, len(candidates))
	for _, candidate := range candidates {
		if !isImage(candidate.MediaType) {
			continue
		}
		if _, dup := names[candidate.Name]; dup {
			continue
		}
		names[candidate.Name] = struct{}{}
		q.nextID++
		item := &Item{
			ID:        q.nextID,
			Name:      candidate.Name,
			MediaType: candidate.MediaType,
			Size:      candidate.Size,
			Status:    StatusPending,
			Source:    candidate.Source,
		}
		q.items = append(q.items, item)
		q.index[item.ID] = item
		accepted = append(accepted, item.clone())
	}
	return accepted, nil
}

// mutableLocked reports why the queue cannot change right now. Callers hold mu.
func (q *Queue) mutableLocked() error {
	switch {
	case q.closed:
		return ErrQueueClosed
	case q.runState == RunProcessing:
		return ErrQueueLocked
	default:
		return nil
	}
}

func isImage(mediaType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mediaType)), "image/")
}

// Remove deletes one item.
func (q *Queue) Remove(id int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.mutableLocked(); err != nil {
		return err
	}
	if _, ok := q.index[id]; !ok {
		return fmt.Errorf("remove item %d: %w", id, ErrNotFound)
	}
	delete(q.index, id)
	for i, item := range q.items {
		if item.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			break
		}
	}
	return nil
}

// Clear removes every item and returns how many were removed.
func (q *Queue) Clear() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.mutableLocked(); err != nil {
		return 0, err
	}
	removed := len(q.items)
	q.items = nil
	q.index = make(map[int64]*Item)
	q.runState = RunIdle
	return removed, nil
}

// Items returns a snapshot of every item in queue order.
func (q *Queue) Items() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.itemsLocked()
}

func (q *Queue) itemsLocked() []Item {
	out := make([]Item, 0, len(q.items))
	for _, item := range q.items {
		out = append(out, item.clone())
	}
	return out
}

// Get returns a snapshot of one item.
func (q *Queue) Get(id int64) (Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	item, ok := q.index[id]
	if !ok {
		return Item{}, fmt.Errorf("get item %d: %w", id, ErrNotFound)
	}
	return item.clone(), nil
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// PendingIDs returns the IDs of pending items in queue order.
func (q *Queue) PendingIDs() []int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := make([]int64, 0, len(q.items))
	for _, item := range q.items {
		if item.Status == StatusPending {
			ids = append(ids, item.ID)
		}
	}
	return ids
}

// RunState returns the batch-level processing signal.
func (q *Queue) RunState() RunState {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.runState
}

// BeginRun locks the queue against mutation for the duration of a run.
func (q *Queue) BeginRun() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	if q.runState == RunProcessing {
		return ErrRunActive
	}
	q.runState = RunProcessing
	return nil
}

// Retire closes the queue for good unless a run is in progress. Afterwards
// every mutation and BeginRun fail with ErrQueueClosed.
func (q *Queue) Retire() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.runState == RunProcessing {
		return ErrRunActive
	}
	q.closed = true
	return nil
}

// EndRun marks the run done and re-enables mutation.
func (q *Queue) EndRun() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.runState = RunDone
}

// Summary counts items per status.
func (q *Queue) Summary() Summary {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.summaryLocked()
}

// Snapshot returns the items and their summary taken under one lock, so the
// counts always match the items.
func (q *Queue) Snapshot() ([]Item, Summary) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.itemsLocked(), q.summaryLocked()
}

func (q *Queue) summaryLocked() Summary {
	summary := Summary{Total: len(q.items), RunState: q.runState}
	for _, item := range q.items {
		switch item.Status {
		case StatusPending:
			summary.Pending++
		case StatusProcessing:
			summary.Processing++
		case StatusCompleted:
			summary.Completed++
		case StatusError:
			summary.Errored++
		}
	}
	return summary
}
