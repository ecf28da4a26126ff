package queue

import "errors"

var (
	// ErrQueueLocked is returned by mutating operations while a run is active.
	ErrQueueLocked = errors.New("queue is locked while a run is in progress")
	// ErrRunActive is returned by BeginRun when a run is already in progress.
	ErrRunActive = errors.New("a run is already in progress")
	// ErrQueueClosed is returned by every mutation after Retire.
	ErrQueueClosed = errors.New("queue has been retired")
	// ErrNotFound is returned for unknown item IDs.
	ErrNotFound = errors.New("queue item not found")
	// ErrInvalidTransition is returned when a status change is not part of the
	// item lifecycle.
	ErrInvalidTransition = errors.New("invalid status transition")
)
