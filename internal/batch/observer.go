package batch

import (
	"time"

	"stockmeta/internal/queue"
)

// Observer receives run progress. Calls happen on the runner's goroutine.
type Observer interface {
	RunStarted(runID string, pending int)
	ItemStarted(runID string, item queue.Item)
	ItemFinished(runID string, item queue.Item, elapsed time.Duration)
	RunFinished(runID string, summary Summary)
}

// ObserverFuncs adapts optional callbacks to Observer.
type ObserverFuncs struct {
	OnRunStarted   func(runID string, pending int)
	OnItemStarted  func(runID string, item queue.Item)
	OnItemFinished func(runID string, item queue.Item, elapsed time.Duration)
	OnRunFinished  func(runID string, summary Summary)
}

func (f ObserverFuncs) RunStarted(runID string, pending int) {
	if f.OnRunStarted != nil {
		f.OnRunStarted(runID, pending)
	}
}

func (f ObserverFuncs) ItemStarted(runID string, item queue.Item) {
	if f.OnItemStarted != nil {
		f.OnItemStarted(runID, item)
	}
}

func (f ObserverFuncs) ItemFinished(runID string, item queue.Item, elapsed time.Duration) {
	if f.OnItemFinished != nil {
		f.OnItemFinished(runID, item, elapsed)
	}
}

func (f ObserverFuncs) RunFinished(runID string, summary Summary) {
	if f.OnRunFinished != nil {
		f.OnRunFinished(runID, summary)
	}
}
