package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"stockmeta/internal/logging"
	"stockmeta/internal/queue"
	"stockmeta/internal/services"
)

// NotReadyMessage is reported when a run is requested without a verified
// credential and a selected model.
const NotReadyMessage = "Please verify an API key and select a model first."

// Encoder converts one queued file into a data URI.
type Encoder interface {
	Encode(ctx context.Context, item queue.Item) (string, error)
}

// Requester produces metadata for one encoded image.
type Requester interface {
	Request(ctx context.Context, model, imageURL string) (queue.Metadata, error)
}

// Job carries what a run needs from the verified session. A nil Requester
// means no credential has been verified.
type Job struct {
	Requester Requester
	Model     string
}

// Summary reports the outcome of one run.
type Summary struct {
	RunID     string
	Processed int
	Completed int
	Errored   int
	ErrorKind map[string]int
	Duration  time.Duration
}

// Runner walks a queue's pending items one at a time.
type Runner struct {
	encoder   Encoder
	logger    *slog.Logger
	observers []Observer
}

// NewRunner constructs a runner. Observers are notified synchronously in
// registration order.
func NewRunner(encoder Encoder, logger *slog.Logger, observers ...Observer) *Runner {
	return &Runner{
		encoder:   encoder,
		logger:    logging.NewComponentLogger(logger, "batch"),
		observers: observers,
	}
}

// Run processes every pending item in queue order. Per-item failures are
// recorded on the item and never stop the run. A missing credential or model
// is rejected before the queue is touched.
func (r *Runner) Run(ctx context.Context, q *queue.Queue, job Job) (Summary, error) {
	if err := r.begin(q, job); err != nil {
		return Summary{}, err
	}
	return r.process(ctx, q, job), nil
}

// Start validates the job and locks the queue synchronously, then processes
// the pending items on a new goroutine. The channel receives the summary once
// and is closed.
func (r *Runner) Start(ctx context.Context, q *queue.Queue, job Job) (<-chan Summary, error) {
	if err := r.begin(q, job); err != nil {
		return nil, err
	}
	done := make(chan Summary, 1)
	go func() {
		defer close(done)
		done <- r.process(ctx, q, job)
	}()
	return done, nil
}

func (r *Runner) begin(q *queue.Queue, job Job) error {
	if job.Requester == nil || strings.TrimSpace(job.Model) == "" {
		return services.Fail(services.ErrCredential, NotReadyMessage, nil)
	}
	if q == nil {
		return errors.New("batch run: nil queue")
	}
	if err := q.BeginRun(); err != nil {
		return fmt.Errorf("batch run: %w", err)
	}
	return nil
}

func (r *Runner) process(ctx context.Context, q *queue.Queue, job Job) Summary {
	defer q.EndRun()

	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, r.logger)

	pending := q.PendingIDs()
	summary := Summary{RunID: runID, ErrorKind: map[string]int{}}
	started := time.Now()

	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_started"),
		logging.String("model", job.Model),
		logging.Int("pending", len(pending)),
	)
	r.notify(func(o Observer) { o.RunStarted(runID, len(pending)) })

	for _, id := range pending {
		item, ok := r.processItem(services.WithItemID(ctx, id), q, job, id)
		if !ok {
			continue
		}
		summary.Processed++
		switch item.Status {
		case queue.StatusCompleted:
			summary.Completed++
		case queue.StatusError:
			summary.Errored++
			summary.ErrorKind[item.ErrorKind]++
		}
	}

	summary.Duration = time.Since(started)
	logger.Info("run finished",
		logging.String(logging.FieldEventType, "run_finished"),
		logging.Int("processed", summary.Processed),
		logging.Int("completed", summary.Completed),
		logging.Int("errored", summary.Errored),
		logging.Duration("duration", summary.Duration),
	)
	r.notify(func(o Observer) { o.RunFinished(runID, summary) })
	return summary
}

func (r *Runner) processItem(ctx context.Context, q *queue.Queue, job Job, id int64) (queue.Item, bool) {
	logger := logging.WithContext(ctx, r.logger)
	runID, _ := services.RunIDFromContext(ctx)

	item, err := q.MarkProcessing(id)
	if err != nil {
		logging.WarnWithContext(logger, "item skipped", "item_skipped",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "item left pending state before it was reached"),
		)
		return queue.Item{}, false
	}
	r.notify(func(o Observer) { o.ItemStarted(runID, item) })
	started := time.Now()

	md, err := r.describe(ctx, item, job)
	if err != nil {
		kind := services.Kind(err)
		message := services.DisplayMessage(err)
		if ferr := q.Fail(id, kind, message); ferr != nil {
			logger.Error("record item failure", logging.Error(ferr))
		}
		logging.WarnWithContext(logger, "item failed", "item_failed",
			logging.String("file", item.Name),
			logging.String(logging.FieldErrorKind, kind),
			logging.String("message", message),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, hintFor(kind)),
		)
	} else {
		if cerr := q.Complete(id, md); cerr != nil {
			logger.Error("record item result", logging.Error(cerr))
		}
		logger.Info("item completed",
			logging.String(logging.FieldEventType, "item_completed"),
			logging.String("file", item.Name),
			logging.String("title", md.Title),
			logging.Int("keywords", len(md.Keywords)),
		)
	}

	elapsed := time.Since(started)
	final, err := q.Get(id)
	if err != nil {
		logger.Error("reload item", logging.Error(err))
		return queue.Item{}, false
	}
	r.notify(func(o Observer) { o.ItemFinished(runID, final, elapsed) })
	return final, true
}

func (r *Runner) describe(ctx context.Context, item queue.Item, job Job) (queue.Metadata, error) {
	uri, err := r.encoder.Encode(ctx, item)
	if err != nil {
		return queue.Metadata{}, err
	}
	return job.Requester.Request(ctx, job.Model, uri)
}

func (r *Runner) notify(fn func(Observer)) {
	for _, o := range r.observers {
		if o != nil {
			fn(o)
		}
	}
}

func hintFor(kind string) string {
	switch kind {
	case services.KindEncoding:
		return "check the file is readable"
	case services.KindRequest:
		return "check provider status, quota, and model access"
	case services.KindParse:
		return "the model reply was not the expected JSON; try another model"
	default:
		return "check logs for details"
	}
}
