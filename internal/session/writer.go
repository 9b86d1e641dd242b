package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/medrevise/reviewd/internal/domain"
)

// ProgressStore is the persistence collaborator the session layer writes
// through. The engine does not own persistence; any store keyed by
// (learner_id, card_id) with last-write-wins upsert semantics will do.
type ProgressStore interface {
	UpsertProgress(ctx context.Context, learnerID, cardID string, p domain.Progress) error
	InsertReviewLog(ctx context.Context, log domain.ReviewLog) error
}

// Write is one grading result headed for the store.
type Write struct {
	LearnerID string
	CardID    string
	Progress  domain.Progress
	Log       domain.ReviewLog

	done func(err error) // settled callback; nil err means persisted
}

// Writer persists grading results in the background so grading never waits
// on the store. A single goroutine drains the queue, which also keeps
// writes for any one session strictly in grading order. Failed writes are
// retried with backoff; a write that exhausts its retries is reported
// through the Write's callback and logged, never dropped silently.
type Writer struct {
	store   ProgressStore
	queue   chan Write
	retries int
	backoff time.Duration
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewWriter starts a writer with the given retry budget per write.
func NewWriter(store ProgressStore, retries int, backoff time.Duration) *Writer {
	w := &Writer{
		store:   store,
		queue:   make(chan Write, 256),
		retries: retries,
		backoff: backoff,
		timeout: 5 * time.Second,
	}
	w.wg.Add(1)
	go w.run()
	return w
}

// Enqueue hands a write to the background goroutine.
func (w *Writer) Enqueue(wr Write) {
	w.queue <- wr
}

// Close drains outstanding writes and stops the writer.
func (w *Writer) Close() {
	close(w.queue)
	w.wg.Wait()
}

func (w *Writer) run() {
	defer w.wg.Done()
	for wr := range w.queue {
		err := w.persist(wr)
		if err != nil {
			slog.Error("grade not persisted, result may be lost",
				"learner_id", wr.LearnerID,
				"card_id", wr.CardID,
				"error", err,
			)
		}
		if wr.done != nil {
			wr.done(err)
		}
	}
}

// persist upserts the progress row, retrying up to the retry budget.
// Retrying the same payload is idempotent: the row carries the full
// post-state computed from the snapshot taken at grading time.
func (w *Writer) persist(wr Write) error {
	var err error
	for attempt := 0; attempt <= w.retries; attempt++ {
		if attempt > 0 {
			time.Sleep(w.backoff * time.Duration(attempt))
		}
		err = w.tryOnce(wr)
		if err == nil {
			return nil
		}
	}
	return err
}

func (w *Writer) tryOnce(wr Write) error {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	if err := w.store.UpsertProgress(ctx, wr.LearnerID, wr.CardID, wr.Progress); err != nil {
		return err
	}
	// The audit log is best effort; losing a log row must not fail the grade.
	if err := w.store.InsertReviewLog(ctx, wr.Log); err != nil {
		slog.Warn("review log not recorded",
			"learner_id", wr.LearnerID,
			"card_id", wr.CardID,
			"error", err,
		)
	}
	return nil
}
