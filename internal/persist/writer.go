// Package persist decouples in-memory study state from durable storage.
//
// Mutations are applied locally first and then handed to a Writer, which
// saves them in the background. A failed save never rolls back local state.
package persist

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/conorfennell/flipcard/internal/domain"
)

// Gateway is the durable store behind the writer.
type Gateway interface {
	SaveDeck(ctx context.Context, deck domain.Deck) error
	LoadAllDecks(ctx context.Context) ([]domain.Deck, error)
	DeleteDeck(ctx context.Context, id string) error
	AppendSessionLog(ctx context.Context, dateKey string, entry domain.SessionLog) error
}

// Status mirrors the save indicator shown to the learner.
type Status int

const (
	StatusIdle Status = iota
	StatusSaving
	StatusSaved
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusSaving:
		return "saving"
	case StatusSaved:
		return "saved"
	case StatusError:
		return "error"
	}
	return "idle"
}

type pendingLog struct {
	dateKey string
	entry   domain.SessionLog
}

// Writer queues best-effort writes and performs them on its own goroutine.
// Enqueue methods never block on I/O. Pending saves of the same deck
// coalesce so only the latest snapshot is written.
type Writer struct {
	gw  Gateway
	log *slog.Logger

	mu      sync.Mutex
	saves   map[string]domain.Deck
	deletes map[string]struct{}
	logs    []pendingLog
	status  Status
	lastErr error

	flushMu sync.Mutex
	wake    chan struct{}
}

// NewWriter creates a Writer. Call Run to start background flushing.
func NewWriter(gw Gateway, logger *slog.Logger) *Writer {
	return &Writer{
		gw:      gw,
		log:     logger.With("component", "persist"),
		saves:   make(map[string]domain.Deck),
		deletes: make(map[string]struct{}),
		wake:    make(chan struct{}, 1),
	}
}

// SaveDeck enqueues a full overwrite of deck. The deck is copied.
func (w *Writer) SaveDeck(deck domain.Deck) {
	w.mu.Lock()
	delete(w.deletes, deck.ID)
	w.saves[deck.ID] = deck.Clone()
	w.status = StatusSaving
	w.mu.Unlock()
	w.signal()
}

// DeleteDeck enqueues removal of a deck, dropping any pending save of it.
func (w *Writer) DeleteDeck(id string) {
	w.mu.Lock()
	delete(w.saves, id)
	w.deletes[id] = struct{}{}
	w.status = StatusSaving
	w.mu.Unlock()
	w.signal()
}

// AppendSessionLog enqueues a session log entry for dateKey.
func (w *Writer) AppendSessionLog(dateKey string, entry domain.SessionLog) {
	w.mu.Lock()
	w.logs = append(w.logs, pendingLog{dateKey: dateKey, entry: entry})
	w.status = StatusSaving
	w.mu.Unlock()
	w.signal()
}

// Status reports the outcome of the most recent flush.
func (w *Writer) Status() (Status, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status, w.lastErr
}

// Run flushes pending writes whenever new ones arrive, until ctx is done.
// Anything still pending at shutdown is flushed once more before returning.
func (w *Writer) Run(ctx context.Context) error {
	for {
		select {
		case <-w.wake:
			_ = w.Flush(ctx)
		case <-ctx.Done():
			return w.Flush(context.WithoutCancel(ctx))
		}
	}
}

// Flush writes everything pending now, on the calling goroutine.
func (w *Writer) Flush(ctx context.Context) error {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	w.mu.Lock()
	saves, deletes, logs := w.saves, w.deletes, w.logs
	w.saves = make(map[string]domain.Deck)
	w.deletes = make(map[string]struct{})
	w.logs = nil
	w.mu.Unlock()

	if len(saves)+len(deletes)+len(logs) == 0 {
		return nil
	}

	var errs []error
	for id := range deletes {
		if err := w.gw.DeleteDeck(ctx, id); err != nil {
			w.log.Error("failed to delete deck", "deck_id", id, "error", err)
			errs = append(errs, err)
		}
	}
	for id, deck := range saves {
		if err := w.gw.SaveDeck(ctx, deck); err != nil {
			w.log.Error("failed to save deck", "deck_id", id, "error", err)
			errs = append(errs, err)
			continue
		}
		w.log.Debug("deck saved", "deck_id", id, "cards", len(deck.Cards))
	}
	for _, l := range logs {
		if err := w.gw.AppendSessionLog(ctx, l.dateKey, l.entry); err != nil {
			w.log.Error("failed to append session log", "date", l.dateKey, "error", err)
			errs = append(errs, err)
		}
	}

	err := errors.Join(errs...)
	w.mu.Lock()
	pending := len(w.saves)+len(w.deletes)+len(w.logs) > 0
	switch {
	case err != nil:
		w.status, w.lastErr = StatusError, err
	case pending:
		w.status = StatusSaving
	default:
		w.status, w.lastErr = StatusSaved, nil
	}
	w.mu.Unlock()
	return err
}

func (w *Writer) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}
