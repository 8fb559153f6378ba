package persist

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/flipcard/internal/domain"
)

type fakeGateway struct {
	mu      sync.Mutex
	saved   map[string]domain.Deck
	deleted []string
	logs    map[string]domain.SessionLog
	saveErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{saved: map[string]domain.Deck{}, logs: map[string]domain.SessionLog{}}
}

func (f *fakeGateway) SaveDeck(_ context.Context, deck domain.Deck) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved[deck.ID] = deck
	return nil
}

func (f *fakeGateway) LoadAllDecks(context.Context) ([]domain.Deck, error) { return nil, nil }

func (f *fakeGateway) DeleteDeck(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	delete(f.saved, id)
	return nil
}

func (f *fakeGateway) AppendSessionLog(_ context.Context, dateKey string, e domain.SessionLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur := f.logs[dateKey]
	cur.Date = dateKey
	cur.Cards += e.Cards
	cur.Seconds += e.Seconds
	f.logs[dateKey] = cur
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWriterCoalescesSaves(t *testing.T) {
	gw := newFakeGateway()
	w := NewWriter(gw, discard())

	deck := domain.Deck{ID: "d1", Name: "v1", Cards: []domain.Card{{ID: "c1", Question: "q"}}}
	w.SaveDeck(deck)
	deck.Name = "v2"
	deck.Cards[0].Reps = 3
	w.SaveDeck(deck)

	st, _ := w.Status()
	assert.Equal(t, StatusSaving, st)

	require.NoError(t, w.Flush(context.Background()))
	assert.Equal(t, "v2", gw.saved["d1"].Name)
	assert.Equal(t, 3, gw.saved["d1"].Cards[0].Reps)

	st, err := w.Status()
	assert.Equal(t, StatusSaved, st)
	assert.NoError(t, err)
}

func TestWriterCopiesSnapshot(t *testing.T) {
	gw := newFakeGateway()
	w := NewWriter(gw, discard())

	deck := domain.Deck{ID: "d1", Cards: []domain.Card{{ID: "c1", Question: "q"}}}
	w.SaveDeck(deck)
	deck.Cards[0].Reps = 9

	require.NoError(t, w.Flush(context.Background()))
	assert.Equal(t, 0, gw.saved["d1"].Cards[0].Reps)
}

func TestWriterDeleteWinsOverPendingSave(t *testing.T) {
	gw := newFakeGateway()
	w := NewWriter(gw, discard())

	w.SaveDeck(domain.Deck{ID: "d1"})
	w.DeleteDeck("d1")
	require.NoError(t, w.Flush(context.Background()))

	assert.NotContains(t, gw.saved, "d1")
	assert.Equal(t, []string{"d1"}, gw.deleted)
}

func TestWriterSessionLogsAccumulate(t *testing.T) {
	gw := newFakeGateway()
	w := NewWriter(gw, discard())

	w.AppendSessionLog("2025-03-01", domain.SessionLog{Cards: 4, Seconds: 60})
	w.AppendSessionLog("2025-03-01", domain.SessionLog{Cards: 2, Seconds: 30})
	require.NoError(t, w.Flush(context.Background()))

	assert.Equal(t, domain.SessionLog{Date: "2025-03-01", Cards: 6, Seconds: 90}, gw.logs["2025-03-01"])
}

func TestWriterReportsFailure(t *testing.T) {
	gw := newFakeGateway()
	gw.saveErr = errors.New("disk full")
	w := NewWriter(gw, discard())

	w.SaveDeck(domain.Deck{ID: "d1"})
	err := w.Flush(context.Background())
	require.Error(t, err)

	st, lastErr := w.Status()
	assert.Equal(t, StatusError, st)
	assert.ErrorContains(t, lastErr, "disk full")

	gw.saveErr = nil
	w.SaveDeck(domain.Deck{ID: "d1"})
	require.NoError(t, w.Flush(context.Background()))
	st, lastErr = w.Status()
	assert.Equal(t, StatusSaved, st)
	assert.NoError(t, lastErr)
}

func TestWriterRunFlushesInBackground(t *testing.T) {
	gw := newFakeGateway()
	w := NewWriter(gw, discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	w.SaveDeck(domain.Deck{ID: "d1", Name: "bg"})
	assert.Eventually(t, func() bool {
		gw.mu.Lock()
		defer gw.mu.Unlock()
		_, ok := gw.saved["d1"]
		return ok
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
