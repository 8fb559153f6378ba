// Package session runs study sessions over a deck: it presents cards in
// queue order, applies ratings through the scheduler and can undo them.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/conorfennell/flipcard/internal/cardstore"
	"github.com/conorfennell/flipcard/internal/domain"
	"github.com/conorfennell/flipcard/internal/queue"
	"github.com/conorfennell/flipcard/internal/srs"
)

var (
	ErrNoSession     = errors.New("no active study session")
	ErrNoCurrentCard = errors.New("no card to rate")
	ErrInvalidRating = errors.New("rating must be between 1 and 4")
)

// Commands is the study contract offered to front ends.
type Commands interface {
	StartSession(deckID string) error
	Rate(rating domain.Rating) error
	Undo() (bool, error)
	ToggleCram() error
	EndSession() (Summary, error)
	View() Snapshot
}

// Saver receives best-effort durable writes. Calls must not block on I/O.
type Saver interface {
	SaveDeck(deck domain.Deck)
	AppendSessionLog(dateKey string, entry domain.SessionLog)
}

// Clock tells the controller what time it is.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// UndoRecord is a card exactly as it was before a rating.
type UndoRecord struct {
	Card domain.Card
	Cram bool
}

// state is the ephemeral per-visit session.
type state struct {
	deckID     string
	startedAt  time.Time
	cardsRated int
	mode       queue.Mode
	reviewed   map[string]struct{}
	total      int
	undo       []UndoRecord
	queue      []domain.Card
}

// Snapshot is a read-only view of the session for rendering.
type Snapshot struct {
	Active     bool
	DeckID     string
	Mode       queue.Mode
	Current    *domain.Card
	Preview    srs.Intervals
	QueueLen   int
	Studied    int
	CardsRated int
	Total      int
	Progress   float64
	Terminal   queue.TerminalState
	Elapsed    time.Duration
	UndoDepth  int
}

// Summary describes a session that just ended.
type Summary struct {
	DeckID     string
	CardsRated int
	Elapsed    time.Duration
	Logged     bool
	Date       string
}

// Controller implements Commands. It is not safe for concurrent use.
type Controller struct {
	store *cardstore.Store
	sched *srs.Scheduler
	saver Saver
	clock Clock
	log   *slog.Logger

	cur *state
}

var _ Commands = (*Controller)(nil)

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

// NewController wires a controller over store.
func NewController(store *cardstore.Store, sched *srs.Scheduler, saver Saver, logger *slog.Logger, opts ...Option) *Controller {
	c := &Controller{
		store: store,
		sched: sched,
		saver: saver,
		clock: systemClock{},
		log:   logger.With("component", "session"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Active reports whether a session is open, and on which deck.
func (c *Controller) Active() (string, bool) {
	if c.cur == nil {
		return "", false
	}
	return c.cur.deckID, true
}

// StartSession opens a normal-mode session on a deck. An open session on
// any deck is ended first.
func (c *Controller) StartSession(deckID string) error {
	deck, ok := c.store.Deck(deckID)
	if !ok {
		return fmt.Errorf("deck %s: %w", deckID, domain.ErrNotFound)
	}
	if c.cur != nil {
		if _, err := c.EndSession(); err != nil {
			return err
		}
	}

	now := c.clock.Now()
	total := queue.CountDue(deck.Cards, now)
	if total == 0 {
		total = len(deck.Cards)
	}
	c.cur = &state{
		deckID:    deckID,
		startedAt: now,
		mode:      queue.Normal,
		reviewed:  make(map[string]struct{}),
		total:     total,
	}
	c.refresh()

	c.log.Info("session started", "deck_id", deckID, "due", len(c.cur.queue), "total", total)
	return nil
}

// Rate applies a rating to the card at the head of the queue.
// Invalid input leaves everything untouched.
func (c *Controller) Rate(rating domain.Rating) error {
	if c.cur == nil {
		return ErrNoSession
	}
	if !rating.Valid() {
		return ErrInvalidRating
	}
	if len(c.cur.queue) == 0 {
		return ErrNoCurrentCard
	}

	deckID := c.cur.deckID
	before, err := c.store.Card(deckID, c.cur.queue[0].ID)
	if err != nil {
		// The card vanished under us; show the queue as it really is.
		c.refresh()
		return ErrNoCurrentCard
	}

	c.cur.undo = append(c.cur.undo, UndoRecord{Card: before, Cram: c.cur.mode == queue.Cram})
	c.cur.reviewed[before.ID] = struct{}{}

	next := c.sched.NextState(before.SchedState, rating, c.clock.Now())
	if err := c.store.ApplyState(deckID, before.ID, next); err != nil {
		return err
	}
	c.cur.cardsRated++
	c.save()
	c.refresh()

	c.log.Debug("card rated",
		"deck_id", deckID,
		"card_id", before.ID,
		"rating", rating.String(),
		"interval", next.Interval,
		"reps", next.Reps,
		"ef", next.EF,
	)
	return nil
}

// Undo reverts the most recent rating. It returns false when there is
// nothing to undo. If the rated card has since been removed the rating is
// still dropped from the session and the store error is returned.
func (c *Controller) Undo() (bool, error) {
	if c.cur == nil {
		return false, ErrNoSession
	}
	n := len(c.cur.undo)
	if n == 0 {
		return false, nil
	}
	rec := c.cur.undo[n-1]
	c.cur.undo = c.cur.undo[:n-1]
	if rec.Cram {
		delete(c.cur.reviewed, rec.Card.ID)
	}
	c.cur.cardsRated = max(c.cur.cardsRated-1, 0)

	if err := c.store.Restore(c.cur.deckID, rec.Card); err != nil {
		c.refresh()
		return false, fmt.Errorf("undo rating of card %s: %w", rec.Card.ID, err)
	}
	c.save()
	c.refresh()

	c.log.Debug("rating undone", "deck_id", c.cur.deckID, "card_id", rec.Card.ID)
	return true, nil
}

// ToggleCram switches between normal and cram mode, starting a fresh
// sub-session. Card scheduling is left alone.
func (c *Controller) ToggleCram() error {
	if c.cur == nil {
		return ErrNoSession
	}
	if c.cur.mode == queue.Cram {
		c.cur.mode = queue.Normal
	} else {
		c.cur.mode = queue.Cram
	}
	c.cur.reviewed = make(map[string]struct{})
	c.cur.undo = nil
	if deck, ok := c.store.Deck(c.cur.deckID); ok {
		c.cur.total = len(deck.Cards)
	}
	c.refresh()

	c.log.Info("study mode changed", "deck_id", c.cur.deckID, "mode", c.cur.mode.String())
	return nil
}

// EndSession closes the session and logs its work when any card was rated.
func (c *Controller) EndSession() (Summary, error) {
	if c.cur == nil {
		return Summary{}, ErrNoSession
	}
	now := c.clock.Now()
	sum := Summary{
		DeckID:     c.cur.deckID,
		CardsRated: c.cur.cardsRated,
		Elapsed:    now.Sub(c.cur.startedAt),
	}
	if sum.CardsRated > 0 {
		sum.Date = domain.DateKey(now)
		sum.Logged = true
		c.saver.AppendSessionLog(sum.Date, domain.SessionLog{
			Date:    sum.Date,
			Cards:   sum.CardsRated,
			Seconds: int64(sum.Elapsed / time.Second),
		})
	}
	c.cur = nil

	c.log.Info("session ended", "deck_id", sum.DeckID, "cards", sum.CardsRated, "elapsed", sum.Elapsed)
	return sum, nil
}

// View renders the current session state.
func (c *Controller) View() Snapshot {
	if c.cur == nil {
		return Snapshot{Progress: 1}
	}
	var cards []domain.Card
	if deck, ok := c.store.Deck(c.cur.deckID); ok {
		cards = deck.Cards
	}
	snap := Snapshot{
		Active:     true,
		DeckID:     c.cur.deckID,
		Mode:       c.cur.mode,
		QueueLen:   len(c.cur.queue),
		Studied:    len(c.cur.reviewed),
		CardsRated: c.cur.cardsRated,
		Total:      c.cur.total,
		Progress:   queue.Progress(len(c.cur.reviewed), len(c.cur.queue)),
		Terminal:   queue.Terminal(cards, c.cur.mode, len(c.cur.queue)),
		Elapsed:    c.clock.Now().Sub(c.cur.startedAt),
		UndoDepth:  len(c.cur.undo),
	}
	if len(c.cur.queue) > 0 {
		head := c.cur.queue[0]
		snap.Current = &head
		snap.Preview = c.sched.Preview(head.SchedState)
	}
	return snap
}

// Refresh recomputes the queue, e.g. after cards were edited elsewhere.
func (c *Controller) Refresh() {
	if c.cur != nil {
		c.refresh()
	}
}

// refresh rebuilds the queue from scratch with now pinned to this call.
func (c *Controller) refresh() {
	deck, ok := c.store.Deck(c.cur.deckID)
	if !ok {
		c.cur.queue = nil
		return
	}
	c.cur.queue = queue.Build(deck.Cards, c.cur.mode, c.cur.reviewed, c.clock.Now())
}

func (c *Controller) save() {
	snap, err := c.store.Snapshot(c.cur.deckID)
	if err != nil {
		c.log.Warn("deck missing, not saved", "deck_id", c.cur.deckID, "error", err)
		return
	}
	c.saver.SaveDeck(snap)
}
