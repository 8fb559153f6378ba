// Package queue derives the ordered list of cards to study next.
package queue

import (
	"slices"
	"time"

	"github.com/conorfennell/flipcard/internal/domain"
)

// Mode selects which cards a session surfaces.
type Mode int

const (
	// Normal surfaces cards that are due.
	Normal Mode = iota
	// Cram surfaces cards that are not yet due and not yet rehearsed.
	Cram
)

func (m Mode) String() string {
	if m == Cram {
		return "cram"
	}
	return "normal"
}

// TerminalState describes why a queue is empty.
type TerminalState int

const (
	NotTerminal TerminalState = iota
	// DueDone: normal mode, all due work done, future cards remain.
	DueDone
	// EmptyDeck: normal mode on a deck with no cards.
	EmptyDeck
	// CramDone: every not-yet-due card was rehearsed this session.
	CramDone
)

func (t TerminalState) String() string {
	switch t {
	case DueDone:
		return "due_done"
	case EmptyDeck:
		return "empty_deck"
	case CramDone:
		return "cram_done"
	}
	return "active"
}

// Build returns the eligible cards for mode, ascending by due date.
// reviewed is only consulted in cram mode.
func Build(cards []domain.Card, mode Mode, reviewed map[string]struct{}, now time.Time) []domain.Card {
	var out []domain.Card
	for _, c := range cards {
		switch mode {
		case Normal:
			if c.IsDue(now) {
				out = append(out, c)
			}
		case Cram:
			if _, done := reviewed[c.ID]; !done && !c.IsDue(now) {
				out = append(out, c)
			}
		}
	}
	slices.SortStableFunc(out, func(a, b domain.Card) int {
		return a.DueDate.Compare(b.DueDate)
	})
	return out
}

// CountDue counts the cards eligible for normal review at now.
func CountDue(cards []domain.Card, now time.Time) int {
	n := 0
	for _, c := range cards {
		if c.IsDue(now) {
			n++
		}
	}
	return n
}

// Progress is studied/(studied+queued), or 1 when both are zero.
func Progress(studied, queued int) float64 {
	if studied+queued == 0 {
		return 1
	}
	return float64(studied) / float64(studied+queued)
}

// Terminal classifies the end state of a queue of length queueLen.
func Terminal(cards []domain.Card, mode Mode, queueLen int) TerminalState {
	switch {
	case queueLen > 0:
		return NotTerminal
	case mode == Cram:
		return CramDone
	case len(cards) == 0:
		return EmptyDeck
	}
	return DueDone
}
