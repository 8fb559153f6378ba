package domain

import (
	"slices"
	"time"
)

const (
	// InitialEF is the ease factor of a never-reviewed card.
	InitialEF = 2.5
	// MinEF is the floor every ease factor is clamped to.
	MinEF = 1.3
)

// Rating is the learner's answer to a card review.
// 1: Again (forgot)
// 2: Hard
// 3: Good
// 4: Easy
type Rating int

const (
	Again Rating = 1
	Hard  Rating = 2
	Good  Rating = 3
	Easy  Rating = 4
)

// Ratings lists every valid rating in button order.
var Ratings = []Rating{Again, Hard, Good, Easy}

// Valid reports whether r is one of the four ratings.
func (r Rating) Valid() bool {
	return r >= Again && r <= Easy
}

func (r Rating) String() string {
	switch r {
	case Again:
		return "again"
	case Hard:
		return "hard"
	case Good:
		return "good"
	case Easy:
		return "easy"
	}
	return "invalid"
}

// SchedState holds the scheduling fields of a card.
// A zero DueDate means the card is due immediately.
type SchedState struct {
	DueDate  time.Time
	Interval float64 // days
	Reps     int
	EF       float64
}

// NewSchedState returns the state of a card that has never been reviewed.
func NewSchedState() SchedState {
	return SchedState{EF: InitialEF}
}

// Card represents a single question-answer-explanation entry.
type Card struct {
	ID          string
	DisplayID   string
	Question    string
	Answer      string
	Explanation string
	SchedState
}

// IsDue reports whether the card is eligible for normal review at now.
func (c Card) IsDue(now time.Time) bool {
	return !c.DueDate.After(now)
}

// Deck is an ordered collection of cards.
type Deck struct {
	ID    string
	Name  string
	Order int
	Cards []Card
}

// Clone returns a deep copy of the deck so it can leave its owner.
func (d Deck) Clone() Deck {
	d.Cards = slices.Clone(d.Cards)
	return d
}

// CardIndex returns the position of the card with the given id, or -1.
func (d *Deck) CardIndex(id string) int {
	return slices.IndexFunc(d.Cards, func(c Card) bool { return c.ID == id })
}

// SessionLog records the study done on a single calendar day.
type SessionLog struct {
	Date    string `json:"date"` // YYYY-MM-DD
	Cards   int    `json:"cards"`
	Seconds int64  `json:"seconds"`
}

// Source is a local directory or git repository that feeds a deck.
type Source struct {
	ID          int64
	Path        string
	Type        string // "local" or "git"
	DeckID      string
	LastScanned time.Time
}

const (
	SourceLocal = "local"
	SourceGit   = "git"
)

// DateKey formats t as the YYYY-MM-DD key session logs are stored under.
func DateKey(t time.Time) string {
	return t.Format(time.DateOnly)
}
