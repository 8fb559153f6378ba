// Package cardstore holds decks in memory and owns every mutation of their cards.
//
// A Store is not safe for concurrent use; callers serialise access.
package cardstore

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/conorfennell/flipcard/internal/domain"
)

// Store is the in-memory collection of decks.
type Store struct {
	decks map[string]*domain.Deck
}

// New creates an empty store.
func New() *Store {
	return &Store{decks: make(map[string]*domain.Deck)}
}

// Load replaces the store contents with decks, typically from LoadAllDecks.
func (s *Store) Load(decks []domain.Deck) {
	s.decks = make(map[string]*domain.Deck, len(decks))
	for _, d := range decks {
		d := d.Clone()
		s.decks[d.ID] = &d
	}
}

// Put inserts or replaces a whole deck.
func (s *Store) Put(deck domain.Deck) {
	d := deck.Clone()
	s.decks[d.ID] = &d
}

// Decks returns copies of all decks ordered by Order, then name.
func (s *Store) Decks() []domain.Deck {
	out := make([]domain.Deck, 0, len(s.decks))
	for _, d := range s.decks {
		out = append(out, d.Clone())
	}
	slices.SortFunc(out, func(a, b domain.Deck) int {
		if c := cmp.Compare(a.Order, b.Order); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// Deck returns the live deck with the given id. The returned pointer must not
// be retained past the caller's turn.
func (s *Store) Deck(id string) (*domain.Deck, bool) {
	d, ok := s.decks[id]
	return d, ok
}

// Snapshot returns a deep copy of a deck, safe to hand to another goroutine.
func (s *Store) Snapshot(id string) (domain.Deck, error) {
	d, ok := s.decks[id]
	if !ok {
		return domain.Deck{}, fmt.Errorf("deck %s: %w", id, domain.ErrNotFound)
	}
	return d.Clone(), nil
}

// CreateDeck adds an empty deck at the end of the list.
func (s *Store) CreateDeck(name string) (domain.Deck, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Deck{}, fmt.Errorf("deck name is empty: %w", domain.ErrValidation)
	}
	d := &domain.Deck{
		ID:    uuid.NewString(),
		Name:  name,
		Order: s.nextOrder(),
	}
	s.decks[d.ID] = d
	return d.Clone(), nil
}

// RenameDeck changes a deck's display name.
func (s *Store) RenameDeck(id, name string) error {
	d, ok := s.decks[id]
	if !ok {
		return fmt.Errorf("deck %s: %w", id, domain.ErrNotFound)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("deck name is empty: %w", domain.ErrValidation)
	}
	d.Name = name
	return nil
}

// RemoveDeck deletes a deck and its cards.
func (s *Store) RemoveDeck(id string) error {
	if _, ok := s.decks[id]; !ok {
		return fmt.Errorf("deck %s: %w", id, domain.ErrNotFound)
	}
	delete(s.decks, id)
	return nil
}

// AddCard appends a card with the initial scheduling state. The card gets a
// fresh id when it has none.
func (s *Store) AddCard(deckID string, card domain.Card) (domain.Card, error) {
	d, ok := s.decks[deckID]
	if !ok {
		return domain.Card{}, fmt.Errorf("deck %s: %w", deckID, domain.ErrNotFound)
	}
	if strings.TrimSpace(card.Question) == "" {
		return domain.Card{}, fmt.Errorf("card question is empty: %w", domain.ErrValidation)
	}
	if card.ID == "" {
		card.ID = uuid.NewString()
	}
	if d.CardIndex(card.ID) >= 0 {
		return domain.Card{}, fmt.Errorf("card %s already in deck: %w", card.ID, domain.ErrConflict)
	}
	if card.EF < domain.MinEF {
		card.SchedState = domain.NewSchedState()
	}
	d.Cards = append(d.Cards, card)
	return card, nil
}

// EditCard replaces the content fields of a card; scheduling is untouched.
func (s *Store) EditCard(deckID string, card domain.Card) error {
	c, err := s.card(deckID, card.ID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(card.Question) == "" {
		return fmt.Errorf("card question is empty: %w", domain.ErrValidation)
	}
	c.DisplayID = card.DisplayID
	c.Question = card.Question
	c.Answer = card.Answer
	c.Explanation = card.Explanation
	return nil
}

// RemoveCard deletes a card from its deck.
func (s *Store) RemoveCard(deckID, cardID string) error {
	d, ok := s.decks[deckID]
	if !ok {
		return fmt.Errorf("deck %s: %w", deckID, domain.ErrNotFound)
	}
	i := d.CardIndex(cardID)
	if i < 0 {
		return fmt.Errorf("card %s: %w", cardID, domain.ErrNotFound)
	}
	d.Cards = slices.Delete(d.Cards, i, i+1)
	return nil
}

// Card returns a copy of one card.
func (s *Store) Card(deckID, cardID string) (domain.Card, error) {
	c, err := s.card(deckID, cardID)
	if err != nil {
		return domain.Card{}, err
	}
	return *c, nil
}

// ApplyState replaces the four scheduling fields of a card.
func (s *Store) ApplyState(deckID, cardID string, state domain.SchedState) error {
	c, err := s.card(deckID, cardID)
	if err != nil {
		return err
	}
	c.SchedState = state
	return nil
}

// Restore puts back an exact earlier copy of a card, content included.
func (s *Store) Restore(deckID string, card domain.Card) error {
	c, err := s.card(deckID, card.ID)
	if err != nil {
		return err
	}
	*c = card
	return nil
}

func (s *Store) card(deckID, cardID string) (*domain.Card, error) {
	d, ok := s.decks[deckID]
	if !ok {
		return nil, fmt.Errorf("deck %s: %w", deckID, domain.ErrNotFound)
	}
	i := d.CardIndex(cardID)
	if i < 0 {
		return nil, fmt.Errorf("card %s: %w", cardID, domain.ErrNotFound)
	}
	return &d.Cards[i], nil
}

func (s *Store) nextOrder() int {
	top := 0
	for _, d := range s.decks {
		top = max(top, d.Order)
	}
	return top + 1
}
