package web

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/conorfennell/flipcard/internal/domain"
	"github.com/conorfennell/flipcard/internal/interchange"
	"github.com/conorfennell/flipcard/internal/queue"
)

type deckSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Order int    `json:"order"`
	Cards int    `json:"cards"`
	Due   int    `json:"due"`
}

type deckDetail struct {
	deckSummary
	CardList []cardJSON `json:"card_list"`
}

type deckRequest struct {
	Name string `json:"name"`
}

type cardRequest struct {
	DisplayID   string `json:"display_id"`
	Question    string `json:"question"`
	Answer      string `json:"answer"`
	Explanation string `json:"explanation"`
}

func (s *Server) summarize(d domain.Deck) deckSummary {
	return deckSummary{
		ID:    d.ID,
		Name:  d.Name,
		Order: d.Order,
		Cards: len(d.Cards),
		Due:   queue.CountDue(d.Cards, s.now()),
	}
}

func (s *Server) handleListDecks(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	decks := s.cards.Decks()
	s.mu.Unlock()

	out := make([]deckSummary, 0, len(decks))
	for _, d := range decks {
		out = append(out, s.summarize(d))
	}
	RespondWithJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateDeck(w http.ResponseWriter, r *http.Request) {
	var req deckRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	deck, err := s.cards.CreateDeck(req.Name)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.writer.SaveDeck(deck)
	s.log.Info("deck created", "deck_id", deck.ID, "name", deck.Name)
	RespondWithJSON(w, http.StatusCreated, s.summarize(deck))
}

func (s *Server) handleGetDeck(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	deck, err := s.cards.Snapshot(chi.URLParam(r, "deckID"))
	s.mu.Unlock()
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	out := deckDetail{deckSummary: s.summarize(deck), CardList: make([]cardJSON, 0, len(deck.Cards))}
	for _, c := range deck.Cards {
		out.CardList = append(out.CardList, toCardJSON(c))
	}
	RespondWithJSON(w, http.StatusOK, out)
}

func (s *Server) handleRenameDeck(w http.ResponseWriter, r *http.Request) {
	var req deckRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	deckID := chi.URLParam(r, "deckID")

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.cards.RenameDeck(deckID, req.Name); err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.saveDeck(deckID)
	deck, _ := s.cards.Snapshot(deckID)
	RespondWithJSON(w, http.StatusOK, s.summarize(deck))
}

func (s *Server) handleDeleteDeck(w http.ResponseWriter, r *http.Request) {
	deckID := chi.URLParam(r, "deckID")

	s.mu.Lock()
	defer s.mu.Unlock()

	if active, ok := s.ctl.Active(); ok && active == deckID {
		if _, err := s.ctl.EndSession(); err != nil {
			s.respondErr(w, r, err)
			return
		}
	}
	if err := s.cards.RemoveDeck(deckID); err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.writer.DeleteDeck(deckID)
	s.log.Info("deck deleted", "deck_id", deckID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddCard(w http.ResponseWriter, r *http.Request) {
	var req cardRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	deckID := chi.URLParam(r, "deckID")

	s.mu.Lock()
	defer s.mu.Unlock()

	card, err := s.cards.AddCard(deckID, domain.Card{
		DisplayID:   req.DisplayID,
		Question:    req.Question,
		Answer:      req.Answer,
		Explanation: req.Explanation,
		SchedState:  domain.NewSchedState(),
	})
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.saveDeck(deckID)
	s.ctl.Refresh()
	RespondWithJSON(w, http.StatusCreated, toCardJSON(card))
}

func (s *Server) handleEditCard(w http.ResponseWriter, r *http.Request) {
	var req cardRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	deckID, cardID := chi.URLParam(r, "deckID"), chi.URLParam(r, "cardID")

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.cards.EditCard(deckID, domain.Card{
		ID:          cardID,
		DisplayID:   req.DisplayID,
		Question:    req.Question,
		Answer:      req.Answer,
		Explanation: req.Explanation,
	})
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.saveDeck(deckID)
	s.ctl.Refresh()

	card, _ := s.cards.Card(deckID, cardID)
	RespondWithJSON(w, http.StatusOK, toCardJSON(card))
}

func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	deckID, cardID := chi.URLParam(r, "deckID"), chi.URLParam(r, "cardID")

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.cards.RemoveCard(deckID, cardID); err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.saveDeck(deckID)
	s.ctl.Refresh()
	w.WriteHeader(http.StatusNoContent)
}

type importResult struct {
	Imported int          `json:"imported"`
	Skipped  []skippedRow `json:"skipped"`
	Deck     deckSummary  `json:"deck"`
}

type skippedRow struct {
	Line  int    `json:"line"`
	Error string `json:"error"`
}

// handleImport appends the cards of a TSV body to a deck. Rows without a
// question are skipped; bad scheduling fields fall back to fresh values.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	deckID := chi.URLParam(r, "deckID")

	records, skipped, err := interchange.ReadTSV(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		RespondWithError(w, r, http.StatusBadRequest, "invalid tsv: "+err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cards.Deck(deckID); !ok {
		s.respondErr(w, r, fmt.Errorf("deck %s: %w", deckID, domain.ErrNotFound))
		return
	}

	res := importResult{Skipped: make([]skippedRow, 0, len(skipped))}
	for _, se := range skipped {
		res.Skipped = append(res.Skipped, skippedRow{Line: se.Line, Error: se.Err.Error()})
	}
	for _, rec := range records {
		if _, err := s.cards.AddCard(deckID, interchange.ToCard(rec)); err != nil {
			res.Skipped = append(res.Skipped, skippedRow{Error: err.Error()})
			continue
		}
		res.Imported++
	}
	if res.Imported > 0 {
		s.saveDeck(deckID)
		s.ctl.Refresh()
	}

	deck, _ := s.cards.Snapshot(deckID)
	res.Deck = s.summarize(deck)
	s.log.Info("cards imported", "deck_id", deckID, "imported", res.Imported, "skipped", len(res.Skipped))
	RespondWithJSON(w, http.StatusOK, res)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	deckID := chi.URLParam(r, "deckID")

	s.mu.Lock()
	deck, err := s.cards.Snapshot(deckID)
	s.mu.Unlock()
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	records := make([]interchange.Record, 0, len(deck.Cards))
	for _, c := range deck.Cards {
		records = append(records, interchange.FromCard(c))
	}
	var buf bytes.Buffer
	if err := interchange.WriteTSV(&buf, records); err != nil {
		s.respondErr(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/tab-separated-values; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", deck.Name+".tsv"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
