package web

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/conorfennell/flipcard/internal/domain"
)

type sourceRequest struct {
	Path     string `json:"path"`
	DeckName string `json:"deck_name"`
}

type sourceJSON struct {
	ID          int64      `json:"id"`
	Path        string     `json:"path"`
	Type        string     `json:"type"`
	DeckID      string     `json:"deck_id"`
	LastScanned *time.Time `json:"last_scanned,omitempty"`
}

func toSourceJSON(src domain.Source) sourceJSON {
	out := sourceJSON{ID: src.ID, Path: src.Path, Type: src.Type, DeckID: src.DeckID}
	if !src.LastScanned.IsZero() {
		ts := src.LastScanned.UTC()
		out.LastScanned = &ts
	}
	return out
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.db.GetAllSources(r.Context())
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	out := make([]sourceJSON, 0, len(sources))
	for _, src := range sources {
		out = append(out, toSourceJSON(src))
	}
	RespondWithJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddSource(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	src, err := s.syncer.AddSource(r.Context(), req.Path, req.DeckName)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	RespondWithJSON(w, http.StatusCreated, toSourceJSON(src))
}

// handleDeleteSource forgets a source. The deck it fed stays, now unmanaged.
func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "sourceID"), 10, 64)
	if err != nil {
		RespondWithError(w, r, http.StatusBadRequest, "invalid source id")
		return
	}
	if err := s.db.DeleteSource(r.Context(), id); err != nil {
		s.respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSync fetches every source without holding the lock, then applies
// the results. Applying is refused while a study session is open since it
// may drop the card being studied.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	scans, err := s.syncer.Scan(r.Context())
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if deckID, ok := s.ctl.Active(); ok {
		s.respondErr(w, r, fmt.Errorf("study session open on deck %s: %w", deckID, domain.ErrConflict))
		return
	}
	RespondWithJSON(w, http.StatusOK, s.syncer.Apply(r.Context(), scans))
}
