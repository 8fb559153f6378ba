package web

import (
	"net/http"

	"github.com/conorfennell/flipcard/internal/domain"
	"github.com/conorfennell/flipcard/internal/session"
	"github.com/conorfennell/flipcard/internal/srs"
)

type viewJSON struct {
	Active         bool           `json:"active"`
	DeckID         string         `json:"deck_id,omitempty"`
	Mode           string         `json:"mode"`
	Card           *cardJSON      `json:"card,omitempty"`
	Preview        *srs.Intervals `json:"preview,omitempty"`
	QueueLen       int            `json:"queue_len"`
	Studied        int            `json:"studied"`
	CardsRated     int            `json:"cards_rated"`
	Total          int            `json:"total"`
	Progress       float64        `json:"progress"`
	Terminal       string         `json:"terminal"`
	ElapsedSeconds int64          `json:"elapsed_seconds"`
	UndoDepth      int            `json:"undo_depth"`
}

func toViewJSON(snap session.Snapshot) viewJSON {
	v := viewJSON{
		Active:         snap.Active,
		DeckID:         snap.DeckID,
		Mode:           snap.Mode.String(),
		QueueLen:       snap.QueueLen,
		Studied:        snap.Studied,
		CardsRated:     snap.CardsRated,
		Total:          snap.Total,
		Progress:       snap.Progress,
		Terminal:       snap.Terminal.String(),
		ElapsedSeconds: int64(snap.Elapsed.Seconds()),
		UndoDepth:      snap.UndoDepth,
	}
	if snap.Current != nil {
		c := toCardJSON(*snap.Current)
		p := snap.Preview
		v.Card, v.Preview = &c, &p
	}
	return v
}

type startRequest struct {
	DeckID string `json:"deck_id"`
}

type rateRequest struct {
	Rating int `json:"rating"`
}

type undoResponse struct {
	Undone bool     `json:"undone"`
	View   viewJSON `json:"view"`
}

type summaryJSON struct {
	DeckID         string `json:"deck_id"`
	CardsRated     int    `json:"cards_rated"`
	ElapsedSeconds int64  `json:"elapsed_seconds"`
	Logged         bool   `json:"logged"`
	Date           string `json:"date,omitempty"`
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	snap := s.ctl.View()
	s.mu.Unlock()
	RespondWithJSON(w, http.StatusOK, toViewJSON(snap))
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ctl.StartSession(req.DeckID); err != nil {
		s.respondErr(w, r, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, toViewJSON(s.ctl.View()))
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ctl.Rate(domain.Rating(req.Rating)); err != nil {
		s.respondErr(w, r, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, toViewJSON(s.ctl.View()))
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	undone, err := s.ctl.Undo()
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, undoResponse{Undone: undone, View: toViewJSON(s.ctl.View())})
}

func (s *Server) handleToggleCram(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ctl.ToggleCram(); err != nil {
		s.respondErr(w, r, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, toViewJSON(s.ctl.View()))
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum, err := s.ctl.EndSession()
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, summaryJSON{
		DeckID:         sum.DeckID,
		CardsRated:     sum.CardsRated,
		ElapsedSeconds: int64(sum.Elapsed.Seconds()),
		Logged:         sum.Logged,
		Date:           sum.Date,
	})
}

type statusJSON struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.writer.Status()
	out := statusJSON{Status: st.String()}
	if err != nil {
		out.Error = err.Error()
	}
	RespondWithJSON(w, http.StatusOK, out)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	logs, err := s.db.SessionLogs(r.Context())
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	if logs == nil {
		logs = []domain.SessionLog{}
	}
	RespondWithJSON(w, http.StatusOK, logs)
}
