// Package web exposes decks, study sessions and deck sources as a JSON API.
//
// The card store and session controller are single-threaded. Every handler
// that touches them holds Server.mu for its whole turn, which gives the same
// one-event-at-a-time ordering a UI event loop would.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/conorfennell/flipcard/internal/cardstore"
	"github.com/conorfennell/flipcard/internal/domain"
	"github.com/conorfennell/flipcard/internal/persist"
	"github.com/conorfennell/flipcard/internal/session"
	decksync "github.com/conorfennell/flipcard/internal/sync"
)

const maxBodyBytes = 10 << 20

// Writer is the background persistence the handlers enqueue into.
type Writer interface {
	SaveDeck(deck domain.Deck)
	DeleteDeck(id string)
	Status() (persist.Status, error)
}

// Store is the durable storage read directly by the API.
type Store interface {
	SessionLogs(ctx context.Context) ([]domain.SessionLog, error)
	GetAllSources(ctx context.Context) ([]domain.Source, error)
	DeleteSource(ctx context.Context, sourceID int64) error
}

// Deps are the collaborators of a Server.
type Deps struct {
	Cards   *cardstore.Store
	Session *session.Controller
	Writer  Writer
	DB      Store
	Syncer  *decksync.Syncer
	Logger  *slog.Logger
	Now     func() time.Time
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	mu sync.Mutex

	cards  *cardstore.Store
	ctl    *session.Controller
	writer Writer
	db     Store
	syncer *decksync.Syncer
	log    *slog.Logger
	now    func() time.Time

	router chi.Router
}

// NewServer creates and configures a new server.
func NewServer(d Deps) *Server {
	s := &Server{
		cards:  d.Cards,
		ctl:    d.Session,
		writer: d.Writer,
		db:     d.DB,
		syncer: d.Syncer,
		log:    d.Logger.With("component", "web"),
		now:    d.Now,
		router: chi.NewRouter(),
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.routes()
	return s
}

// Close ends an open study session so its work reaches the session log.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ctl.Active(); ok {
		_, _ = s.ctl.EndSession()
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/decks", func(r chi.Router) {
			r.Get("/", s.handleListDecks)
			r.Post("/", s.handleCreateDeck)
			r.Route("/{deckID}", func(r chi.Router) {
				r.Get("/", s.handleGetDeck)
				r.Patch("/", s.handleRenameDeck)
				r.Delete("/", s.handleDeleteDeck)
				r.Post("/cards", s.handleAddCard)
				r.Put("/cards/{cardID}", s.handleEditCard)
				r.Delete("/cards/{cardID}", s.handleDeleteCard)
				r.Post("/import", s.handleImport)
				r.Get("/export", s.handleExport)
			})
		})

		r.Route("/study", func(r chi.Router) {
			r.Get("/", s.handleView)
			r.Post("/start", s.handleStart)
			r.Post("/rate", s.handleRate)
			r.Post("/undo", s.handleUndo)
			r.Post("/cram", s.handleToggleCram)
			r.Post("/end", s.handleEnd)
		})

		r.Get("/status", s.handleStatus)
		r.Get("/history", s.handleHistory)

		r.Get("/sources", s.handleListSources)
		r.Post("/sources", s.handleAddSource)
		r.Delete("/sources/{sourceID}", s.handleDeleteSource)
		r.Post("/sync", s.handleSync)
	})
}

// cardJSON is a card as the API shows it.
type cardJSON struct {
	ID          string     `json:"id"`
	DisplayID   string     `json:"display_id,omitempty"`
	Question    string     `json:"question"`
	Answer      string     `json:"answer"`
	Explanation string     `json:"explanation,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Interval    float64    `json:"interval"`
	Reps        int        `json:"reps"`
	EF          float64    `json:"ef"`
}

func toCardJSON(c domain.Card) cardJSON {
	out := cardJSON{
		ID:          c.ID,
		DisplayID:   c.DisplayID,
		Question:    c.Question,
		Answer:      c.Answer,
		Explanation: c.Explanation,
		Interval:    c.Interval,
		Reps:        c.Reps,
		EF:          c.EF,
	}
	if !c.DueDate.IsZero() {
		due := c.DueDate
		out.DueDate = &due
	}
	return out
}

// saveDeck enqueues a snapshot of a deck the caller just changed.
func (s *Server) saveDeck(deckID string) {
	snap, err := s.cards.Snapshot(deckID)
	if err != nil {
		s.log.Warn("deck missing, not saved", "deck_id", deckID, "error", err)
		return
	}
	s.writer.SaveDeck(snap)
}
