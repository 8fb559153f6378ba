// Package sync feeds decks from markdown notes kept in local directories or
// git repositories.
//
// Syncing runs in two steps. Scan walks every source and parses its cards
// without touching any deck, so it may run alongside study. Apply then
// reconciles the scanned cards into the card store and must be serialised
// with every other store mutation.
package sync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/conorfennell/flipcard/internal/cardstore"
	"github.com/conorfennell/flipcard/internal/domain"
	"github.com/conorfennell/flipcard/internal/gitsource"
	"github.com/conorfennell/flipcard/internal/knol"
	"github.com/conorfennell/flipcard/internal/parser"
)

// SourceStore is the part of storage that remembers deck sources.
type SourceStore interface {
	InsertSource(ctx context.Context, path, sourceType, deckID string) (int64, error)
	FindSourceByPath(ctx context.Context, path string) (domain.Source, error)
	GetAllSources(ctx context.Context) ([]domain.Source, error)
	UpdateSourceLastScanned(ctx context.Context, sourceID int64, at time.Time) error
}

// DeckSaver persists a deck snapshot in the background.
type DeckSaver interface {
	SaveDeck(deck domain.Deck)
}

// Scan is the parsed content of one source.
type Scan struct {
	Source domain.Source
	Cards  []domain.Card
	Errors []error
}

// Report summarises how a scan changed its deck.
type Report struct {
	SourceID int64  `json:"source_id"`
	DeckID   string `json:"deck_id"`
	Path     string `json:"path"`
	Parsed   int    `json:"parsed"`
	Added    int    `json:"added"`
	Kept     int    `json:"kept"`
	Removed  int    `json:"removed"`
	Errors   int    `json:"errors"`
}

// Syncer reconciles deck sources into the card store.
type Syncer struct {
	sources  SourceStore
	store    *cardstore.Store
	saver    DeckSaver
	reposDir string
	log      *slog.Logger
	now      func() time.Time
}

// New creates a Syncer that checks git sources out under reposDir.
func New(sources SourceStore, store *cardstore.Store, saver DeckSaver, reposDir string, logger *slog.Logger) *Syncer {
	return &Syncer{
		sources:  sources,
		store:    store,
		saver:    saver,
		reposDir: reposDir,
		log:      logger.With("component", "sync"),
		now:      time.Now,
	}
}

// AddSource registers a directory or git URL and creates the deck it feeds.
// Like Apply it mutates the card store.
func (s *Syncer) AddSource(ctx context.Context, path, deckName string) (domain.Source, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return domain.Source{}, fmt.Errorf("source path is empty: %w", domain.ErrValidation)
	}

	sourceType := domain.SourceGit
	if _, err := gitsource.LocalPath(s.reposDir, path); err != nil {
		sourceType = domain.SourceLocal
		abs, err := filepath.Abs(path)
		if err != nil {
			return domain.Source{}, fmt.Errorf("failed to resolve %s: %w", path, err)
		}
		path = abs
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			return domain.Source{}, fmt.Errorf("source %s is not a directory: %w", path, domain.ErrValidation)
		}
	}

	if _, err := s.sources.FindSourceByPath(ctx, path); err == nil {
		return domain.Source{}, fmt.Errorf("source %s already exists: %w", path, domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.Source{}, err
	}

	if strings.TrimSpace(deckName) == "" {
		deckName = strings.TrimSuffix(filepath.Base(path), ".git")
	}
	deck, err := s.store.CreateDeck(deckName)
	if err != nil {
		return domain.Source{}, err
	}

	id, err := s.sources.InsertSource(ctx, path, sourceType, deck.ID)
	if err != nil {
		_ = s.store.RemoveDeck(deck.ID)
		return domain.Source{}, err
	}
	s.saver.SaveDeck(deck)

	s.log.Info("source added", "id", id, "type", sourceType, "path", path, "deck_id", deck.ID)
	return domain.Source{ID: id, Path: path, Type: sourceType, DeckID: deck.ID}, nil
}

// Scan fetches every source and parses its notes. Sources that cannot be
// fetched are logged and left out.
func (s *Syncer) Scan(ctx context.Context) ([]Scan, error) {
	sources, err := s.sources.GetAllSources(ctx)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		s.log.Info("no sources configured")
		return nil, nil
	}

	var scans []Scan
	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return scans, err
		}
		s.log.Info("syncing source", "id", source.ID, "type", source.Type, "path", source.Path)

		dir := source.Path
		if source.Type == domain.SourceGit {
			dir, err = s.checkout(ctx, source.Path)
			if err != nil {
				s.log.Error("error syncing git repo", "url", source.Path, "error", err)
				continue
			}
		}

		cards, parseErrs, err := parseDir(dir)
		if err != nil {
			s.log.Error("error walking directory", "path", dir, "error", err)
			continue
		}
		scans = append(scans, Scan{Source: source, Cards: cards, Errors: parseErrs})
	}
	return scans, nil
}

// Apply reconciles scans into their decks and saves every changed deck.
func (s *Syncer) Apply(ctx context.Context, scans []Scan) []Report {
	reports := make([]Report, 0, len(scans))
	for _, sc := range scans {
		deck := s.deckFor(sc.Source)
		merged, r := Reconcile(deck, sc.Cards)
		r.SourceID = sc.Source.ID
		r.Path = sc.Source.Path
		r.Errors = len(sc.Errors)

		s.store.Put(merged)
		s.saver.SaveDeck(merged)

		if err := s.sources.UpdateSourceLastScanned(ctx, sc.Source.ID, s.now()); err != nil {
			s.log.Warn("failed to update last scanned for source", "source_id", sc.Source.ID, "error", err)
		}
		for _, err := range sc.Errors {
			s.log.Warn("parse error", "source_id", sc.Source.ID, "error", err)
		}
		s.log.Info("reconciliation complete",
			"path", r.Path,
			"parsed_cards", r.Parsed,
			"added", r.Added,
			"orphaned_deleted", r.Removed,
			"errors", r.Errors,
		)
		reports = append(reports, r)
	}
	return reports
}

// Reconcile makes deck hold exactly the parsed cards, in parsed order.
// Cards already in the deck keep their schedule; new ones start fresh and
// cards no longer present are dropped.
func Reconcile(deck domain.Deck, parsed []domain.Card) (domain.Deck, Report) {
	existing := make(map[string]domain.Card, len(deck.Cards))
	for _, c := range deck.Cards {
		existing[c.ID] = c
	}

	r := Report{DeckID: deck.ID, Parsed: len(parsed)}
	seen := make(map[string]struct{}, len(parsed))
	cards := make([]domain.Card, 0, len(parsed))
	for _, p := range parsed {
		id := knol.Hash(p)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		card := domain.Card{
			ID:          id,
			DisplayID:   strconv.Itoa(len(cards) + 1),
			Question:    p.Question,
			Answer:      p.Answer,
			Explanation: p.Explanation,
			SchedState:  domain.NewSchedState(),
		}
		if old, ok := existing[id]; ok {
			card.SchedState = old.SchedState
			r.Kept++
		} else {
			r.Added++
		}
		cards = append(cards, card)
	}
	r.Removed = len(deck.Cards) - r.Kept

	out := deck.Clone()
	out.Cards = cards
	return out, r
}

func (s *Syncer) deckFor(source domain.Source) domain.Deck {
	if d, err := s.store.Snapshot(source.DeckID); err == nil {
		return d
	}
	// The deck was deleted; bring it back at the end of the list.
	order := 1
	for _, d := range s.store.Decks() {
		order = max(order, d.Order+1)
	}
	return domain.Deck{
		ID:    source.DeckID,
		Name:  strings.TrimSuffix(filepath.Base(source.Path), ".git"),
		Order: order,
	}
}

func (s *Syncer) checkout(ctx context.Context, repoURL string) (string, error) {
	local, err := gitsource.LocalPath(s.reposDir, repoURL)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return "", fmt.Errorf("failed to create repos directory: %w", err)
	}
	if err := gitsource.Sync(ctx, s.log, repoURL, local); err != nil {
		return "", err
	}
	return local, nil
}

func parseDir(root string) ([]domain.Card, []error, error) {
	var (
		cards []domain.Card
		errs  []error
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}
		fileCards, err := parser.ParseFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("parsing %s: %w", path, err))
			return nil
		}
		cards = append(cards, fileCards...)
		return nil
	})
	return cards, errs, err
}
