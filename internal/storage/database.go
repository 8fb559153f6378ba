package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/conorfennell/flipcard/internal/domain"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serialises writers anyway, and a single connection keeps
	// in-memory databases alive and shared.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Execute the schema to create tables if they don't exist.
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// SaveDeck overwrites a deck and all of its cards.
func (db *DB) SaveDeck(ctx context.Context, deck domain.Deck) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin save of deck %s: %w", deck.ID, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO decks (id, name, position)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, position = excluded.position
	`, deck.ID, deck.Name, deck.Order)
	if err != nil {
		return fmt.Errorf("failed to upsert deck %s: %w", deck.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM cards WHERE deck_id = ?`, deck.ID); err != nil {
		return fmt.Errorf("failed to clear cards of deck %s: %w", deck.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cards (deck_id, id, display_id, question, answer, explanation, due_ms, interval_days, reps, ef, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare card insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range deck.Cards {
		_, err := stmt.ExecContext(ctx,
			deck.ID,
			c.ID,
			c.DisplayID,
			c.Question,
			c.Answer,
			c.Explanation,
			toMillis(c.DueDate),
			c.Interval,
			c.Reps,
			c.EF,
			i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert card %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit deck %s: %w", deck.ID, err)
	}
	return nil
}

// LoadAllDecks returns every deck ordered by position. Decks without a
// position are placed after the rest, in name order.
func (db *DB) LoadAllDecks(ctx context.Context) ([]domain.Deck, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, name, position FROM decks
		ORDER BY position <= 0, position, name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get decks: %w", err)
	}
	defer rows.Close()

	var decks []domain.Deck
	index := make(map[string]int)
	for rows.Next() {
		var d domain.Deck
		if err := rows.Scan(&d.ID, &d.Name, &d.Order); err != nil {
			return nil, fmt.Errorf("failed to scan deck row: %w", err)
		}
		index[d.ID] = len(decks)
		decks = append(decks, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read decks: %w", err)
	}

	next := 1
	for _, d := range decks {
		next = max(next, d.Order+1)
	}
	for i := range decks {
		if decks[i].Order <= 0 {
			decks[i].Order = next
			next++
		}
	}

	cards, err := db.queryCards(ctx, `ORDER BY deck_id, position`)
	if err != nil {
		return nil, err
	}
	for _, dc := range cards {
		if i, ok := index[dc.deckID]; ok {
			decks[i].Cards = append(decks[i].Cards, dc.card)
		}
	}
	return decks, nil
}

// LoadDeck returns a single deck with its cards.
func (db *DB) LoadDeck(ctx context.Context, id string) (domain.Deck, error) {
	var d domain.Deck
	err := db.conn.QueryRowContext(ctx, `SELECT id, name, position FROM decks WHERE id = ?`, id).
		Scan(&d.ID, &d.Name, &d.Order)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Deck{}, fmt.Errorf("deck %s: %w", id, domain.ErrNotFound)
		}
		return domain.Deck{}, fmt.Errorf("failed to find deck %s: %w", id, err)
	}

	cards, err := db.queryCards(ctx, `WHERE deck_id = ? ORDER BY position`, id)
	if err != nil {
		return domain.Deck{}, err
	}
	for _, dc := range cards {
		d.Cards = append(d.Cards, dc.card)
	}
	return d, nil
}

// DeleteDeck removes a deck and its cards.
func (db *DB) DeleteDeck(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete of deck %s: %w", id, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cards WHERE deck_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete cards of deck %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM decks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete deck %s: %w", id, err)
	}
	return tx.Commit()
}

// AppendSessionLog adds a day's study to any existing entry for that day.
func (db *DB) AppendSessionLog(ctx context.Context, dateKey string, entry domain.SessionLog) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO session_logs (date_key, cards, seconds)
		VALUES (?, ?, ?)
		ON CONFLICT(date_key) DO UPDATE SET
			cards = cards + excluded.cards,
			seconds = seconds + excluded.seconds
	`, dateKey, entry.Cards, entry.Seconds)
	if err != nil {
		return fmt.Errorf("failed to append session log for %s: %w", dateKey, err)
	}
	return nil
}

// SessionLogs returns all daily study entries, newest first.
func (db *DB) SessionLogs(ctx context.Context) ([]domain.SessionLog, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT date_key, cards, seconds FROM session_logs ORDER BY date_key DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get session logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.SessionLog
	for rows.Next() {
		var l domain.SessionLog
		if err := rows.Scan(&l.Date, &l.Cards, &l.Seconds); err != nil {
			return nil, fmt.Errorf("failed to scan session log row: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

type deckCard struct {
	deckID string
	card   domain.Card
}

func (db *DB) queryCards(ctx context.Context, clause string, args ...any) ([]deckCard, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT deck_id, id, display_id, question, answer, explanation, due_ms, interval_days, reps, ef
		FROM cards `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards: %w", err)
	}
	defer rows.Close()

	var out []deckCard
	for rows.Next() {
		var (
			dc    deckCard
			dueMS int64
		)
		if err := rows.Scan(
			&dc.deckID,
			&dc.card.ID,
			&dc.card.DisplayID,
			&dc.card.Question,
			&dc.card.Answer,
			&dc.card.Explanation,
			&dueMS,
			&dc.card.Interval,
			&dc.card.Reps,
			&dc.card.EF,
		); err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		dc.card.DueDate = fromMillis(dueMS)
		out = append(out, dc)
	}
	return out, rows.Err()
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
