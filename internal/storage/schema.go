package storage

const schema = `
-- Decks in display order.
CREATE TABLE IF NOT EXISTS decks (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    position INTEGER NOT NULL DEFAULT 0
);

-- Cards with their scheduling state. due_ms is epoch milliseconds, 0 = due now.
CREATE TABLE IF NOT EXISTS cards (
    deck_id TEXT NOT NULL,
    id TEXT NOT NULL,
    display_id TEXT NOT NULL DEFAULT '',
    question TEXT NOT NULL,
    answer TEXT NOT NULL DEFAULT '',
    explanation TEXT NOT NULL DEFAULT '',
    due_ms INTEGER NOT NULL DEFAULT 0,
    interval_days REAL NOT NULL DEFAULT 0,
    reps INTEGER NOT NULL DEFAULT 0,
    ef REAL NOT NULL DEFAULT 2.5,
    position INTEGER NOT NULL DEFAULT 0,

    PRIMARY KEY (deck_id, id)
);

-- One row per calendar day of study.
CREATE TABLE IF NOT EXISTS session_logs (
    date_key TEXT PRIMARY KEY,
    cards INTEGER NOT NULL DEFAULT 0,
    seconds INTEGER NOT NULL DEFAULT 0
);

-- The 'sources' table tracks where a deck's cards come from, either a local directory or a git repository.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL DEFAULT 'local',
    deck_id TEXT NOT NULL,
    last_scanned DATETIME
);
`
