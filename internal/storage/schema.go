package storage

const schema = `
-- Per-(learner, card) scheduling state. A missing row means the learner has
-- never graded the card: new, due immediately.
CREATE TABLE IF NOT EXISTS progress (
    learner_id TEXT NOT NULL,
    card_id TEXT NOT NULL,
    repetitions INTEGER NOT NULL,
    easiness REAL NOT NULL,
    interval_days INTEGER NOT NULL,
    next_review TEXT NOT NULL, -- calendar date, YYYY-MM-DD
    last_reviewed_at DATETIME NOT NULL,
    last_quality INTEGER NOT NULL,
    total_reviews INTEGER NOT NULL,
    correct_reviews INTEGER NOT NULL,
    streak INTEGER NOT NULL,
    best_streak INTEGER NOT NULL,

    PRIMARY KEY (learner_id, card_id)
);

CREATE INDEX IF NOT EXISTS idx_progress_due ON progress(learner_id, next_review);

-- Append-only audit of grading events.
CREATE TABLE IF NOT EXISTS review_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    learner_id TEXT NOT NULL,
    card_id TEXT NOT NULL,
    quality INTEGER NOT NULL,
    reviewed_at DATETIME NOT NULL
);

-- The card catalog, filled by deck sync. id is the card's content hash.
CREATE TABLE IF NOT EXISTS cards (
    id TEXT PRIMARY KEY,
    question TEXT NOT NULL,
    answer TEXT NOT NULL,
    explanation TEXT NOT NULL DEFAULT '',
    topic TEXT NOT NULL DEFAULT '',
    source_id INTEGER,

    FOREIGN KEY(source_id) REFERENCES sources(id)
);

-- Deck sources: local directories or git repositories of markdown decks.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL, -- 'local' or 'git'
    last_scanned DATETIME
);
`
