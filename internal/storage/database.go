package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/medrevise/reviewd/internal/domain"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// DB wraps the SQL database connection.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// GetProgress retrieves the progress of one (learner, card) pair. A missing
// row is not an error: it comes back as the New state.
func (db *DB) GetProgress(ctx context.Context, learnerID, cardID string) (domain.ProgressState, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT repetitions, easiness, interval_days, next_review, last_reviewed_at,
		       last_quality, total_reviews, correct_reviews, streak, best_streak
		FROM progress WHERE learner_id = ? AND card_id = ?
	`, learnerID, cardID)

	p, err := scanProgress(row)
	if err == sql.ErrNoRows {
		return domain.NewCardState(), nil
	}
	if err != nil {
		return domain.ProgressState{}, fmt.Errorf("failed to get progress for %s/%s: %w", learnerID, cardID, err)
	}
	return domain.TrackedState(p), nil
}

// GetProgressForCards retrieves progress for a learner over a set of cards.
// The returned map only holds rows that exist; lookups of absent cards
// yield the New state.
func (db *DB) GetProgressForCards(ctx context.Context, learnerID string, cardIDs []string) (map[string]domain.ProgressState, error) {
	out := make(map[string]domain.ProgressState, len(cardIDs))
	if len(cardIDs) == 0 {
		return out, nil
	}

	placeholders := strings.Repeat("?,", len(cardIDs)-1) + "?"
	args := make([]any, 0, len(cardIDs)+1)
	args = append(args, learnerID)
	for _, id := range cardIDs {
		args = append(args, id)
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT card_id, repetitions, easiness, interval_days, next_review, last_reviewed_at,
		       last_quality, total_reviews, correct_reviews, streak, best_streak
		FROM progress WHERE learner_id = ? AND card_id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get progress for learner %s: %w", learnerID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var cardID string
		var p domain.Progress
		var nextReview string
		var quality int
		if err := rows.Scan(
			&cardID,
			&p.Repetitions,
			&p.Easiness,
			&p.IntervalDays,
			&nextReview,
			&p.LastReviewedAt,
			&quality,
			&p.TotalReviews,
			&p.CorrectReviews,
			&p.Streak,
			&p.BestStreak,
		); err != nil {
			return nil, fmt.Errorf("failed to scan progress row: %w", err)
		}
		p.NextReview, err = domain.ParseDate(nextReview)
		if err != nil {
			return nil, fmt.Errorf("bad next_review date for card %s: %w", cardID, err)
		}
		p.LastQuality = domain.Quality(quality)
		out[cardID] = domain.TrackedState(p)
	}
	return out, rows.Err()
}

// UpsertProgress writes the post-review state of a (learner, card) pair.
// The statement is a single keyed upsert, so two concurrent gradings of the
// same pair resolve last-write-wins and replaying a grade payload is
// idempotent.
func (db *DB) UpsertProgress(ctx context.Context, learnerID, cardID string, p domain.Progress) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO progress (
			learner_id, card_id, repetitions, easiness, interval_days, next_review,
			last_reviewed_at, last_quality, total_reviews, correct_reviews, streak, best_streak
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(learner_id, card_id) DO UPDATE SET
			repetitions = excluded.repetitions,
			easiness = excluded.easiness,
			interval_days = excluded.interval_days,
			next_review = excluded.next_review,
			last_reviewed_at = excluded.last_reviewed_at,
			last_quality = excluded.last_quality,
			total_reviews = excluded.total_reviews,
			correct_reviews = excluded.correct_reviews,
			streak = excluded.streak,
			best_streak = excluded.best_streak
	`,
		learnerID,
		cardID,
		p.Repetitions,
		p.Easiness,
		p.IntervalDays,
		p.NextReview.Format(time.DateOnly),
		p.LastReviewedAt,
		int(p.LastQuality),
		p.TotalReviews,
		p.CorrectReviews,
		p.Streak,
		p.BestStreak,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert progress for %s/%s: %w", learnerID, cardID, err)
	}
	return nil
}

// InsertReviewLog appends one grading event to the audit log.
func (db *DB) InsertReviewLog(ctx context.Context, log domain.ReviewLog) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO review_logs (learner_id, card_id, quality, reviewed_at)
		VALUES (?, ?, ?, ?)
	`, log.LearnerID, log.CardID, int(log.Quality), log.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert review log for %s/%s: %w", log.LearnerID, log.CardID, err)
	}
	return nil
}

// InsertCard inserts a new catalog card.
func (db *DB) InsertCard(ctx context.Context, card domain.Card, sourceID int64) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO cards (id, question, answer, explanation, topic, source_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`, card.ID, card.Question, card.Answer, card.Explanation, card.Topic, sourceID)
	if err != nil {
		return fmt.Errorf("failed to insert card %s: %w", card.ID, err)
	}
	return nil
}

// FindCardByID retrieves a catalog card, or nil if it does not exist.
func (db *DB) FindCardByID(ctx context.Context, id string) (*domain.Card, error) {
	var c domain.Card
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, question, answer, explanation, topic
		FROM cards WHERE id = ?
	`, id)

	err := row.Scan(&c.ID, &c.Question, &c.Answer, &c.Explanation, &c.Topic)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Card not found
		}
		return nil, fmt.Errorf("failed to find card %s: %w", id, err)
	}
	return &c, nil
}

// ListCards retrieves catalog cards, optionally filtered by topic.
func (db *DB) ListCards(ctx context.Context, topic string) ([]domain.Card, error) {
	query := `SELECT id, question, answer, explanation, topic FROM cards`
	var args []any
	if topic != "" {
		query += ` WHERE topic = ?`
		args = append(args, topic)
	}
	query += ` ORDER BY rowid`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		var c domain.Card
		if err := rows.Scan(&c.ID, &c.Question, &c.Answer, &c.Explanation, &c.Topic); err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// GetCardsBySourceID retrieves all cards that came from one deck source.
func (db *DB) GetCardsBySourceID(ctx context.Context, sourceID int64) ([]domain.Card, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, question, answer, explanation, topic
		FROM cards WHERE source_id = ?
	`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards for source ID %d: %w", sourceID, err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		var c domain.Card
		if err := rows.Scan(&c.ID, &c.Question, &c.Answer, &c.Explanation, &c.Topic); err != nil {
			return nil, fmt.Errorf("failed to scan card row for source ID %d: %w", sourceID, err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// DeleteCardByID removes a card from the catalog.
func (db *DB) DeleteCardByID(ctx context.Context, id string) error {
	_, err := db.conn.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete card %s: %w", id, err)
	}
	return nil
}

// Source represents a deck source, either a local path or a git URL.
type Source struct {
	ID          int64
	Path        string
	Type        string
	LastScanned sql.NullTime
}

// InsertSource inserts a new deck source and returns its ID.
func (db *DB) InsertSource(ctx context.Context, path, typ string) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO sources (path, type) VALUES (?, ?)
	`, path, typ)
	if err != nil {
		return 0, fmt.Errorf("failed to insert source %s: %w", path, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for source %s: %w", path, err)
	}
	return id, nil
}

// FindSourceByPath retrieves a source by its path, or nil if it does not exist.
func (db *DB) FindSourceByPath(ctx context.Context, path string) (*Source, error) {
	var s Source
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, path, type, last_scanned FROM sources WHERE path = ?
	`, path)

	err := row.Scan(&s.ID, &s.Path, &s.Type, &s.LastScanned)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Source not found
		}
		return nil, fmt.Errorf("failed to find source by path %s: %w", path, err)
	}
	return &s, nil
}

// GetAllSources retrieves all configured deck sources.
func (db *DB) GetAllSources(ctx context.Context) ([]Source, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, path, type, last_scanned FROM sources`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var s Source
		if err := rows.Scan(&s.ID, &s.Path, &s.Type, &s.LastScanned); err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// UpdateSourceLastScanned stamps a source as just scanned.
func (db *DB) UpdateSourceLastScanned(ctx context.Context, sourceID int64) error {
	_, err := db.conn.ExecContext(ctx, `
		UPDATE sources SET last_scanned = ? WHERE id = ?
	`, time.Now(), sourceID)
	if err != nil {
		return fmt.Errorf("failed to update last scanned for source ID %d: %w", sourceID, err)
	}
	return nil
}

// DeleteSource removes a deck source.
func (db *DB) DeleteSource(ctx context.Context, sourceID int64) error {
	_, err := db.conn.ExecContext(ctx, `DELETE FROM sources WHERE id = ?`, sourceID)
	if err != nil {
		return fmt.Errorf("failed to delete source %d: %w", sourceID, err)
	}
	return nil
}

// scanProgress reads one progress row from a single-row query.
func scanProgress(row *sql.Row) (domain.Progress, error) {
	var p domain.Progress
	var nextReview string
	var quality int
	err := row.Scan(
		&p.Repetitions,
		&p.Easiness,
		&p.IntervalDays,
		&nextReview,
		&p.LastReviewedAt,
		&quality,
		&p.TotalReviews,
		&p.CorrectReviews,
		&p.Streak,
		&p.BestStreak,
	)
	if err != nil {
		return domain.Progress{}, err
	}
	p.NextReview, err = domain.ParseDate(nextReview)
	if err != nil {
		return domain.Progress{}, fmt.Errorf("bad next_review date: %w", err)
	}
	p.LastQuality = domain.Quality(quality)
	return p, nil
}
