// Package web exposes the scheduling core over a small JSON API.
package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/medrevise/reviewd/internal/catalog"
	"github.com/medrevise/reviewd/internal/domain"
	"github.com/medrevise/reviewd/internal/session"
	"github.com/medrevise/reviewd/internal/sm2"
	"github.com/medrevise/reviewd/internal/storage"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	db       *storage.DB
	catalog  *catalog.Catalog
	sessions *session.Manager
	engine   sm2.Params
	router   *http.ServeMux
	validate *validator.Validate
}

// NewServer creates and configures a new server.
func NewServer(db *storage.DB, cat *catalog.Catalog, sessions *session.Manager, engine sm2.Params) *Server {
	s := &Server{
		db:       db,
		catalog:  cat,
		sessions: sessions,
		engine:   engine,
		router:   http.NewServeMux(),
		validate: validator.New(),
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	s.router.HandleFunc("/healthz", s.handleHealth())
	s.router.HandleFunc("/due", s.handleGetDue())
	s.router.HandleFunc("/grade", s.handlePostGrade())
	s.router.HandleFunc("/sessions", s.handlePostSession())
	s.router.HandleFunc("/sessions/", s.handleSessionByID())
}

// --- wire types ---

type progressJSON struct {
	Repetitions    int     `json:"repetitions"`
	Easiness       float64 `json:"easiness"`
	IntervalDays   int     `json:"interval_days"`
	NextReviewDate string  `json:"next_review_date"`
	LastReviewedAt string  `json:"last_reviewed_at"`
	LastQuality    int     `json:"last_quality"`
	TotalReviews   int     `json:"total_reviews"`
	CorrectReviews int     `json:"correct_reviews"`
	Streak         int     `json:"streak"`
	BestStreak     int     `json:"best_streak"`
}

func toProgressJSON(p domain.Progress) progressJSON {
	return progressJSON{
		Repetitions:    p.Repetitions,
		Easiness:       p.Easiness,
		IntervalDays:   p.IntervalDays,
		NextReviewDate: p.NextReview.Format(time.DateOnly),
		LastReviewedAt: p.LastReviewedAt.Format(time.RFC3339),
		LastQuality:    int(p.LastQuality),
		TotalReviews:   p.TotalReviews,
		CorrectReviews: p.CorrectReviews,
		Streak:         p.Streak,
		BestStreak:     p.BestStreak,
	}
}

type cardJSON struct {
	ID          string `json:"id"`
	Question    string `json:"question"`
	Answer      string `json:"answer,omitempty"`
	Explanation string `json:"explanation,omitempty"`
	Topic       string `json:"topic,omitempty"`
}

func toCardJSON(c domain.Card) cardJSON {
	return cardJSON{
		ID:          c.ID,
		Question:    c.Question,
		Answer:      c.Answer,
		Explanation: c.Explanation,
		Topic:       c.Topic,
	}
}

type summaryJSON struct {
	Reviewed      int     `json:"reviewed"`
	Correct       int     `json:"correct"`
	Accuracy      float64 `json:"accuracy"`
	BestStreak    int     `json:"best_streak"`
	PendingWrites int     `json:"pending_writes"`
	FailedWrites  int     `json:"failed_writes"`
}

func toSummaryJSON(sum session.Summary) summaryJSON {
	return summaryJSON{
		Reviewed:      sum.Reviewed,
		Correct:       sum.Correct,
		Accuracy:      sum.Accuracy,
		BestStreak:    sum.BestStreak,
		PendingWrites: sum.PendingWrites,
		FailedWrites:  sum.FailedWrites,
	}
}

type sessionViewJSON struct {
	SessionID string       `json:"session_id"`
	Phase     string       `json:"phase"`
	Position  int          `json:"position"`
	Total     int          `json:"total"`
	Card      *cardJSON    `json:"card,omitempty"`
	Summary   *summaryJSON `json:"summary,omitempty"`
}

func toSessionViewJSON(id string, v session.View) sessionViewJSON {
	out := sessionViewJSON{
		SessionID: id,
		Phase:     v.Phase.String(),
		Position:  v.Position,
		Total:     v.Total,
	}
	if v.Phase != session.PhaseComplete {
		card := toCardJSON(v.Card)
		out.Card = &card
	}
	if v.Summary != nil {
		sum := toSummaryJSON(*v.Summary)
		out.Summary = &sum
	}
	return out
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseToday resolves the grading day: an explicit YYYY-MM-DD, or the
// current UTC calendar day.
func parseToday(s string) (time.Time, error) {
	if s == "" {
		return domain.DateOf(time.Now()), nil
	}
	return domain.ParseDate(s)
}
