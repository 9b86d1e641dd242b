package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/medrevise/reviewd/internal/catalog"
	"github.com/medrevise/reviewd/internal/domain"
	"github.com/medrevise/reviewd/internal/selector"
	"github.com/medrevise/reviewd/internal/session"
)

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// handleGetDue answers GET /due: the ordered due subset of a candidate set.
// Candidates come from card_ids (comma separated) or, when absent, from the
// catalog filtered by topic.
func (s *Server) handleGetDue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		learnerID := r.URL.Query().Get("learner_id")
		if learnerID == "" {
			writeError(w, http.StatusBadRequest, "learner_id is required")
			return
		}
		today, err := parseToday(r.URL.Query().Get("today"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "today must be YYYY-MM-DD")
			return
		}

		candidates, err := s.candidateCards(r, r.URL.Query().Get("card_ids"), r.URL.Query().Get("topic"))
		if err != nil {
			slog.Error("failed to load candidate cards", "learner_id", learnerID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to load candidate cards")
			return
		}

		due, err := s.dueCards(r, learnerID, candidates, today)
		if err != nil {
			slog.Error("failed to select due cards", "learner_id", learnerID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to select due cards")
			return
		}

		ids := make([]string, 0, len(due))
		for _, c := range due {
			ids = append(ids, c.ID)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"learner_id": learnerID,
			"today":      today.Format(time.DateOnly),
			"due":        ids,
		})
	}
}

type gradeRequest struct {
	LearnerID string `json:"learner_id" validate:"required"`
	CardID    string `json:"card_id" validate:"required"`
	Quality   *int   `json:"quality" validate:"required,gte=0,lte=5"`
	Today     string `json:"today"`
}

// handlePostGrade answers POST /grade: the stateless grading path. It
// snapshots current progress, runs the engine, persists, and returns the
// updated record. A failed persist returns 503 with the computed record so
// the caller can retry the same payload; the retry is idempotent.
func (s *Server) handlePostGrade() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var req gradeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := s.validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid grade request: "+err.Error())
			return
		}
		today, err := parseToday(req.Today)
		if err != nil {
			writeError(w, http.StatusBadRequest, "today must be YYYY-MM-DD")
			return
		}

		card, err := s.catalog.FindCard(r.Context(), req.CardID)
		if err != nil {
			slog.Error("card lookup failed", "card_id", req.CardID, "error", err)
			writeError(w, http.StatusInternalServerError, "card lookup failed")
			return
		}
		if card == nil {
			writeError(w, http.StatusNotFound, "unknown card")
			return
		}

		state, err := s.db.GetProgress(r.Context(), req.LearnerID, req.CardID)
		if err != nil {
			slog.Error("progress lookup failed", "learner_id", req.LearnerID, "card_id", req.CardID, "error", err)
			writeError(w, http.StatusInternalServerError, "progress lookup failed")
			return
		}

		now := time.Now().UTC()
		quality := domain.Quality(*req.Quality)
		updated := s.engine.Apply(state, quality, today, now)

		resp := map[string]any{
			"learner_id": req.LearnerID,
			"card_id":    req.CardID,
			"progress":   toProgressJSON(updated),
		}
		if err := s.db.UpsertProgress(r.Context(), req.LearnerID, req.CardID, updated); err != nil {
			slog.Error("grade not persisted", "learner_id", req.LearnerID, "card_id", req.CardID, "error", err)
			resp["saved"] = false
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		if err := s.db.InsertReviewLog(r.Context(), domain.ReviewLog{
			LearnerID: req.LearnerID,
			CardID:    req.CardID,
			Quality:   quality,
			Timestamp: now,
		}); err != nil {
			slog.Warn("review log not recorded", "learner_id", req.LearnerID, "card_id", req.CardID, "error", err)
		}
		resp["saved"] = true
		writeJSON(w, http.StatusOK, resp)
	}
}

type startSessionRequest struct {
	LearnerID string   `json:"learner_id" validate:"required"`
	Topic     string   `json:"topic"`
	CardIDs   []string `json:"card_ids"`
	Today     string   `json:"today"`
}

// handlePostSession answers POST /sessions: build the due set and open a
// review session over it. An empty due set yields a session that is already
// complete, with a zero summary.
func (s *Server) handlePostSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var req startSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := s.validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid session request: "+err.Error())
			return
		}
		today, err := parseToday(req.Today)
		if err != nil {
			writeError(w, http.StatusBadRequest, "today must be YYYY-MM-DD")
			return
		}

		candidates, err := s.candidateCards(r, strings.Join(req.CardIDs, ","), req.Topic)
		if err != nil {
			slog.Error("failed to load candidate cards", "learner_id", req.LearnerID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to load candidate cards")
			return
		}

		progress, err := s.progressFor(r, req.LearnerID, candidates)
		if err != nil {
			slog.Error("failed to load progress", "learner_id", req.LearnerID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to load progress")
			return
		}

		due := selector.Due(candidates, progress, today)
		sess := s.sessions.Start(req.LearnerID, due, progress)
		slog.Info("session started", "session_id", sess.ID, "learner_id", req.LearnerID, "due", len(due))
		writeJSON(w, http.StatusCreated, toSessionViewJSON(sess.ID, sess.View()))
	}
}

// handleSessionByID routes /sessions/{id}, /sessions/{id}/reveal and
// /sessions/{id}/grade.
func (s *Server) handleSessionByID() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/sessions/")
		id, action, _ := strings.Cut(rest, "/")
		if id == "" {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}

		sess, err := s.sessions.Get(id)
		if err != nil {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}

		switch {
		case action == "" && r.Method == http.MethodGet:
			writeJSON(w, http.StatusOK, toSessionViewJSON(sess.ID, sess.View()))
		case action == "reveal" && r.Method == http.MethodPost:
			s.handleReveal(w, sess)
		case action == "grade" && r.Method == http.MethodPost:
			s.handleSessionGrade(w, r, sess)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}
}

func (s *Server) handleReveal(w http.ResponseWriter, sess *session.Session) {
	if _, err := sess.Reveal(); err != nil {
		if errors.Is(err, session.ErrSessionComplete) {
			writeError(w, http.StatusConflict, "session already complete")
			return
		}
		writeError(w, http.StatusInternalServerError, "reveal failed")
		return
	}
	writeJSON(w, http.StatusOK, toSessionViewJSON(sess.ID, sess.View()))
}

type sessionGradeRequest struct {
	Quality *int   `json:"quality" validate:"required,gte=0,lte=5"`
	Today   string `json:"today"`
}

func (s *Server) handleSessionGrade(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req sessionGradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid grade request: "+err.Error())
		return
	}
	today, err := parseToday(req.Today)
	if err != nil {
		writeError(w, http.StatusBadRequest, "today must be YYYY-MM-DD")
		return
	}

	updated, err := sess.Grade(domain.Quality(*req.Quality), today, time.Now().UTC())
	switch {
	case errors.Is(err, session.ErrSessionComplete):
		writeError(w, http.StatusConflict, "session already complete")
		return
	case errors.Is(err, session.ErrNotRevealed):
		writeError(w, http.StatusConflict, "card not yet revealed")
		return
	case errors.Is(err, domain.ErrInvalidQuality):
		writeError(w, http.StatusBadRequest, "quality outside 0-5 scale")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "grade failed")
		return
	}

	view := toSessionViewJSON(sess.ID, sess.View())
	writeJSON(w, http.StatusOK, map[string]any{
		"progress": toProgressJSON(updated),
		"session":  view,
	})
}

// candidateCards resolves the candidate set for /due and /sessions:
// explicit card IDs win, otherwise the catalog filtered by topic.
func (s *Server) candidateCards(r *http.Request, cardIDs, topic string) ([]domain.Card, error) {
	if cardIDs != "" {
		var cards []domain.Card
		for _, id := range strings.Split(cardIDs, ",") {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			card, err := s.catalog.FindCard(r.Context(), id)
			if err != nil {
				return nil, err
			}
			if card == nil {
				// Unknown IDs are skipped rather than failing the whole
				// request; the caller sees them missing from the due list.
				continue
			}
			cards = append(cards, *card)
		}
		return cards, nil
	}
	return s.catalog.ListCandidateCards(r.Context(), catalog.Filter{Topic: topic})
}

func (s *Server) progressFor(r *http.Request, learnerID string, cards []domain.Card) (map[string]domain.ProgressState, error) {
	ids := make([]string, 0, len(cards))
	for _, c := range cards {
		ids = append(ids, c.ID)
	}
	return s.db.GetProgressForCards(r.Context(), learnerID, ids)
}

// dueCards is the read-only due projection used by GET /due.
func (s *Server) dueCards(r *http.Request, learnerID string, candidates []domain.Card, today time.Time) ([]domain.Card, error) {
	progress, err := s.progressFor(r, learnerID, candidates)
	if err != nil {
		return nil, err
	}
	return selector.Due(candidates, progress, today), nil
}
