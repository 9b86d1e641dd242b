// Package session runs a single learner's review sitting: it sequences the
// due cards, collects grades, and drives the scheduling engine. Grades are
// persisted asynchronously so the learner is never blocked on storage.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/medrevise/reviewd/internal/domain"
	"github.com/medrevise/reviewd/internal/sm2"
)

// Phase is the controller's position in the per-card flow.
type Phase int

const (
	PhasePresenting Phase = iota // question shown, grading disabled
	PhaseRevealed                // answer shown, grading enabled
	PhaseComplete                // no more cards; summary available
)

var phaseNames = [...]string{
	PhasePresenting: "presenting",
	PhaseRevealed:   "revealed",
	PhaseComplete:   "complete",
}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

var (
	// ErrSessionComplete is returned for reveal/grade on a finished session.
	ErrSessionComplete = errors.New("session already complete")
	// ErrNotRevealed is returned when grading is attempted before the
	// answer has been shown.
	ErrNotRevealed = errors.New("card not yet revealed")
	// ErrNotFound is returned by the manager for an unknown session ID.
	ErrNotFound = errors.New("session not found")
)

// Summary is the terminal report of a session. PendingWrites and
// FailedWrites surface grades whose persistence has not (or never will)
// come back; they are how an unsaved grade reaches the caller instead of
// being dropped silently.
type Summary struct {
	Reviewed      int
	Correct       int
	Accuracy      float64
	BestStreak    int
	PendingWrites int
	FailedWrites  int
}

// View is a read-only snapshot of the session for presentation. The answer
// and explanation are blanked until the card is revealed.
type View struct {
	Phase    Phase
	Position int
	Total    int
	Card     domain.Card
	Summary  *Summary
}

// Session sequences one sitting over an already-selected due set. All
// methods are safe for concurrent use, though a learner's grades arrive
// one at a time in practice.
type Session struct {
	ID        string
	LearnerID string

	engine sm2.Params
	writer *Writer

	mu         sync.Mutex
	cards      []domain.Card
	progress   map[string]domain.ProgressState
	pos        int
	phase      Phase
	reviewed   int
	correct    int
	streak     int
	bestStreak int
	pending    int
	failed     int
	lastActive time.Time
}

// newSession builds a session over the ordered due set. An empty due set is
// not an error: the session starts Complete with a zero summary.
func newSession(id, learnerID string, cards []domain.Card, progress map[string]domain.ProgressState, engine sm2.Params, writer *Writer) *Session {
	if progress == nil {
		progress = make(map[string]domain.ProgressState)
	}
	s := &Session{
		ID:         id,
		LearnerID:  learnerID,
		engine:     engine,
		writer:     writer,
		cards:      cards,
		progress:   progress,
		lastActive: time.Now(),
	}
	if len(cards) == 0 {
		s.phase = PhaseComplete
	}
	return s
}

// View returns the current presentation state.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now()

	v := View{Phase: s.phase, Position: s.pos, Total: len(s.cards)}
	if s.phase == PhaseComplete {
		sum := s.summaryLocked()
		v.Summary = &sum
		return v
	}
	card := s.cards[s.pos]
	if s.phase == PhasePresenting {
		card.Answer = ""
		card.Explanation = ""
	}
	v.Card = card
	return v
}

// Reveal shows the answer side of the current card and enables grading.
// Revealing an already-revealed card is a no-op.
func (s *Session) Reveal() (domain.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now()

	if s.phase == PhaseComplete {
		return domain.Card{}, ErrSessionComplete
	}
	s.phase = PhaseRevealed
	return s.cards[s.pos], nil
}

// Grade applies the learner's grade to the current card: it runs the
// scheduling engine on the state snapshotted at grading time, dispatches an
// asynchronous persist, updates the tallies, and advances. The session
// advances even if persistence later fails; the failure is counted and
// surfaced in the summary.
func (s *Session) Grade(q domain.Quality, today, now time.Time) (domain.Progress, error) {
	if !q.IsValid() {
		return domain.Progress{}, domain.ErrInvalidQuality
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = now

	switch s.phase {
	case PhaseComplete:
		return domain.Progress{}, ErrSessionComplete
	case PhasePresenting:
		return domain.Progress{}, ErrNotRevealed
	}

	card := s.cards[s.pos]
	updated := s.engine.Apply(s.progress[card.ID], q, today, now)
	s.progress[card.ID] = domain.TrackedState(updated)

	s.reviewed++
	if q.Qualifies() {
		s.correct++
		s.streak++
		s.bestStreak = max(s.bestStreak, s.streak)
	} else {
		s.streak = 0
	}

	s.pending++
	s.writer.Enqueue(Write{
		LearnerID: s.LearnerID,
		CardID:    card.ID,
		Progress:  updated,
		Log: domain.ReviewLog{
			LearnerID: s.LearnerID,
			CardID:    card.ID,
			Quality:   q,
			Timestamp: now,
		},
		done: s.writeDone,
	})

	s.pos++
	if s.pos >= len(s.cards) {
		s.phase = PhaseComplete
	} else {
		s.phase = PhasePresenting
	}
	return updated, nil
}

// writeDone is called from the writer goroutine once a persist settles.
func (s *Session) writeDone(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending--
	if err != nil {
		s.failed++
	}
}

// Summary reports the session tallies. Valid at any point; accuracy is 0
// for an empty session.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaryLocked()
}

func (s *Session) summaryLocked() Summary {
	sum := Summary{
		Reviewed:      s.reviewed,
		Correct:       s.correct,
		BestStreak:    s.bestStreak,
		PendingWrites: s.pending,
		FailedWrites:  s.failed,
	}
	if s.reviewed > 0 {
		sum.Accuracy = float64(s.correct) / float64(s.reviewed)
	}
	return sum
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastActive)
}
