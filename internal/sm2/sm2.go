// Package sm2 implements the SM-2 family scheduling law that decides when a
// flashcard comes back. Apply and IsDue are pure: they read nothing but
// their arguments and touch no shared state, so they are safe to call from
// any number of concurrent request handlers.
package sm2

import (
	"math"
	"time"

	"github.com/medrevise/reviewd/internal/domain"
)

// Params holds the tunable constants of the scheduler.
type Params struct {
	InitialEasiness float64 // easiness assigned to a never-graded card
	MinEasiness     float64 // floor the easiness factor never drops below
	FirstInterval   int     // days after the first qualifying review
	SecondInterval  int     // days after the second qualifying review
	MaxIntervalDays int     // cap on the computed interval; 0 means uncapped
}

// DefaultParams returns the standard SM-2 constants.
func DefaultParams() Params {
	return Params{
		InitialEasiness: 2.5,
		MinEasiness:     1.3,
		FirstInterval:   1,
		SecondInterval:  6,
	}
}

// IsDue reports whether the card should be presented on the given calendar
// day. A card with no tracked progress is always due. Deterministic: no
// clock reads, repeated calls with the same inputs agree.
func IsDue(state domain.ProgressState, today time.Time) bool {
	if !state.Tracked {
		return true
	}
	return !state.Progress.NextReview.After(domain.DateOf(today))
}

// Apply computes the post-review progress for a single grading. The input
// state is not mutated. today is the calendar date of the grading; now is
// the wall-clock timestamp recorded on the result.
//
// Apply is total for any quality on the 0-5 scale. Out-of-range quality is
// a caller contract violation and must be rejected before calling.
func (p Params) Apply(state domain.ProgressState, q domain.Quality, today, now time.Time) domain.Progress {
	prev := state.Progress
	if !state.Tracked {
		prev = domain.Progress{Easiness: p.InitialEasiness}
	}

	next := prev
	if q.Qualifies() {
		next.Repetitions = prev.Repetitions + 1
		switch next.Repetitions {
		case 1:
			next.IntervalDays = p.FirstInterval
		case 2:
			next.IntervalDays = p.SecondInterval
		default:
			// The interval grows from the easiness the card carried into
			// this review; the easiness adjustment below applies from the
			// next review on.
			next.IntervalDays = int(math.Round(float64(prev.IntervalDays) * prev.Easiness))
		}
		next.Easiness = clamp(prev.Easiness+easinessDelta(q), p.MinEasiness)
		next.Streak = prev.Streak + 1
		next.CorrectReviews = prev.CorrectReviews + 1
	} else {
		// Lapse: the card starts over, slightly harder.
		next.Repetitions = 0
		next.IntervalDays = 1
		next.Easiness = clamp(prev.Easiness-0.2, p.MinEasiness)
		next.Streak = 0
	}

	if p.MaxIntervalDays > 0 && next.IntervalDays > p.MaxIntervalDays {
		next.IntervalDays = p.MaxIntervalDays
	}

	day := domain.DateOf(today)
	next.NextReview = day.AddDate(0, 0, next.IntervalDays)
	next.LastReviewedAt = now
	next.LastQuality = q
	next.TotalReviews = prev.TotalReviews + 1
	next.BestStreak = max(prev.BestStreak, next.Streak)
	return next
}

// easinessDelta is the SM-2 adjustment 0.1 - (5-q)*(0.08 + (5-q)*0.02).
func easinessDelta(q domain.Quality) float64 {
	d := float64(5 - q)
	return 0.1 - d*(0.08+d*0.02)
}

func clamp(e, floor float64) float64 {
	if e < floor {
		return floor
	}
	return e
}
