package domain

import "time"

// Progress is the mutable scheduling state of one (learner, card) pair.
// Dates are calendar dates: midnight UTC, no time-of-day component.
// Invariant: NextReview = review day + IntervalDays.
type Progress struct {
	Repetitions    int       // consecutive qualifying reviews since the last lapse
	Easiness       float64   // difficulty factor, never below 1.3
	IntervalDays   int       // days until the next presentation
	NextReview     time.Time // calendar date the card comes due again
	LastReviewedAt time.Time // timestamp of the most recent grading
	LastQuality    Quality
	TotalReviews   int
	CorrectReviews int
	Streak         int // consecutive qualifying reviews, across sessions
	BestStreak     int
}

// ProgressState distinguishes a card the learner has never graded from one
// with tracked progress. The zero value is the New state, which is what a
// map lookup miss yields, so absent records need no nil checks anywhere.
type ProgressState struct {
	Tracked  bool
	Progress Progress
}

// NewCardState is the state of a card that has never been graded.
// New cards are due immediately.
func NewCardState() ProgressState {
	return ProgressState{}
}

// TrackedState wraps existing progress.
func TrackedState(p Progress) ProgressState {
	return ProgressState{Tracked: true, Progress: p}
}

// DateOf truncates t to its calendar date in UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(time.DateOnly, s)
}
