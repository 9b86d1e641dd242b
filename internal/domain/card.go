package domain

import "time"

// Card represents a single immutable study unit. Cards are authored
// upstream (markdown decks, content generators); the engine only ever
// reads them. ID is the content hash of the card, see the cardid package.
type Card struct {
	ID          string
	Question    string
	Answer      string
	Explanation string
	Topic       string
}

// ReviewLog records a single grading event for a (learner, card) pair.
type ReviewLog struct {
	LearnerID string
	CardID    string
	Quality   Quality
	Timestamp time.Time
}
