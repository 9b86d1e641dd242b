// Package selector builds the ordered set of cards to present "now".
package selector

import (
	"time"

	"github.com/medrevise/reviewd/internal/domain"
	"github.com/medrevise/reviewd/internal/sm2"
)

// Due filters candidates to cards due on the given calendar day and orders
// them: never-graded cards first, then previously graded due cards. Within
// each group the input order is preserved. Due is a projection; it never
// writes progress.
//
// progress is keyed by card ID. A missing key is the New state, so callers
// may pass a map covering only the cards that have been graded.
func Due(cards []domain.Card, progress map[string]domain.ProgressState, today time.Time) []domain.Card {
	var fresh, tracked []domain.Card
	for _, card := range cards {
		state := progress[card.ID]
		if !sm2.IsDue(state, today) {
			continue
		}
		if state.Tracked {
			tracked = append(tracked, card)
		} else {
			fresh = append(fresh, card)
		}
	}
	return append(fresh, tracked...)
}
