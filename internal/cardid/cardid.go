// Package cardid assigns content-hash identity to cards. Two cards with the
// same question, answer and explanation are the same card, wherever their
// deck file lives, so progress survives decks being moved or re-synced.
package cardid

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/medrevise/reviewd/internal/domain"
)

// Normalize concatenates the card's content after cleaning each part.
// Each field is lowercased, whitespace-trimmed, and line-ending normalized
// before joining. Topic is excluded: re-filing a card under another topic
// must not change its identity.
func Normalize(card domain.Card) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.TrimSpace(p)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return p
	}

	q := normalizePart(card.Question)
	a := normalizePart(card.Answer)
	e := normalizePart(card.Explanation)

	// Joined with newlines so fields cannot run together ("question" +
	// "answer" must not hash like "questionanswer").
	return strings.Join([]string{q, a, e}, "\n")
}

// Hash returns the SHA-256 of the normalized card as a hex string.
func Hash(card domain.Card) string {
	normalized := Normalize(card)
	hashBytes := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", hashBytes)
}
