// Package knol derives stable card identities from card content, so that a
// card keeps its schedule across re-scans of the notes it came from.
package knol

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/conorfennell/flipcard/internal/domain"
)

// Normalize joins the card's question, answer and explanation after
// lowercasing, trimming and unifying line endings in each.
func Normalize(card domain.Card) string {
	parts := []string{card.Question, card.Answer, card.Explanation}
	for i, p := range parts {
		p = strings.ReplaceAll(p, "\r\n", "\n")
		parts[i] = strings.TrimSpace(strings.ToLower(p))
	}
	// Newline-joined so "ab"+"c" and "a"+"bc" differ.
	return strings.Join(parts, "\n")
}

// Hash returns the hex SHA-256 of the normalized card.
func Hash(card domain.Card) string {
	sum := sha256.Sum256([]byte(Normalize(card)))
	return hex.EncodeToString(sum[:])
}
