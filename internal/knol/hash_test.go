package knol

import (
	"testing"

	"github.com/conorfennell/flipcard/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	card := domain.Card{
		Question:    "  What is HTMX? \r\n",
		Answer:      "A library for AJAX.",
		Explanation: "Web Development",
	}
	assert.Equal(t, "what is htmx?\na library for ajax.\nweb development", Normalize(card))
}

func TestHash(t *testing.T) {
	t.Run("generates correct hash", func(t *testing.T) {
		card := domain.Card{Question: "Q", Answer: "A", Explanation: "C"}
		// sha256 of "q\na\nc"
		assert.Equal(t, "eb2456c1ee4f36305069dd0f63a30e92d5443129f5e8fd9a5ec490fbc4d4d8a2", Hash(card))
	})

	t.Run("hash is deterministic", func(t *testing.T) {
		assert.Equal(t, Hash(domain.Card{Question: "Test"}), Hash(domain.Card{Question: "Test"}))
	})

	t.Run("ignores scheduling and ids", func(t *testing.T) {
		a := domain.Card{Question: "Test", Answer: "x"}
		b := domain.Card{ID: "other", DisplayID: "7", Question: "Test", Answer: "x", SchedState: domain.SchedState{Reps: 3, EF: 2.1}}
		assert.Equal(t, Hash(a), Hash(b))
	})

	t.Run("normalization produces same hash", func(t *testing.T) {
		card1 := domain.Card{Question: "  what is go? ", Answer: "A programming language."}
		card2 := domain.Card{Question: "What Is Go?", Answer: "A programming language."}
		assert.Equal(t, Hash(card1), Hash(card2))
	})

	t.Run("different cards have different hashes", func(t *testing.T) {
		assert.NotEqual(t, Hash(domain.Card{Question: "Card 1"}), Hash(domain.Card{Question: "Card 2"}))
	})

	t.Run("field boundaries matter", func(t *testing.T) {
		a := domain.Card{Question: "ab", Answer: "c"}
		b := domain.Card{Question: "a", Answer: "bc"}
		assert.NotEqual(t, Hash(a), Hash(b))
	})
}
