// Package interchange converts cards to and from flat text records used for
// import and export. Scheduling fields that are missing or malformed fall
// back to their initial values rather than rejecting the record.
package interchange

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/conorfennell/flipcard/internal/domain"
)

// Record is one card in exchange form. Every field is text.
type Record struct {
	DisplayID   string `json:"display_id"`
	Question    string `json:"question" validate:"required"`
	Answer      string `json:"answer"`
	Explanation string `json:"explanation"`
	DueDate     string `json:"due_date"`
	Interval    string `json:"interval"`
	Reps        string `json:"reps"`
	EF          string `json:"ef"`
}

// ToCard builds a card from rec. The returned card has no id.
func ToCard(rec Record) domain.Card {
	return domain.Card{
		DisplayID:   rec.DisplayID,
		Question:    rec.Question,
		Answer:      rec.Answer,
		Explanation: rec.Explanation,
		SchedState: domain.SchedState{
			DueDate:  parseDue(rec.DueDate),
			Interval: parseInterval(rec.Interval),
			Reps:     parseReps(rec.Reps),
			EF:       parseEF(rec.EF),
		},
	}
}

// FromCard is the inverse of ToCard. A zero due date is written empty.
func FromCard(c domain.Card) Record {
	rec := Record{
		DisplayID:   c.DisplayID,
		Question:    c.Question,
		Answer:      c.Answer,
		Explanation: c.Explanation,
		Interval:    strconv.FormatFloat(c.Interval, 'f', -1, 64),
		Reps:        strconv.Itoa(c.Reps),
		EF:          strconv.FormatFloat(c.EF, 'f', -1, 64),
	}
	if !c.DueDate.IsZero() {
		rec.DueDate = c.DueDate.UTC().Format(time.RFC3339Nano)
	}
	return rec
}

var dueLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", time.DateTime, time.DateOnly}

// Integer due dates below this are epoch seconds, the rest epoch
// milliseconds. As seconds it is the year 5138; as milliseconds, 1973.
const epochSecondsLimit = 100_000_000_000

// parseDue accepts RFC 3339, a bare date, epoch seconds or epoch milliseconds.
func parseDue(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		switch {
		case n <= 0:
			return time.Time{}
		case n < epochSecondsLimit:
			return time.Unix(n, 0).UTC()
		}
		return time.UnixMilli(n).UTC()
	}
	for _, layout := range dueLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func parseInterval(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func parseReps(s string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func parseEF(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < domain.MinEF {
		return domain.InitialEF
	}
	return v
}
