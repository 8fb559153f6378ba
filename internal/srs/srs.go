// Package srs computes when a card is next due from its scheduling state
// and a review rating.
package srs

import (
	"math"
	"math/rand"
	"time"

	"github.com/conorfennell/flipcard/internal/domain"
)

const msPerDay = 86_400_000

// maxDurationMs is the longest span time.Duration holds, in milliseconds.
const maxDurationMs = float64(math.MaxInt64 / int64(time.Millisecond))

// RandSource supplies the uniform [0, 1) values used for fuzz.
// *rand.Rand satisfies it.
type RandSource interface {
	Float64() float64
}

// Scheduler applies Params to card states.
type Scheduler struct {
	params Params
	rng    RandSource
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRand pins the random source used for fuzz.
func WithRand(rng RandSource) Option {
	return func(s *Scheduler) { s.rng = rng }
}

// New creates a Scheduler. A nil params means DefaultParams.
func New(params *Params, opts ...Option) *Scheduler {
	if params == nil {
		params = DefaultParams()
	}
	s := &Scheduler{params: *params}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return s
}

// Params returns a copy of the scheduler's parameters.
func (s *Scheduler) Params() Params {
	return s.params
}

// NextState calculates the scheduling state that follows a review.
// An invalid rating returns the state unchanged.
func (s *Scheduler) NextState(state domain.SchedState, rating domain.Rating, now time.Time) domain.SchedState {
	if !rating.Valid() {
		return state
	}
	next := s.unfuzzed(state, rating)
	next.Interval = s.clamp(s.fuzz(next.Interval))
	next.DueDate = s.DueDate(next.Interval, now)
	return next
}

// Intervals holds the unfuzzed interval each rating would produce.
type Intervals struct {
	Again float64 `json:"again"`
	Hard  float64 `json:"hard"`
	Good  float64 `json:"good"`
	Easy  float64 `json:"easy"`
}

// Preview reports the unfuzzed interval for every rating, for labelling
// rating buttons. For graduated cards Hard < Good < Easy holds until the
// intervals reach MaxInterval.
func (s *Scheduler) Preview(state domain.SchedState) Intervals {
	return Intervals{
		Again: s.unfuzzed(state, domain.Again).Interval,
		Hard:  s.unfuzzed(state, domain.Hard).Interval,
		Good:  s.unfuzzed(state, domain.Good).Interval,
		Easy:  s.unfuzzed(state, domain.Easy).Interval,
	}
}

// DueDate converts an interval into an absolute due time. Intervals past
// MaxInterval are due at the cap.
func (s *Scheduler) DueDate(interval float64, now time.Time) time.Time {
	if interval == 0 {
		return now.Add(s.params.AgainDelay)
	}
	ms := math.Min(math.Round(s.clamp(interval)*msPerDay), maxDurationMs)
	return now.Add(time.Duration(ms) * time.Millisecond)
}

// clamp bounds an interval by MaxInterval. A non-positive cap disables it.
func (s *Scheduler) clamp(interval float64) float64 {
	if s.params.MaxInterval <= 0 {
		return interval
	}
	return math.Min(interval, s.params.MaxInterval)
}

// unfuzzed computes ef, reps and interval; DueDate is left zero.
func (s *Scheduler) unfuzzed(state domain.SchedState, rating domain.Rating) domain.SchedState {
	ef := math.Max(state.EF+s.params.efDelta(rating), s.params.MinEF)

	if rating == domain.Again {
		return domain.SchedState{EF: ef}
	}

	if state.Reps <= 0 {
		return domain.SchedState{
			Interval: s.rookieInterval(rating),
			Reps:     1,
			EF:       ef,
		}
	}

	base := math.Max(state.Interval, 1)
	hard := base * s.params.HardMultiplier
	good := base * ef
	if good <= hard {
		good = hard + 1
	}
	easy := base * ef * s.params.EasyBonus
	if easy <= good {
		easy = good + 1
	}

	interval := good
	switch rating {
	case domain.Hard:
		interval = hard
	case domain.Easy:
		interval = easy
	}
	return domain.SchedState{
		Interval: s.clamp(interval),
		Reps:     state.Reps + 1,
		EF:       ef,
	}
}

func (s *Scheduler) rookieInterval(rating domain.Rating) float64 {
	switch rating {
	case domain.Hard:
		return s.params.RookieHard
	case domain.Easy:
		return s.params.RookieEasy
	}
	return s.params.RookieGood
}

// fuzz spreads long intervals so cards scheduled together drift apart.
func (s *Scheduler) fuzz(interval float64) float64 {
	if s.params.DisableFuzz || interval <= s.params.FuzzThreshold {
		return interval
	}
	spread := s.params.FuzzSpread
	factor := 1 - spread + s.rng.Float64()*2*spread
	return interval * factor
}
