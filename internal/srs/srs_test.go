package srs

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/flipcard/internal/domain"
)

var now = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func noFuzz() *Scheduler {
	p := DefaultParams()
	p.DisableFuzz = true
	return New(p)
}

// fixedRand always returns the same value.
type fixedRand float64

func (f fixedRand) Float64() float64 { return float64(f) }

func TestNextState_Again(t *testing.T) {
	s := New(nil, WithRand(rand.New(rand.NewSource(1))))

	states := []domain.SchedState{
		domain.NewSchedState(),
		{Interval: 10, Reps: 3, EF: 2.0},
		{Interval: 400, Reps: 12, EF: 3.1, DueDate: now.Add(-time.Hour)},
		{Interval: 1, Reps: 1, EF: 1.3},
	}
	for _, st := range states {
		next := s.NextState(st, domain.Again, now)
		assert.Equal(t, 0, next.Reps)
		assert.Zero(t, next.Interval)
		assert.Equal(t, now.Add(10*time.Minute), next.DueDate)
		assert.GreaterOrEqual(t, next.EF, domain.MinEF)
	}
}

func TestNextState_GraduatedAgainDriftsEF(t *testing.T) {
	next := noFuzz().NextState(domain.SchedState{Interval: 10, Reps: 3, EF: 2.0}, domain.Again, now)

	assert.Equal(t, 0, next.Reps)
	assert.Zero(t, next.Interval)
	assert.InDelta(t, 1.8, next.EF, 1e-9)
	assert.Equal(t, now.Add(10*time.Minute), next.DueDate)
}

func TestNextState_Rookie(t *testing.T) {
	s := New(nil, WithRand(fixedRand(0.99)))

	testCases := []struct {
		rating   domain.Rating
		interval float64
		ef       float64
	}{
		{domain.Hard, 1, 2.35},
		{domain.Good, 2, 2.5},
		{domain.Easy, 4, 2.65},
	}
	for _, tc := range testCases {
		t.Run(tc.rating.String(), func(t *testing.T) {
			next := s.NextState(domain.NewSchedState(), tc.rating, now)
			assert.Equal(t, 1, next.Reps)
			assert.InDelta(t, tc.ef, next.EF, 1e-9)
			if tc.interval <= 3 {
				assert.Equal(t, tc.interval, next.Interval)
				assert.Equal(t, now.Add(time.Duration(tc.interval*24)*time.Hour), next.DueDate)
			} else {
				assert.InDelta(t, tc.interval, next.Interval, tc.interval*0.05)
			}
		})
	}
}

func TestNextState_RookieAfterFailureIgnoresHistory(t *testing.T) {
	failed := domain.SchedState{Interval: 0, Reps: 0, EF: 1.5}
	next := noFuzz().NextState(failed, domain.Good, now)

	assert.Equal(t, 2.0, next.Interval)
	assert.Equal(t, 1, next.Reps)
	assert.InDelta(t, 1.5, next.EF, 1e-9)
}

func TestNextState_GraduatedOrdering(t *testing.T) {
	s := noFuzz()
	for _, interval := range []float64{0, 0.3, 1, 2, 2.5, 7, 30, 365} {
		for _, ef := range []float64{1.3, 1.35, 1.5, 2.0, 2.5, 3.7} {
			st := domain.SchedState{Interval: interval, Reps: 2, EF: ef}
			hard := s.NextState(st, domain.Hard, now).Interval
			good := s.NextState(st, domain.Good, now).Interval
			easy := s.NextState(st, domain.Easy, now).Interval

			assert.Less(t, hard, good, "interval=%v ef=%v", interval, ef)
			assert.Less(t, good, easy, "interval=%v ef=%v", interval, ef)
		}
	}
}

func TestNextState_GraduatedFormulas(t *testing.T) {
	s := noFuzz()
	st := domain.SchedState{Interval: 10, Reps: 4, EF: 2.0}

	hard := s.NextState(st, domain.Hard, now)
	assert.InDelta(t, 12, hard.Interval, 1e-9)
	assert.Equal(t, 5, hard.Reps)

	good := s.NextState(st, domain.Good, now)
	assert.InDelta(t, 20, good.Interval, 1e-9)

	easy := s.NextState(st, domain.Easy, now)
	assert.InDelta(t, 10*2.15*1.3, easy.Interval, 1e-9)
}

func TestNextState_BaseFloorsAtOneDay(t *testing.T) {
	next := noFuzz().NextState(domain.SchedState{Interval: 0.2, Reps: 1, EF: 2.5}, domain.Hard, now)
	assert.InDelta(t, 1.2, next.Interval, 1e-9)
}

func TestNextState_EFNeverBelowFloor(t *testing.T) {
	s := New(nil, WithRand(rand.New(rand.NewSource(7))))
	st := domain.NewSchedState()
	ratings := []domain.Rating{domain.Again, domain.Hard, domain.Again, domain.Hard, domain.Hard, domain.Good, domain.Again}
	for i := 0; i < 20; i++ {
		for _, r := range ratings {
			st = s.NextState(st, r, now)
			require.GreaterOrEqual(t, st.EF, domain.MinEF)
			require.GreaterOrEqual(t, st.Interval, 0.0)
			require.GreaterOrEqual(t, st.Reps, 0)
		}
	}
}

func TestNextState_InvalidRatingIsNoop(t *testing.T) {
	st := domain.SchedState{Interval: 5, Reps: 2, EF: 2.2, DueDate: now}
	for _, r := range []domain.Rating{0, 5, -1} {
		assert.Equal(t, st, noFuzz().NextState(st, r, now))
	}
}

func TestFuzz(t *testing.T) {
	t.Run("short intervals are never fuzzed", func(t *testing.T) {
		s := New(nil, WithRand(fixedRand(0)))
		for _, iv := range []float64{0, 1, 2, 2.9, 3} {
			assert.Equal(t, iv, s.fuzz(iv))
		}
	})

	t.Run("long intervals stay within five percent", func(t *testing.T) {
		s := New(nil, WithRand(rand.New(rand.NewSource(42))))
		for i := 0; i < 1000; i++ {
			got := s.fuzz(10)
			assert.GreaterOrEqual(t, got, 9.5)
			assert.LessOrEqual(t, got, 10.5)
		}
	})

	t.Run("pinned source gives pinned factor", func(t *testing.T) {
		assert.InDelta(t, 9.5, New(nil, WithRand(fixedRand(0))).fuzz(10), 1e-9)
		assert.InDelta(t, 10, New(nil, WithRand(fixedRand(0.5))).fuzz(10), 1e-9)
	})

	t.Run("disabled", func(t *testing.T) {
		assert.Equal(t, 10.0, noFuzz().fuzz(10))
	})
}

func TestGoodTwiceScenario(t *testing.T) {
	s := noFuzz()
	st := domain.NewSchedState()

	st = s.NextState(st, domain.Good, now)
	assert.Equal(t, 1, st.Reps)
	assert.Equal(t, 2.0, st.Interval)
	assert.Equal(t, now.Add(48*time.Hour), st.DueDate)

	later := now.Add(48 * time.Hour)
	st = s.NextState(st, domain.Good, later)
	assert.Equal(t, 2, st.Reps)
	assert.InDelta(t, 5, st.Interval, 1e-9)
	assert.Equal(t, later.Add(5*24*time.Hour), st.DueDate)
}

func TestNextState_RepeatedEasyStaysInFuture(t *testing.T) {
	s := noFuzz()
	st := domain.SchedState{Interval: 365, Reps: 3, EF: 3.0}
	for i := range 8 {
		st = s.NextState(st, domain.Easy, now)
		assert.True(t, st.DueDate.After(now), "step %d due %v", i, st.DueDate)
		assert.LessOrEqual(t, st.Interval, s.Params().MaxInterval, "step %d", i)
	}
	assert.Equal(t, 36500.0, st.Interval)
	assert.Equal(t, now.Add(36500*24*time.Hour), st.DueDate)
}

func TestNextState_ImportedHugeIntervalIsCapped(t *testing.T) {
	s := New(nil, WithRand(fixedRand(0.99)))
	st := s.NextState(domain.SchedState{Interval: 200000, Reps: 5, EF: 2.5}, domain.Hard, now)

	assert.Equal(t, 36500.0, st.Interval)
	assert.Equal(t, now.Add(36500*24*time.Hour), st.DueDate)
}

func TestDueDateSaturates(t *testing.T) {
	p := DefaultParams()
	p.MaxInterval = 0
	s := New(p)

	due := s.DueDate(1e9, now)
	assert.True(t, due.After(now.Add(100*365*24*time.Hour)), "due %v", due)
}

func TestPreview(t *testing.T) {
	s := New(nil, WithRand(fixedRand(0.99)))

	rookie := s.Preview(domain.NewSchedState())
	assert.Equal(t, Intervals{Again: 0, Hard: 1, Good: 2, Easy: 4}, rookie)

	grad := s.Preview(domain.SchedState{Interval: 2, Reps: 1, EF: 2.5})
	assert.InDelta(t, 2.4, grad.Hard, 1e-9)
	assert.InDelta(t, 5, grad.Good, 1e-9)
	assert.InDelta(t, 2*2.65*1.3, grad.Easy, 1e-9)
}

func TestParamsValidate(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())

	bad := DefaultParams()
	bad.RookieGood = 0.5
	assert.ErrorIs(t, bad.Validate(), ErrInvalidParams)

	bad = DefaultParams()
	bad.FuzzSpread = 1
	assert.ErrorIs(t, bad.Validate(), ErrInvalidParams)

	bad = DefaultParams()
	bad.MaxInterval = 2
	assert.ErrorIs(t, bad.Validate(), ErrInvalidParams)
}
