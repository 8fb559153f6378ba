package srs

import (
	"errors"
	"fmt"
	"time"

	"github.com/conorfennell/flipcard/internal/domain"
)

// ErrInvalidParams is returned by Params.Validate.
var ErrInvalidParams = errors.New("srs: parameters out of bounds")

// Params holds the constants of the scheduling algorithm.
type Params struct {
	// Ease factor drift applied per rating before clamping.
	AgainEFDelta float64
	HardEFDelta  float64
	GoodEFDelta  float64
	EasyEFDelta  float64
	MinEF        float64

	// Fixed intervals, in days, for a card with no successful reps.
	RookieHard float64
	RookieGood float64
	RookieEasy float64

	HardMultiplier float64 // graduated hard: base × HardMultiplier
	EasyBonus      float64 // graduated easy: base × ef × EasyBonus

	// MaxInterval caps every interval, in days, before and after fuzz.
	// Zero leaves intervals uncapped.
	MaxInterval float64

	// Intervals above FuzzThreshold days are scaled by a random
	// factor in [1-FuzzSpread, 1+FuzzSpread].
	FuzzThreshold float64
	FuzzSpread    float64
	DisableFuzz   bool

	// AgainDelay is how soon a failed card comes back.
	AgainDelay time.Duration
}

// DefaultParams provides the standard scheduling constants.
func DefaultParams() *Params {
	return &Params{
		AgainEFDelta:   -0.2,
		HardEFDelta:    -0.15,
		GoodEFDelta:    0,
		EasyEFDelta:    0.15,
		MinEF:          domain.MinEF,
		RookieHard:     1,
		RookieGood:     2,
		RookieEasy:     4,
		HardMultiplier: 1.2,
		EasyBonus:      1.3,
		MaxInterval:    36500,
		FuzzThreshold:  3,
		FuzzSpread:     0.05,
		AgainDelay:     10 * time.Minute,
	}
}

// Validate checks that the parameters keep the algorithm's invariants.
func (p *Params) Validate() error {
	switch {
	case p.MinEF <= 0:
		return fmt.Errorf("%w: min ef %v must be positive", ErrInvalidParams, p.MinEF)
	case p.RookieHard <= 0 || p.RookieGood <= p.RookieHard || p.RookieEasy <= p.RookieGood:
		return fmt.Errorf("%w: rookie intervals must be positive and increasing", ErrInvalidParams)
	case p.HardMultiplier < 1:
		return fmt.Errorf("%w: hard multiplier %v below 1", ErrInvalidParams, p.HardMultiplier)
	case p.EasyBonus < 1:
		return fmt.Errorf("%w: easy bonus %v below 1", ErrInvalidParams, p.EasyBonus)
	case p.MaxInterval > 0 && p.MaxInterval < p.RookieEasy:
		return fmt.Errorf("%w: max interval %v below rookie easy", ErrInvalidParams, p.MaxInterval)
	case p.FuzzSpread < 0 || p.FuzzSpread >= 1:
		return fmt.Errorf("%w: fuzz spread %v outside [0, 1)", ErrInvalidParams, p.FuzzSpread)
	case p.AgainDelay < 0:
		return fmt.Errorf("%w: negative again delay", ErrInvalidParams)
	}
	return nil
}

func (p *Params) efDelta(r domain.Rating) float64 {
	switch r {
	case domain.Again:
		return p.AgainEFDelta
	case domain.Hard:
		return p.HardEFDelta
	case domain.Easy:
		return p.EasyEFDelta
	}
	return p.GoodEFDelta
}
