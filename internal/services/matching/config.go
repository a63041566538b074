package matching

import (
	"bank-reconciliation-engine/internal/apperr"

	"github.com/shopspring/decimal"
)

// Config is the immutable tuning shared by every matcher. Build it once and
// pass it by value; nothing in this package mutates it.
type Config struct {
	Matcher                 Kind
	AmountTolerance         decimal.Decimal
	DateWindowDays          int
	ExactFloor              float64
	FuzzyFloor              float64
	FallbackWindowDays      int
	LooseAmountTolerancePct float64
	Weights                 map[Kind]float64
	MinimumFloor            float64
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Matcher:                 KindComposite,
		AmountTolerance:         decimal.RequireFromString("0.01"),
		DateWindowDays:          10,
		ExactFloor:              0.7,
		FuzzyFloor:              0.80,
		FallbackWindowDays:      10,
		LooseAmountTolerancePct: 0.05,
		Weights:                 DefaultWeights(),
		MinimumFloor:            0.30,
	}
}

func DefaultWeights() map[Kind]float64 {
	return map[Kind]float64{
		KindExact:            1.0,
		KindIBAN:             1.0,
		KindFuzzyDescription: 0.85,
		KindDateWindow:       0.3,
	}
}

// Validate rejects negative tolerances, out-of-range ratios and unknown or
// negative weights.
func (c Config) Validate() error {
	const op = "matching config"
	if c.Matcher != "" && c.Matcher != KindComposite && !c.Matcher.Weighted() {
		return apperr.Validation(op, "unknown matcher %q", c.Matcher)
	}
	if c.AmountTolerance.IsNegative() {
		return apperr.Validation(op, "amount_tolerance must not be negative")
	}
	if c.DateWindowDays < 0 {
		return apperr.Validation(op, "date_window_days must not be negative")
	}
	if c.FallbackWindowDays < 0 {
		return apperr.Validation(op, "fallback_window_days must not be negative")
	}
	if c.LooseAmountTolerancePct < 0 {
		return apperr.Validation(op, "loose_amount_tolerance_pct must not be negative")
	}
	for name, v := range map[string]float64{
		"exact_floor":   c.ExactFloor,
		"fuzzy_floor":   c.FuzzyFloor,
		"minimum_floor": c.MinimumFloor,
	} {
		if v < 0 || v > 1 {
			return apperr.Validation(op, "%s must be within [0,1], got %v", name, v)
		}
	}
	for kind, w := range c.Weights {
		if !kind.Weighted() {
			return apperr.Validation(op, "unknown matcher kind %q in matcher_weights", kind)
		}
		if w < 0 {
			return apperr.Validation(op, "weight for %s must not be negative", kind)
		}
	}
	return nil
}

func (c Config) weight(k Kind) float64 {
	if c.Weights == nil {
		return DefaultWeights()[k]
	}
	return c.Weights[k]
}
