// Package scheme resolves which normalization scheme applies to a score set.
package scheme

import (
	"math"

	"github.com/okian/reviewrank/internal/domain/model"
)

// EligibilityScoreSet is the only score set normalized on the eligibility scale.
const EligibilityScoreSet = "Eligibility Shortlisting"

// Display scales.
const (
	EligibilityMax = 6.0
	WeightedMax    = 5.0
)

// Kind identifies a normalization scheme.
type Kind int

const (
	// Weighted prefers weighted sums and falls back to plain sums.
	Weighted Kind = iota
	// Eligibility always uses plain sums.
	Eligibility
)

// String returns the scheme's name.
func (k Kind) String() string {
	if k == Eligibility {
		return "eligibility"
	}
	return "weighted"
}

// Scheme couples a kind with its display scale.
type Scheme struct {
	Kind       Kind
	DisplayMax float64
}

// Resolve returns the scheme for a score-set name. Anything other than an
// exact match on EligibilityScoreSet, including "", is weighted.
func Resolve(scoreSetName string) Scheme {
	if scoreSetName == EligibilityScoreSet {
		return Scheme{Kind: Eligibility, DisplayMax: EligibilityMax}
	}
	return Scheme{Kind: Weighted, DisplayMax: WeightedMax}
}

// Ratio returns the score ratio of t and whether it is defined.
func (s Scheme) Ratio(t model.Tally) (float64, bool) {
	if s.Kind == Weighted && t.WeightedMax > 0 {
		return t.Weighted / t.WeightedMax, true
	}
	if t.MaxScore > 0 {
		return t.Score / t.MaxScore, true
	}
	return 0, false
}

// Normalize scales t onto the display range, clamped and rounded to 2 decimals.
// An undefined ratio normalizes to 0.
func (s Scheme) Normalize(t model.Tally) float64 {
	ratio, ok := s.Ratio(t)
	if !ok {
		return 0
	}
	return Round2(Clamp(ratio*s.DisplayMax, 0, s.DisplayMax))
}

// RawScore picks the row field that represents a raw score under s.
func (s Scheme) RawScore(r model.RawScoringRow) float64 {
	if s.Kind == Eligibility {
		return r.Score
	}
	return r.WeightedScore
}

// roundLimit is the magnitude above which a float64 has no fractional
// precision left to round and x*100 may overflow.
const roundLimit = 1e15

// Round2 rounds x to 2 decimals, halves away from zero. NaN and infinities
// yield 0; magnitudes at or above roundLimit are returned unchanged.
func Round2(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	if math.Abs(x) >= roundLimit {
		return x
	}
	return math.Round(x*100) / 100
}

// Clamp bounds x to [lo, hi]; NaN clamps to lo.
func Clamp(x, lo, hi float64) float64 {
	if math.IsNaN(x) || x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
