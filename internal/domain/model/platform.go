package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// PlatformEntry is an application record as returned by the grant platform API.
type PlatformEntry struct {
	Slug         string          `json:"slug"`
	ScoreSetSlug string          `json:"score_set_slug"`
	Title        string          `json:"title"`
	Tags         string          `json:"tags"`
	Municipality string          `json:"municipality"`
	AutoScore    *Number         `json:"auto_score"`
	Scores       *PlatformScores `json:"scores"`
}

// PlatformScores wraps the per-criterion scores of a platform entry.
type PlatformScores struct {
	Criteria []PlatformCriterion `json:"criteria"`
}

// PlatformCriterion is one scored criterion of a platform entry.
type PlatformCriterion struct {
	Name       string    `json:"name"`
	FinalScore *Fraction `json:"final_score"`
	Value      *Number   `json:"value"`
	MaxScore   *Number   `json:"max_score"`
}

// Criteria returns the entry's criteria, or nil when the entry carries none.
func (e PlatformEntry) Criteria() []PlatformCriterion {
	if e.Scores == nil {
		return nil
	}
	return e.Scores.Criteria
}

// Number is a float that decodes from either a JSON number or a numeric string.
// Values that cannot be parsed decode as 0.
type Number float64

// Float returns the value, or 0 for a nil receiver.
func (n *Number) Float() float64 {
	if n == nil {
		return 0
	}
	return float64(*n)
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = Number(parseLooseFloat(s))
		return nil
	}
	*n = Number(parseLooseFloat(string(b)))
	return nil
}

// Fraction is a "<numerator>/<denominator>" score string, parsed once at decode time.
// Raw keeps the original text for display.
type Fraction struct {
	Raw         string
	Numerator   float64
	Denominator float64
	// HasDenominator is false when Raw carried no "/" part.
	HasDenominator bool
}

// ParseFraction parses s into a Fraction. Missing or malformed parts read as 0.
func ParseFraction(s string) Fraction {
	f := Fraction{Raw: s}
	num, den, found := strings.Cut(s, "/")
	f.Numerator = parseLooseFloat(num)
	if found {
		f.HasDenominator = true
		f.Denominator = parseLooseFloat(den)
	}
	return f
}

// UnmarshalJSON implements json.Unmarshaler. Bare numbers are accepted as a
// numerator without denominator.
func (f *Fraction) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = ParseFraction(s)
		return nil
	}
	*f = ParseFraction(string(b))
	return nil
}

// MarshalJSON implements json.Marshaler.
func (f Fraction) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Raw)
}

// parseLooseFloat parses the leading decimal of s; anything unusable yields 0.
func parseLooseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		v = leadingFloat(s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// leadingFloat mimics a permissive prefix parse: "1.5pts" reads as 1.5.
func leadingFloat(s string) float64 {
	end := 0
	seenDot, seenDigit := false, false
scan:
	for i, c := range s {
		switch {
		case c >= '0' && c <= '9':
			seenDigit = true
			end = i + 1
		case c == '.' && !seenDot:
			seenDot = true
		case (c == '-' || c == '+') && i == 0:
		default:
			break scan
		}
	}
	if !seenDigit {
		return 0
	}
	v, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0
	}
	return v
}
