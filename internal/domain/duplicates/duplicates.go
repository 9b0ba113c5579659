// Package duplicates flags applications that look like the same submission
// entered twice. Findings are advisory and never change aggregates.
package duplicates

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"

	"github.com/okian/reviewrank/internal/domain/model"
)

// DefaultThreshold is the title similarity at which two applications from the
// same applicant are reported.
const DefaultThreshold = 0.85

// Reasons a pair is reported.
const (
	ReasonSameApplicant = "same_applicant"
	ReasonSameTitle     = "same_title"
)

var foldCaser = cases.Fold()

// Candidate is the slice of an application the detector looks at.
type Candidate struct {
	ID             string
	Title          string
	ApplicantEmail string
}

// FromApps lists the candidates of an aggregation run.
func FromApps(apps map[string]*model.AppAggregate) []Candidate {
	out := make([]Candidate, 0, len(apps))
	for _, app := range apps {
		out = append(out, Candidate{ID: app.ID, Title: app.Title, ApplicantEmail: app.ApplicantEmail})
	}
	return out
}

// Pair is one suspected duplicate. A sorts before B.
type Pair struct {
	A          string  `json:"a"`
	B          string  `json:"b"`
	Similarity float64 `json:"similarity"`
	Reason     string  `json:"reason"`
}

// Detect reports pairs whose normalized titles are identical, and pairs from
// the same applicant email whose titles are at least threshold similar.
// Thresholds outside (0, 1] fall back to DefaultThreshold.
func Detect(candidates []Candidate, threshold float64) []Pair {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}

	sorted := append([]Candidate(nil), candidates...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	titles := make([]string, len(sorted))
	for i, c := range sorted {
		titles[i] = NormalizeTitle(c.Title)
	}

	var out []Pair
	for i := range sorted {
		for j := i + 1; j < len(sorted); j++ {
			if titles[i] == "" || titles[j] == "" {
				continue
			}
			if titles[i] == titles[j] {
				out = append(out, Pair{A: sorted[i].ID, B: sorted[j].ID, Similarity: 1, Reason: ReasonSameTitle})
				continue
			}
			if !sameApplicant(sorted[i], sorted[j]) {
				continue
			}
			if sim := Similarity(titles[i], titles[j]); sim >= threshold {
				out = append(out, Pair{A: sorted[i].ID, B: sorted[j].ID, Similarity: sim, Reason: ReasonSameApplicant})
			}
		}
	}
	return out
}

func sameApplicant(a, b Candidate) bool {
	ea := strings.TrimSpace(a.ApplicantEmail)
	return ea != "" && strings.EqualFold(ea, strings.TrimSpace(b.ApplicantEmail))
}

// NormalizeTitle case-folds a title and collapses punctuation and whitespace
// runs into single spaces.
func NormalizeTitle(s string) string {
	var b strings.Builder
	space := false
	for _, r := range foldCaser.String(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteRune(r)
			space = false
			continue
		}
		space = true
	}
	return b.String()
}

// Similarity is 1 - distance/maxRunes, in [0, 1].
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1
	}
	sim := 1 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
	if sim < 0 {
		return 0
	}
	return sim
}
