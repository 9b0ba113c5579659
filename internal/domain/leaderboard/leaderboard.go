// Package leaderboard turns platform entries into ranked leaderboard records.
package leaderboard

import (
	"sort"
	"strconv"
	"strings"

	"github.com/okian/reviewrank/internal/domain/model"
	"github.com/okian/reviewrank/internal/domain/scheme"
	"github.com/okian/reviewrank/internal/domain/types"
)

// DefaultCriterionMax is the breakdown max score when a criterion carries none.
const DefaultCriterionMax = 2.0

// CalculateTotalScore derives an entry's total. With criteria present it sums
// each criterion's final-score numerator, or its value when no final score
// was given; denominators are not applied. Without criteria it falls back to
// the auto score. The result is rounded to 2 decimals.
func CalculateTotalScore(e model.PlatformEntry) float64 {
	criteria := e.Criteria()
	if len(criteria) == 0 {
		return scheme.Round2(e.AutoScore.Float())
	}
	var total float64
	for _, c := range criteria {
		total += contribution(c)
	}
	return scheme.Round2(total)
}

func contribution(c model.PlatformCriterion) float64 {
	if hasFinalScore(c) {
		return c.FinalScore.Numerator
	}
	return c.Value.Float()
}

// hasFinalScore reports whether c carries a non-blank final score string.
func hasFinalScore(c model.PlatformCriterion) bool {
	return c.FinalScore != nil && strings.TrimSpace(c.FinalScore.Raw) != ""
}

// Breakdown lists the per-criterion display rows of an entry. RawValue is the
// criterion's own value, not its final-score numerator, so the breakdown may
// not add up to the total.
func Breakdown(e model.PlatformEntry) []model.BreakdownItem {
	criteria := e.Criteria()
	out := make([]model.BreakdownItem, 0, len(criteria))
	for _, c := range criteria {
		value := c.Value.Float()
		display := strconv.FormatFloat(value, 'f', 2, 64)
		if hasFinalScore(c) {
			display = c.FinalScore.Raw
		}
		maxScore := DefaultCriterionMax
		if c.MaxScore != nil {
			maxScore = c.MaxScore.Float()
		}
		out = append(out, model.BreakdownItem{
			Name:     c.Name,
			Score:    display,
			RawValue: scheme.Round2(value),
			MaxScore: maxScore,
		})
	}
	return out
}

// ParseTags splits a comma-separated tag list, trimming entries and dropping
// blanks and repeats. First occurrence order is kept.
func ParseTags(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		tag := strings.TrimSpace(p)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// BuildEntry converts a platform entry into its leaderboard record.
func BuildEntry(e model.PlatformEntry) model.LeaderboardEntry {
	return model.LeaderboardEntry{
		Slug:           e.Slug,
		ScoreSetSlug:   e.ScoreSetSlug,
		Title:          e.Title,
		Tags:           ParseTags(e.Tags),
		TotalScore:     CalculateTotalScore(e),
		ScoreBreakdown: Breakdown(e),
		Municipality:   e.Municipality,
	}
}

// BuildEntries converts a batch of platform entries.
func BuildEntries(entries []model.PlatformEntry) []model.LeaderboardEntry {
	out := make([]model.LeaderboardEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, BuildEntry(e))
	}
	return out
}

// Rank orders entries by total score descending, then slug, and assigns dense
// ranks: equal totals share a rank and the next total takes the next rank.
func Rank(entries []model.LeaderboardEntry) []types.Entry {
	out := make([]types.Entry, len(entries))
	for i, e := range entries {
		out[i] = types.Entry{LeaderboardEntry: e}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalScore != out[j].TotalScore {
			return out[i].TotalScore > out[j].TotalScore
		}
		return out[i].Slug < out[j].Slug
	})
	AssignRanks(out)
	return out
}

// AssignRanks writes dense ranks into entries already sorted by total desc.
func AssignRanks(entries []types.Entry) {
	rank := 0
	for i := range entries {
		if i == 0 || entries[i].TotalScore != entries[i-1].TotalScore {
			rank++
		}
		entries[i].Rank = rank
	}
}
