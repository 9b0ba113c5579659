// Package summary derives corpus-level statistics from an aggregation run.
package summary

import (
	"github.com/okian/reviewrank/internal/domain/model"
	"github.com/okian/reviewrank/internal/domain/scheme"
)

// Compute derives the summary of finalized apps and reviewers over rows.
// The raw-score average reads score or weighted score depending on the
// scheme of the first row.
func Compute(apps map[string]*model.AppAggregate, reviewers map[string]*model.ReviewerAggregate, rows []model.RawScoringRow) model.Summary {
	s := model.Summary{
		TotalApps:      len(apps),
		TotalReviewers: len(reviewers),
		TotalRecords:   len(rows),
	}

	categories := make(map[string]struct{})
	for _, r := range rows {
		categories[r.Category] = struct{}{}
	}
	s.TotalCategories = len(categories)

	if len(rows) > 0 {
		sc := scheme.Resolve(rows[0].ScoreSetName)
		var sum float64
		for _, r := range rows {
			sum += sc.RawScore(r)
		}
		s.AvgRawScore = scheme.Round2(sum / float64(len(rows)))
	}

	var (
		sum     float64
		defined int
	)
	for _, app := range apps {
		if app.FinalAverage == nil {
			continue
		}
		sum += *app.FinalAverage
		defined++
	}
	if defined > 0 {
		avg := scheme.Round2(sum / float64(defined))
		s.AvgFinalScore = &avg
	}
	return s
}
