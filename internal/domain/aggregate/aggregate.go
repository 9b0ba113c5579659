// Package aggregate folds normalized scoring rows into per-application,
// per-reviewer and per-criterion aggregates.
//
// An aggregation runs in three steps. The fold accumulates raw sums per
// application; finalization normalizes every reviewer and criterion under the
// application's scheme; the reviewer merge then builds cross-application
// reviewer views from the finalized applications. Finalization needs the
// complete row set, so it never starts before the fold is done.
package aggregate

import (
	"sort"

	"github.com/okian/reviewrank/internal/domain/model"
	"github.com/okian/reviewrank/internal/domain/scheme"
	"github.com/okian/reviewrank/internal/domain/summary"
)

// Compute aggregates rows in a single goroutine. The result shares no state
// with rows and is owned by the caller. Blank keys are excluded from the
// counts: rows without an application id attach to no app, rows without a
// reviewer email to no reviewer, and rows without a criterion to no criterion.
func Compute(rows []model.RawScoringRow) model.AggregatedData {
	apps := fold(rows)
	return complete(apps, rows)
}

func complete(apps map[string]*model.AppAggregate, rows []model.RawScoringRow) model.AggregatedData {
	for _, app := range apps {
		finalize(app)
	}
	reviewers := mergeReviewers(apps)
	return model.AggregatedData{
		Apps:      apps,
		Reviewers: reviewers,
		Summary:   summary.Compute(apps, reviewers, rows),
	}
}

// fold accumulates rows into application aggregates. Rows without an
// application id have nothing to attach to and are skipped.
func fold(rows []model.RawScoringRow) map[string]*model.AppAggregate {
	apps := make(map[string]*model.AppAggregate)
	for _, r := range rows {
		if r.ApplicationID == "" {
			continue
		}
		app, ok := apps[r.ApplicationID]
		if !ok {
			app = newApp(r)
			apps[r.ApplicationID] = app
		} else {
			backfill(app, r)
		}
		accumulate(app, r)
	}
	return apps
}

func newApp(r model.RawScoringRow) *model.AppAggregate {
	return &model.AppAggregate{
		ID:             r.ApplicationID,
		Title:          r.ApplicationTitle,
		Category:       r.Category,
		ScoreSetName:   r.ScoreSetName,
		ScoreSetSlug:   r.ScoreSetSlug,
		ApplicantName:  r.ApplicantName(),
		ApplicantEmail: r.ApplicantEmail,
		Reviewers:      make(map[string]model.ReviewerTally),
		Criteria:       make(map[string]model.Tally),
	}
}

// backfill fills descriptive fields the first row left blank. The score set
// name is never backfilled: it fixes the application's scheme.
func backfill(app *model.AppAggregate, r model.RawScoringRow) {
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&app.Title, r.ApplicationTitle)
	fill(&app.Category, r.Category)
	fill(&app.ScoreSetSlug, r.ScoreSetSlug)
	fill(&app.ApplicantName, r.ApplicantName())
	fill(&app.ApplicantEmail, r.ApplicantEmail)
}

// accumulate adds r to its reviewer and criterion tallies. A row with no
// reviewer email counts towards its criterion only, and a row with no
// criterion towards its reviewer only.
func accumulate(app *model.AppAggregate, r model.RawScoringRow) {
	if r.ReviewerEmail != "" {
		rt := app.Reviewers[r.ReviewerEmail]
		if rt.Name == "" {
			rt.Name = r.ReviewerName()
		}
		rt.Tally = rt.Tally.Add(r)
		app.Reviewers[r.ReviewerEmail] = rt
	}
	if r.ScoringCriterion != "" {
		app.Criteria[r.ScoringCriterion] = app.Criteria[r.ScoringCriterion].Add(r)
	}
}

// mergeInto folds src into dst. Partitions are keyed by application id so
// overlaps only happen when the same id lands in two inputs.
func mergeInto(dst, src map[string]*model.AppAggregate) {
	for id, s := range src {
		d, ok := dst[id]
		if !ok {
			dst[id] = s
			continue
		}
		for email, rt := range s.Reviewers {
			cur := d.Reviewers[email]
			if cur.Name == "" {
				cur.Name = rt.Name
			}
			cur.Tally = cur.Tally.Merge(rt.Tally)
			d.Reviewers[email] = cur
		}
		for name, t := range s.Criteria {
			d.Criteria[name] = d.Criteria[name].Merge(t)
		}
	}
}

// finalize normalizes app's tallies under its scheme.
func finalize(app *model.AppAggregate) {
	sc := scheme.Resolve(app.ScoreSetName)

	app.FinalReviewerScores = make(map[string]float64, len(app.Reviewers))
	var sum float64
	for email, rt := range app.Reviewers {
		v := sc.Normalize(rt.Tally)
		app.FinalReviewerScores[email] = v
		sum += v
	}
	app.FinalAverage = nil
	if n := len(app.FinalReviewerScores); n > 0 {
		avg := scheme.Round2(scheme.Clamp(sum/float64(n), 0, sc.DisplayMax))
		app.FinalAverage = &avg
	}

	app.CriteriaAverages = make(map[string]float64, len(app.Criteria))
	for name, t := range app.Criteria {
		app.CriteriaAverages[name] = sc.Normalize(t)
	}
}

// mergeReviewers builds reviewer aggregates from finalized applications.
// Applications are visited in id order so reviewer names are stable.
func mergeReviewers(apps map[string]*model.AppAggregate) map[string]*model.ReviewerAggregate {
	ids := make([]string, 0, len(apps))
	for id := range apps {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	reviewers := make(map[string]*model.ReviewerAggregate)
	for _, id := range ids {
		app := apps[id]
		for email, score := range app.FinalReviewerScores {
			ra, ok := reviewers[email]
			if !ok {
				ra = &model.ReviewerAggregate{Email: email, AppScores: make(map[string]float64)}
				reviewers[email] = ra
			}
			if ra.Name == "" {
				ra.Name = app.Reviewers[email].Name
			}
			ra.AppScores[id] = score
		}
	}

	for _, ra := range reviewers {
		ra.CountApps = len(ra.AppScores)
		if ra.CountApps == 0 {
			continue
		}
		var sum float64
		for _, v := range ra.AppScores {
			sum += v
		}
		avg := scheme.Round2(sum / float64(ra.CountApps))
		ra.AvgReviewerScore = &avg
	}
	return reviewers
}
