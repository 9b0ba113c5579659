// Package model contains domain models passed between layers.
package model

// RawScoringRow is one reviewer's score for one criterion on one application.
// Rows are produced by the normalizer and never mutated afterwards.
type RawScoringRow struct {
	ApplicationID    string  `json:"application_id"`
	ApplicationSlug  string  `json:"application_slug"`
	ApplicationTitle string  `json:"application_title"`
	Category         string  `json:"category"`
	ReviewerEmail    string  `json:"reviewer_email"` // lower-cased
	ReviewerFirst    string  `json:"reviewer_first"`
	ReviewerLast     string  `json:"reviewer_last"`
	ScoringCriterion string  `json:"scoring_criterion"`
	Score            float64 `json:"score"`
	MaxScore         float64 `json:"max_score"`
	WeightedScore    float64 `json:"weighted_score"`
	WeightedMaxScore float64 `json:"weighted_max_score"`
	ScoreSetName     string  `json:"score_set_name"`
	ScoreSetSlug     string  `json:"score_set_slug"`
	ApplicantFirst   string  `json:"applicant_first"`
	ApplicantLast    string  `json:"applicant_last"`
	ApplicantEmail   string  `json:"applicant_email"`
}

// ReviewerName joins the reviewer's first and last name.
func (r RawScoringRow) ReviewerName() string {
	return joinName(r.ReviewerFirst, r.ReviewerLast)
}

// ApplicantName joins the applicant's first and last name.
func (r RawScoringRow) ApplicantName() string {
	return joinName(r.ApplicantFirst, r.ApplicantLast)
}

func joinName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	default:
		return first + " " + last
	}
}
