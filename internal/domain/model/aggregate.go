package model

// Tally accumulates the four score sums of a group of rows.
type Tally struct {
	Score       float64 `json:"score"`
	MaxScore    float64 `json:"maxScore"`
	Weighted    float64 `json:"weightedScore"`
	WeightedMax float64 `json:"weightedMaxScore"`
	Count       int     `json:"count"`
}

// Add folds one row's numbers into the tally.
func (t Tally) Add(r RawScoringRow) Tally {
	t.Score += r.Score
	t.MaxScore += r.MaxScore
	t.Weighted += r.WeightedScore
	t.WeightedMax += r.WeightedMaxScore
	t.Count++
	return t
}

// Merge combines two tallies of disjoint row sets.
func (t Tally) Merge(o Tally) Tally {
	t.Score += o.Score
	t.MaxScore += o.MaxScore
	t.Weighted += o.Weighted
	t.WeightedMax += o.WeightedMax
	t.Count += o.Count
	return t
}

// ReviewerTally is a reviewer's accumulator within one application.
type ReviewerTally struct {
	Name string `json:"name"`
	Tally
}

// AppAggregate is one application's aggregated state.
type AppAggregate struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Category       string `json:"category"`
	ScoreSetName   string `json:"score_set_name"`
	ScoreSetSlug   string `json:"score_set_slug"`
	ApplicantName  string `json:"applicant_name"`
	ApplicantEmail string `json:"applicant_email"`

	Reviewers map[string]ReviewerTally `json:"reviewers"`
	Criteria  map[string]Tally         `json:"criteria"`

	// Populated once by finalization.
	FinalReviewerScores map[string]float64 `json:"finalReviewerScores"`
	FinalAverage        *float64           `json:"finalAverage,omitempty"`
	CriteriaAverages    map[string]float64 `json:"criteriaAverages"`
}

// ReviewerAggregate is one reviewer's cross-application state.
type ReviewerAggregate struct {
	Email            string             `json:"email"`
	Name             string             `json:"name"`
	AppScores        map[string]float64 `json:"appScores"`
	AvgReviewerScore *float64           `json:"avgReviewerScore,omitempty"`
	CountApps        int                `json:"countApps"`
}

// Summary holds corpus-level statistics.
type Summary struct {
	TotalApps       int      `json:"totalApps"`
	TotalReviewers  int      `json:"totalReviewers"`
	TotalCategories int      `json:"totalCategories"`
	TotalRecords    int      `json:"totalRecords"`
	AvgRawScore     float64  `json:"avgRawScore"`
	AvgFinalScore   *float64 `json:"avgFinalScore,omitempty"`
}

// AggregatedData is the full output of one aggregation run. The caller owns it.
type AggregatedData struct {
	Apps      map[string]*AppAggregate      `json:"apps"`
	Reviewers map[string]*ReviewerAggregate `json:"reviewers"`
	Summary   Summary                       `json:"summary"`
}
