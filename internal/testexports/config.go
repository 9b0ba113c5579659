// Package testexports generates synthetic reviewer score exports for load
// tests, demos and benchmarks.
package testexports

// Config shapes a generated export.
type Config struct {
	Seed               uint64 // same seed, same export
	Apps               int    // applications to generate
	Reviewers          int    // reviewer pool size
	ReviewersPerApp    int    // reviewers scoring each application
	Criteria           []string
	ScoreSet           string // "Eligibility Shortlisting" selects 0..6 scores
	Categories         []string
	DuplicateEvery     int // every Nth application resubmits the previous title; 0 disables
	BlankReviewerEvery int // every Nth row loses its reviewer email; 0 disables
}

// DefaultConfig returns a small weighted-scheme export.
func DefaultConfig() Config {
	return Config{
		Seed:            1,
		Apps:            50,
		Reviewers:       8,
		ReviewersPerApp: 3,
		Criteria:        []string{"Impact", "Feasibility", "Value for money"},
		ScoreSet:        "Stage 2 Assessment",
		Categories:      []string{"Environment", "Community", "Transport"},
	}
}

// Headers lists the export columns in output order.
var Headers = []string{
	"Application ID", "Application slug", "Application title", "Category",
	"Reviewer email", "Reviewer first name", "Reviewer last name",
	"Scoring criterion", "Score", "Max score", "Weighted score", "Weighted max score",
	"Score set", "Applicant first name", "Applicant last name", "Applicant email",
}
