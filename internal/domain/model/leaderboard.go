package model

// BreakdownItem is one criterion's display record on a leaderboard entry.
type BreakdownItem struct {
	Name     string  `json:"name"`
	Score    string  `json:"score"`
	RawValue float64 `json:"rawValue"`
	MaxScore float64 `json:"maxScore"`
}

// LeaderboardEntry is one externally synced application's ranking record,
// keyed by (Slug, ScoreSetSlug).
type LeaderboardEntry struct {
	Slug           string          `json:"slug"`
	ScoreSetSlug   string          `json:"scoreSetSlug"`
	Title          string          `json:"title"`
	Tags           []string        `json:"tags"`
	TotalScore     float64         `json:"totalScore"`
	ScoreBreakdown []BreakdownItem `json:"scoreBreakdown"`
	Municipality   string          `json:"municipality"`
}

// SyncRequest asks the sync pipeline to refresh one score set's leaderboard.
type SyncRequest struct {
	ID           string // unique id for tracing
	ScoreSetSlug string
	Full         bool // clear and rebuild instead of upserting
}
