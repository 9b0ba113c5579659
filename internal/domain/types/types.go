// Package types contains common types used across the application
package types

import "github.com/okian/reviewrank/internal/domain/model"

// Entry represents a ranked leaderboard entry
type Entry struct {
	Rank int `json:"rank"`
	model.LeaderboardEntry
}
