// Package repository persists scoring rows and leaderboard entries in SQL.
package repository

import (
	"context"

	"github.com/okian/reviewrank/internal/domain/model"
	"github.com/okian/reviewrank/internal/domain/types"
)

// RowStore keeps the normalized rows of each uploaded score set.
type RowStore interface {
	// ReplaceScoreSet atomically swaps every stored row of scoreSet for rows
	// and returns the id of the new batch.
	ReplaceScoreSet(ctx context.Context, scoreSet string, rows []model.RawScoringRow) (string, error)

	// Rows returns the rows of scoreSet in upload order, or ErrNotFound.
	Rows(ctx context.Context, scoreSet string) ([]model.RawScoringRow, error)

	// AllRows returns every stored row, grouped by score set.
	AllRows(ctx context.Context) ([]model.RawScoringRow, error)

	// ScoreSets lists the stored score sets.
	ScoreSets(ctx context.Context) ([]string, error)
}

// EntryStore keeps leaderboard entries keyed by (slug, score set slug).
type EntryStore interface {
	// Upsert inserts entries or overwrites those with the same key.
	Upsert(ctx context.Context, entries []model.LeaderboardEntry) error

	// ReplaceScoreSet deletes every entry of scoreSetSlug and inserts entries
	// in one transaction.
	ReplaceScoreSet(ctx context.Context, scoreSetSlug string, entries []model.LeaderboardEntry) error

	// Clear deletes all entries.
	Clear(ctx context.Context) error

	// TopN returns the n best entries of scoreSetSlug with dense ranks.
	// An empty scoreSetSlug ranks across every score set.
	TopN(ctx context.Context, scoreSetSlug string, n int) ([]types.Entry, error)

	// Count returns the number of entries of scoreSetSlug, or of all score
	// sets when it is empty.
	Count(ctx context.Context, scoreSetSlug string) (int, error)
}
