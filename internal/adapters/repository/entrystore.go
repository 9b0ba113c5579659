package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/okian/reviewrank/internal/domain/leaderboard"
	"github.com/okian/reviewrank/internal/domain/model"
	"github.com/okian/reviewrank/internal/domain/types"
	"github.com/okian/reviewrank/pkg/metrics"
)

const upsertEntry = `INSERT INTO leaderboard_entries
	(slug, score_set_slug, title, tags_json, total_score, breakdown_json, municipality, updated_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	ON CONFLICT (slug, score_set_slug) DO UPDATE SET
	  title=EXCLUDED.title,
	  tags_json=EXCLUDED.tags_json,
	  total_score=EXCLUDED.total_score,
	  breakdown_json=EXCLUDED.breakdown_json,
	  municipality=EXCLUDED.municipality,
	  updated_at=EXCLUDED.updated_at`

// SQLEntryStore implements EntryStore on database/sql.
type SQLEntryStore struct {
	db *sql.DB
	settings
}

// NewSQLEntryStore creates an entry store over an opened database.
func NewSQLEntryStore(db *sql.DB, opts ...Option) *SQLEntryStore {
	s := &SQLEntryStore{db: db, settings: defaultSettings()}
	for _, opt := range opts {
		opt(&s.settings)
	}
	return s
}

// Upsert writes entries keyed by (slug, score set slug).
func (s *SQLEntryStore) Upsert(ctx context.Context, entries []model.LeaderboardEntry) (err error) {
	defer observe("upsert_entries", time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.insert(ctx, tx, entries); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	metrics.RecordLeaderboardWrites("upsert", len(entries))
	return nil
}

// ReplaceScoreSet rebuilds one score set's board.
func (s *SQLEntryStore) ReplaceScoreSet(ctx context.Context, scoreSetSlug string, entries []model.LeaderboardEntry) (err error) {
	if scoreSetSlug == "" {
		return ErrEmptyKey
	}
	defer observe("replace_entries", time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM leaderboard_entries WHERE score_set_slug=$1`, scoreSetSlug); err != nil {
		return fmt.Errorf("delete entries of %q: %w", scoreSetSlug, err)
	}
	owned := make([]model.LeaderboardEntry, len(entries))
	for i, e := range entries {
		if e.ScoreSetSlug == "" {
			e.ScoreSetSlug = scoreSetSlug
		}
		owned[i] = e
	}
	if err = s.insert(ctx, tx, owned); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	metrics.RecordLeaderboardWrites("replace", len(entries))
	return nil
}

func (s *SQLEntryStore) insert(ctx context.Context, tx *sql.Tx, entries []model.LeaderboardEntry) error {
	if len(entries) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, upsertEntry)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	updatedAt := s.now().Unix()
	for _, e := range entries {
		tags, err := json.Marshal(nonNil(e.Tags))
		if err != nil {
			return fmt.Errorf("encode tags of %q: %w", e.Slug, err)
		}
		breakdown, err := json.Marshal(nonNilBreakdown(e.ScoreBreakdown))
		if err != nil {
			return fmt.Errorf("encode breakdown of %q: %w", e.Slug, err)
		}
		if _, err := stmt.ExecContext(ctx, e.Slug, e.ScoreSetSlug, e.Title, string(tags),
			e.TotalScore, string(breakdown), e.Municipality, updatedAt); err != nil {
			return fmt.Errorf("upsert %q: %w", e.Slug, err)
		}
	}
	return nil
}

// Clear deletes every entry.
func (s *SQLEntryStore) Clear(ctx context.Context) error {
	defer observe("clear_entries", time.Now())
	if _, err := s.db.ExecContext(ctx, `DELETE FROM leaderboard_entries`); err != nil {
		return fmt.Errorf("clear entries: %w", err)
	}
	return nil
}

// TopN returns the n best entries with dense ranks.
func (s *SQLEntryStore) TopN(ctx context.Context, scoreSetSlug string, n int) ([]types.Entry, error) {
	defer observe("top_n", time.Now())
	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	q := `SELECT slug, score_set_slug, title, tags_json, total_score, breakdown_json, municipality
		FROM leaderboard_entries`
	args := []any{}
	if scoreSetSlug != "" {
		q += ` WHERE score_set_slug=$1 ORDER BY total_score DESC, slug LIMIT $2`
		args = append(args, scoreSetSlug, n)
	} else {
		q += ` ORDER BY total_score DESC, slug, score_set_slug LIMIT $1`
		args = append(args, n)
	}

	rs, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query top %d: %w", n, err)
	}
	defer rs.Close()

	out := make([]types.Entry, 0, n)
	for rs.Next() {
		var (
			e               model.LeaderboardEntry
			tags, breakdown string
		)
		if err := rs.Scan(&e.Slug, &e.ScoreSetSlug, &e.Title, &tags, &e.TotalScore, &breakdown, &e.Municipality); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
			return nil, fmt.Errorf("decode tags of %q: %w", e.Slug, err)
		}
		if err := json.Unmarshal([]byte(breakdown), &e.ScoreBreakdown); err != nil {
			return nil, fmt.Errorf("decode breakdown of %q: %w", e.Slug, err)
		}
		out = append(out, types.Entry{LeaderboardEntry: e})
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	leaderboard.AssignRanks(out)
	return out, nil
}

// Count returns the number of stored entries.
func (s *SQLEntryStore) Count(ctx context.Context, scoreSetSlug string) (int, error) {
	defer observe("count_entries", time.Now())

	var (
		n   int
		err error
	)
	if scoreSetSlug == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leaderboard_entries`).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leaderboard_entries WHERE score_set_slug=$1`, scoreSetSlug).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func nonNilBreakdown(items []model.BreakdownItem) []model.BreakdownItem {
	if items == nil {
		return []model.BreakdownItem{}
	}
	return items
}
