package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/okian/reviewrank/internal/domain/model"
	"github.com/okian/reviewrank/pkg/metrics"
)

const rowColumns = `application_id, application_slug, application_title, category,
	reviewer_email, reviewer_first, reviewer_last, scoring_criterion,
	score, max_score, weighted_score, weighted_max_score,
	score_set_name, score_set_slug, applicant_first, applicant_last, applicant_email`

// SQLRowStore implements RowStore on database/sql.
type SQLRowStore struct {
	db *sql.DB
	settings
}

// NewSQLRowStore creates a row store over an opened database.
func NewSQLRowStore(db *sql.DB, opts ...Option) *SQLRowStore {
	s := &SQLRowStore{db: db, settings: defaultSettings()}
	for _, opt := range opts {
		opt(&s.settings)
	}
	return s
}

// ReplaceScoreSet deletes the score set's rows and inserts rows in one transaction.
func (s *SQLRowStore) ReplaceScoreSet(ctx context.Context, scoreSet string, rows []model.RawScoringRow) (batchID string, err error) {
	if scoreSet == "" {
		return "", ErrEmptyKey
	}
	defer observe("replace_rows", time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM score_rows WHERE score_set=$1`, scoreSet); err != nil {
		return "", fmt.Errorf("delete rows of %q: %w", scoreSet, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO score_rows (score_set, position, batch_id, loaded_at, `+rowColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`)
	if err != nil {
		return "", fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	batchID = s.newID()
	loadedAt := s.now().Unix()
	for i, r := range rows {
		_, err = stmt.ExecContext(ctx, scoreSet, i, batchID, loadedAt,
			r.ApplicationID, r.ApplicationSlug, r.ApplicationTitle, r.Category,
			r.ReviewerEmail, r.ReviewerFirst, r.ReviewerLast, r.ScoringCriterion,
			r.Score, r.MaxScore, r.WeightedScore, r.WeightedMaxScore,
			r.ScoreSetName, r.ScoreSetSlug, r.ApplicantFirst, r.ApplicantLast, r.ApplicantEmail)
		if err != nil {
			return "", fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return batchID, nil
}

// Rows returns the rows of scoreSet in upload order.
func (s *SQLRowStore) Rows(ctx context.Context, scoreSet string) ([]model.RawScoringRow, error) {
	defer observe("rows", time.Now())

	out, err := s.query(ctx, `SELECT `+rowColumns+` FROM score_rows WHERE score_set=$1 ORDER BY position`, scoreSet)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, scoreSet)
	}
	return out, nil
}

// AllRows returns every stored row.
func (s *SQLRowStore) AllRows(ctx context.Context) ([]model.RawScoringRow, error) {
	defer observe("all_rows", time.Now())
	return s.query(ctx, `SELECT `+rowColumns+` FROM score_rows ORDER BY score_set, position`)
}

// ScoreSets lists stored score sets in name order.
func (s *SQLRowStore) ScoreSets(ctx context.Context) ([]string, error) {
	defer observe("score_sets", time.Now())

	rs, err := s.db.QueryContext(ctx, `SELECT DISTINCT score_set FROM score_rows ORDER BY score_set`)
	if err != nil {
		return nil, fmt.Errorf("list score sets: %w", err)
	}
	defer rs.Close()

	var out []string
	for rs.Next() {
		var name string
		if err := rs.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan score set: %w", err)
		}
		out = append(out, name)
	}
	return out, rs.Err()
}

func (s *SQLRowStore) query(ctx context.Context, q string, args ...any) ([]model.RawScoringRow, error) {
	rs, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rs.Close()

	var out []model.RawScoringRow
	for rs.Next() {
		var r model.RawScoringRow
		if err := rs.Scan(
			&r.ApplicationID, &r.ApplicationSlug, &r.ApplicationTitle, &r.Category,
			&r.ReviewerEmail, &r.ReviewerFirst, &r.ReviewerLast, &r.ScoringCriterion,
			&r.Score, &r.MaxScore, &r.WeightedScore, &r.WeightedMaxScore,
			&r.ScoreSetName, &r.ScoreSetSlug, &r.ApplicantFirst, &r.ApplicantLast, &r.ApplicantEmail,
		); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

func observe(op string, start time.Time) {
	metrics.RecordRepositoryLatency(op, float64(time.Since(start).Microseconds())/1000)
}
