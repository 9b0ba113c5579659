// Package service wires the scoring engine to storage, the grant platform and
// the sync pipeline, and implements the dependencies of the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	eventqueue "github.com/okian/reviewrank/internal/adapters/mq/queue"
	workerpool "github.com/okian/reviewrank/internal/adapters/mq/worker"
	"github.com/okian/reviewrank/internal/adapters/repository"
	"github.com/okian/reviewrank/internal/domain/aggregate"
	"github.com/okian/reviewrank/internal/domain/dedupe"
	"github.com/okian/reviewrank/internal/domain/duplicates"
	"github.com/okian/reviewrank/internal/domain/leaderboard"
	"github.com/okian/reviewrank/internal/domain/model"
	"github.com/okian/reviewrank/internal/domain/normalize"
	"github.com/okian/reviewrank/internal/domain/types"
	"github.com/okian/reviewrank/pkg/logger"
	"github.com/okian/reviewrank/pkg/metrics"
)

// Sync request outcomes.
const (
	SyncAccepted  = "accepted"
	SyncDuplicate = "duplicate"
)

// IngestResult describes a stored upload.
type IngestResult struct {
	ScoreSet string `json:"scoreSet"`
	Records  int    `json:"records"`
	BatchID  string `json:"batchId"`
}

// AggregateReport is an aggregation run plus the suspected duplicates found in it.
type AggregateReport struct {
	model.AggregatedData
	Duplicates []duplicates.Pair `json:"duplicates"`
}

// SyncResult describes the outcome of RequestSync.
type SyncResult struct {
	ID           string `json:"id,omitempty"`
	ScoreSetSlug string `json:"scoreSetSlug"`
	Full         bool   `json:"full"`
	Status       string `json:"status"`
}

// Service implements the API dependencies for the review ranking system.
type Service struct {
	mu sync.RWMutex

	rows       repository.RowStore
	entries    repository.EntryStore
	normalizer *normalize.Normalizer
	fetcher    Fetcher

	deduper dedupe.Deduper
	queue   eventqueue.Queue
	pool    *workerpool.Pool

	workerCount        int
	queueSize          int
	dedupeSize         int
	partitions         int
	duplicateThreshold float64
	maxLimit           int
	syncInterval       time.Duration
	syncScoreSets      []string
	newID              func() string

	started   bool
	stopCh    chan struct{}
	scheduler sync.WaitGroup

	logger logger.Logger
	tracer trace.Tracer
}

// New constructs a Service over the given stores.
func New(rows repository.RowStore, entries repository.EntryStore, opts ...Option) *Service {
	s := &Service{
		rows:               rows,
		entries:            entries,
		normalizer:         normalize.New(),
		workerCount:        2,
		queueSize:          64,
		dedupeSize:         1024,
		partitions:         1,
		duplicateThreshold: duplicates.DefaultThreshold,
		maxLimit:           100,
		newID:              uuid.NewString,
		tracer:             otel.Tracer("reviewrank/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	return s
}

// Start creates the sync queue and workers and starts the scheduler.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting review ranking service...")

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s)
	s.pool.Start(ctx)
	s.stopCh = make(chan struct{})

	if s.syncInterval > 0 && len(s.syncScoreSets) > 0 && s.fetcher != nil {
		s.scheduler.Add(1)
		go s.schedule(ctx, s.stopCh)
	}

	s.started = true
	s.logger.Info(ctx, "review ranking service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Bool("syncEnabled", s.fetcher != nil),
		logger.Duration("syncInterval", s.syncInterval),
	)
	return nil
}

// Stop stops the scheduler, then drains the queue and waits for the workers.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping review ranking service...")

	close(s.stopCh)
	s.scheduler.Wait()

	err := s.pool.Shutdown(ctx)
	s.started = false
	s.logger.Info(ctx, "review ranking service stopped")
	return err
}

// IngestScores normalizes uploaded records and replaces the stored rows of
// scoreSet with them. Rows without a score set name take scoreSet.
func (s *Service) IngestScores(ctx context.Context, scoreSet string, records []map[string]any) (IngestResult, error) {
	scoreSet = strings.TrimSpace(scoreSet)
	if scoreSet == "" {
		return IngestResult{}, fmt.Errorf("%w: score set is required", ErrBadRequest)
	}

	rows := s.normalizer.Rows(records)
	for i := range rows {
		if rows[i].ScoreSetName == "" {
			rows[i].ScoreSetName = scoreSet
		}
	}

	batchID, err := s.rows.ReplaceScoreSet(ctx, scoreSet, rows)
	if err != nil {
		metrics.RecordErrorByComponent("service", "ingest_failed")
		return IngestResult{}, fmt.Errorf("store score set %q: %w", scoreSet, err)
	}
	metrics.RecordRowsIngested(len(rows))

	s.logger.Info(ctx, "score set ingested",
		logger.String("scoreSet", scoreSet),
		logger.Int("records", len(rows)),
		logger.String("batchId", batchID),
	)
	return IngestResult{ScoreSet: scoreSet, Records: len(rows), BatchID: batchID}, nil
}

// Aggregates runs the aggregation over the stored rows of scoreSet, or over
// every stored row when scoreSet is empty.
func (s *Service) Aggregates(ctx context.Context, scoreSet string) (AggregateReport, error) {
	ctx, span := s.tracer.Start(ctx, "Service.Aggregates",
		trace.WithAttributes(attribute.String("score_set", scoreSet)))
	defer span.End()

	rows, err := s.loadRows(ctx, scoreSet)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return AggregateReport{}, err
	}

	start := time.Now()
	data, err := aggregate.ComputeConcurrent(ctx, rows, s.partitions)
	if err != nil {
		span.RecordError(err)
		return AggregateReport{}, fmt.Errorf("aggregate %q: %w", scoreSet, err)
	}
	elapsed := time.Since(start)

	mode := "sequential"
	if s.partitions > 1 {
		mode = "concurrent"
	}
	metrics.RecordAggregation(mode, float64(elapsed.Milliseconds()), len(data.Apps), len(data.Reviewers))

	pairs := duplicates.Detect(duplicates.FromApps(data.Apps), s.duplicateThreshold)
	metrics.UpdateDuplicatesFlagged(len(pairs))

	span.SetAttributes(
		attribute.Int("rows", len(rows)),
		attribute.Int("apps", len(data.Apps)),
		attribute.Int("reviewers", len(data.Reviewers)),
		attribute.Int("duplicates", len(pairs)),
	)
	s.logger.Debug(ctx, "aggregation complete",
		logger.String("scoreSet", scoreSet),
		logger.Int("rows", len(rows)),
		logger.Duration("elapsed", elapsed),
	)

	if pairs == nil {
		pairs = []duplicates.Pair{}
	}
	return AggregateReport{AggregatedData: data, Duplicates: pairs}, nil
}

// Summary returns only the summary statistics of Aggregates.
func (s *Service) Summary(ctx context.Context, scoreSet string) (model.Summary, error) {
	report, err := s.Aggregates(ctx, scoreSet)
	if err != nil {
		return model.Summary{}, err
	}
	return report.Summary, nil
}

// ScoreSets lists the uploaded score sets.
func (s *Service) ScoreSets(ctx context.Context) ([]string, error) {
	return s.rows.ScoreSets(ctx)
}

func (s *Service) loadRows(ctx context.Context, scoreSet string) ([]model.RawScoringRow, error) {
	if scoreSet == "" {
		return s.rows.AllRows(ctx)
	}
	return s.rows.Rows(ctx, scoreSet)
}

// Leaderboard returns up to limit ranked entries of scoreSetSlug. Limits above
// the configured maximum are capped.
func (s *Service) Leaderboard(ctx context.Context, scoreSetSlug string, limit int) ([]types.Entry, error) {
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	return s.entries.TopN(ctx, scoreSetSlug, limit)
}

// MaxLeaderboardLimit returns the cap applied by Leaderboard.
func (s *Service) MaxLeaderboardLimit() int { return s.maxLimit }

// ScoreEntry computes the leaderboard record of a single platform entry
// without storing it.
func (s *Service) ScoreEntry(e model.PlatformEntry) model.LeaderboardEntry {
	return leaderboard.BuildEntry(e)
}

// RequestSync queues a leaderboard refresh of scoreSetSlug. A second request
// for a score set whose sync has not finished reports SyncDuplicate.
func (s *Service) RequestSync(ctx context.Context, scoreSetSlug string, full bool) (SyncResult, error) {
	scoreSetSlug = strings.TrimSpace(scoreSetSlug)
	if scoreSetSlug == "" {
		return SyncResult{}, fmt.Errorf("%w: score set slug is required", ErrBadRequest)
	}
	if s.fetcher == nil {
		return SyncResult{}, ErrSyncDisabled
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return SyncResult{}, ErrNotStarted
	}

	result := SyncResult{ScoreSetSlug: scoreSetSlug, Full: full}
	if s.deduper.SeenAndRecord(ctx, scoreSetSlug) {
		metrics.RecordSyncRequest(SyncDuplicate)
		s.logger.Debug(ctx, "sync already pending, skipping", logger.String("scoreSet", scoreSetSlug))
		result.Status = SyncDuplicate
		return result, nil
	}

	req := model.SyncRequest{ID: s.newID(), ScoreSetSlug: scoreSetSlug, Full: full}
	if err := s.queue.Enqueue(ctx, req); err != nil {
		s.deduper.Unrecord(ctx, scoreSetSlug)
		if errors.Is(err, eventqueue.ErrFull) || errors.Is(err, eventqueue.ErrClosed) {
			metrics.RecordSyncRequest("backpressure")
			return SyncResult{}, fmt.Errorf("%w: %w", ErrBackpressure, err)
		}
		return SyncResult{}, err
	}

	metrics.RecordSyncRequest(SyncAccepted)
	result.ID = req.ID
	result.Status = SyncAccepted
	return result, nil
}

// Run executes one sync request: it fetches every entry of the score set,
// scores them and writes them to the entry store. It is called by the
// worker pool.
func (s *Service) Run(ctx context.Context, req model.SyncRequest) (err error) {
	ctx, span := s.tracer.Start(ctx, "Service.Sync",
		trace.WithAttributes(
			attribute.String("request_id", req.ID),
			attribute.String("score_set", req.ScoreSetSlug),
			attribute.Bool("full", req.Full),
		))
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		metrics.RecordSyncRun(outcome, float64(time.Since(start).Milliseconds()))
		span.End()
		if s.deduper != nil {
			s.deduper.Unrecord(ctx, req.ScoreSetSlug)
		}
	}()

	if s.fetcher == nil {
		return ErrSyncDisabled
	}

	fetched, err := s.fetcher.FetchAll(ctx, req.ScoreSetSlug)
	if err != nil {
		return fmt.Errorf("fetch %q: %w", req.ScoreSetSlug, err)
	}

	built := leaderboard.BuildEntries(fetched)
	for i := range built {
		if built[i].ScoreSetSlug == "" {
			built[i].ScoreSetSlug = req.ScoreSetSlug
		}
	}

	mode := "upsert"
	if req.Full {
		mode = "replace"
		err = s.entries.ReplaceScoreSet(ctx, req.ScoreSetSlug, built)
	} else {
		err = s.entries.Upsert(ctx, built)
	}
	if err != nil {
		return fmt.Errorf("write %q: %w", req.ScoreSetSlug, err)
	}
	metrics.RecordLeaderboardWrites(mode, len(built))

	if total, cerr := s.entries.Count(ctx, ""); cerr == nil {
		metrics.UpdateLeaderboardEntries(total)
	}

	span.SetAttributes(attribute.Int("entries", len(built)))
	s.logger.Info(ctx, "leaderboard synced",
		logger.String("requestId", req.ID),
		logger.String("scoreSet", req.ScoreSetSlug),
		logger.String("mode", mode),
		logger.Int("entries", len(built)),
		logger.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// schedule requests a full resync of every configured score set each interval.
func (s *Service) schedule(ctx context.Context, stop <-chan struct{}) {
	defer s.scheduler.Done()

	ticker := time.NewTicker(s.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			s.enqueueScheduled(ctx)
		}
	}
}

func (s *Service) enqueueScheduled(ctx context.Context) {
	for _, slug := range s.syncScoreSets {
		req := model.SyncRequest{ID: s.newID(), ScoreSetSlug: slug, Full: true}
		if s.deduper.SeenAndRecord(ctx, slug) {
			metrics.RecordSyncRequest(SyncDuplicate)
			continue
		}
		if err := s.queue.Enqueue(ctx, req); err != nil {
			s.deduper.Unrecord(ctx, slug)
			metrics.RecordSyncRequest("backpressure")
			s.logger.Warn(ctx, "scheduled sync not queued",
				logger.String("scoreSet", slug),
				logger.Error(err),
			)
			continue
		}
		metrics.RecordSyncRequest("scheduled")
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":       s.started,
		"workerCount":   s.workerCount,
		"queueSize":     s.queueSize,
		"dedupeSize":    s.dedupeSize,
		"partitions":    s.partitions,
		"syncEnabled":   s.fetcher != nil,
		"syncScoreSets": s.syncScoreSets,
	}

	if s.started {
		stats["queueLength"] = s.queue.Len(ctx)
		stats["pendingSyncs"] = s.deduper.Size()
		stats["workers"] = s.pool.Size()
	}
	if n, err := s.entries.Count(ctx, ""); err == nil {
		stats["leaderboardEntries"] = n
		metrics.UpdateLeaderboardEntries(n)
	}
	if sets, err := s.rows.ScoreSets(ctx); err == nil {
		stats["scoreSets"] = len(sets)
	}
	return stats
}
