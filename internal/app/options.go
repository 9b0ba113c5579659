package service

import (
	"context"
	"time"

	"github.com/okian/reviewrank/internal/domain/model"
	"github.com/okian/reviewrank/internal/domain/normalize"
	"github.com/okian/reviewrank/pkg/logger"
)

// Fetcher loads every entry of a score set from the grant platform.
type Fetcher interface {
	FetchAll(ctx context.Context, scoreSetSlug string) ([]model.PlatformEntry, error)
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of sync workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the sync queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many in-flight sync claims are tracked.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithNormalizer replaces the default column normalizer.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(s *Service) {
		if n != nil {
			s.normalizer = n
		}
	}
}

// WithFetcher enables platform sync.
func WithFetcher(f Fetcher) Option {
	return func(s *Service) {
		s.fetcher = f
	}
}

// WithPartitions sets the fan-out of concurrent aggregation.
func WithPartitions(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.partitions = n
		}
	}
}

// WithDuplicateThreshold sets the title similarity reported as a duplicate.
func WithDuplicateThreshold(t float64) Option {
	return func(s *Service) {
		if t > 0 && t <= 1 {
			s.duplicateThreshold = t
		}
	}
}

// WithMaxLeaderboardLimit caps the number of entries one leaderboard read returns.
func WithMaxLeaderboardLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithSchedule resyncs scoreSets every interval once the service starts.
func WithSchedule(interval time.Duration, scoreSets []string) Option {
	return func(s *Service) {
		s.syncInterval = interval
		s.syncScoreSets = append([]string(nil), scoreSets...)
	}
}

// WithIDGenerator replaces the sync request id generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}
