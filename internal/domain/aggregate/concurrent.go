package aggregate

import (
	"context"
	"hash/fnv"

	"golang.org/x/sync/errgroup"

	"github.com/okian/reviewrank/internal/domain/model"
)

// minRowsPerPartition keeps small inputs on the sequential path.
const minRowsPerPartition = 256

// ComputeConcurrent folds rows in up to partitions goroutines, split by
// application id, and finalizes once every partition has been merged.
// The numeric result matches Compute up to floating-point summation order.
func ComputeConcurrent(ctx context.Context, rows []model.RawScoringRow, partitions int) (model.AggregatedData, error) {
	if partitions > len(rows)/minRowsPerPartition {
		partitions = len(rows) / minRowsPerPartition
	}
	if partitions <= 1 {
		if err := ctx.Err(); err != nil {
			return model.AggregatedData{}, err
		}
		return Compute(rows), nil
	}

	buckets := make([][]model.RawScoringRow, partitions)
	for _, r := range rows {
		i := partitionOf(r.ApplicationID, partitions)
		buckets[i] = append(buckets[i], r)
	}

	results := make([]map[string]*model.AppAggregate, partitions)
	g, gctx := errgroup.WithContext(ctx)
	for i := range buckets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = fold(buckets[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.AggregatedData{}, err
	}

	apps := make(map[string]*model.AppAggregate)
	for _, part := range results {
		mergeInto(apps, part)
	}
	return complete(apps, rows), nil
}

func partitionOf(appID string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(appID))
	return int(h.Sum32() % uint32(n))
}
