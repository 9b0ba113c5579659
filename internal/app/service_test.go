package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/reviewrank/internal/adapters/db"
	"github.com/okian/reviewrank/internal/adapters/repository"
	service "github.com/okian/reviewrank/internal/app"
	"github.com/okian/reviewrank/internal/domain/duplicates"
	"github.com/okian/reviewrank/internal/domain/model"
)

var dbSeq atomic.Int64

// newStores opens a fresh in-memory database. Convey re-runs the setup for
// every leaf, so each call gets its own name.
func newStores(t *testing.T) (*repository.SQLRowStore, *repository.SQLEntryStore) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:svc_%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))
	conn, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return repository.NewSQLRowStore(conn), repository.NewSQLEntryStore(conn)
}

// stubFetcher serves canned entries. When gate is set, each fetch announces
// itself on started and waits for gate.
type stubFetcher struct {
	mu      sync.Mutex
	entries map[string][]model.PlatformEntry
	err     error
	calls   int
	started chan string
	gate    chan struct{}
}

func (f *stubFetcher) FetchAll(ctx context.Context, slug string) ([]model.PlatformEntry, error) {
	f.mu.Lock()
	f.calls++
	out, err := f.entries[slug], f.err
	f.mu.Unlock()

	if f.started != nil {
		f.started <- slug
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return out, err
}

func num(v float64) *model.Number { n := model.Number(v); return &n }

func frac(s string) *model.Fraction { f := model.ParseFraction(s); return &f }

func platformEntry(slug, title string, scores ...string) model.PlatformEntry {
	e := model.PlatformEntry{Slug: slug, Title: title, Tags: "green, urban", Scores: &model.PlatformScores{}}
	for i, s := range scores {
		e.Scores.Criteria = append(e.Scores.Criteria, model.PlatformCriterion{
			Name:       fmt.Sprintf("C%d", i+1),
			FinalScore: frac(s),
			MaxScore:   num(2),
		})
	}
	return e
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func TestService_IngestAndAggregate(t *testing.T) {
	Convey("Given a service over empty stores", t, func() {
		ctx := context.Background()
		rows, entries := newStores(t)
		svc := service.New(rows, entries, service.WithPartitions(4))

		Convey("When an eligibility export is ingested", func() {
			records := []map[string]any{
				{"Application ID": "A1", "Application title": "Community garden", "Reviewer email": "R1@x.com", "Scoring criterion": "Fit", "Score": "3", "Max score": "6", "Applicant email": "a@x.com"},
				{"Application ID": "A2", "Application title": "Community gardens", "Reviewer email": "r2@x.com", "Scoring criterion": "Fit", "Score": "4", "Max score": "8", "Applicant email": "a@x.com"},
			}
			res, err := svc.IngestScores(ctx, "Eligibility Shortlisting", records)

			Convey("Then the rows are stored under the score set", func() {
				So(err, ShouldBeNil)
				So(res.Records, ShouldEqual, 2)
				So(res.BatchID, ShouldNotBeEmpty)

				stored, err := rows.Rows(ctx, "Eligibility Shortlisting")
				So(err, ShouldBeNil)
				So(stored[0].ScoreSetName, ShouldEqual, "Eligibility Shortlisting")
				So(stored[0].ReviewerEmail, ShouldEqual, "r1@x.com")
			})

			Convey("Then the aggregates use the eligibility scheme", func() {
				report, err := svc.Aggregates(ctx, "Eligibility Shortlisting")
				So(err, ShouldBeNil)
				So(report.Apps, ShouldHaveLength, 2)
				So(*report.Apps["A1"].FinalAverage, ShouldEqual, 3.0)
				So(*report.Apps["A2"].FinalAverage, ShouldEqual, 3.0)
				So(report.Summary.TotalRecords, ShouldEqual, 2)
				So(report.Summary.TotalReviewers, ShouldEqual, 2)
			})

			Convey("Then similar titles from one applicant are flagged", func() {
				report, err := svc.Aggregates(ctx, "Eligibility Shortlisting")
				So(err, ShouldBeNil)
				So(report.Duplicates, ShouldHaveLength, 1)
				So(report.Duplicates[0].A, ShouldEqual, "A1")
				So(report.Duplicates[0].Reason, ShouldEqual, duplicates.ReasonSameApplicant)
			})

			Convey("Then the summary matches and the score set is listed", func() {
				sum, err := svc.Summary(ctx, "")
				So(err, ShouldBeNil)
				So(sum.TotalApps, ShouldEqual, 2)
				So(*sum.AvgFinalScore, ShouldEqual, 3.0)

				sets, err := svc.ScoreSets(ctx)
				So(err, ShouldBeNil)
				So(sets, ShouldResemble, []string{"Eligibility Shortlisting"})
			})
		})

		Convey("When the score set name is blank", func() {
			_, err := svc.IngestScores(ctx, "  ", nil)
			So(errors.Is(err, service.ErrBadRequest), ShouldBeTrue)
		})

		Convey("When an unknown score set is aggregated", func() {
			_, err := svc.Aggregates(ctx, "missing")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("When everything is aggregated over no rows", func() {
			report, err := svc.Aggregates(ctx, "")
			So(err, ShouldBeNil)
			So(report.Apps, ShouldBeEmpty)
			So(report.Summary.TotalRecords, ShouldEqual, 0)
			So(report.Duplicates, ShouldBeEmpty)
		})
	})
}

func TestService_Run(t *testing.T) {
	Convey("Given a service with a platform fetcher", t, func() {
		ctx := context.Background()
		rows, entries := newStores(t)
		fetcher := &stubFetcher{entries: map[string][]model.PlatformEntry{
			"round-1": {
				platformEntry("alpha", "Alpha", "1.5/2", "2/2"),
				platformEntry("beta", "Beta", "2/2", "2/2"),
				platformEntry("gamma", "Gamma", "1/2", "2.5/2"),
			},
		}}
		svc := service.New(rows, entries, service.WithFetcher(fetcher), service.WithMaxLeaderboardLimit(2))

		Convey("When a full sync runs", func() {
			err := svc.Run(ctx, model.SyncRequest{ID: "r1", ScoreSetSlug: "round-1", Full: true})
			So(err, ShouldBeNil)

			Convey("Then the leaderboard is ranked and capped", func() {
				top, err := svc.Leaderboard(ctx, "round-1", 50)
				So(err, ShouldBeNil)
				So(top, ShouldHaveLength, 2)
				So(top[0].Slug, ShouldEqual, "beta")
				So(top[0].Rank, ShouldEqual, 1)
				So(top[0].TotalScore, ShouldEqual, 4.0)
				So(top[1].Rank, ShouldEqual, 2)
				So(top[1].TotalScore, ShouldEqual, 3.5)
				So(top[1].ScoreSetSlug, ShouldEqual, "round-1")
				So(top[0].Tags, ShouldResemble, []string{"green", "urban"})
			})

			Convey("Then a second full sync replaces entries that disappeared", func() {
				fetcher.entries["round-1"] = fetcher.entries["round-1"][:1]
				So(svc.Run(ctx, model.SyncRequest{ID: "r2", ScoreSetSlug: "round-1", Full: true}), ShouldBeNil)

				n, err := entries.Count(ctx, "round-1")
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
			})

			Convey("Then an incremental sync keeps entries it did not see", func() {
				fetcher.entries["round-1"] = []model.PlatformEntry{platformEntry("alpha", "Alpha", "0/2")}
				So(svc.Run(ctx, model.SyncRequest{ID: "r3", ScoreSetSlug: "round-1"}), ShouldBeNil)

				n, err := entries.Count(ctx, "round-1")
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 3)

				top, err := svc.Leaderboard(ctx, "round-1", 2)
				So(err, ShouldBeNil)
				So(top[1].Slug, ShouldEqual, "gamma")
			})
		})

		Convey("When the fetch fails", func() {
			fetcher.err = errors.New("platform down")
			err := svc.Run(ctx, model.SyncRequest{ID: "r4", ScoreSetSlug: "round-1", Full: true})

			Convey("Then nothing is written", func() {
				So(err, ShouldNotBeNil)
				n, _ := entries.Count(ctx, "")
				So(n, ShouldEqual, 0)
			})
		})

		Convey("When an entry is scored directly", func() {
			e := svc.ScoreEntry(platformEntry("solo", "Solo", "1.5/2", "2/2"))
			So(e.TotalScore, ShouldEqual, 3.5)
			So(e.ScoreBreakdown[0].Score, ShouldEqual, "1.5/2")
		})

		Convey("When the limit is not positive", func() {
			_, err := svc.Leaderboard(ctx, "round-1", 0)
			So(errors.Is(err, repository.ErrInvalidLimit), ShouldBeTrue)
		})
	})
}

func TestService_RequestSync(t *testing.T) {
	Convey("Given a service without a fetcher", t, func() {
		rows, entries := newStores(t)
		svc := service.New(rows, entries)

		_, err := svc.RequestSync(context.Background(), "round-1", true)
		So(errors.Is(err, service.ErrSyncDisabled), ShouldBeTrue)
	})

	Convey("Given a stopped service with a fetcher", t, func() {
		rows, entries := newStores(t)
		svc := service.New(rows, entries, service.WithFetcher(&stubFetcher{}))

		_, err := svc.RequestSync(context.Background(), "round-1", true)
		So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)

		_, err = svc.RequestSync(context.Background(), "", true)
		So(errors.Is(err, service.ErrBadRequest), ShouldBeTrue)
	})

	Convey("Given a started service with one worker and a one-slot queue", t, func() {
		ctx := context.Background()
		rows, entries := newStores(t)
		fetcher := &stubFetcher{
			entries: map[string][]model.PlatformEntry{"round-1": {platformEntry("alpha", "Alpha", "2/2")}},
			started: make(chan string, 4),
			gate:    make(chan struct{}),
		}
		ids := 0
		svc := service.New(rows, entries,
			service.WithFetcher(fetcher),
			service.WithWorkerCount(1),
			service.WithQueueSize(1),
			service.WithIDGenerator(func() string { ids++; return fmt.Sprintf("req-%d", ids) }),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		first, err := svc.RequestSync(ctx, "round-1", true)
		So(err, ShouldBeNil)
		So(first.Status, ShouldEqual, service.SyncAccepted)
		So(first.ID, ShouldEqual, "req-1")
		So(<-fetcher.started, ShouldEqual, "round-1")

		Convey("Then a second request for the running score set is a duplicate", func() {
			res, err := svc.RequestSync(ctx, "round-1", false)
			So(err, ShouldBeNil)
			So(res.Status, ShouldEqual, service.SyncDuplicate)
			close(fetcher.gate)
		})

		Convey("Then requests beyond the queue capacity are rejected", func() {
			queued, err := svc.RequestSync(ctx, "round-2", true)
			So(err, ShouldBeNil)
			So(queued.Status, ShouldEqual, service.SyncAccepted)

			_, err = svc.RequestSync(ctx, "round-3", true)
			So(errors.Is(err, service.ErrBackpressure), ShouldBeTrue)

			// the rejected score set was released and can be requested again
			stats := svc.GetStats(ctx)
			So(stats["pendingSyncs"], ShouldEqual, int64(2))
			close(fetcher.gate)
		})

		Convey("Then the completed sync lands in the leaderboard and releases the claim", func() {
			close(fetcher.gate)
			So(waitFor(func() bool {
				top, err := svc.Leaderboard(ctx, "round-1", 10)
				return err == nil && len(top) == 1
			}), ShouldBeTrue)
			So(waitFor(func() bool {
				res, err := svc.RequestSync(ctx, "round-1", true)
				return err == nil && res.Status == service.SyncAccepted
			}), ShouldBeTrue)
		})
	})
}

func TestService_Scheduler(t *testing.T) {
	Convey("Given a service scheduled to resync a score set", t, func() {
		ctx := context.Background()
		rows, entries := newStores(t)
		fetcher := &stubFetcher{entries: map[string][]model.PlatformEntry{
			"round-9": {platformEntry("alpha", "Alpha", "2/2")},
		}}
		svc := service.New(rows, entries,
			service.WithFetcher(fetcher),
			service.WithSchedule(20*time.Millisecond, []string{"round-9"}),
		)
		So(svc.Start(ctx), ShouldBeNil)

		Convey("Then the leaderboard fills without an explicit request", func() {
			So(waitFor(func() bool {
				n, err := entries.Count(ctx, "round-9")
				return err == nil && n == 1
			}), ShouldBeTrue)
			So(svc.Stop(ctx), ShouldBeNil)

			stats := svc.GetStats(ctx)
			So(stats["started"], ShouldBeFalse)
			So(stats["leaderboardEntries"], ShouldEqual, 1)
		})
	})
}
