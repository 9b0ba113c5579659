package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNewManager(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When a manager is created with options", func() {
			m := NewManager(
				WithPrometheusRegistry(registry),
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10}),
				WithConstLabels(map[string]string{"env": "test"}),
			)
			m.rowsIngested.Add(3)
			m.aggregations.WithLabelValues("sequential").Inc()

			Convey("Then its metrics are registered under the namespace", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				joined := strings.Join(names, ",")
				So(joined, ShouldContainSubstring, "test_unit_rows_ingested_total")
				So(joined, ShouldContainSubstring, "test_unit_aggregations_total")
				So(testutil.ToFloat64(m.rowsIngested), ShouldEqual, 3.0)
			})
		})

		Convey("When two managers share a registry", func() {
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then the second registration panics", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestRecorders(t *testing.T) {
	Convey("Package-level recorders update the global manager", t, func() {
		before := testutil.ToFloat64(globalManager.rowsIngested)
		RecordRowsIngested(5)
		So(testutil.ToFloat64(globalManager.rowsIngested), ShouldEqual, before+5)

		RecordAggregation("concurrent", 12, 4, 2)
		So(testutil.ToFloat64(globalManager.aggregatedApps), ShouldEqual, 4.0)
		So(testutil.ToFloat64(globalManager.aggregatedReviewers), ShouldEqual, 2.0)

		RecordSyncRequest("duplicate")
		So(testutil.ToFloat64(globalManager.syncRequests.WithLabelValues("duplicate")), ShouldBeGreaterThanOrEqualTo, 1.0)

		UpdateLeaderboardEntries(7)
		So(testutil.ToFloat64(globalManager.leaderboardEntries), ShouldEqual, 7.0)

		So(func() {
			UpdateDuplicatesFlagged(1)
			RecordSyncRun("success", 20)
			RecordPlatformPage()
			RecordPlatformRetry()
			RecordLeaderboardWrites("upsert", 3)
			RecordRepositoryLatency("top_n", 1.5)
			UpdateQueueSize(1)
			UpdateQueueCapacity(10)
			RecordQueueRejection("full")
			UpdateWorkerCount(2)
			RecordWorkerProcessingLatency(3)
			RecordHTTPRequest("/summary", "GET", "200")
			RecordHTTPRequestDuration("/summary", "GET", "200", 2)
			RecordErrorByComponent("api", "bad_request")
			UpdateSystemMemoryUsage(1 << 20)
			UpdateSystemGoroutineCount(12)
			RecordSystemGCPauseTime(0.3)
		}, ShouldNotPanic)

		So(GetRegistry(), ShouldEqual, customRegistry)
	})
}
