package aggregate_test

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/okian/reviewrank/internal/domain/aggregate"
	"github.com/okian/reviewrank/internal/domain/model"
	"github.com/okian/reviewrank/internal/domain/scheme"
	. "github.com/smartystreets/goconvey/convey"
)

func row(app, reviewer, criterion string, score, maxScore, weighted, weightedMax float64) model.RawScoringRow {
	return model.RawScoringRow{
		ApplicationID:    app,
		ApplicationTitle: "Title " + app,
		Category:         "General",
		ReviewerEmail:    reviewer,
		ScoringCriterion: criterion,
		Score:            score,
		MaxScore:         maxScore,
		WeightedScore:    weighted,
		WeightedMaxScore: weightedMax,
		ScoreSetName:     "Jury Evaluation",
	}
}

// corpus builds a mixed input of eligibility and weighted applications.
func corpus() []model.RawScoringRow {
	var rows []model.RawScoringRow
	for a := 0; a < 12; a++ {
		app := fmt.Sprintf("app-%02d", a)
		for r := 0; r < 4; r++ {
			reviewer := fmt.Sprintf("r%d@x.com", r)
			for c := 0; c < 3; c++ {
				x := float64((a + r + c) % 6)
				rw := row(app, reviewer, fmt.Sprintf("C%d", c), x, 5, x*2, 10)
				if a%3 == 0 {
					rw.ScoreSetName = scheme.EligibilityScoreSet
					rw.MaxScore = 6
				}
				rows = append(rows, rw)
			}
		}
	}
	return rows
}

func TestCompute(t *testing.T) {
	Convey("Given a single eligibility row", t, func() {
		rows := []model.RawScoringRow{{
			ApplicationID:    "A1",
			ScoreSetName:     "Eligibility Shortlisting",
			Score:            3,
			MaxScore:         6,
			ReviewerEmail:    "r1@x.com",
			ScoringCriterion: "C1",
		}}

		Convey("When aggregated", func() {
			out := aggregate.Compute(rows)
			app := out.Apps["A1"]

			Convey("Then the reviewer and average land on the 6 point scale", func() {
				So(app, ShouldNotBeNil)
				So(app.FinalReviewerScores["r1@x.com"], ShouldEqual, 3.0)
				So(app.FinalAverage, ShouldNotBeNil)
				So(*app.FinalAverage, ShouldEqual, 3.0)
				So(app.CriteriaAverages["C1"], ShouldEqual, 3.0)
			})

			Convey("Then the reviewer view is merged from the application", func() {
				r := out.Reviewers["r1@x.com"]
				So(r, ShouldNotBeNil)
				So(r.AppScores, ShouldResemble, map[string]float64{"A1": 3.0})
				So(r.CountApps, ShouldEqual, 1)
				So(*r.AvgReviewerScore, ShouldEqual, 3.0)
			})
		})
	})

	Convey("Given two weighted reviewers on one application", t, func() {
		rows := []model.RawScoringRow{
			row("A2", "r1", "C1", 0, 0, 4, 5),
			row("A2", "r2", "C1", 0, 0, 3, 5),
		}

		Convey("When aggregated", func() {
			app := aggregate.Compute(rows).Apps["A2"]

			Convey("Then reviewer scores use weighted sums on the 5 point scale", func() {
				So(app.FinalReviewerScores["r1"], ShouldEqual, 4.0)
				So(app.FinalReviewerScores["r2"], ShouldEqual, 3.0)
				So(*app.FinalAverage, ShouldEqual, 3.5)
			})

			Convey("Then the criterion combines both reviewers", func() {
				So(app.CriteriaAverages["C1"], ShouldEqual, 3.5)
				So(app.Criteria["C1"].Count, ShouldEqual, 2)
			})
		})
	})

	Convey("Given a weighted application without weighted maxima", t, func() {
		rows := []model.RawScoringRow{row("A3", "r1", "C1", 2, 4, 0, 0)}

		Convey("Then plain sums are used as a fallback", func() {
			So(aggregate.Compute(rows).Apps["A3"].FinalReviewerScores["r1"], ShouldEqual, 2.5)
		})
	})

	Convey("Given an eligibility application with weighted data", t, func() {
		r := row("A4", "r1", "C1", 6, 6, 1, 10)
		r.ScoreSetName = scheme.EligibilityScoreSet

		Convey("Then weighted sums are ignored", func() {
			So(aggregate.Compute([]model.RawScoringRow{r}).Apps["A4"].FinalReviewerScores["r1"], ShouldEqual, 6.0)
		})
	})

	Convey("Given rows whose maxima are all zero", t, func() {
		rows := []model.RawScoringRow{row("A5", "r1", "C1", 3, 0, 3, 0)}

		Convey("Then the normalized value is zero", func() {
			app := aggregate.Compute(rows).Apps["A5"]
			So(app.FinalReviewerScores["r1"], ShouldEqual, 0.0)
			So(*app.FinalAverage, ShouldEqual, 0.0)
			So(app.CriteriaAverages["C1"], ShouldEqual, 0.0)
		})
	})

	Convey("Given malformed weighting that overshoots the scale", t, func() {
		rows := []model.RawScoringRow{
			row("A6", "r1", "C1", 0, 0, 50, 5),
			row("A6", "r2", "C1", 0, 0, -5, 5),
		}

		Convey("Then values are clamped into the display range", func() {
			app := aggregate.Compute(rows).Apps["A6"]
			So(app.FinalReviewerScores["r1"], ShouldEqual, 5.0)
			So(app.FinalReviewerScores["r2"], ShouldEqual, 0.0)
			So(*app.FinalAverage, ShouldEqual, 2.5)
		})
	})

	Convey("Given an application with no reviewer rows", t, func() {
		rows := []model.RawScoringRow{row("A7", "", "C1", 3, 5, 3, 5)}

		Convey("Then its final average is absent", func() {
			out := aggregate.Compute(rows)
			app := out.Apps["A7"]
			So(app.FinalAverage, ShouldBeNil)
			So(app.FinalReviewerScores, ShouldBeEmpty)
			So(app.CriteriaAverages["C1"], ShouldEqual, 3.0)
			So(out.Reviewers, ShouldBeEmpty)
			So(out.Summary.AvgFinalScore, ShouldBeNil)
		})
	})

	Convey("Given an application whose first row picks the scheme", t, func() {
		first := row("A8", "r1", "C1", 3, 6, 1, 5)
		first.ScoreSetName = scheme.EligibilityScoreSet
		second := row("A8", "r1", "C2", 3, 6, 1, 5)

		Convey("Then every tally in it uses that scheme", func() {
			app := aggregate.Compute([]model.RawScoringRow{first, second}).Apps["A8"]
			So(app.ScoreSetName, ShouldEqual, scheme.EligibilityScoreSet)
			So(app.FinalReviewerScores["r1"], ShouldEqual, 3.0)
			So(app.CriteriaAverages["C2"], ShouldEqual, 3.0)
		})
	})

	Convey("Given rows without an application id", t, func() {
		rows := []model.RawScoringRow{row("", "r1", "C1", 1, 5, 1, 5), row("A9", "r1", "C1", 5, 5, 5, 5)}

		Convey("Then they do not create applications but still count as records", func() {
			out := aggregate.Compute(rows)
			So(out.Apps, ShouldHaveLength, 1)
			So(out.Summary.TotalRecords, ShouldEqual, 2)
		})
	})

	Convey("Given a row without a criterion", t, func() {
		rows := []model.RawScoringRow{row("A10", "r1", "", 4, 5, 4, 5)}

		Convey("Then it counts toward the reviewer only", func() {
			app := aggregate.Compute(rows).Apps["A10"]
			So(app.CriteriaAverages, ShouldBeEmpty)
			So(app.FinalReviewerScores["r1"], ShouldEqual, 4.0)
			So(*app.FinalAverage, ShouldEqual, 4.0)
		})
	})

	Convey("Given empty input", t, func() {
		out := aggregate.Compute(nil)

		Convey("Then everything is empty", func() {
			So(out.Apps, ShouldBeEmpty)
			So(out.Reviewers, ShouldBeEmpty)
			So(out.Summary, ShouldResemble, model.Summary{})
		})
	})
}

func TestInvariants(t *testing.T) {
	Convey("Given a mixed corpus", t, func() {
		rows := corpus()
		out := aggregate.Compute(rows)

		Convey("Then every finalized value lies within its display range", func() {
			for _, app := range out.Apps {
				top := scheme.Resolve(app.ScoreSetName).DisplayMax
				So(app.FinalAverage, ShouldNotBeNil)
				So(*app.FinalAverage, ShouldBeBetweenOrEqual, 0.0, top)
				for _, v := range app.FinalReviewerScores {
					So(v, ShouldBeBetweenOrEqual, 0.0, top)
				}
				for _, v := range app.CriteriaAverages {
					So(v, ShouldBeBetweenOrEqual, 0.0, top)
				}
			}
		})

		Convey("Then shuffling the rows changes nothing", func() {
			shuffled := append([]model.RawScoringRow(nil), rows...)
			rand.New(rand.NewSource(7)).Shuffle(len(shuffled), func(i, j int) {
				shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
			})
			again := aggregate.Compute(shuffled)

			So(again.Summary, ShouldResemble, out.Summary)
			for id, app := range out.Apps {
				other := again.Apps[id]
				So(other.FinalReviewerScores, ShouldResemble, app.FinalReviewerScores)
				So(other.CriteriaAverages, ShouldResemble, app.CriteriaAverages)
				So(*other.FinalAverage, ShouldEqual, *app.FinalAverage)
			}
			for email, r := range out.Reviewers {
				So(again.Reviewers[email].AppScores, ShouldResemble, r.AppScores)
			}
		})

		Convey("Then the result does not alias the input", func() {
			before := out.Apps["app-01"].FinalReviewerScores["r0@x.com"]
			rows[0].Score = 1000
			So(out.Apps["app-01"].FinalReviewerScores["r0@x.com"], ShouldEqual, before)
		})
	})
}

func TestComputeConcurrent(t *testing.T) {
	Convey("Given a corpus large enough to partition", t, func() {
		var rows []model.RawScoringRow
		for i := 0; i < 20; i++ {
			rows = append(rows, corpus()...)
		}

		Convey("When folded across partitions", func() {
			got, err := aggregate.ComputeConcurrent(context.Background(), rows, 4)
			want := aggregate.Compute(rows)

			Convey("Then it matches the sequential result", func() {
				So(err, ShouldBeNil)
				So(got.Summary, ShouldResemble, want.Summary)
				So(got.Apps, ShouldHaveLength, len(want.Apps))
				for id, app := range want.Apps {
					So(got.Apps[id].FinalReviewerScores, ShouldResemble, app.FinalReviewerScores)
					So(got.Apps[id].CriteriaAverages, ShouldResemble, app.CriteriaAverages)
				}
			})
		})

		Convey("When the context is already cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := aggregate.ComputeConcurrent(ctx, rows, 4)

			Convey("Then the cancellation is reported", func() {
				So(err, ShouldEqual, context.Canceled)
			})
		})
	})

	Convey("Given a small input", t, func() {
		rows := corpus()[:10]
		got, err := aggregate.ComputeConcurrent(context.Background(), rows, 8)
		So(err, ShouldBeNil)
		So(got.Summary, ShouldResemble, aggregate.Compute(rows).Summary)
	})
}
