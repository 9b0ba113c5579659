package scheme_test

import (
	"math"
	"testing"

	"github.com/okian/reviewrank/internal/domain/model"
	"github.com/okian/reviewrank/internal/domain/scheme"
	. "github.com/smartystreets/goconvey/convey"
)

func TestResolve(t *testing.T) {
	Convey("Given score-set names", t, func() {
		Convey("When the name is exactly the eligibility score set", func() {
			s := scheme.Resolve("Eligibility Shortlisting")

			Convey("Then the eligibility scale applies", func() {
				So(s.Kind, ShouldEqual, scheme.Eligibility)
				So(s.DisplayMax, ShouldEqual, 6.0)
				So(s.Kind.String(), ShouldEqual, "eligibility")
			})
		})

		Convey("When the name differs in case or spacing", func() {
			for _, name := range []string{"eligibility shortlisting", "Eligibility Shortlisting ", "Jury Evaluation", ""} {
				s := scheme.Resolve(name)
				So(s.Kind, ShouldEqual, scheme.Weighted)
				So(s.DisplayMax, ShouldEqual, 5.0)
			}
		})
	})
}

func TestNormalize(t *testing.T) {
	Convey("Given a weighted scheme", t, func() {
		s := scheme.Resolve("Jury Evaluation")

		Convey("When weighted sums are present", func() {
			got := s.Normalize(model.Tally{Score: 1, MaxScore: 10, Weighted: 4, WeightedMax: 5})

			Convey("Then the weighted ratio is used", func() {
				So(got, ShouldEqual, 4.0)
			})
		})

		Convey("When the weighted max sum is zero", func() {
			got := s.Normalize(model.Tally{Score: 3, MaxScore: 6})

			Convey("Then plain sums are used", func() {
				So(got, ShouldEqual, 2.5)
			})
		})

		Convey("When every max sum is zero", func() {
			_, ok := s.Ratio(model.Tally{Score: 3, Weighted: 2})
			got := s.Normalize(model.Tally{Score: 3, Weighted: 2})

			Convey("Then the ratio is undefined and the score is 0", func() {
				So(ok, ShouldBeFalse)
				So(got, ShouldEqual, 0.0)
			})
		})

		Convey("When malformed weighting overshoots the scale", func() {
			So(s.Normalize(model.Tally{Weighted: 12, WeightedMax: 5}), ShouldEqual, 5.0)
			So(s.Normalize(model.Tally{Weighted: -3, WeightedMax: 5}), ShouldEqual, 0.0)
		})
	})

	Convey("Given the eligibility scheme", t, func() {
		s := scheme.Resolve(scheme.EligibilityScoreSet)

		Convey("Then weighted sums are ignored", func() {
			So(s.Normalize(model.Tally{Score: 3, MaxScore: 6, Weighted: 5, WeightedMax: 5}), ShouldEqual, 3.0)
		})

		Convey("And raw scores read the plain field", func() {
			row := model.RawScoringRow{Score: 2, WeightedScore: 7}
			So(s.RawScore(row), ShouldEqual, 2.0)
			So(scheme.Resolve("other").RawScore(row), ShouldEqual, 7.0)
		})
	})
}

func TestRound2(t *testing.T) {
	Convey("Given values to round", t, func() {
		So(scheme.Round2(3.333), ShouldEqual, 3.33)
		So(scheme.Round2(2.675000001), ShouldEqual, 2.68)
		So(scheme.Round2(0.125), ShouldEqual, 0.13)
		So(scheme.Round2(-0.125), ShouldEqual, -0.13)
		So(scheme.Round2(math.NaN()), ShouldEqual, 0.0)
		So(scheme.Round2(math.Inf(1)), ShouldEqual, 0.0)
		So(scheme.Round2(1e307), ShouldEqual, 1e307)
		So(scheme.Round2(-math.MaxFloat64), ShouldEqual, -math.MaxFloat64)
		So(math.IsInf(scheme.Round2(1e307), 0), ShouldBeFalse)
	})

	Convey("Given values to clamp", t, func() {
		So(scheme.Clamp(7, 0, 6), ShouldEqual, 6.0)
		So(scheme.Clamp(-1, 0, 6), ShouldEqual, 0.0)
		So(scheme.Clamp(math.NaN(), 0, 6), ShouldEqual, 0.0)
		So(scheme.Clamp(2.5, 0, 6), ShouldEqual, 2.5)
	})
}
