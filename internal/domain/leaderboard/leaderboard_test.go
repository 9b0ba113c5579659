package leaderboard_test

import (
	"encoding/json"
	"testing"

	"github.com/okian/reviewrank/internal/domain/leaderboard"
	"github.com/okian/reviewrank/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func decode(s string) model.PlatformEntry {
	var e model.PlatformEntry
	if err := json.Unmarshal([]byte(s), &e); err != nil {
		panic(err)
	}
	return e
}

func TestCalculateTotalScore(t *testing.T) {
	Convey("Given criteria with final score fractions", t, func() {
		e := decode(`{"scores":{"criteria":[{"final_score":"1.5/2"},{"final_score":"2/2"}]}}`)

		Convey("Then numerators are summed", func() {
			So(leaderboard.CalculateTotalScore(e), ShouldEqual, 3.5)
		})
	})

	Convey("Given no criteria and an auto score", t, func() {
		e := decode(`{"auto_score":4.2}`)

		Convey("Then the auto score is used", func() {
			So(leaderboard.CalculateTotalScore(e), ShouldEqual, 4.2)
		})
	})

	Convey("Given an empty criteria list", t, func() {
		e := decode(`{"auto_score":"3.333","scores":{"criteria":[]}}`)

		Convey("Then the auto score is used and rounded", func() {
			So(leaderboard.CalculateTotalScore(e), ShouldEqual, 3.33)
		})
	})

	Convey("Given criteria mixing final scores and raw values", t, func() {
		e := decode(`{"auto_score":9,"scores":{"criteria":[
			{"final_score":"1.67/2"},
			{"value":"0.5"},
			{"name":"unscored"}
		]}}`)

		Convey("Then values fill in for missing final scores and the auto score is ignored", func() {
			So(leaderboard.CalculateTotalScore(e), ShouldEqual, 2.17)
		})
	})

	Convey("Given criteria with different denominators", t, func() {
		e := decode(`{"scores":{"criteria":[{"final_score":"2/2"},{"final_score":"3/3"}]}}`)

		Convey("Then numerators are still summed as they are", func() {
			So(leaderboard.CalculateTotalScore(e), ShouldEqual, 5.0)
		})
	})

	Convey("Given nothing at all", t, func() {
		So(leaderboard.CalculateTotalScore(model.PlatformEntry{}), ShouldEqual, 0.0)
	})
}

func TestBreakdown(t *testing.T) {
	Convey("Given mixed criteria", t, func() {
		e := decode(`{"scores":{"criteria":[
			{"name":"Impact","final_score":"1.67/2","max_score":3},
			{"name":"Budget","value":1.234}
		]}}`)

		Convey("Then each criterion is rendered for display", func() {
			items := leaderboard.Breakdown(e)
			So(items, ShouldHaveLength, 2)
			So(items[0], ShouldResemble, model.BreakdownItem{Name: "Impact", Score: "1.67/2", RawValue: 0, MaxScore: 3})
			So(items[1], ShouldResemble, model.BreakdownItem{Name: "Budget", Score: "1.23", RawValue: 1.23, MaxScore: 2})
		})
	})

	Convey("Given criteria with both a final score and a value over mixed denominators", t, func() {
		e := decode(`{"scores":{"criteria":[
			{"name":"Impact","final_score":"1.5/2","value":0.75},
			{"name":"Reach","final_score":"2/3","value":0.6667}
		]}}`)

		Convey("Then the total sums numerators", func() {
			So(leaderboard.CalculateTotalScore(e), ShouldEqual, 3.5)
		})

		Convey("Then raw values come from each criterion's value and diverge from the total", func() {
			items := leaderboard.Breakdown(e)
			So(items, ShouldHaveLength, 2)
			So(items[0].Score, ShouldEqual, "1.5/2")
			So(items[0].RawValue, ShouldEqual, 0.75)
			So(items[1].Score, ShouldEqual, "2/3")
			So(items[1].RawValue, ShouldEqual, 0.67)
			So(items[0].RawValue+items[1].RawValue, ShouldNotEqual, leaderboard.CalculateTotalScore(e))
		})
	})

	Convey("Given blank final scores", t, func() {
		for _, blank := range []string{`""`, `"   "`} {
			e := decode(`{"scores":{"criteria":[{"name":"Fit","final_score":` + blank + `,"value":1.5}]}}`)

			Convey("Then the value is used for total and display when final_score is "+blank, func() {
				So(leaderboard.CalculateTotalScore(e), ShouldEqual, 1.5)
				items := leaderboard.Breakdown(e)
				So(items, ShouldHaveLength, 1)
				So(items[0].Score, ShouldEqual, "1.50")
				So(items[0].RawValue, ShouldEqual, 1.5)
			})
		}
	})

	Convey("Given no criteria", t, func() {
		So(leaderboard.Breakdown(model.PlatformEntry{}), ShouldBeEmpty)
	})
}

func TestParseTags(t *testing.T) {
	Convey("ParseTags trims, drops blanks and keeps first occurrences", t, func() {
		So(leaderboard.ParseTags(" green, urban ,,green, youth "), ShouldResemble, []string{"green", "urban", "youth"})
		So(leaderboard.ParseTags(""), ShouldBeEmpty)
	})
}

func TestBuildEntryAndRank(t *testing.T) {
	Convey("Given platform entries", t, func() {
		entries := []model.PlatformEntry{
			decode(`{"slug":"b","score_set_slug":"s","title":"B","tags":"x","auto_score":3}`),
			decode(`{"slug":"a","score_set_slug":"s","title":"A","auto_score":3}`),
			decode(`{"slug":"c","score_set_slug":"s","title":"C","municipality":"Oslo","scores":{"criteria":[{"final_score":"2/2"},{"final_score":"2/2"}]}}`),
			decode(`{"slug":"d","score_set_slug":"s","title":"D","auto_score":1}`),
		}

		Convey("When built", func() {
			built := leaderboard.BuildEntries(entries)

			Convey("Then fields carry over", func() {
				So(built[2].Municipality, ShouldEqual, "Oslo")
				So(built[2].TotalScore, ShouldEqual, 4.0)
				So(built[0].Tags, ShouldResemble, []string{"x"})
			})

			Convey("When ranked", func() {
				ranked := leaderboard.Rank(built)

				Convey("Then totals order the board, slugs break ties and ties share a rank", func() {
					So(ranked, ShouldHaveLength, 4)
					So(ranked[0].Slug, ShouldEqual, "c")
					So(ranked[0].Rank, ShouldEqual, 1)
					So(ranked[1].Slug, ShouldEqual, "a")
					So(ranked[1].Rank, ShouldEqual, 2)
					So(ranked[2].Slug, ShouldEqual, "b")
					So(ranked[2].Rank, ShouldEqual, 2)
					So(ranked[3].Slug, ShouldEqual, "d")
					So(ranked[3].Rank, ShouldEqual, 3)
				})
			})
		})
	})

	Convey("Ranking nothing yields nothing", t, func() {
		So(leaderboard.Rank(nil), ShouldBeEmpty)
	})
}
