package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/reviewrank/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new deduper", t, func() {
		d := dedupe.NewInMemoryDeduper()

		Convey("Then it starts empty", func() {
			So(d.Size(), ShouldEqual, 0)
		})

		Convey("When a key is claimed", func() {
			seen := d.SeenAndRecord(ctx, "round-1")

			Convey("Then the first claim succeeds", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("Then a second claim is refused", func() {
				So(d.SeenAndRecord(ctx, "round-1"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("Then other keys are independent", func() {
				So(d.SeenAndRecord(ctx, "round-2"), ShouldBeFalse)
				So(d.Size(), ShouldEqual, 2)
			})

			Convey("And released", func() {
				d.Unrecord(ctx, "round-1")

				Convey("Then it can be claimed again", func() {
					So(d.Size(), ShouldEqual, 0)
					So(d.SeenAndRecord(ctx, "round-1"), ShouldBeFalse)
				})
			})
		})

		Convey("When an unknown key is released", func() {
			d.Unrecord(ctx, "missing")

			Convey("Then nothing changes", func() {
				So(d.Size(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a deduper with a TTL", t, func() {
		clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
		d := dedupe.NewInMemoryDeduper(dedupe.WithTTL(time.Minute), dedupe.WithClock(clock.now))
		d.SeenAndRecord(ctx, "round-1")

		Convey("When the claim is still fresh", func() {
			clock.advance(30 * time.Second)

			Convey("Then it still holds", func() {
				So(d.SeenAndRecord(ctx, "round-1"), ShouldBeTrue)
			})
		})

		Convey("When the claim has gone stale", func() {
			clock.advance(2 * time.Minute)

			Convey("Then it can be claimed again", func() {
				So(d.SeenAndRecord(ctx, "round-1"), ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given a bounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3), dedupe.WithTTL(0))
		for i := 1; i <= 3; i++ {
			d.SeenAndRecord(ctx, fmt.Sprintf("k%d", i))
		}

		Convey("When a fourth key is claimed", func() {
			So(d.SeenAndRecord(ctx, "k4"), ShouldBeFalse)

			Convey("Then the oldest claim is dropped", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "k1"), ShouldBeFalse)
			})
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
		for i := 0; i < 5000; i++ {
			d.SeenAndRecord(ctx, fmt.Sprintf("k%d", i))
		}

		Convey("Then nothing is evicted", func() {
			So(d.Size(), ShouldEqual, 5000)
		})
	})

	Convey("Given concurrent claimants for one key", t, func() {
		d := dedupe.NewInMemoryDeduper()
		var (
			wg   sync.WaitGroup
			wins atomic.Int32
		)
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if !d.SeenAndRecord(ctx, "shared") {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()

		Convey("Then exactly one wins", func() {
			So(wins.Load(), ShouldEqual, 1)
		})
	})
}
