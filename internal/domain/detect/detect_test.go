package detect_test

import (
	"testing"

	detect "github.com/resqlab/pulsecoach/internal/domain/detect"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDetectorObserve(t *testing.T) {
	Convey("Given a detector with default configuration", t, func() {
		d := detect.NewDetector()

		Convey("When a frame stays below the depth threshold", func() {
			_, ok := d.Observe(0.4, 1.0)

			Convey("Then no press registers", func() {
				So(ok, ShouldBeFalse)
				So(d.Len(), ShouldEqual, 0)
			})
		})

		Convey("When the first above-threshold frame arrives", func() {
			_, ok := d.Observe(0.8, 1.0)

			Convey("Then it arms the debounce but emits no event", func() {
				So(ok, ShouldBeFalse)
				So(d.Len(), ShouldEqual, 0)
			})
		})

		Convey("When two presses arrive with a plausible gap", func() {
			d.Observe(0.8, 1.0)
			ev, ok := d.Observe(0.8, 1.6)

			Convey("Then the second press becomes an event", func() {
				So(ok, ShouldBeTrue)
				So(ev.Timestamp, ShouldEqual, 1.6)
				So(d.Len(), ShouldEqual, 1)
			})
		})

		Convey("When the gap is too short", func() {
			d.Observe(0.8, 1.0)
			_, ok := d.Observe(0.8, 1.2)

			Convey("Then the press is treated as a double count", func() {
				So(ok, ShouldBeFalse)
				So(d.Len(), ShouldEqual, 0)
			})
		})

		Convey("When the gap is too long", func() {
			d.Observe(0.8, 1.0)
			_, ok := d.Observe(0.8, 2.2)

			Convey("Then the press is treated as a stale restart", func() {
				So(ok, ShouldBeFalse)
				So(d.Len(), ShouldEqual, 0)
			})

			Convey("And the next plausible press resumes detection", func() {
				_, ok := d.Observe(0.8, 2.8)
				So(ok, ShouldBeTrue)
				So(d.Len(), ShouldEqual, 1)
			})
		})

		Convey("When the gap sits exactly on a bound", func() {
			d.Observe(0.8, 1.0)
			_, minEdge := d.Observe(0.8, 1.3)

			Convey("Then the minimum bound is exclusive", func() {
				So(minEdge, ShouldBeFalse)
			})

			Convey("And the maximum bound is exclusive too", func() {
				d.Reset()
				d.Observe(0.8, 1.0)
				_, maxEdge := d.Observe(0.8, 2.0)
				So(maxEdge, ShouldBeFalse)
			})
		})

		Convey("When depth equals the threshold exactly", func() {
			_, ok := d.Observe(0.5, 1.0)

			Convey("Then the frame does not count as a press", func() {
				So(ok, ShouldBeFalse)
			})
		})
	})
}

func TestDetectorWindow(t *testing.T) {
	Convey("Given a detector accumulating events", t, func() {
		d := detect.NewDetector()

		Convey("When more events arrive than the window holds", func() {
			// 15 accepted events at 0.5s spacing; capacity is 10.
			ts := 0.0
			for i := 0; i < 16; i++ {
				d.Observe(0.8, ts)
				ts += 0.5
			}

			Convey("Then only the most recent events remain", func() {
				So(d.Len(), ShouldEqual, 10)
				window := d.Window()
				So(len(window), ShouldEqual, 10)
				// First press arms only; accepted events start at 0.5.
				// 15 accepted, so the oldest 5 were evicted.
				So(window[0], ShouldAlmostEqual, 3.0)
				So(window[len(window)-1], ShouldAlmostEqual, 7.5)
			})

			Convey("And the window stays chronological", func() {
				window := d.Window()
				for i := 1; i < len(window); i++ {
					So(window[i], ShouldBeGreaterThan, window[i-1])
				}
			})
		})

		Convey("When the window copy is mutated", func() {
			d.Observe(0.8, 1.0)
			d.Observe(0.8, 1.5)
			window := d.Window()
			window[0] = 999

			Convey("Then the detector's state is unaffected", func() {
				So(d.Window()[0], ShouldAlmostEqual, 1.5)
			})
		})
	})
}

func TestDetectorReset(t *testing.T) {
	Convey("Given a detector with accumulated state", t, func() {
		d := detect.NewDetector()
		d.Observe(0.8, 1.0)
		d.Observe(0.8, 1.5)
		So(d.Len(), ShouldEqual, 1)

		Convey("When the detector is reset", func() {
			d.Reset()

			Convey("Then the window and debounce state are cleared", func() {
				So(d.Len(), ShouldEqual, 0)
				So(d.Window(), ShouldBeEmpty)

				// The next press arms again instead of pairing with
				// the pre-reset press.
				_, ok := d.Observe(0.8, 2.0)
				So(ok, ShouldBeFalse)
			})

			Convey("And replaying the same input yields the same output", func() {
				_, first := d.Observe(0.8, 1.0)
				ev, second := d.Observe(0.8, 1.5)
				So(first, ShouldBeFalse)
				So(second, ShouldBeTrue)
				So(ev.Timestamp, ShouldEqual, 1.5)
				So(d.Len(), ShouldEqual, 1)
			})
		})
	})
}

func TestDetectorOptions(t *testing.T) {
	Convey("Given detector configuration options", t, func() {
		Convey("When the depth threshold is customized", func() {
			d := detect.NewDetector(detect.WithDepthThreshold(0.3))

			Convey("Then shallower presses register", func() {
				d.Observe(0.35, 1.0)
				_, ok := d.Observe(0.35, 1.5)
				So(ok, ShouldBeTrue)
			})
		})

		Convey("When the interval bounds are customized", func() {
			d := detect.NewDetector(detect.WithIntervalBounds(0.1, 2.0))

			Convey("Then faster gaps become acceptable", func() {
				d.Observe(0.8, 1.0)
				_, ok := d.Observe(0.8, 1.2)
				So(ok, ShouldBeTrue)
			})
		})

		Convey("When the window capacity is customized", func() {
			d := detect.NewDetector(detect.WithWindowCapacity(3))

			ts := 0.0
			for i := 0; i < 6; i++ {
				d.Observe(0.8, ts)
				ts += 0.5
			}

			Convey("Then the window honors the smaller bound", func() {
				So(d.Len(), ShouldEqual, 3)
			})
		})

		Convey("When options receive invalid values", func() {
			d := detect.NewDetector(
				detect.WithDepthThreshold(1.5),
				detect.WithIntervalBounds(-1, 0.5),
				detect.WithWindowCapacity(0),
			)

			Convey("Then the defaults stay in effect", func() {
				// Default threshold 0.5: a 0.6 press registers.
				d.Observe(0.6, 1.0)
				_, ok := d.Observe(0.6, 1.5)
				So(ok, ShouldBeTrue)
			})
		})
	})
}
