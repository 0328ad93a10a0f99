package ringbuf_test

import (
	"errors"
	"testing"

	"github.com/okian/evoked/internal/domain/model"
	"github.com/okian/evoked/internal/domain/ringbuf"
	. "github.com/smartystreets/goconvey/convey"
)

func fill(b *ringbuf.Buffer, from, to, rate float64) {
	n := int((to-from)*rate) + 1
	for i := 0; i < n; i++ {
		t := from + float64(i)/rate
		_ = b.Ingest(model.Sample{Timestamp: t, Values: []float64{t}})
	}
}

func TestBuffer_IngestAndSlice(t *testing.T) {
	Convey("Given a buffer filled at 250 Hz", t, func() {
		b := ringbuf.New(ringbuf.WithChannels(1), ringbuf.WithRetention(5))
		fill(b, 0, 3, 250)

		Convey("When slicing a fully covered range", func() {
			got, err := b.Slice(0.8, 1.6)

			Convey("Then it returns the contiguous ordered subsequence", func() {
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 201)
				So(got[0].Timestamp, ShouldBeGreaterThanOrEqualTo, 0.8)
				So(got[len(got)-1].Timestamp, ShouldBeLessThanOrEqualTo, 1.6)
				for i := 1; i < len(got); i++ {
					So(got[i].Timestamp, ShouldBeGreaterThanOrEqualTo, got[i-1].Timestamp)
				}
			})
		})

		Convey("When slicing past the newest sample", func() {
			_, err := b.Slice(2.5, 3.5)

			Convey("Then it reports the covered range instead of a short result", func() {
				var ru *ringbuf.RangeUnavailableError
				So(errors.As(err, &ru), ShouldBeTrue)
				So(ru.CoveredTo, ShouldAlmostEqual, 3.0, 0.01)
				So(ru.Samples, ShouldBeGreaterThan, 0)
				So(ru.HistoryLost(), ShouldBeFalse)
			})
		})

		Convey("When slicing before the oldest sample", func() {
			b2 := ringbuf.New(ringbuf.WithRetention(1))
			fill(b2, 10, 12, 250)
			_, err := b2.Slice(10.0, 10.5)

			Convey("Then the range is reported as permanently lost", func() {
				var ru *ringbuf.RangeUnavailableError
				So(errors.As(err, &ru), ShouldBeTrue)
				So(ru.HistoryLost(), ShouldBeTrue)
			})
		})

		Convey("When slicing an empty buffer", func() {
			empty := ringbuf.New()
			_, err := empty.Slice(0, 1)

			Convey("Then the unavailable range carries no covered data", func() {
				var ru *ringbuf.RangeUnavailableError
				So(errors.As(err, &ru), ShouldBeTrue)
				So(ru.Samples, ShouldEqual, 0)
				So(ru.HistoryLost(), ShouldBeFalse)
			})
		})
	})
}

func TestBuffer_Eviction(t *testing.T) {
	Convey("Given a buffer with a 2 second retention window", t, func() {
		b := ringbuf.New(ringbuf.WithRetention(2))
		fill(b, 0, 10, 100)

		Convey("Then only the trailing window is retained", func() {
			oldest, newest, count, ok := b.Bounds()
			So(ok, ShouldBeTrue)
			So(newest, ShouldAlmostEqual, 10.0, 0.01)
			So(oldest, ShouldBeGreaterThanOrEqualTo, newest-2.0-0.01)
			So(count, ShouldBeLessThanOrEqualTo, 202)
		})
	})
}

func TestBuffer_OutOfOrder(t *testing.T) {
	Convey("Given a buffer with 50ms tolerance", t, func() {
		b := ringbuf.New(ringbuf.WithTolerance(0.05), ringbuf.WithRetention(5))
		fill(b, 0, 1, 100)

		Convey("When a slightly late sample arrives", func() {
			err := b.Ingest(model.Sample{Timestamp: 0.995, Values: []float64{42}})

			Convey("Then it is inserted keeping timestamps non-decreasing", func() {
				So(err, ShouldBeNil)
				got, serr := b.Slice(0.99, 1.0)
				So(serr, ShouldBeNil)
				for i := 1; i < len(got); i++ {
					So(got[i].Timestamp, ShouldBeGreaterThanOrEqualTo, got[i-1].Timestamp)
				}
			})
		})

		Convey("When a sample older than the oldest retained arrives", func() {
			err := b.Ingest(model.Sample{Timestamp: -1.0, Values: []float64{0}})

			Convey("Then it is dropped with a stale-sample error", func() {
				So(errors.Is(err, ringbuf.ErrStaleSample), ShouldBeTrue)
				So(b.Len(), ShouldEqual, 101)
			})
		})

		Convey("When a sample has the wrong channel count", func() {
			err := b.Ingest(model.Sample{Timestamp: 2.0, Values: []float64{1, 2}})

			Convey("Then ingestion fails explicitly", func() {
				So(errors.Is(err, ringbuf.ErrChannelMismatch), ShouldBeTrue)
			})
		})
	})
}

func TestBuffer_Notify(t *testing.T) {
	Convey("Given a fresh buffer", t, func() {
		b := ringbuf.New()

		Convey("When samples are ingested", func() {
			for i := 0; i < 5; i++ {
				_ = b.Ingest(model.Sample{Timestamp: float64(i), Values: []float64{0}})
			}

			Convey("Then a coalesced readiness signal is pending", func() {
				select {
				case <-b.Notify():
				default:
					t.Fatal("expected a pending notify signal")
				}
				// Signal is coalesced: at most one pending.
				select {
				case <-b.Notify():
					t.Fatal("expected notify channel to be drained")
				default:
				}
			})
		})
	})
}
