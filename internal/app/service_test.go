package service_test

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/okian/evoked/internal/adapters/transport"
	service "github.com/okian/evoked/internal/app"
	"github.com/okian/evoked/internal/domain/model"
	"github.com/okian/evoked/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

// fakeClock lets tests pin the pipeline's wall clock to the sample stream.
type fakeClock struct {
	mu sync.Mutex
	t  float64
}

func (c *fakeClock) now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) set(t float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

const testRate = 250.0

// feedSamples streams one channel of signal(t) into the pipeline over
// [from, to), advancing the fake clock in lockstep so source and local
// clocks coincide.
func feedSamples(p *service.Pipeline, clk *fakeClock, from, to float64, signal func(float64) float64) {
	ctx := context.Background()
	n := int(math.Round((to - from) * testRate))
	for i := 0; i < n; i++ {
		t := from + float64(i)/testRate
		clk.set(t)
		p.IngestSample(ctx, "amp-1", model.Sample{
			Timestamp: t,
			Values:    []float64{signal(t)},
		})
	}
}

// responseAt injects a template-shaped deflection peaking 300ms after the
// flash, large enough to saturate the amplitude score.
func responseAt(flash float64) func(float64) float64 {
	sigma := 0.1 / 3.0
	return func(t float64) float64 {
		d := t - flash - 0.3
		return 10.0 * math.Exp(-0.5*(d/sigma)*(d/sigma))
	}
}

func flat(float64) float64 { return 0 }

func waitResult(ch <-chan model.DetectionResult, timeout time.Duration) (model.DetectionResult, bool) {
	select {
	case r, ok := <-ch:
		return r, ok
	case <-time.After(timeout):
		return model.DetectionResult{}, false
	}
}

func noResult(ch <-chan model.DetectionResult, wait time.Duration) bool {
	select {
	case <-ch:
		return false
	case <-time.After(wait):
		return true
	}
}

func newTestPipeline(clk *fakeClock, loop *transport.Loopback, extra ...service.Option) *service.Pipeline {
	opts := append([]service.Option{
		service.WithPublisher(loop),
		service.WithWallClock(clk.now),
		service.WithSampleRate(testRate),
		service.WithChannelNames([]string{"Cz"}),
		service.WithWorkerCount(2),
	}, extra...)
	return service.New(opts...)
}

func TestPipeline_DetectsEmbeddedResponse(t *testing.T) {
	Convey("Given a running pipeline and a flash with an embedded response", t, func() {
		clk := &fakeClock{}
		loop := transport.NewLoopback()
		p := newTestPipeline(clk, loop)
		ctx := context.Background()

		So(p.Start(ctx), ShouldBeNil)
		defer p.Stop()

		flash := 1.0
		signal := responseAt(flash)

		p.SubmitEvent(ctx, model.StimulusEvent{
			ID: "ev-target", SourceID: "amp-1", Kind: model.KindTargetSet,
			Identifier: "e4", Timestamp: 0.5,
		})

		feedSamples(p, clk, 0, 1.0, signal)
		p.SubmitEvent(ctx, model.StimulusEvent{
			ID: "ev-flash", SourceID: "amp-1", Kind: model.KindFlash,
			Identifier: "e4", Timestamp: flash,
		})
		feedSamples(p, clk, 1.0, 2.0, signal)

		Convey("Then a detection result should be published", func() {
			r, ok := waitResult(loop.Results(), 2*time.Second)
			So(ok, ShouldBeTrue)
			So(r.Identifier, ShouldEqual, "e4")
			So(r.IsTargetHypothesis, ShouldBeTrue)
			So(r.Detected, ShouldBeTrue)
			So(r.Confidence, ShouldBeGreaterThanOrEqualTo, 0.6)
			So(r.JitterExceeded, ShouldBeFalse)

			Convey("And the tally should rank the identifier", func() {
				entry, err := p.Rank(ctx, "e4")
				So(err, ShouldBeNil)
				So(entry.Rank, ShouldEqual, 1)
				So(entry.Trials, ShouldEqual, 1)
				So(entry.Detections, ShouldEqual, 1)
			})
		})
	})
}

func TestPipeline_ScoresBackToBackFlashes(t *testing.T) {
	Convey("Given two flashes 50ms apart", t, func() {
		clk := &fakeClock{}
		loop := transport.NewLoopback()
		p := newTestPipeline(clk, loop)
		ctx := context.Background()

		So(p.Start(ctx), ShouldBeNil)
		defer p.Stop()

		feedSamples(p, clk, 0, 1.0, flat)
		p.SubmitEvent(ctx, model.StimulusEvent{
			ID: "ev-f-e4", SourceID: "amp-1", Kind: model.KindFlash,
			Identifier: "e4", Timestamp: 1.0,
		})
		p.SubmitEvent(ctx, model.StimulusEvent{
			ID: "ev-f-d5", SourceID: "amp-1", Kind: model.KindFlash,
			Identifier: "d5", Timestamp: 1.05,
		})
		feedSamples(p, clk, 1.0, 2.0, flat)

		Convey("Then each flash produces its own result", func() {
			r1, ok := waitResult(loop.Results(), 2*time.Second)
			So(ok, ShouldBeTrue)
			r2, ok := waitResult(loop.Results(), 2*time.Second)
			So(ok, ShouldBeTrue)

			ids := map[string]bool{r1.Identifier: true, r2.Identifier: true}
			So(ids, ShouldContainKey, "e4")
			So(ids, ShouldContainKey, "d5")
			So(r1.ResultID, ShouldNotEqual, r2.ResultID)
		})
	})
}

func TestPipeline_WaitsForTrailingSamples(t *testing.T) {
	Convey("Given a flash whose window extends past the buffered data", t, func() {
		clk := &fakeClock{}
		loop := transport.NewLoopback()
		p := newTestPipeline(clk, loop)
		ctx := context.Background()

		So(p.Start(ctx), ShouldBeNil)
		defer p.Stop()

		flash := 1.0
		feedSamples(p, clk, 0, 1.2, flat)
		p.SubmitEvent(ctx, model.StimulusEvent{
			ID: "ev-early", SourceID: "amp-1", Kind: model.KindFlash,
			Identifier: "d5", Timestamp: flash,
		})

		Convey("Then no result appears while the window is short", func() {
			So(noResult(loop.Results(), 200*time.Millisecond), ShouldBeTrue)

			Convey("And the result arrives once the window fills", func() {
				feedSamples(p, clk, 1.2, 1.8, flat)
				r, ok := waitResult(loop.Results(), 2*time.Second)
				So(ok, ShouldBeTrue)
				So(r.Identifier, ShouldEqual, "d5")
				// Flat signal never clears the confidence cut.
				So(r.Detected, ShouldBeFalse)
			})
		})
	})
}

func TestPipeline_DuplicateEventsScoreOnce(t *testing.T) {
	Convey("Given the same flash delivered twice", t, func() {
		clk := &fakeClock{}
		loop := transport.NewLoopback()
		p := newTestPipeline(clk, loop)
		ctx := context.Background()

		So(p.Start(ctx), ShouldBeNil)
		defer p.Stop()

		flash := 1.0
		feedSamples(p, clk, 0, 1.0, flat)
		ev := model.StimulusEvent{
			ID: "ev-dup", SourceID: "amp-1", Kind: model.KindFlash,
			Identifier: "c3", Timestamp: flash,
		}
		p.SubmitEvent(ctx, ev)
		p.SubmitEvent(ctx, ev)
		feedSamples(p, clk, 1.0, 2.0, flat)

		Convey("Then exactly one result is published", func() {
			_, ok := waitResult(loop.Results(), 2*time.Second)
			So(ok, ShouldBeTrue)
			So(noResult(loop.Results(), 300*time.Millisecond), ShouldBeTrue)
		})
	})
}

func TestPipeline_AbandonsLostWindows(t *testing.T) {
	Convey("Given a flash whose window the buffer never covered", t, func() {
		clk := &fakeClock{}
		loop := transport.NewLoopback()
		p := newTestPipeline(clk, loop)
		ctx := context.Background()

		So(p.Start(ctx), ShouldBeNil)
		defer p.Stop()

		// Calibrate the clock with a short burst, then jump far ahead so
		// the flash window falls before any buffered data.
		feedSamples(p, clk, 5.0, 5.1, flat)
		p.SubmitEvent(ctx, model.StimulusEvent{
			ID: "ev-lost", SourceID: "amp-1", Kind: model.KindFlash,
			Identifier: "a1", Timestamp: 1.0,
		})
		feedSamples(p, clk, 5.1, 5.5, flat)

		Convey("Then the event is abandoned without a result", func() {
			So(noResult(loop.Results(), 500*time.Millisecond), ShouldBeTrue)

			deadline := time.After(2 * time.Second)
			for {
				if pending, ok := p.Stats()["pending"].(int); ok && pending == 0 {
					break
				}
				select {
				case <-deadline:
					t.Fatal("pending event never abandoned")
				case <-time.After(10 * time.Millisecond):
				}
			}
		})
	})
}

func TestPipeline_TimesOutWhenStreamStalls(t *testing.T) {
	Convey("Given a flash followed by a stalled sample stream", t, func() {
		clk := &fakeClock{}
		loop := transport.NewLoopback()
		p := newTestPipeline(clk, loop)
		ctx := context.Background()

		So(p.Start(ctx), ShouldBeNil)
		defer p.Stop()

		feedSamples(p, clk, 0, 1.05, flat)
		p.SubmitEvent(ctx, model.StimulusEvent{
			ID: "ev-stall", SourceID: "amp-1", Kind: model.KindFlash,
			Identifier: "f6", Timestamp: 1.0,
		})

		// No further samples arrive; only the wall clock moves on.
		clk.set(5.0)

		Convey("Then the event times out instead of pending forever", func() {
			deadline := time.After(2 * time.Second)
			for {
				if pending, ok := p.Stats()["pending"].(int); ok && pending == 0 {
					break
				}
				select {
				case <-deadline:
					t.Fatal("pending event never timed out")
				case <-time.After(10 * time.Millisecond):
				}
			}
			So(noResult(loop.Results(), 100*time.Millisecond), ShouldBeTrue)
		})
	})
}

func TestPipeline_TargetResetClearsTally(t *testing.T) {
	Convey("Given a scored identifier and a subsequent target change", t, func() {
		clk := &fakeClock{}
		loop := transport.NewLoopback()
		p := newTestPipeline(clk, loop)
		ctx := context.Background()

		So(p.Start(ctx), ShouldBeNil)
		defer p.Stop()

		feedSamples(p, clk, 0, 1.0, flat)
		p.SubmitEvent(ctx, model.StimulusEvent{
			ID: "ev-f1", SourceID: "amp-1", Kind: model.KindFlash,
			Identifier: "b2", Timestamp: 1.0,
		})
		feedSamples(p, clk, 1.0, 2.0, flat)

		_, ok := waitResult(loop.Results(), 2*time.Second)
		So(ok, ShouldBeTrue)

		p.SubmitEvent(ctx, model.StimulusEvent{
			ID: "ev-t2", SourceID: "amp-1", Kind: model.KindTargetSet,
			Identifier: "h8", Timestamp: 2.0,
		})

		Convey("Then the tally starts over for the new target", func() {
			So(p.Target(), ShouldEqual, "h8")
			_, err := p.Rank(ctx, "b2")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestPipeline_StartStop(t *testing.T) {
	Convey("Given a pipeline without a publisher", t, func() {
		p := service.New()

		Convey("Then Start should refuse to run", func() {
			So(p.Start(context.Background()), ShouldNotBeNil)
		})
	})

	Convey("Given a configured pipeline", t, func() {
		clk := &fakeClock{}
		loop := transport.NewLoopback()
		p := newTestPipeline(clk, loop)

		So(p.Start(context.Background()), ShouldBeNil)

		Convey("Then stats should report the running state", func() {
			stats := p.Stats()
			So(stats["started"], ShouldBeTrue)
			So(stats["workerCount"], ShouldEqual, 2)

			Convey("And Stop should be idempotent", func() {
				p.Stop()
				p.Stop()
				So(p.Stats()["started"], ShouldBeFalse)
			})
		})
	})
}
