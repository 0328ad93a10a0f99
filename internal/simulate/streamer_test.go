package simulate

import (
	"context"
	"sync"
	"testing"
	"time"

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

type captureReceiver struct {
	mu      sync.Mutex
	samples []model.Sample
	events  []model.StimulusEvent
	sources map[string]struct{}
}

func newCaptureReceiver() *captureReceiver {
	return &captureReceiver{sources: make(map[string]struct{})}
}

func (c *captureReceiver) IngestSample(_ context.Context, sourceID string, s model.Sample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources[sourceID] = struct{}{}
	c.samples = append(c.samples, s)
}

func (c *captureReceiver) SubmitEvent(_ context.Context, ev model.StimulusEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *captureReceiver) snapshot() ([]model.Sample, []model.StimulusEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	samples := make([]model.Sample, len(c.samples))
	copy(samples, c.samples)
	events := make([]model.StimulusEvent, len(c.events))
	copy(events, c.events)
	return samples, events
}

func TestStreamer(t *testing.T) {
	Convey("Given a streamer with a skewed source clock", t, func() {
		gen := NewGenerator(WithChannels([]string{"Cz"}), WithSeed(3))
		recv := newCaptureReceiver()
		s := NewStreamer(gen, recv,
			WithSourceID("sim-test"),
			WithClockError(1.5, 0.01),
		)

		ctx, cancel := context.WithCancel(context.Background())
		go s.Run(ctx)

		// A few chunks at 250 Hz with 10-sample chunks.
		time.Sleep(200 * time.Millisecond)
		cancel()
		time.Sleep(50 * time.Millisecond)

		samples, _ := recv.snapshot()

		Convey("Then samples arrive in order on the skewed clock", func() {
			So(len(samples), ShouldBeGreaterThan, 10)
			for i := 1; i < len(samples); i++ {
				So(samples[i].Timestamp, ShouldBeGreaterThan, samples[i-1].Timestamp)
			}

			Convey("And timestamps carry the configured offset", func() {
				// Session starts near zero, so the first stamp sits just
				// above the offset.
				So(samples[0].Timestamp, ShouldBeGreaterThan, 1.5)
				So(samples[0].Timestamp, ShouldBeLessThan, 1.6)
			})
		})

		Convey("And SourceTime maps session time through offset and skew", func() {
			So(s.SourceTime(2.0), ShouldAlmostEqual, 1.5+2.0*1.01, 1e-9)
		})
	})
}

func TestFlashDriver(t *testing.T) {
	Convey("Given a flash driver over four identifiers", t, func() {
		gen := NewGenerator(
			WithChannels([]string{"Cz"}),
			WithNoiseAmplitude(0),
			WithBackgroundAmplitude(0),
			WithArtifacts(false),
		)
		recv := newCaptureReceiver()
		s := NewStreamer(gen, recv)
		ids := []string{"a1", "b2", "c3", "d4"}
		driver := NewFlashDriver(gen, s, recv, ids, "c3",
			WithRounds(2),
			WithFlashInterval(time.Millisecond),
			WithDriverSeed(11),
		)

		driver.Run(context.Background())
		_, events := recv.snapshot()

		Convey("Then the session announces the target first", func() {
			So(len(events), ShouldEqual, 1+2*len(ids))
			So(events[0].Kind, ShouldEqual, model.KindTargetSet)
			So(events[0].Identifier, ShouldEqual, "c3")
		})

		Convey("Then every identifier flashes once per round", func() {
			counts := make(map[string]int)
			for _, ev := range events[1:] {
				So(ev.Kind, ShouldEqual, model.KindFlash)
				counts[ev.Identifier]++
			}
			for _, id := range ids {
				So(counts[id], ShouldEqual, 2)
			}
		})

		Convey("Then target flashes schedule evoked responses", func() {
			So(len(gen.responses), ShouldEqual, 2)
		})
	})
}
