package detect_test

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/okian/evoked/internal/domain/detect"
	"github.com/okian/evoked/internal/domain/epoch"
	"github.com/okian/evoked/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func chessWindow() epoch.Window {
	return epoch.Window{
		BaselineStart: -0.2,
		BaselineEnd:   0,
		Length:        0.8,
		ResponseStart: 0.25,
		ResponseEnd:   0.5,
	}
}

// makeEpoch builds a one-channel epoch for an event at t=1.0 at 250 Hz.
func makeEpoch(gen func(t float64) float64) *model.Epoch {
	const n = 200
	ch := make([]float64, n)
	for i := range ch {
		t := 0.8 + float64(i)/250.0
		ch[i] = gen(t)
	}
	return &model.Epoch{
		EventID:         "ev-1",
		Identifier:      "e4",
		EventTime:       1.0,
		Start:           0.8,
		SampleRate:      250,
		Channels:        [][]float64{ch},
		ExpectedSamples: n,
	}
}

// response is the idealized evoked waveform: a Gaussian peaking latency
// seconds past the stimulus (at t=1.0 here).
func response(amplitude, latency, width float64) func(t float64) float64 {
	sigma := width / 3
	return func(t float64) float64 {
		d := t - (1.0 + latency)
		return amplitude * math.Exp(-d*d/(2*sigma*sigma))
	}
}

func TestNewScorer_Validation(t *testing.T) {
	Convey("Given scorer configurations", t, func() {
		Convey("Then defaults validate", func() {
			_, err := detect.NewScorer(250, chessWindow())
			So(err, ShouldBeNil)
		})

		Convey("Then a min confidence above 1 is rejected", func() {
			_, err := detect.NewScorer(250, chessWindow(), detect.WithMinConfidence(1.5))
			So(errors.Is(err, detect.ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("Then zero feature weights are rejected", func() {
			_, err := detect.NewScorer(250, chessWindow(), detect.WithFeatureWeights(0, 0))
			So(errors.Is(err, detect.ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("Then a bad geometry is rejected", func() {
			w := chessWindow()
			w.ResponseEnd = 2.0
			_, err := detect.NewScorer(250, w)
			So(errors.Is(err, epoch.ErrInvalidWindow), ShouldBeTrue)
		})
	})
}

func TestScorer_EmbeddedResponse(t *testing.T) {
	Convey("Given a scorer with default thresholds", t, func() {
		s, err := detect.NewScorer(250, chessWindow())
		So(err, ShouldBeNil)

		Convey("When scoring an epoch with a full-amplitude response at 300ms", func() {
			e := makeEpoch(response(5.0, 0.3, 0.1))
			got := s.Score(e)

			Convey("Then the response is detected with high confidence", func() {
				So(got.Detected, ShouldBeTrue)
				So(got.Confidence, ShouldBeGreaterThanOrEqualTo, 0.6)
				So(got.Confidence, ShouldBeLessThanOrEqualTo, 1.0)
			})
		})

		Convey("When scoring a flat epoch", func() {
			got := s.Score(makeEpoch(func(t float64) float64 { return 0 }))

			Convey("Then confidence is zero and nothing is detected", func() {
				So(got.Confidence, ShouldEqual, 0)
				So(got.Detected, ShouldBeFalse)
			})
		})
	})
}

func TestScorer_Purity(t *testing.T) {
	Convey("Given one preprocessed epoch", t, func() {
		s, err := detect.NewScorer(250, chessWindow())
		So(err, ShouldBeNil)
		e := makeEpoch(response(3.0, 0.32, 0.12))

		Convey("When scoring it repeatedly", func() {
			first := s.Score(e)
			for i := 0; i < 10; i++ {
				So(s.Score(e).Confidence, ShouldEqual, first.Confidence)
			}

			Convey("Then the input epoch is untouched", func() {
				other := makeEpoch(response(3.0, 0.32, 0.12))
				So(e.Channels[0], ShouldResemble, other.Channels[0])
			})
		})
	})
}

func TestScorer_NoiseStaysBelowThreshold(t *testing.T) {
	Convey("Given pure-noise epochs with no embedded response", t, func() {
		s, err := detect.NewScorer(250, chessWindow())
		So(err, ShouldBeNil)
		rng := rand.New(rand.NewSource(7)) //nolint:gosec // deterministic test noise

		Convey("Then confidence stays below the threshold in nearly all trials", func() {
			const trials = 25
			below := 0
			for i := 0; i < trials; i++ {
				e := makeEpoch(func(t float64) float64 {
					return rng.NormFloat64() * 0.3
				})
				if s.Score(e).Confidence < s.MinConfidence() {
					below++
				}
			}
			So(below, ShouldBeGreaterThanOrEqualTo, trials-2)
		})
	})
}

func TestScorer_ChannelWeighting(t *testing.T) {
	Convey("Given a two-channel scorer with Cz canonical and a fringe site", t, func() {
		mk := func(names []string) *detect.Scorer {
			s, err := detect.NewScorer(250, chessWindow(),
				detect.WithChannelNames(names),
				detect.WithChannelWeights(map[string]float64{"Cz": 1.0}, 0.1),
			)
			So(err, ShouldBeNil)
			return s
		}

		resp := response(5.0, 0.3, 0.1)
		flat := func(t float64) float64 { return 0 }
		e := makeEpoch(resp)
		e.Channels = append(e.Channels, makeEpoch(flat).Channels[0])

		Convey("When the response sits on the canonical channel", func() {
			got := mk([]string{"Cz", "F7"}).Score(e)

			Convey("And when it sits on the fringe channel instead", func() {
				swapped := e.Clone()
				swapped.Channels[0], swapped.Channels[1] = swapped.Channels[1], swapped.Channels[0]
				gotSwapped := mk([]string{"Cz", "F7"}).Score(swapped)

				Convey("Then the canonical placement scores higher", func() {
					So(got.Confidence, ShouldBeGreaterThan, gotSwapped.Confidence)
				})
			})
		})
	})
}
