package simulate

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/okian/evoked/internal/adapters/transport"
	"github.com/okian/evoked/internal/domain/model"
	"github.com/okian/evoked/pkg/logger"
)

// defaultFlashInterval spaces stimulus flashes apart far enough that their
// response windows rarely overlap completely.
const defaultFlashInterval = 400 * time.Millisecond

// FlashDriver runs a stimulation session: it announces a target, then
// flashes identifiers in shuffled rounds, injecting an evoked response into
// the generator whenever the target is flashed.
type FlashDriver struct {
	gen         *Generator
	streamer    *Streamer
	recv        transport.Receiver
	identifiers []string
	target      string
	rounds      int
	interval    time.Duration
	rng         *rand.Rand

	logger logger.Logger
}

// FlashDriverOption applies a configuration option to the FlashDriver.
type FlashDriverOption func(*FlashDriver)

// WithFlashInterval sets the spacing between flashes.
func WithFlashInterval(d time.Duration) FlashDriverOption {
	return func(f *FlashDriver) {
		if d > 0 {
			f.interval = d
		}
	}
}

// WithRounds sets how many times every identifier is flashed.
func WithRounds(n int) FlashDriverOption {
	return func(f *FlashDriver) {
		if n > 0 {
			f.rounds = n
		}
	}
}

// WithDriverSeed fixes the shuffle order for reproducible sessions.
func WithDriverSeed(seed int64) FlashDriverOption {
	return func(f *FlashDriver) {
		f.rng = rand.New(rand.NewSource(seed))
	}
}

// NewFlashDriver creates a driver for one target over a set of identifiers.
func NewFlashDriver(gen *Generator, streamer *Streamer, recv transport.Receiver, identifiers []string, target string, opts ...FlashDriverOption) *FlashDriver {
	f := &FlashDriver{
		gen:         gen,
		streamer:    streamer,
		recv:        recv,
		identifiers: identifiers,
		target:      target,
		rounds:      3,
		interval:    defaultFlashInterval,
		rng:         rand.New(rand.NewSource(2)),
		logger:      logger.Get().Named("flash-driver"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run executes the session: one target announcement, then rounds of
// shuffled flashes. Returns when all rounds completed or ctx is canceled.
func (f *FlashDriver) Run(ctx context.Context) {
	f.submit(ctx, model.KindTargetSet, f.target)
	f.logger.Info(ctx, "session started",
		logger.String("target", f.target),
		logger.Int("identifiers", len(f.identifiers)),
		logger.Int("rounds", f.rounds),
	)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for round := 0; round < f.rounds; round++ {
		order := make([]string, len(f.identifiers))
		copy(order, f.identifiers)
		f.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		for _, id := range order {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			if id == f.target {
				f.gen.InjectResponse(f.streamer.SessionTime())
			}
			f.submit(ctx, model.KindFlash, id)
		}
	}

	f.logger.Info(ctx, "session finished", logger.String("target", f.target))
}

// submit delivers one event stamped on the source clock.
func (f *FlashDriver) submit(ctx context.Context, kind model.EventKind, identifier string) {
	f.recv.SubmitEvent(ctx, model.StimulusEvent{
		ID:         uuid.New().String(),
		SourceID:   f.streamer.SourceID(),
		Kind:       kind,
		Identifier: identifier,
		Timestamp:  f.streamer.SourceTime(f.streamer.SessionTime()),
	})
}
