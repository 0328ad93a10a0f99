// Package service provides the core pipeline service that ties sample
// ingest, event synchronization, epoch extraction, and asynchronous scoring
// together behind the API.
package service

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	eventqueue "github.com/okian/evoked/internal/adapters/mq/queue"
	workerpool "github.com/okian/evoked/internal/adapters/mq/worker"
	"github.com/okian/evoked/internal/adapters/repository"
	"github.com/okian/evoked/internal/domain/clock"
	"github.com/okian/evoked/internal/domain/dedupe"
	"github.com/okian/evoked/internal/domain/detect"
	"github.com/okian/evoked/internal/domain/epoch"
	"github.com/okian/evoked/internal/domain/model"
	"github.com/okian/evoked/internal/domain/preprocess"
	"github.com/okian/evoked/internal/domain/ringbuf"
	"github.com/okian/evoked/pkg/logger"
	"github.com/okian/evoked/pkg/metrics"
)

// Synchronizer timing constants.
const (
	// pollInterval backs the buffer-notify channel so the pending sweep
	// also runs when sample flow stalls.
	pollInterval = 25 * time.Millisecond

	// deadlineFactor scales the epoch length into the per-event timeout.
	deadlineFactor = 2.0
)

// pendingEvent is one flash waiting for its window to land in the buffer.
type pendingEvent struct {
	ev         model.StimulusEvent
	localTime  float64
	calibrated bool

	// deadline is on the local sample clock once calibrated.
	deadline float64

	// wallDeadline bounds the wait on the pipeline wall clock, so a stalled
	// sample stream or a never-calibrated source still times out.
	wallDeadline float64

	isTarget bool
}

// Pipeline implements the API dependencies for the detection system.
type Pipeline struct {
	mu sync.RWMutex

	// Core components
	buf       *ringbuf.Buffer
	clk       *clock.Reconciler
	extractor *epoch.Extractor
	prep      *preprocess.Processor
	scorer    *detect.Scorer
	deduper   dedupe.Deduper
	queue     *eventqueue.InMemoryQueue
	pool      *workerpool.Pool
	tally     repository.Store
	publisher workerpool.Publisher

	// Synchronizer state
	pending []*pendingEvent
	target  string

	// Configuration
	sampleRate    float64
	channelNames  []string
	window        epoch.Window
	retention     float64
	tolerance     float64
	lowCut        float64
	highCut       float64
	threshold     float64
	minConfidence float64
	weights       map[string]float64
	defaultWeight float64
	jitterTol     int
	strictJitter  bool
	queueSize     int
	workerCount   int
	dedupeSize    int

	// now supplies wall-clock seconds; injectable for tests.
	now func() float64

	// State
	started bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	// Logging
	logger logger.Logger
}

// New constructs a new Pipeline with default configuration.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		sampleRate:   250.0,
		channelNames: []string{"Cz"},
		window: epoch.Window{
			BaselineStart: -0.2,
			BaselineEnd:   0,
			Length:        0.8,
			ResponseStart: 0.25,
			ResponseEnd:   0.5,
		},
		retention:     5.0,
		tolerance:     0.05,
		lowCut:        preprocess.DefaultLowCut,
		highCut:       preprocess.DefaultHighCut,
		threshold:     2.0,
		minConfidence: 0.6,
		defaultWeight: 0.5,
		jitterTol:     2,
		queueSize:     1024,
		workerCount:   runtime.NumCPU(),
		dedupeSize:    4096,
		now:           func() float64 { return float64(time.Now().UnixNano()) / 1e9 },
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Start initializes the pipeline components and launches the sweep loop.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return nil
	}

	if p.logger == nil {
		p.logger = logger.Get().Named("pipeline")
	}
	if p.publisher == nil {
		return ErrNoPublisher
	}

	p.logger.Info(ctx, "starting detection pipeline...")

	p.buf = ringbuf.New(
		ringbuf.WithChannels(len(p.channelNames)),
		ringbuf.WithRate(p.sampleRate),
		ringbuf.WithRetention(p.retention),
		ringbuf.WithTolerance(p.tolerance),
	)
	p.clk = clock.New()
	p.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(p.dedupeSize),
	)
	if p.tally == nil {
		p.tally = repository.NewMemStore()
	}

	extractor, err := epoch.NewExtractor(p.buf, p.sampleRate, p.window,
		epoch.WithJitterTolerance(p.jitterTol),
	)
	if err != nil {
		return err
	}
	p.extractor = extractor

	prep, err := preprocess.New(preprocess.Config{
		LowCut:        p.lowCut,
		HighCut:       p.highCut,
		SampleRate:    p.sampleRate,
		BaselineStart: p.window.BaselineStart,
		BaselineEnd:   p.window.BaselineEnd,
	})
	if err != nil {
		return err
	}
	p.prep = prep

	scorerOpts := []detect.Option{
		detect.WithThreshold(p.threshold),
		detect.WithMinConfidence(p.minConfidence),
		detect.WithChannelNames(p.channelNames),
	}
	if p.weights != nil {
		scorerOpts = append(scorerOpts, detect.WithChannelWeights(p.weights, p.defaultWeight))
	}
	scorer, err := detect.NewScorer(p.sampleRate, p.window, scorerOpts...)
	if err != nil {
		return err
	}
	p.scorer = scorer

	p.queue = eventqueue.NewInMemoryQueue(
		eventqueue.WithCapacity(p.queueSize),
		eventqueue.WithBufferSize(p.queueSize),
	)
	p.pool = workerpool.NewPool(p.workerCount, p.queue, p.prep, p.scorer, p.tally, p.publisher,
		workerpool.WithClock(p.now),
	)
	p.pool.Start(ctx)

	go p.run(ctx)

	p.started = true
	p.logger.Info(ctx, "detection pipeline started",
		logger.Int("workers", p.workerCount),
		logger.Int("queueSize", p.queueSize),
		logger.Int("channels", len(p.channelNames)),
		logger.Float64("sampleRate", p.sampleRate),
	)

	return nil
}

// Stop gracefully shuts down the pipeline.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	close(p.stopCh)
	pool := p.pool
	lg := p.logger
	p.mu.Unlock()

	ctx := context.Background()
	lg.Info(ctx, "stopping detection pipeline...")

	<-p.doneCh

	if pool != nil {
		_ = pool.Shutdown(ctx)
	}

	lg.Info(ctx, "detection pipeline stopped")
}

// IngestSample feeds one sample into the clock reconciler and the buffer.
// The sample timestamp is on the source clock; the reconciled local time is
// what the buffer stores.
func (p *Pipeline) IngestSample(ctx context.Context, sourceID string, s model.Sample) {
	localNow := p.now()
	p.clk.Update(sourceID, s.Timestamp, localNow)

	localTS, err := p.clk.Translate(sourceID, s.Timestamp)
	if err != nil {
		// Unreachable after Update, but never drop silently.
		p.logger.Warn(ctx, "sample clock not calibrated", logger.String("source", sourceID))
		return
	}

	if err := p.buf.Ingest(model.Sample{Timestamp: localTS, Values: s.Values}); err != nil {
		if errors.Is(err, ringbuf.ErrStaleSample) {
			p.logger.Debug(ctx, "stale sample dropped",
				logger.String("source", sourceID),
				logger.Float64("timestamp", localTS),
			)
			return
		}
		p.logger.Error(ctx, "sample rejected", logger.Error(err))
	}
}

// SubmitEvent accepts one stimulus event. Duplicates are dropped, target
// changes reset the tally, and flashes join the pending set until their
// window is extractable or times out.
func (p *Pipeline) SubmitEvent(ctx context.Context, ev model.StimulusEvent) {
	if p.deduper.SeenAndRecord(ctx, ev.ID) {
		metrics.RecordEventDuplicate()
		p.logger.Debug(ctx, "duplicate event dropped", logger.String("eventID", ev.ID))
		return
	}
	metrics.RecordEventReceived(string(ev.Kind))

	switch ev.Kind {
	case model.KindTargetSet:
		p.mu.Lock()
		p.target = ev.Identifier
		p.mu.Unlock()
		p.tally.Reset(ctx)
		p.logger.Info(ctx, "target set",
			logger.String("identifier", ev.Identifier),
		)
		return
	case model.KindFlash:
		// Scheduled below.
	default:
		p.logger.Warn(ctx, "unknown event kind dropped",
			logger.String("eventID", ev.ID),
			logger.String("kind", string(ev.Kind)),
		)
		return
	}

	pe := &pendingEvent{
		ev:           ev,
		wallDeadline: p.now() + deadlineFactor*p.window.Length,
	}

	// Calibration may land with the next sample batch; an uncalibrated
	// event is held until then, bounded by the wall deadline.
	if localTime, err := p.clk.Translate(ev.SourceID, ev.Timestamp); err == nil {
		pe.localTime = localTime
		pe.calibrated = true
		pe.deadline = localTime + deadlineFactor*p.window.Length
	}

	p.mu.Lock()
	pe.isTarget = p.target != "" && ev.Identifier == p.target
	p.pending = append(p.pending, pe)
	n := len(p.pending)
	p.mu.Unlock()
	metrics.UpdatePendingEvents(n)

	p.logger.Debug(ctx, "flash scheduled",
		logger.String("eventID", ev.ID),
		logger.String("identifier", ev.Identifier),
		logger.Bool("calibrated", pe.calibrated),
	)
}

// run sweeps the pending set whenever the buffer advances, with a ticker
// fallback for stalled sample flow.
func (p *Pipeline) run(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-p.buf.Notify():
			p.sweep(ctx)
		case <-ticker.C:
			p.sweep(ctx)
		}
	}
}

// sweep walks the pending set once: calibrate held events, extract ready
// windows, time out expired ones.
func (p *Pipeline) sweep(ctx context.Context) {
	_, newest, _, haveData := p.buf.Bounds()
	wallNow := p.now()

	p.mu.Lock()
	defer p.mu.Unlock()

	kept := p.pending[:0]
	for _, pe := range p.pending {
		if !pe.calibrated {
			if localTime, err := p.clk.Translate(pe.ev.SourceID, pe.ev.Timestamp); err == nil {
				pe.localTime = localTime
				pe.calibrated = true
				pe.deadline = localTime + deadlineFactor*p.window.Length
			} else if wallNow > pe.wallDeadline {
				p.timeoutLocked(ctx, pe, "clock never calibrated")
				continue
			} else {
				kept = append(kept, pe)
				continue
			}
		}

		// The buffer-time deadline catches windows the stream skipped past;
		// the wall deadline catches a stream that stalled below them.
		expired := (haveData && newest >= pe.deadline) || wallNow > pe.wallDeadline

		if !haveData || newest < pe.localTime+p.window.End() {
			if expired {
				p.timeoutLocked(ctx, pe, "window never filled")
				continue
			}
			kept = append(kept, pe)
			continue
		}

		if done := p.tryExtractLocked(ctx, pe); !done {
			if expired {
				p.timeoutLocked(ctx, pe, "window never filled")
				continue
			}
			kept = append(kept, pe)
		}
	}
	// Drop freed tail slots so abandoned events are collectable.
	for i := len(kept); i < len(p.pending); i++ {
		p.pending[i] = nil
	}
	p.pending = kept
	metrics.UpdatePendingEvents(len(p.pending))
}

// tryExtractLocked attempts extraction for one calibrated pending event.
// Returns true when the event left the pending set (extracted, dropped, or
// abandoned), false to retry on a later sweep.
func (p *Pipeline) tryExtractLocked(ctx context.Context, pe *pendingEvent) bool {
	ep, err := p.extractor.Extract(pe.ev, pe.localTime)

	var unavailable *ringbuf.RangeUnavailableError
	switch {
	case err == nil:
		// Clean extraction.
	case errors.As(err, &unavailable):
		if unavailable.HistoryLost() {
			// The head of the window is gone; waiting cannot recover it.
			p.timeoutLocked(ctx, pe, "window history lost")
			return true
		}
		metrics.RecordRangeRetry()
		return false
	case errors.Is(err, epoch.ErrJitterExceeded):
		if ep == nil || p.strictJitter {
			p.logger.Warn(ctx, "epoch discarded for jitter",
				logger.String("eventID", pe.ev.ID),
				logger.Error(err),
			)
			return true
		}
		// Score it anyway; the flag travels with the epoch.
	default:
		p.logger.Error(ctx, "epoch extraction failed",
			logger.String("eventID", pe.ev.ID),
			logger.Error(err),
		)
		return true
	}

	job := eventqueue.Job{
		Event:              pe.ev,
		EventLocalTime:     pe.localTime,
		Epoch:              ep,
		IsTargetHypothesis: pe.isTarget,
	}
	if !p.queue.Enqueue(ctx, job) {
		p.logger.Error(ctx, "scoring queue full, epoch dropped",
			logger.String("eventID", pe.ev.ID),
		)
	}
	return true
}

// timeoutLocked abandons one pending event.
func (p *Pipeline) timeoutLocked(ctx context.Context, pe *pendingEvent, reason string) {
	metrics.RecordEpochTimeout()
	p.logger.Warn(ctx, "pending event abandoned",
		logger.String("eventID", pe.ev.ID),
		logger.String("identifier", pe.ev.Identifier),
		logger.String("reason", reason),
	)
}

// TopN returns the current best-ranked identifiers.
func (p *Pipeline) TopN(ctx context.Context, n int) ([]repository.Entry, error) {
	return p.tally.TopN(ctx, n)
}

// Rank returns the rank and evidence for one identifier.
func (p *Pipeline) Rank(ctx context.Context, identifier string) (repository.Entry, error) {
	return p.tally.Rank(ctx, identifier)
}

// Target returns the current session target, if any.
func (p *Pipeline) Target() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.target
}

// Stats returns pipeline statistics for monitoring.
func (p *Pipeline) Stats() map[string]interface{} {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     p.started,
		"workerCount": p.workerCount,
		"queueSize":   p.queueSize,
		"target":      p.target,
		"pending":     len(p.pending),
	}

	if p.started {
		oldest, newest, count, ok := p.buf.Bounds()
		if ok {
			stats["bufferOldest"] = oldest
			stats["bufferNewest"] = newest
			stats["bufferSamples"] = count
		}
		stats["queueLength"] = p.queue.Len(ctx)
		stats["identifiers"] = p.tally.Count(ctx)
		stats["dedupeSize"] = p.deduper.Size()
	}

	return stats
}
