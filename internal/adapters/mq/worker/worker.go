// Package worker runs the asynchronous preprocess-and-score stage.
//
// Workers pull extracted epochs off the queue, condition them, score them,
// update the selection tally, and publish one result per job. Publish
// failures are logged and counted but never retried.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/okian/evoked/internal/adapters/mq/queue"
	"github.com/okian/evoked/internal/domain/detect"
	"github.com/okian/evoked/internal/domain/model"
	"github.com/okian/evoked/pkg/logger"
	"github.com/okian/evoked/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	workerShutdownTimeout   = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Preprocessor conditions a raw epoch before scoring.
type Preprocessor interface {
	Process(e *model.Epoch) (*model.Epoch, error)
}

// Scorer computes a detection score for a conditioned epoch.
type Scorer interface {
	Score(e *model.Epoch) detect.Score
	MinConfidence() float64
}

// Updater records a scored result against its identifier.
type Updater interface {
	Update(ctx context.Context, identifier string, confidence float64, detected bool) error
}

// Publisher delivers one detection result downstream.
type Publisher interface {
	Publish(ctx context.Context, r model.DetectionResult) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes jobs and publishes detection results.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	// It will process any remaining jobs before stopping.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for processing extracted epochs.
type InMemoryWorker struct {
	queue     Queue
	prep      Preprocessor
	scorer    Scorer
	updater   Updater
	publisher Publisher
	name      string
	now       func() float64

	// Shutdown control
	shutdown chan struct{}
	done     chan struct{}

	// Logging
	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, prep Preprocessor, scorer Scorer, updater Updater, publisher Publisher, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		prep:      prep,
		scorer:    scorer,
		updater:   updater,
		publisher: publisher,
		name:      "worker",
		now:       func() float64 { return float64(time.Now().UnixNano()) / 1e9 },
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer func() {
		close(w.done)
	}()

	jobChan := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobChan:
			if !ok {
				// Channel closed, worker should stop
				return
			}

			if err := w.processJob(ctx, job); err != nil {
				w.logger.Error(ctx, "error processing job", logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processJob conditions, scores, tallies, and publishes one epoch.
func (w *InMemoryWorker) processJob(ctx context.Context, job queue.Job) error {
	prepStart := time.Now()
	conditioned, err := w.prep.Process(job.Epoch)
	metrics.RecordPreprocessLatency(float64(time.Since(prepStart).Microseconds()) / 1e3)
	if err != nil {
		metrics.RecordWorkerError()
		w.logger.Error(ctx, "preprocessing failed",
			logger.String("eventID", job.Event.ID),
			logger.Error(err),
		)
		return fmt.Errorf("preprocess epoch for event %s: %w", job.Event.ID, err)
	}

	scoreStart := time.Now()
	score := w.scorer.Score(conditioned)
	metrics.RecordScoringLatency(float64(time.Since(scoreStart).Microseconds()) / 1e3)
	metrics.RecordConfidence(score.Confidence)

	detected := score.Detected && !job.Epoch.JitterExceeded
	if detected {
		metrics.RecordDetection()
	}

	result := model.DetectionResult{
		ResultID:           uuid.New().String(),
		Identifier:         job.Event.Identifier,
		IsTargetHypothesis: job.IsTargetHypothesis,
		Confidence:         score.Confidence,
		Detected:           detected,
		JitterExceeded:     job.Epoch.JitterExceeded,
		Timestamp:          w.now(),
	}

	if err := w.updater.Update(ctx, result.Identifier, result.Confidence, result.Detected); err != nil {
		metrics.RecordWorkerError()
		w.logger.Error(ctx, "tally update failed",
			logger.String("eventID", job.Event.ID),
			logger.Error(err),
		)
	}

	if err := w.publisher.Publish(ctx, result); err != nil {
		metrics.RecordPublishError()
		metrics.RecordWorkerError()
		w.logger.Error(ctx, "result publish failed",
			logger.String("eventID", job.Event.ID),
			logger.String("resultID", result.ResultID),
			logger.Error(err),
		)
		return fmt.Errorf("publish result for event %s: %w", job.Event.ID, err)
	}

	w.logger.Debug(ctx, "result published",
		logger.String("eventID", job.Event.ID),
		logger.String("identifier", result.Identifier),
		logger.Float64("confidence", result.Confidence),
		logger.Bool("detected", result.Detected),
	)

	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	// Shutdown control
	shutdown chan struct{}

	// Logging
	logger logger.Logger
}

// NewPool creates a new worker pool.
func NewPool(workerCount int, q Queue, prep Preprocessor, scorer Scorer, updater Updater, publisher Publisher, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    q,
		shutdown: make(chan struct{}),
		logger:   logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(
			q,
			prep,
			scorer,
			updater,
			publisher,
			append(opts, WithName("worker-"+strconv.Itoa(i)))...,
		)
	}

	metrics.UpdateWorkerCount(workerCount)

	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, worker := range p.workers {
		go worker.Run(ctx)
	}
}

// Shutdown gracefully shuts down the entire worker pool.
//
// Closing the queue drains remaining jobs through the workers; each worker
// exits once its dequeue channel closes.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	close(p.shutdown)

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, worker := range p.workers {
		select {
		case <-worker.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}

	metrics.UpdateWorkerCount(0)

	return nil
}
