// Command simulate runs the detection pipeline against a synthetic session:
// a generated signal stream with evoked responses on the target square, a
// flash driver, and the results printed as wire markers.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/evoked/internal/adapters/transport"
	app "github.com/okian/evoked/internal/app"
	"github.com/okian/evoked/internal/config"
	"github.com/okian/evoked/internal/simulate"
	"github.com/okian/evoked/pkg/logger"
)

func main() {
	target := flag.String("target", "e4", "target square the simulated subject attends to")
	rounds := flag.Int("rounds", 3, "flash rounds over all squares")
	offset := flag.Float64("clock-offset", 1.5, "simulated source clock offset in seconds")
	skew := flag.Float64("clock-skew", 0.002, "simulated source clock skew in s/s")
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}
	_ = logger.SetLevelString(cfg.LogLevel)

	loop := transport.NewLoopback()
	defer loop.Close()

	opts := append(app.OptionsFromConfig(cfg),
		app.WithLogger(logger.Get()),
		app.WithPublisher(loop),
	)
	pipeline := app.New(opts...)
	if err := pipeline.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start pipeline: " + err.Error() + "\n")
		return
	}
	defer pipeline.Stop()

	gen := simulate.NewGenerator(
		simulate.WithRate(cfg.SampleRate),
		simulate.WithChannels(cfg.ChannelNames),
		simulate.WithResponse(5.0, 0.3, 0.1),
	)
	streamer := simulate.NewStreamer(gen, pipeline,
		simulate.WithClockError(*offset, *skew),
	)
	go streamer.Run(ctx)

	squares := []string{"a1", "b2", "c3", "d4", "e4", "f6", "g7", "h8"}
	driver := simulate.NewFlashDriver(gen, streamer, pipeline, squares, *target,
		simulate.WithRounds(*rounds),
	)

	sessionDone := make(chan struct{})
	go func() {
		// Let the clock reconciler settle before the first flash.
		select {
		case <-ctx.Done():
			close(sessionDone)
			return
		case <-time.After(3 * time.Second):
		}
		driver.Run(ctx)
		// Give trailing windows time to fill and score.
		select {
		case <-ctx.Done():
		case <-time.After(3 * time.Second):
		}
		close(sessionDone)
	}()

	printResults(ctx, loop, sessionDone)

	top, err := pipeline.TopN(ctx, 3)
	if err == nil {
		fmt.Println("--- ranking ---")
		for _, e := range top {
			fmt.Printf("#%d %s best=%.3f mean=%.3f detections=%d/%d\n",
				e.Rank, e.Identifier, e.BestConfidence, e.MeanConfidence, e.Detections, e.Trials)
		}
	}
}

// printResults echoes published results until the session finishes.
func printResults(ctx context.Context, loop *transport.Loopback, done <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case r := <-loop.Results():
			fmt.Println(transport.EncodeResultMarker(r))
		}
	}
}
