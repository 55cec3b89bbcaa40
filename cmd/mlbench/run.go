package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/itohio/mlbench/pkg/config"
	"github.com/itohio/mlbench/pkg/harness"
	"github.com/itohio/mlbench/pkg/mock"
	"github.com/itohio/mlbench/pkg/onnx"
	"github.com/itohio/mlbench/pkg/scenario"
	"github.com/itohio/mlbench/pkg/stats"
	"github.com/itohio/mlbench/pkg/store"
)

// classifier is a harness.Classifier that may hold native resources.
type classifier interface {
	harness.Classifier
	Close() error
}

type nopCloser struct {
	harness.Classifier
}

func (nopCloser) Close() error { return nil }

func newClassifier(cfg *config.Config, s scenario.Scenario) (classifier, error) {
	if cfg.ONNX.ModelPath == "" {
		slog.Info("using simulated classifier", "scenario", s.Name, "frame_size", s.FrameSize)
		return nopCloser{mock.New(&cfg.Mock, s.FrameSize, s.Labels)}, nil
	}
	slog.Info("loading ONNX model", "path", cfg.ONNX.ModelPath)
	return onnx.New(&cfg.ONNX, s)
}

// runBenchmark runs the harness in-process and prints the report to stdout.
func runBenchmark(ctx context.Context, cfg *config.Config, showProgress bool) error {
	s, err := scenario.Lookup(cfg.Scenario.Name)
	if err != nil {
		return err
	}
	features, err := scenario.Load(cfg.Scenario.FeaturesFile, s)
	if err != nil {
		return err
	}

	c, err := newClassifier(cfg, s)
	if err != nil {
		return err
	}
	defer c.Close()

	hc, err := cfg.HarnessConfig()
	if err != nil {
		return err
	}
	hc.Scenario = s.Name

	h := harness.New(c, harness.NewSystemClock(), harness.Sleep, harness.WriterSink{W: os.Stdout}, hc)
	collector := stats.NewCollector()
	h.Observe(collector)

	var bar *progress
	if showProgress {
		bar = newProgress(os.Stderr, h.Config().Trials)
		h.Observe(bar)
	}

	report, err := h.Run(ctx, features)
	if bar != nil {
		bar.Finish()
	}
	// A report without successful trials is still recorded.
	if report == nil || (err != nil && !errors.Is(err, harness.ErrNoSuccessfulTrials)) {
		return err
	}

	fmt.Fprintln(os.Stdout)
	if werr := collector.Write(os.Stdout); werr != nil {
		return werr
	}

	if cfg.Store.Path != "" {
		latency := collector.Total()
		if serr := record(ctx, cfg.Store.Path, store.FromReport(store.SourceHost, report, &latency)); serr != nil {
			return serr
		}
	}
	return err
}

func record(ctx context.Context, path string, run store.Run) error {
	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer st.Close()

	id, err := st.Save(ctx, run)
	if err != nil {
		return err
	}
	slog.Info("run recorded", "id", id, "target", run.Target, "scenario", run.Scenario, "total_us", run.Total)
	return nil
}
