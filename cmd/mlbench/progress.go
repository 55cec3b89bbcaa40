package main

import (
	"io"
	"log/slog"

	"github.com/cheggaaa/pb/v3"

	"github.com/itohio/mlbench/pkg/harness"
)

// progress advances a terminal bar on every successful trial.
type progress struct {
	bar *pb.ProgressBar
}

func newProgress(w io.Writer, trials int) *progress {
	bar := pb.New(trials)
	bar.SetWriter(w)
	bar.Start()
	return &progress{bar: bar}
}

func (p *progress) ObserveTrial(t harness.Trial) {
	if t.Err != nil {
		slog.Debug("trial failed", "attempt", t.Index, "err", t.Err)
		return
	}
	p.bar.Increment()
}

func (p *progress) Finish() {
	p.bar.Finish()
}
