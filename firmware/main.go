//go:build tinygo

//go:generate tinygo flash -target=pico -tags=eisdk -ldflags="-X main.scenarioName=img"

// Command firmware runs the classifier timing benchmark on a board and prints
// the report on the console. The scenario is fixed at build time:
//
//	tinygo flash -target=esp32-coreboard-v2 -tags=eisdk -ldflags="-X main.scenarioName=kws"
package main

import (
	"context"
	"os"
	"time"

	"github.com/itohio/mlbench/pkg/harness"
	"github.com/itohio/mlbench/pkg/scenario"
)

// scenarioName selects the input frame; overridden with -ldflags -X.
var scenarioName = scenario.KWS

func main() {
	setup()

	sink := harness.WriterSink{W: os.Stdout}

	s, err := scenario.Lookup(scenarioName)
	if err != nil {
		halt(sink, err)
	}
	features := scenario.Synthesize(s)
	c := newClassifier(s)

	cfg := harness.DefaultConfig()
	cfg.Target = targetName
	cfg.Scenario = s.Name
	cfg.Quantized = c.Quantized()

	h := harness.New(c, harness.NewSystemClock(), harness.Sleep, sink, cfg)
	if _, err := h.Run(context.Background(), features); err != nil {
		// The harness has already printed the diagnostic.
		halt(nil, err)
	}
	status(true)
	_ = h.Idle(context.Background())
}

// halt parks the board after a fatal error, keeping the watchdog fed.
func halt(sink harness.Sink, err error) {
	if sink != nil {
		sink.Printf("Error: %v\r\n", err)
	}
	status(false)
	for {
		time.Sleep(harness.DefaultIdleInterval)
	}
}
