package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/itohio/mlbench/pkg/config"
	"github.com/itohio/mlbench/pkg/logging"
)

func main() {
	var (
		configFlag   = flag.String("config", "config.yaml", "Configuration file path")
		modeFlag     = flag.String("mode", "run", "One of: run, monitor, history, serve, ports")
		portFlag     = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		mockFlag     = flag.Bool("mock", false, "Use the simulated classifier even when a model is configured")
		modelFlag    = flag.String("model", "", "ONNX model path (overrides config)")
		scenarioFlag = flag.String("scenario", "", "Scenario name: kws, vww or img (overrides config)")
		featuresFlag = flag.String("features", "", "Features or image file (overrides config)")
		trialsFlag   = flag.Int("trials", 0, "Number of timed trials (0 = config)")
		dbFlag       = flag.String("db", "", "History database path (overrides config)")
		noStoreFlag  = flag.Bool("no-store", false, "Do not record results")
		limitFlag    = flag.Int("limit", 20, "Number of runs listed by -mode history")
		addrFlag     = flag.String("addr", "127.0.0.1:8080", "Listen address for -mode serve")
		onceFlag     = flag.Bool("once", false, "Exit -mode monitor after the first report")
		quietFlag    = flag.Bool("q", false, "Hide the progress bar")
		logLevelFlag = flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
		jsonLogFlag  = flag.Bool("json-log", false, "Write logs as JSON")
	)
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *modelFlag != "" {
		cfg.ONNX.ModelPath = *modelFlag
	}
	if *mockFlag {
		cfg.ONNX.ModelPath = ""
	}
	if *scenarioFlag != "" {
		cfg.Scenario.Name = *scenarioFlag
	}
	if *featuresFlag != "" {
		cfg.Scenario.FeaturesFile = *featuresFlag
	}
	if *trialsFlag > 0 {
		cfg.Harness.Trials = *trialsFlag
	}
	if *dbFlag != "" {
		cfg.Store.Path = *dbFlag
	}
	if *noStoreFlag {
		cfg.Store.Path = ""
	}
	if *logLevelFlag != "" {
		cfg.Log.Level = *logLevelFlag
	}

	logging.Init(*jsonLogFlag, logging.ParseLevel(cfg.Log.Level))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *modeFlag {
	case "run":
		err = runBenchmark(ctx, cfg, !*quietFlag)
	case "monitor":
		err = runMonitor(ctx, cfg, *onceFlag)
	case "history":
		err = printHistory(ctx, cfg, *scenarioFlag, *limitFlag)
	case "serve":
		err = serveHistory(ctx, cfg, *addrFlag)
	case "ports":
		err = printPorts()
	default:
		err = fmt.Errorf("unknown mode %q", *modeFlag)
	}
	if err != nil {
		slog.Error("mlbench failed", "mode", *modeFlag, "err", err)
		os.Exit(1)
	}
}
