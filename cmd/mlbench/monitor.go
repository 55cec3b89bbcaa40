package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/itohio/mlbench/pkg/config"
	"github.com/itohio/mlbench/pkg/monitor"
	"github.com/itohio/mlbench/pkg/store"
)

// runMonitor echoes the board console and records every report it prints.
func runMonitor(ctx context.Context, cfg *config.Config, once bool) error {
	var st *store.Store
	if cfg.Store.Path != "" {
		var err error
		if st, err = store.Open(cfg.Store.Path); err != nil {
			return err
		}
		defer st.Close()
	}

	m := monitor.New(cfg.Serial.Port, cfg.Serial.BaudRate, 0)
	m.Echo = os.Stdout
	if err := m.Connect(); err != nil {
		return err
	}
	defer m.Close()
	slog.Info("monitoring board", "port", cfg.Serial.Port, "baud", cfg.Serial.BaudRate)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-m.Events():
			if !ok {
				return fmt.Errorf("serial port %s closed", cfg.Serial.Port)
			}
			if ev.Err != nil {
				slog.Error("board aborted the run", "err", ev.Err)
				if once {
					return ev.Err
				}
				continue
			}
			slog.Info("report received",
				"target", ev.Report.Target,
				"scenario", ev.Report.Scenario,
				"successful", ev.Report.Successful,
				"failed", ev.Report.Failed,
				"total_us", ev.Report.MeanTotal)
			if st != nil {
				id, err := st.Save(ctx, store.FromReport(store.SourceSerial, ev.Report, nil))
				if err != nil {
					return err
				}
				slog.Info("run recorded", "id", id)
			}
			if once {
				return nil
			}
		}
	}
}

func printPorts() error {
	ports, err := monitor.Ports()
	if err != nil {
		return err
	}
	for _, p := range ports {
		fmt.Println(p.Name)
	}
	return nil
}
