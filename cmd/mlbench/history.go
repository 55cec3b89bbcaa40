package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/itohio/mlbench/pkg/api"
	"github.com/itohio/mlbench/pkg/config"
	"github.com/itohio/mlbench/pkg/store"
)

func openStore(cfg *config.Config) (*store.Store, error) {
	if cfg.Store.Path == "" {
		return nil, errors.New("no history database configured")
	}
	return store.Open(cfg.Store.Path)
}

// printHistory lists the newest runs, of one scenario when filter is set.
func printHistory(ctx context.Context, cfg *config.Config, filter string, limit int) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.List(ctx, filter, limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tWHEN\tSOURCE\tTARGET\tSCENARIO\tTRIALS\tFAILED\tDSP us\tCLASS us\tANOMALY us\tTOTAL us\tP99 us")
	for _, r := range runs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d/%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
			r.ID, r.CreatedAt.Format(time.DateTime), r.Source, r.Target, r.Scenario,
			r.Successful, r.Trials, r.Failed, r.DSP, r.Classification, r.Anomaly, r.Total, r.P99)
	}
	return w.Flush()
}

// serveHistory exposes the history over HTTP until ctx is done.
func serveHistory(ctx context.Context, cfg *config.Config, addr string) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	srv := &http.Server{
		Handler:      api.NewRouter(st),
		Addr:         addr,
		WriteTimeout: 60 * time.Second,
		ReadTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("serving history", "addr", addr, "db", cfg.Store.Path)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
