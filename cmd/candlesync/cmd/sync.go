package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/rustyeddy/candlesync/market"
	"github.com/rustyeddy/candlesync/oanda"
	"github.com/rustyeddy/candlesync/store"
	"github.com/rustyeddy/candlesync/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch and persist candle history (also the default command)",
	RunE:  runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

// newClient builds the OANDA client from the resolved configuration.
func newClient() (*oanda.Client, error) {
	baseURL, err := oanda.BaseURL(cfg.Env)
	if err != nil {
		return nil, err
	}
	return &oanda.Client{
		BaseURL:   baseURL,
		Token:     cfg.Token,
		AccountID: cfg.AccountID,
		HTTP:      &http.Client{Timeout: 30 * time.Second},
		Limiter:   rate.NewLimiter(rate.Every(100*time.Millisecond), 2),
		Logger:    slog.Default(),
	}, nil
}

func runSync(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	granularities, err := cfg.ParseGranularities()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client, err := newClient()
	if err != nil {
		return err
	}

	universe, err := client.Instruments(ctx)
	if err != nil {
		return err
	}
	instruments := market.FilterInstruments(universe, cfg.Instruments)
	if len(instruments) == 0 {
		return fmt.Errorf("no instruments matched the whitelist (%d available)", len(universe))
	}

	st, err := store.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("open database %s: %w", cfg.DB, err)
	}
	defer st.Close()
	st.Retention = cfg.Retention

	jobs := sync.Jobs(instruments, granularities)
	slog.Info("starting sync",
		"db", cfg.DB,
		"instruments", len(instruments),
		"granularities", len(granularities),
		"jobs", len(jobs),
		"workers", cfg.Workers)

	runner := &sync.Runner{
		Source:  client,
		Store:   st,
		Workers: cfg.Workers,
		Logger:  slog.Default(),
	}
	summary := runner.Run(ctx, jobs)

	summary.Report(cmd.OutOrStdout())

	succeeded, partial, failed, canceled := summary.Counts()
	if err := st.RecordRun(ctx, store.RunRecord{
		RunID:      summary.RunID,
		StartedAt:  summary.Started,
		FinishedAt: summary.Finished,
		Jobs:       len(summary.Results),
		Succeeded:  succeeded,
		Partial:    partial,
		Failed:     failed,
		Canceled:   canceled,
	}); err != nil {
		slog.Warn("failed to journal sync run", "error", err)
	}

	if !summary.OK() {
		return fmt.Errorf("sync finished with failures")
	}
	return nil
}
