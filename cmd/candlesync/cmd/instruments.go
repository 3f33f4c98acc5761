package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/candlesync/market"
)

var instrumentsFiltered bool

var instrumentsCmd = &cobra.Command{
	Use:   "instruments",
	Short: "List the instruments available to the configured account",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Token == "" || cfg.AccountID == "" {
			return fmt.Errorf("credentials required: set OANDA_ACCESS_TOKEN and OANDA_ACCOUNT_ID")
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

		names := universe
		if instrumentsFiltered {
			names = market.FilterInstruments(universe, cfg.Instruments)
		}

		for _, name := range names {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

func init() {
	instrumentsCmd.Flags().BoolVar(&instrumentsFiltered, "filtered", false, "Apply the configured instrument whitelist")
	rootCmd.AddCommand(instrumentsCmd)
}
