package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/candlesync/config"
)

var (
	cfgPath string
	cfg     config.Config

	flagDB            string
	flagEnv           string
	flagAccountID     string
	flagToken         string
	flagGranularities []string
	flagInstruments   []string
	flagWorkers       int
	flagRetention     int
	flagLogLevel      string
	flagNoColor       bool
)

var rootCmd = &cobra.Command{
	Use:   "candlesync",
	Short: "Sync OANDA candle history into a local SQLite database",
	Long: `Candlesync downloads historical OHLC candles from the OANDA v3 API for a
configurable set of instruments and granularities (daily, weekly, monthly)
and merges them idempotently into a local SQLite database.

Credentials come from the OANDA_ACCESS_TOKEN and OANDA_ACCOUNT_ID environment
variables (a .env file is honored); flags override the environment.`,
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE:          runSync,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional)")
	pf.StringVar(&flagDB, "db", "oanda.db", "SQLite database path")
	pf.StringVar(&flagEnv, "env", "live", "OANDA environment: practice|live")
	pf.StringVar(&flagAccountID, "account-id", "", "OANDA account ID (overrides env variable)")
	pf.StringVar(&flagToken, "token", "", "OANDA access token (overrides env variable)")
	pf.StringVar(&flagLogLevel, "log-level", "info", "Log level: debug|info|warn|error")
	pf.BoolVar(&flagNoColor, "no-color", false, "Disable colored log output")
	pf.StringSliceVar(&flagGranularities, "granularity", nil, "Granularities to sync (D, W, M; default all)")
	pf.StringSliceVar(&flagInstruments, "instruments", nil, "Instrument whitelist, matched by prefix (default built-in list)")
	pf.IntVar(&flagWorkers, "workers", 0, "Concurrent sync jobs (default from config)")
	pf.IntVar(&flagRetention, "retention", -1, "Candles kept per instrument/granularity, 0 disables pruning")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return loadConfig()
	}
}

// loadConfig layers .env, config file, environment and flag overrides, then
// installs the logger.
func loadConfig() error {
	// Best-effort: a missing .env is fine.
	_ = godotenv.Load()

	c, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	pf := rootCmd.PersistentFlags()
	if pf.Changed("db") {
		c.DB = flagDB
	}
	if pf.Changed("env") {
		c.Env = flagEnv
	}
	if pf.Changed("account-id") {
		c.AccountID = flagAccountID
	}
	if pf.Changed("token") {
		c.Token = flagToken
	}
	if pf.Changed("log-level") {
		c.LogLevel = flagLogLevel
	}
	if pf.Changed("no-color") {
		c.NoColor = flagNoColor
	}

	if pf.Changed("granularity") {
		c.Granularities = flagGranularities
	}
	if pf.Changed("instruments") {
		c.Instruments = flagInstruments
	}
	if pf.Changed("workers") {
		c.Workers = flagWorkers
	}
	if pf.Changed("retention") {
		c.Retention = flagRetention
	}

	if err := setupLogging(c); err != nil {
		return err
	}

	cfg = c
	return nil
}

func setupLogging(c config.Config) error {
	var level slog.Level
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "", "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}

	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.DateTime,
			NoColor:    c.NoColor,
		}),
	))
	return nil
}
