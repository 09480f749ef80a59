package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// A missing .env file is fine; real environment variables still apply.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:          "router",
		Short:        "Smart order router for constant-product and concentrated-liquidity pools",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	quoteCmd := &cobra.Command{
		Use:   "quote <amount> <token-in> <token-out>",
		Short: "Find the best split route for a trade",
		Args:  cobra.ExactArgs(3),
		RunE:  runQuote,
	}
	addStackFlags(quoteCmd.Flags())
	addRoutingFlags(quoteCmd.Flags())
	quoteCmd.Flags().Bool("exact-out", false, "treat amount as the desired output of token-out")
	quoteCmd.Flags().String("recipient", "", "recipient of the swap; enables call data")
	quoteCmd.Flags().Int64("slippage-bips", 50, "slippage tolerance in basis points")
	quoteCmd.Flags().String("deadline", "30m", "swap deadline (duration, unix seconds or RFC3339)")
	quoteCmd.Flags().String("from", "", "swapper address used for simulation")
	quoteCmd.Flags().Bool("simulate", false, "simulate the swap from --from")
	quoteCmd.Flags().Bool("permit-signed", false, "the swapper signed a permit for the router")
	quoteCmd.Flags().Uint32("fee-bips", 0, "portion taken from exact input swaps in basis points")
	quoteCmd.Flags().String("flat-fee", "", "portion added to exact output swaps in raw units")
	quoteCmd.Flags().String("fee-recipient", "", "recipient of the portion")
	root.AddCommand(quoteCmd)

	ratioCmd := &cobra.Command{
		Use:   "ratio <token-a> <token-b> <fee> <tick-lower> <tick-upper> <amount-a> <amount-b>",
		Short: "Swap balances to the ratio a concentrated-liquidity position needs",
		Args:  cobra.ExactArgs(7),
		RunE:  runRatio,
	}
	addStackFlags(ratioCmd.Flags())
	addRoutingFlags(ratioCmd.Flags())
	ratioCmd.Flags().Int("max-iterations", 6, "maximum balancing iterations")
	ratioCmd.Flags().Int64("error-tolerance-bips", 100, "accepted ratio error in basis points")
	root.AddCommand(ratioCmd)

	syncCmd := &cobra.Command{
		Use:   "sync-pools <token> <token> [token...]",
		Short: "Derive pools between tokens and upsert them into Postgres",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runSyncPools,
	}
	addStackFlags(syncCmd.Flags())
	root.AddCommand(syncCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addStackFlags(flags *pflag.FlagSet) {
	flags.String("rpc", "", "RPC URL")
	flags.Uint64("chain-id", 1, "chain id (1 mainnet, 42220 celo)")
	flags.String("pg-dsn", "", "Postgres DSN")
	flags.String("pool-source", "derived", "pool listing source (derived, postgres)")
	flags.String("v3-cache-lifetime", "request", "lifetime of cached v3 pools (request, process)")
	flags.String("simulation-rpc", "", "RPC URL of a bundle simulation endpoint")
	flags.String("tokens", "", "token aliases (comma-separated symbol=address)")
	flags.String("out", "", "append results to this JSONL file")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

func addRoutingFlags(flags *pflag.FlagSet) {
	flags.StringSlice("protocols", nil, "venue kinds to route through (v2, v3, mixed)")
	flags.Bool("force-mixed-routes", false, "only return mixed routes")
	flags.Int("max-splits", 3, "maximum number of routes in a split")
	flags.Int("max-swaps-per-path", 3, "maximum hops per route")
	flags.Int("distribution-percent", 5, "split granularity in percent")
	flags.Uint64("block-number", 0, "route at this block, 0 means latest")
	flags.String("gas-price-wei", "", "pin the gas price in wei")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// serveMetrics exposes /metrics until ctx is done. An empty addr disables it.
func serveMetrics(ctx context.Context, addr string, logger *zap.Logger) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logger.Info("metrics server started", zap.String("addr", addr))
}
