package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"alphaRouter/internal/config"
	"alphaRouter/internal/model"
	"alphaRouter/internal/storage"
)

type routeView struct {
	Protocol string   `json:"protocol"`
	Percent  int      `json:"percent"`
	Path     string   `json:"path"`
	Pools    []string `json:"pools"`
	Amount   string   `json:"amount"`
	Quote    string   `json:"quote"`
}

type planView struct {
	TradeType                  string        `json:"trade_type"`
	BlockNumber                uint64        `json:"block_number"`
	GasPriceGwei               string        `json:"gas_price_gwei"`
	Amount                     string        `json:"amount"`
	Quote                      string        `json:"quote"`
	QuoteGasAdjusted           string        `json:"quote_gas_adjusted"`
	QuoteGasAndPortionAdjusted string        `json:"quote_gas_and_portion_adjusted,omitempty"`
	PortionAmount              string        `json:"portion_amount,omitempty"`
	EstimatedGasUsed           uint64        `json:"estimated_gas_used"`
	EstimatedGasUsedQuoteToken string        `json:"estimated_gas_used_quote_token"`
	EstimatedGasUsedUSD        string        `json:"estimated_gas_used_usd"`
	Routes                     []routeView   `json:"routes"`
	To                         string        `json:"to,omitempty"`
	Calldata                   hexutil.Bytes `json:"calldata,omitempty"`
	Value                      *hexutil.Big  `json:"value,omitempty"`
	Simulation                 string        `json:"simulation,omitempty"`
}

func newPlanView(plan *model.SwapPlan) planView {
	view := planView{
		TradeType:                  plan.TradeType.String(),
		BlockNumber:                plan.BlockNumber,
		Amount:                     plan.Amount.String(),
		Quote:                      plan.Quote.String(),
		QuoteGasAdjusted:           plan.QuoteGasAdjusted.String(),
		EstimatedGasUsed:           plan.EstimatedGasUsed,
		EstimatedGasUsedQuoteToken: plan.EstimatedGasUsedQuoteToken.String(),
		EstimatedGasUsedUSD:        plan.EstimatedGasUsedUSD.String(),
	}
	if plan.GasPriceWei != nil {
		view.GasPriceGwei = decimal.NewFromBigInt(plan.GasPriceWei, -9).String()
	}
	if plan.QuoteGasAndPortionAdjusted != nil {
		view.QuoteGasAndPortionAdjusted = plan.QuoteGasAndPortionAdjusted.String()
	}
	if plan.PortionAmount != nil {
		view.PortionAmount = plan.PortionAmount.String()
	}
	for _, r := range plan.Routes {
		symbols := make([]string, len(r.Route.Path))
		for i, a := range r.Route.Path {
			symbols[i] = a.String()
		}
		addrs := r.Route.PoolAddresses()
		pools := make([]string, len(addrs))
		for i, a := range addrs {
			pools[i] = a.Hex()
		}
		view.Routes = append(view.Routes, routeView{
			Protocol: string(r.Route.Protocol),
			Percent:  r.Percent,
			Path:     strings.Join(symbols, " -> "),
			Pools:    pools,
			Amount:   r.Amount.String(),
			Quote:    r.Quote.String(),
		})
	}
	if mp := plan.MethodParameters; mp != nil {
		view.To = mp.To.Hex()
		view.Calldata = mp.Calldata
		if mp.Value != nil {
			view.Value = (*hexutil.Big)(mp.Value)
		}
	}
	if plan.Simulation != nil {
		view.Simulation = plan.Simulation.String()
	}
	return view
}

func runQuote(cmd *cobra.Command, args []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	routing, err := cfg.Routing()
	if err != nil {
		return err
	}
	swap, err := cfg.SwapOptions(time.Now())
	if err != nil {
		return err
	}
	exactOut, _ := cmd.Flags().GetBool("exact-out")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	serveMetrics(ctx, cfg.MetricsAddr, logger)

	s, err := buildStack(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	tokenIn, err := s.resolveAsset(ctx, args[1])
	if err != nil {
		return err
	}
	tokenOut, err := s.resolveAsset(ctx, args[2])
	if err != nil {
		return err
	}

	tradeType := model.ExactInput
	amountAsset, quoteAsset := tokenIn, tokenOut
	if exactOut {
		tradeType = model.ExactOutput
		amountAsset, quoteAsset = tokenOut, tokenIn
	}
	amount, err := model.ParseAmount(amountAsset, args[0])
	if err != nil {
		return err
	}

	logger.Info("quote start",
		zap.String("amount", amount.String()),
		zap.String("quote_currency", quoteAsset.String()),
		zap.Stringer("trade_type", tradeType),
		zap.String("chain", s.chain.Name),
	)

	plan, err := s.router.Route(ctx, amount, quoteAsset, tradeType, swap, &routing)
	if err != nil {
		return err
	}
	if plan == nil {
		logger.Info("no route found")
		return fmt.Errorf("no route found for %s -> %s", tokenIn, tokenOut)
	}

	view := newPlanView(plan)
	if err := appendResult(cfg.Out, view); err != nil {
		return err
	}
	return printJSON(cmd, view)
}

// appendResult records v in the JSONL file at path. An empty path disables it.
func appendResult(path string, v any) error {
	if path == "" {
		return nil
	}
	var sink storage.Sink = storage.NewJsonlStorage(path)
	return sink.Put(v)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
