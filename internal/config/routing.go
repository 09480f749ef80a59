package config

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"alphaRouter/internal/model"
	"alphaRouter/internal/portion"
	"alphaRouter/internal/router"
)

// RoutingConfig holds the routing knobs of a request.
type RoutingConfig struct {
	TopN                  int
	TopNDirectSwaps       int
	TopNTokenInOut        int
	TopNSecondHop         int
	TopNWithEachBaseToken int
	TopNWithBaseToken     int
	MaxSwapsPerPath       int
	MinSplits             int
	MaxSplits             int
	DistributionPercent   int
	Protocols             []string
	ForceMixedRoutes      bool
	BlockNumber           uint64
	GasPriceWei           string
}

func setRoutingDefaults(v *viper.Viper) {
	d := router.DefaultConfig()
	sel := d.V3PoolSelection
	v.SetDefault("top-n", sel.TopN)
	v.SetDefault("top-n-direct-swaps", sel.TopNDirectSwaps)
	v.SetDefault("top-n-token-in-out", sel.TopNTokenInOut)
	v.SetDefault("top-n-second-hop", sel.TopNSecondHop)
	v.SetDefault("top-n-with-each-base-token", sel.TopNWithEachBaseToken)
	v.SetDefault("top-n-with-base-token", sel.TopNWithBaseToken)
	v.SetDefault("max-swaps-per-path", d.MaxSwapsPerPath)
	v.SetDefault("min-splits", d.MinSplits)
	v.SetDefault("max-splits", d.MaxSplits)
	v.SetDefault("distribution-percent", d.DistributionPercent)
}

// LoadRouting reads the routing knobs from v.
func LoadRouting(v *viper.Viper) RoutingConfig {
	return RoutingConfig{
		TopN:                  v.GetInt("top-n"),
		TopNDirectSwaps:       v.GetInt("top-n-direct-swaps"),
		TopNTokenInOut:        v.GetInt("top-n-token-in-out"),
		TopNSecondHop:         v.GetInt("top-n-second-hop"),
		TopNWithEachBaseToken: v.GetInt("top-n-with-each-base-token"),
		TopNWithBaseToken:     v.GetInt("top-n-with-base-token"),
		MaxSwapsPerPath:       v.GetInt("max-swaps-per-path"),
		MinSplits:             v.GetInt("min-splits"),
		MaxSplits:             v.GetInt("max-splits"),
		DistributionPercent:   v.GetInt("distribution-percent"),
		Protocols:             getStringSlice(v, "protocols"),
		ForceMixedRoutes:      v.GetBool("force-mixed-routes"),
		BlockNumber:           v.GetUint64("block-number"),
		GasPriceWei:           v.GetString("gas-price-wei"),
	}
}

// Routing converts the knobs into a router configuration. The same pool
// selection applies to both venue kinds.
func (c Config) Routing() (router.Config, error) {
	r := c.RoutingKnobs
	sel := router.PoolSelection{
		TopN:                  r.TopN,
		TopNDirectSwaps:       r.TopNDirectSwaps,
		TopNTokenInOut:        r.TopNTokenInOut,
		TopNSecondHop:         r.TopNSecondHop,
		TopNWithEachBaseToken: r.TopNWithEachBaseToken,
		TopNWithBaseToken:     r.TopNWithBaseToken,
	}
	protocols, err := ParseProtocols(r.Protocols)
	if err != nil {
		return router.Config{}, err
	}
	out := router.Config{
		V2PoolSelection:     sel,
		V3PoolSelection:     sel,
		MaxSwapsPerPath:     r.MaxSwapsPerPath,
		MinSplits:           r.MinSplits,
		MaxSplits:           r.MaxSplits,
		DistributionPercent: r.DistributionPercent,
		Protocols:           protocols,
		ForceMixedRoutes:    r.ForceMixedRoutes,
	}
	if r.BlockNumber > 0 {
		block := r.BlockNumber
		out.BlockNumber = &block
	}
	if r.GasPriceWei != "" {
		price, ok := new(big.Int).SetString(r.GasPriceWei, 10)
		if !ok || price.Sign() <= 0 {
			return router.Config{}, fmt.Errorf("invalid gas price %q", r.GasPriceWei)
		}
		out.GasPriceWei = price
	}
	if err := out.Validate(); err != nil {
		return router.Config{}, fmt.Errorf("validate routing config: %w", err)
	}
	return out, nil
}

// ParseProtocols maps protocol names (v2, v3, mixed) to venue kinds.
func ParseProtocols(names []string) ([]model.Protocol, error) {
	out := make([]model.Protocol, 0, len(names))
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "v2":
			out = append(out, model.ProtocolV2)
		case "v3":
			out = append(out, model.ProtocolV3)
		case "mixed":
			out = append(out, model.ProtocolMixed)
		default:
			return nil, fmt.Errorf("unknown protocol %q", name)
		}
	}
	return out, nil
}

// SwapConfig holds the execution parameters used to build call data.
type SwapConfig struct {
	Recipient    string
	SlippageBips int64
	Deadline     string
	From         string
	Simulate     bool
	FeeBips      uint32
	FlatFee      string
	FeeRecipient string
	PermitSigned bool
}

func setSwapDefaults(v *viper.Viper) {
	v.SetDefault("slippage-bips", 50)
	v.SetDefault("deadline", "30m")
}

func loadSwap(v *viper.Viper) SwapConfig {
	return SwapConfig{
		Recipient:    v.GetString("recipient"),
		SlippageBips: v.GetInt64("slippage-bips"),
		Deadline:     v.GetString("deadline"),
		From:         v.GetString("from"),
		Simulate:     v.GetBool("simulate"),
		FeeBips:      v.GetUint32("fee-bips"),
		FlatFee:      v.GetString("flat-fee"),
		FeeRecipient: v.GetString("fee-recipient"),
		PermitSigned: v.GetBool("permit-signed"),
	}
}

// SwapOptions builds the execution options of a request. It returns nil when
// no recipient is configured, which asks the router for a quote only.
func (c Config) SwapOptions(now time.Time) (*router.SwapOptions, error) {
	s := c.Swap
	if s.Recipient == "" {
		return nil, nil
	}
	if !common.IsHexAddress(s.Recipient) {
		return nil, fmt.Errorf("invalid recipient %q", s.Recipient)
	}
	if s.SlippageBips < 0 || s.SlippageBips >= 10_000 {
		return nil, fmt.Errorf("slippage %d bips out of range", s.SlippageBips)
	}
	deadline, err := ParseDeadline(s.Deadline, now)
	if err != nil {
		return nil, fmt.Errorf("parse deadline: %w", err)
	}
	opts := &router.SwapOptions{
		Recipient:         common.HexToAddress(s.Recipient),
		SlippageTolerance: big.NewRat(s.SlippageBips, 10_000),
		Deadline:          deadline,
		Simulate:          s.Simulate,
		PermitSigned:      s.PermitSigned,
	}
	if s.From != "" {
		if !common.IsHexAddress(s.From) {
			return nil, fmt.Errorf("invalid from address %q", s.From)
		}
		opts.From = common.HexToAddress(s.From)
	}
	if s.FeeBips > 0 || s.FlatFee != "" {
		if !common.IsHexAddress(s.FeeRecipient) {
			return nil, fmt.Errorf("invalid fee recipient %q", s.FeeRecipient)
		}
		cfg := &portion.Config{FeeBips: s.FeeBips, Recipient: common.HexToAddress(s.FeeRecipient)}
		if s.FlatFee != "" {
			flat, ok := new(big.Int).SetString(s.FlatFee, 10)
			if !ok {
				return nil, fmt.Errorf("invalid flat fee %q", s.FlatFee)
			}
			cfg.FlatFee = flat
		}
		opts.Portion = cfg
	}
	return opts, nil
}

// ParseDeadline accepts a duration relative to now, unix seconds or RFC3339.
func ParseDeadline(input string, now time.Time) (time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return time.Time{}, nil
	}
	if isNumeric(input) {
		val, err := strconv.ParseInt(input, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(val, 0), nil
	}
	if d, err := time.ParseDuration(input); err == nil {
		return now.Add(d), nil
	}
	return time.Parse(time.RFC3339, input)
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}
