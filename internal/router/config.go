package router

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"alphaRouter/internal/chain"
	"alphaRouter/internal/model"
	"alphaRouter/internal/portion"
)

// maxQuotesPerPercent bounds how many quotes per trial percent enter the
// split search.
const maxQuotesPerPercent = 5

// PoolSelection holds the top-N knobs of candidate pool selection.
type PoolSelection struct {
	TopN                  int
	TopNDirectSwaps       int
	TopNTokenInOut        int
	TopNSecondHop         int
	TopNWithEachBaseToken int
	TopNWithBaseToken     int
}

// Config is the routing configuration of one request.
type Config struct {
	V2PoolSelection     PoolSelection
	V3PoolSelection     PoolSelection
	MaxSwapsPerPath     int
	MinSplits           int
	MaxSplits           int
	DistributionPercent int
	// Protocols restricts the venue kinds. Empty means all supported kinds.
	Protocols        []model.Protocol
	ForceMixedRoutes bool

	// BlockNumber and GasPriceWei pin the request instead of reading them
	// from the node.
	BlockNumber *uint64
	GasPriceWei *big.Int
}

// DefaultConfig returns the routing defaults shared by the supported chains.
func DefaultConfig() Config {
	selection := PoolSelection{
		TopN:                  2,
		TopNDirectSwaps:       2,
		TopNTokenInOut:        3,
		TopNSecondHop:         1,
		TopNWithEachBaseToken: 3,
		TopNWithBaseToken:     5,
	}
	return Config{
		V2PoolSelection:     selection,
		V3PoolSelection:     selection,
		MaxSwapsPerPath:     3,
		MinSplits:           1,
		MaxSplits:           3,
		DistributionPercent: 5,
	}
}

// Validate rejects configurations the search cannot honor.
func (c Config) Validate() error {
	if c.DistributionPercent <= 0 || c.DistributionPercent > 100 || 100%c.DistributionPercent != 0 {
		return fmt.Errorf("distribution percent %d must divide 100", c.DistributionPercent)
	}
	if c.MinSplits < 1 || c.MaxSplits < c.MinSplits {
		return fmt.Errorf("invalid split bounds [%d, %d]", c.MinSplits, c.MaxSplits)
	}
	if c.MaxSwapsPerPath < 1 {
		return fmt.Errorf("max swaps per path must be positive, got %d", c.MaxSwapsPerPath)
	}
	for _, p := range c.Protocols {
		switch p {
		case model.ProtocolV2, model.ProtocolV3, model.ProtocolMixed:
		default:
			return fmt.Errorf("unknown protocol %q", p)
		}
	}
	return nil
}

func (c Config) hasProtocol(p model.Protocol) bool {
	for _, q := range c.Protocols {
		if q == p {
			return true
		}
	}
	return false
}

// SwapOptions are the execution parameters of a request. When present the
// plan carries call data for the swap router.
type SwapOptions struct {
	Recipient         common.Address
	SlippageTolerance *big.Rat
	Deadline          time.Time
	// From is the swapper address used for simulation.
	From         common.Address
	Simulate     bool
	PermitSigned bool
	Portion      *portion.Config
}

func (o *SwapOptions) validate() error {
	if o == nil {
		return nil
	}
	if o.SlippageTolerance != nil && (o.SlippageTolerance.Sign() < 0 || o.SlippageTolerance.Cmp(big.NewRat(1, 1)) >= 0) {
		return fmt.Errorf("slippage tolerance %s out of range", o.SlippageTolerance.RatString())
	}
	if err := o.Portion.Validate(); err != nil {
		return err
	}
	return nil
}

// RatioConfig bounds the ratio balancing loop.
type RatioConfig struct {
	ErrorTolerance *big.Rat
	MaxIterations  int
	Routing        Config
}

// DefaultRatioConfig tolerates a 1% ratio error over at most 6 iterations.
func DefaultRatioConfig() RatioConfig {
	return RatioConfig{
		ErrorTolerance: big.NewRat(1, 100),
		MaxIterations:  6,
		Routing:        DefaultConfig(),
	}
}

var blockRetry = chain.RetryPolicy{Retries: 2, MinDelay: 100 * time.Millisecond, MaxDelay: time.Second}
