package simulate

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"alphaRouter/internal/chain"
	"alphaRouter/internal/chains"
	"alphaRouter/internal/dex"
	"alphaRouter/internal/metrics"
	"alphaRouter/internal/model"
)

// Backend is the node access simulators need.
type Backend interface {
	chain.Caller
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}

// Request describes the transaction to dry-run.
type Request struct {
	From common.Address
	// TokenIn is the asset spent; AmountIn the most that can be spent.
	TokenIn      model.Asset
	AmountIn     *big.Int
	Call         model.MethodParameters
	PermitSigned bool
	BlockNumber  *uint64
}

// Result is the terminal state of a simulation.
type Result struct {
	Status      model.SimulationStatus
	GasEstimate uint64
}

// Simulator dry-runs a swap. Implementations never return errors: every
// failure is reported as SimulationFailed.
type Simulator interface {
	Simulate(ctx context.Context, req Request) Result
}

type precheck struct {
	status   model.SimulationStatus
	terminal bool
	approved bool
}

// checker runs the balance, chain support and allowance checks shared by all
// simulators, in that order of precedence.
type checker struct {
	chain   *chains.Chain
	backend Backend
	logger  *zap.Logger
}

func (c *checker) run(ctx context.Context, req Request) precheck {
	block := chain.BlockArg(req.BlockNumber)
	var balance, allowance *big.Int

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if req.TokenIn.Native {
			balance, err = c.backend.BalanceAt(gctx, req.From, block)
		} else {
			balance, err = dex.BalanceOf(gctx, c.backend, req.TokenIn.Address, req.From, block)
		}
		if err != nil {
			return fmt.Errorf("read balance: %w", err)
		}
		return nil
	})
	if !req.TokenIn.Native && !req.PermitSigned {
		g.Go(func() error {
			var err error
			allowance, err = dex.Allowance(gctx, c.backend, req.TokenIn.Address, req.From, req.Call.To, block)
			if err != nil {
				return fmt.Errorf("read allowance: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.logger.Warn("simulation precheck failed", zap.String("from", req.From.Hex()), zap.Error(err))
		return precheck{status: model.SimulationFailed, terminal: true}
	}

	if req.AmountIn != nil && balance.Cmp(req.AmountIn) < 0 {
		c.logger.Info("insufficient balance for simulation",
			zap.String("token", req.TokenIn.String()),
			zap.String("balance", balance.String()),
			zap.String("required", req.AmountIn.String()),
		)
		return precheck{status: model.SimulationInsufficientBalance, terminal: true}
	}
	if c.chain.SimulationDisabled {
		return precheck{status: model.SimulationNotSupported, terminal: true}
	}

	approved := req.TokenIn.Native || req.PermitSigned
	if allowance != nil && req.AmountIn != nil && allowance.Cmp(req.AmountIn) >= 0 {
		approved = true
	}
	return precheck{approved: approved}
}

// pad multiplies gas by the chain's safety factor, rounding down.
func pad(gas uint64, factor *big.Rat) uint64 {
	if factor == nil {
		return gas
	}
	padded := new(big.Rat).Mul(new(big.Rat).SetInt(new(big.Int).SetUint64(gas)), factor)
	return model.FloorRat(padded).Uint64()
}

func observe(r Result) Result {
	metrics.Simulations.WithLabelValues(r.Status.String()).Inc()
	return r
}

func callMsg(req Request) ethereum.CallMsg {
	to := req.Call.To
	value := req.Call.Value
	if value == nil {
		value = new(big.Int)
	}
	return ethereum.CallMsg{From: req.From, To: &to, Data: req.Call.Calldata, Value: value}
}
