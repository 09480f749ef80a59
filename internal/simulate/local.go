package simulate

import (
	"context"

	"go.uber.org/zap"

	"alphaRouter/internal/chains"
	"alphaRouter/internal/model"
)

// EstimateGasSimulator is the cheap path: it runs eth_estimateGas against the
// node and only works when the router can already pull the input token.
type EstimateGasSimulator struct {
	checker
}

func NewEstimateGasSimulator(c *chains.Chain, backend Backend, logger *zap.Logger) *EstimateGasSimulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EstimateGasSimulator{checker: checker{chain: c, backend: backend, logger: logger}}
}

func (s *EstimateGasSimulator) Simulate(ctx context.Context, req Request) Result {
	pre := s.run(ctx, req)
	if pre.terminal {
		return observe(Result{Status: pre.status})
	}
	if !pre.approved {
		return observe(Result{Status: model.SimulationNotApproved})
	}
	return observe(s.estimate(ctx, req))
}

func (s *EstimateGasSimulator) estimate(ctx context.Context, req Request) Result {
	gas, err := s.backend.EstimateGas(ctx, callMsg(req))
	if err != nil {
		s.logger.Warn("gas estimate simulation failed",
			zap.String("from", req.From.Hex()),
			zap.String("to", req.Call.To.Hex()),
			zap.Error(err),
		)
		return Result{Status: model.SimulationFailed}
	}
	return Result{Status: model.SimulationSucceeded, GasEstimate: pad(gas, s.chain.GasPadding)}
}
