package simulate

import (
	"context"

	"go.uber.org/zap"

	"alphaRouter/internal/chains"
	"alphaRouter/internal/model"
)

// BundleSimulator simulates a swap together with its approval.
type BundleSimulator interface {
	SimulateBundle(ctx context.Context, req Request, withApproval bool) Result
}

// FallbackSimulator picks the cheap gas estimate when the router can already
// spend the input and the remote bundle simulation otherwise. A failed remote
// simulation is retried through the cheap path.
type FallbackSimulator struct {
	checker
	local  *EstimateGasSimulator
	remote BundleSimulator
}

// NewFallbackSimulator builds the simulator chain. remote may be nil, in which
// case unapproved swaps end as NotApproved.
func NewFallbackSimulator(c *chains.Chain, backend Backend, remote BundleSimulator, logger *zap.Logger) *FallbackSimulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackSimulator{
		checker: checker{chain: c, backend: backend, logger: logger},
		local:   NewEstimateGasSimulator(c, backend, logger),
		remote:  remote,
	}
}

func (s *FallbackSimulator) Simulate(ctx context.Context, req Request) Result {
	pre := s.run(ctx, req)
	if pre.terminal {
		return observe(Result{Status: pre.status})
	}
	if pre.approved {
		return observe(s.local.estimate(ctx, req))
	}
	if s.remote == nil {
		return observe(Result{Status: model.SimulationNotApproved})
	}

	res := s.remote.SimulateBundle(ctx, req, true)
	if res.Status != model.SimulationFailed {
		return observe(res)
	}
	s.logger.Warn("remote simulation failed, falling back to gas estimate", zap.String("from", req.From.Hex()))
	return s.local.Simulate(ctx, req)
}
