package simulate

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"go.uber.org/zap"

	"alphaRouter/internal/chain"
	"alphaRouter/internal/chains"
	"alphaRouter/internal/dex"
	"alphaRouter/internal/model"
)

// RPCCaller issues raw JSON-RPC requests; *rpc.Client satisfies it.
type RPCCaller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// RemoteConfig configures the bundle simulation endpoint.
type RemoteConfig struct {
	Method string
	Retry  chain.RetryPolicy
}

func DefaultRemoteConfig() RemoteConfig {
	return RemoteConfig{
		Method: "tenderly_simulateBundle",
		Retry:  chain.RetryPolicy{Retries: 2, MinDelay: 100 * time.Millisecond, MaxDelay: time.Second},
	}
}

type bundleTx struct {
	From  common.Address `json:"from"`
	To    common.Address `json:"to"`
	Input hexutil.Bytes  `json:"input"`
	Value *hexutil.Big   `json:"value"`
}

type bundleTxResult struct {
	Status  bool           `json:"status"`
	GasUsed hexutil.Uint64 `json:"gasUsed"`
	Error   string         `json:"error,omitempty"`
}

// RemoteSimulator dry-runs the approval and the swap as one atomic bundle on
// a remote simulation endpoint, so it can simulate swaps that are not yet
// approved.
type RemoteSimulator struct {
	checker
	rpc RPCCaller
	cfg RemoteConfig
}

func NewRemoteSimulator(c *chains.Chain, backend Backend, rpc RPCCaller, cfg RemoteConfig, logger *zap.Logger) *RemoteSimulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Method == "" {
		cfg.Method = DefaultRemoteConfig().Method
	}
	return &RemoteSimulator{checker: checker{chain: c, backend: backend, logger: logger}, rpc: rpc, cfg: cfg}
}

func (s *RemoteSimulator) Simulate(ctx context.Context, req Request) Result {
	pre := s.run(ctx, req)
	if pre.terminal {
		return observe(Result{Status: pre.status})
	}
	return observe(s.SimulateBundle(ctx, req, !pre.approved))
}

// SimulateBundle runs the bundle without prechecks. When withApproval is set
// an unlimited approval of the spender precedes the swap.
func (s *RemoteSimulator) SimulateBundle(ctx context.Context, req Request, withApproval bool) Result {
	txs, err := s.bundle(req, withApproval)
	if err != nil {
		s.logger.Warn("build simulation bundle failed", zap.Error(err))
		return Result{Status: model.SimulationFailed}
	}

	var results []bundleTxResult
	err = chain.WithRetry(ctx, s.cfg.Retry, func(ctx context.Context) error {
		results = nil
		return s.rpc.CallContext(ctx, &results, s.cfg.Method, txs, blockTag(req.BlockNumber))
	})
	if err != nil {
		s.logger.Warn("remote simulation request failed", zap.String("method", s.cfg.Method), zap.Error(err))
		return Result{Status: model.SimulationFailed}
	}
	if len(results) != len(txs) {
		s.logger.Warn("remote simulation returned unexpected results",
			zap.Int("want", len(txs)),
			zap.Int("got", len(results)),
		)
		return Result{Status: model.SimulationFailed}
	}
	for i, r := range results {
		if !r.Status {
			s.logger.Warn("remote simulation reverted", zap.Int("tx", i), zap.String("error", r.Error))
			return Result{Status: model.SimulationFailed}
		}
	}
	swap := results[len(results)-1]
	return Result{Status: model.SimulationSucceeded, GasEstimate: pad(uint64(swap.GasUsed), s.chain.GasPadding)}
}

func (s *RemoteSimulator) bundle(req Request, withApproval bool) ([]bundleTx, error) {
	var txs []bundleTx
	if withApproval && !req.TokenIn.Native {
		erc20, err := dex.ERC20ABI()
		if err != nil {
			return nil, err
		}
		data, err := erc20.Pack("approve", req.Call.To, math.MaxBig256)
		if err != nil {
			return nil, fmt.Errorf("pack approve: %w", err)
		}
		txs = append(txs, bundleTx{From: req.From, To: req.TokenIn.Address, Input: data, Value: (*hexutil.Big)(new(big.Int))})
	}
	value := req.Call.Value
	if value == nil {
		value = new(big.Int)
	}
	txs = append(txs, bundleTx{From: req.From, To: req.Call.To, Input: req.Call.Calldata, Value: (*hexutil.Big)(value)})
	return txs, nil
}

func blockTag(block *uint64) string {
	if block == nil {
		return "latest"
	}
	return hexutil.EncodeUint64(*block)
}
