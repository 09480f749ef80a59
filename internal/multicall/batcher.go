package multicall

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"alphaRouter/internal/chain"
	"alphaRouter/internal/dex"
	"alphaRouter/internal/metrics"
)

// Call is one read-only contract call inside a batch.
type Call struct {
	Target   common.Address
	ABI      abi.ABI
	Method   string
	Args     []interface{}
	GasLimit uint64
}

// Result is the outcome of one call. Values is set only when Success is true.
type Result struct {
	Success bool
	Values  []interface{}
	GasUsed uint64
	Err     error
}

// Batch holds results in input order and the block they were evaluated at.
type Batch struct {
	BlockNumber uint64
	Results     []Result
}

// SuccessCount returns how many calls succeeded.
func (b *Batch) SuccessCount() int {
	n := 0
	for _, r := range b.Results {
		if r.Success {
			n++
		}
	}
	return n
}

// Options controls a single batch.
type Options struct {
	BlockNumber     *uint64
	GasLimitPerCall uint64
}

// Config holds batcher settings.
type Config struct {
	Address         common.Address
	ChunkSize       int
	GasLimitPerCall uint64
	Retry           chain.RetryPolicy
}

// DefaultConfig returns the settings used for on-chain quoting.
func DefaultConfig(address common.Address) Config {
	return Config{
		Address:         address,
		ChunkSize:       150,
		GasLimitPerCall: 1_000_000,
		Retry:           chain.RetryPolicy{Retries: 2, MinDelay: 50 * time.Millisecond, MaxDelay: 500 * time.Millisecond},
	}
}

// Executor runs a batch of calls. Batcher is the on-chain implementation.
type Executor interface {
	Call(ctx context.Context, calls []Call, opts Options) (*Batch, error)
}

// Batcher aggregates calls through a UniswapInterfaceMulticall contract.
type Batcher struct {
	cfg    Config
	caller chain.Caller
	logger *zap.Logger
}

// NewBatcher builds a Batcher over caller.
func NewBatcher(cfg Config, caller chain.Caller, logger *zap.Logger) *Batcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 150
	}
	if cfg.GasLimitPerCall == 0 {
		cfg.GasLimitPerCall = 1_000_000
	}
	return &Batcher{cfg: cfg, caller: caller, logger: logger}
}

type multicallCall struct {
	Target   common.Address
	GasLimit *big.Int
	CallData []byte
}

type multicallResult struct {
	Success    bool
	GasUsed    *big.Int
	ReturnData []byte
}

// Call executes calls as one logical batch. Chunks beyond the first are pinned
// to the block the first chunk observed when no block is given. A transport
// failure of any chunk after retries fails the whole batch.
func (b *Batcher) Call(ctx context.Context, calls []Call, opts Options) (*Batch, error) {
	if b.caller == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	batch := &Batch{Results: make([]Result, len(calls))}
	if len(calls) == 0 {
		if opts.BlockNumber != nil {
			batch.BlockNumber = *opts.BlockNumber
		}
		return batch, nil
	}

	gasLimit := opts.GasLimitPerCall
	if gasLimit == 0 {
		gasLimit = b.cfg.GasLimitPerCall
	}

	packed := make([]multicallCall, 0, len(calls))
	index := make([]int, 0, len(calls))
	for i, call := range calls {
		data, err := call.ABI.Pack(call.Method, call.Args...)
		if err != nil {
			batch.Results[i] = Result{Err: fmt.Errorf("pack %s: %w", call.Method, err)}
			continue
		}
		limit := call.GasLimit
		if limit == 0 {
			limit = gasLimit
		}
		packed = append(packed, multicallCall{Target: call.Target, GasLimit: new(big.Int).SetUint64(limit), CallData: data})
		index = append(index, i)
	}

	ranges, err := SplitRange(len(packed), b.cfg.ChunkSize)
	if err != nil {
		return nil, err
	}
	if len(ranges) == 0 {
		return batch, nil
	}

	block := opts.BlockNumber
	first, err := b.execChunk(ctx, packed[ranges[0].From:ranges[0].To+1], block)
	if err != nil {
		return nil, err
	}
	batch.BlockNumber = first.blockNumber
	b.fill(batch, calls, index[ranges[0].From:ranges[0].To+1], first.results)
	if block == nil {
		pinned := first.blockNumber
		block = &pinned
	}

	if len(ranges) > 1 {
		rest := ranges[1:]
		chunks := make([]*chunkResult, len(rest))
		g, gctx := errgroup.WithContext(ctx)
		for i, r := range rest {
			i, r := i, r
			g.Go(func() error {
				res, err := b.execChunk(gctx, packed[r.From:r.To+1], block)
				if err != nil {
					return err
				}
				chunks[i] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		for i, r := range rest {
			b.fill(batch, calls, index[r.From:r.To+1], chunks[i].results)
		}
	}

	return batch, nil
}

type chunkResult struct {
	blockNumber uint64
	results     []multicallResult
}

func (b *Batcher) execChunk(ctx context.Context, chunk []multicallCall, block *uint64) (*chunkResult, error) {
	mcABI, err := dex.MulticallABI()
	if err != nil {
		return nil, fmt.Errorf("parse multicall abi: %w", err)
	}
	data, err := mcABI.Pack("multicall", chunk)
	if err != nil {
		return nil, fmt.Errorf("pack multicall: %w", err)
	}

	target := b.cfg.Address
	var out *chunkResult
	err = chain.WithRetry(ctx, b.cfg.Retry, func(ctx context.Context) error {
		start := time.Now()
		resp, err := b.caller.CallContract(ctx, ethereum.CallMsg{To: &target, Data: data}, chain.BlockArg(block))
		metrics.MulticallDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.MulticallBatches.WithLabelValues("error").Inc()
			b.logger.Warn("multicall failed", zap.Int("calls", len(chunk)), zap.Error(err))
			return fmt.Errorf("call multicall: %w", err)
		}
		values, err := mcABI.Unpack("multicall", resp)
		if err != nil {
			metrics.MulticallBatches.WithLabelValues("error").Inc()
			return fmt.Errorf("unpack multicall: %w", err)
		}
		if len(values) != 2 {
			return fmt.Errorf("multicall return size %d", len(values))
		}
		blockNumber, err := dex.AsBigInt(values[0])
		if err != nil {
			return fmt.Errorf("multicall block number: %w", err)
		}
		results := *abi.ConvertType(values[1], new([]multicallResult)).(*[]multicallResult)
		if len(results) != len(chunk) {
			return fmt.Errorf("multicall returned %d results for %d calls", len(results), len(chunk))
		}
		metrics.MulticallBatches.WithLabelValues("ok").Inc()
		out = &chunkResult{blockNumber: blockNumber.Uint64(), results: results}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Batcher) fill(batch *Batch, calls []Call, index []int, raw []multicallResult) {
	for j, res := range raw {
		i := index[j]
		call := calls[i]
		result := Result{}
		if res.GasUsed != nil {
			result.GasUsed = res.GasUsed.Uint64()
		}
		if !res.Success {
			result.Err = fmt.Errorf("%s reverted", call.Method)
			batch.Results[i] = result
			continue
		}
		values, err := call.ABI.Unpack(call.Method, res.ReturnData)
		if err != nil {
			result.Err = fmt.Errorf("unpack %s: %w", call.Method, err)
			batch.Results[i] = result
			continue
		}
		result.Success = true
		result.Values = values
		batch.Results[i] = result
	}
}

// CallSameFunction calls one method with the same arguments on many targets.
func (b *Batcher) CallSameFunction(ctx context.Context, targets []common.Address, parsed abi.ABI, method string, args []interface{}, opts Options) (*Batch, error) {
	calls := make([]Call, len(targets))
	for i, target := range targets {
		calls[i] = Call{Target: target, ABI: parsed, Method: method, Args: args}
	}
	return b.Call(ctx, calls, opts)
}

// CallWithParams calls one method on a single target with many argument sets.
func (b *Batcher) CallWithParams(ctx context.Context, target common.Address, parsed abi.ABI, method string, params [][]interface{}, opts Options) (*Batch, error) {
	calls := make([]Call, len(params))
	for i, args := range params {
		calls[i] = Call{Target: target, ABI: parsed, Method: method, Args: args}
	}
	return b.Call(ctx, calls, opts)
}
