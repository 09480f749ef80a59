package simulate

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"alphaRouter/internal/chains"
	"alphaRouter/internal/dex"
	"alphaRouter/internal/model"
)

var (
	swapper = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	router  = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	token   = model.NewToken(1, common.HexToAddress("0x00000000000000000000000000000000000000cc"), 18, "TKN")
)

type fakeBackend struct {
	balance     *big.Int
	allowance   *big.Int
	native      *big.Int
	gas         uint64
	estimateErr error

	estimates      int
	allowanceReads int
}

func (b *fakeBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	erc20, err := dex.ERC20ABI()
	if err != nil {
		return nil, err
	}
	for _, name := range []string{"balanceOf", "allowance"} {
		method := erc20.Methods[name]
		if !bytes.Equal(msg.Data[:4], method.ID) {
			continue
		}
		value := b.balance
		if name == "allowance" {
			b.allowanceReads++
			value = b.allowance
		}
		return method.Outputs.Pack(value)
	}
	return nil, errors.New("unexpected call")
}

func (b *fakeBackend) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return b.native, nil
}

func (b *fakeBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	b.estimates++
	if b.estimateErr != nil {
		return 0, b.estimateErr
	}
	return b.gas, nil
}

type fakeBundleRPC struct {
	err     error
	results []bundleTxResult
	calls   int
	lastTxs []bundleTx
}

func (r *fakeBundleRPC) CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	r.calls++
	if r.err != nil {
		return r.err
	}
	r.lastTxs = args[0].([]bundleTx)
	*(result.(*[]bundleTxResult)) = r.results
	return nil
}

func mainnet(t *testing.T) *chains.Chain {
	t.Helper()
	c, err := chains.Get(chains.Mainnet)
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	return c
}

func request(asset model.Asset, amount int64) Request {
	return Request{
		From:     swapper,
		TokenIn:  asset,
		AmountIn: big.NewInt(amount),
		Call:     model.MethodParameters{To: router, Calldata: []byte{0x01, 0x02, 0x03, 0x04}, Value: new(big.Int)},
	}
}

func noRetry() RemoteConfig {
	cfg := DefaultRemoteConfig()
	cfg.Retry.Retries = 0
	return cfg
}

func TestInsufficientBalanceIsTerminal(t *testing.T) {
	backend := &fakeBackend{balance: big.NewInt(10), allowance: big.NewInt(1_000), gas: 100_000}
	sim := NewFallbackSimulator(mainnet(t), backend, nil, nil)

	res := sim.Simulate(context.Background(), request(token, 100))
	if res.Status != model.SimulationInsufficientBalance {
		t.Fatalf("expected insufficient balance, got %s", res.Status)
	}
	if backend.estimates != 0 {
		t.Fatalf("no gas estimate expected, got %d", backend.estimates)
	}
}

func TestUnsupportedChain(t *testing.T) {
	c := *mainnet(t)
	c.SimulationDisabled = true
	backend := &fakeBackend{balance: big.NewInt(1_000), allowance: big.NewInt(1_000), gas: 100_000}

	res := NewFallbackSimulator(&c, backend, nil, nil).Simulate(context.Background(), request(token, 100))
	if res.Status != model.SimulationNotSupported {
		t.Fatalf("expected not supported, got %s", res.Status)
	}
}

func TestNotApprovedWithoutRemote(t *testing.T) {
	backend := &fakeBackend{balance: big.NewInt(1_000), allowance: big.NewInt(50), gas: 100_000}
	res := NewFallbackSimulator(mainnet(t), backend, nil, nil).Simulate(context.Background(), request(token, 100))
	if res.Status != model.SimulationNotApproved {
		t.Fatalf("expected not approved, got %s", res.Status)
	}
}

func TestApprovedUsesPaddedGasEstimate(t *testing.T) {
	backend := &fakeBackend{balance: big.NewInt(1_000), allowance: big.NewInt(100), gas: 100_000}
	remote := &fakeBundleRPC{}
	c := mainnet(t)
	sim := NewFallbackSimulator(c, backend, NewRemoteSimulator(c, backend, remote, noRetry(), nil), nil)

	res := sim.Simulate(context.Background(), request(token, 100))
	if res.Status != model.SimulationSucceeded || res.GasEstimate != 120_000 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if remote.calls != 0 {
		t.Fatalf("remote simulation must not run for approved swaps")
	}
}

func TestNativeInputSkipsAllowance(t *testing.T) {
	c := mainnet(t)
	backend := &fakeBackend{native: big.NewInt(1_000), gas: 50_000}
	res := NewEstimateGasSimulator(c, backend, nil).Simulate(context.Background(), request(c.Native, 100))
	if res.Status != model.SimulationSucceeded || res.GasEstimate != 60_000 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if backend.allowanceReads != 0 {
		t.Fatalf("native input must not read an allowance")
	}
}

func TestPermitCountsAsApproval(t *testing.T) {
	backend := &fakeBackend{balance: big.NewInt(1_000), allowance: big.NewInt(0), gas: 100_000}
	req := request(token, 100)
	req.PermitSigned = true
	res := NewEstimateGasSimulator(mainnet(t), backend, nil).Simulate(context.Background(), req)
	if res.Status != model.SimulationSucceeded {
		t.Fatalf("expected success with permit, got %s", res.Status)
	}
}

func TestEstimateFailureIsFailed(t *testing.T) {
	backend := &fakeBackend{balance: big.NewInt(1_000), allowance: big.NewInt(1_000), estimateErr: errors.New("execution reverted")}
	res := NewEstimateGasSimulator(mainnet(t), backend, nil).Simulate(context.Background(), request(token, 100))
	if res.Status != model.SimulationFailed {
		t.Fatalf("expected failed, got %s", res.Status)
	}
}

func TestRemoteBundleIncludesApproval(t *testing.T) {
	backend := &fakeBackend{balance: big.NewInt(1_000), allowance: big.NewInt(0)}
	rpc := &fakeBundleRPC{results: []bundleTxResult{
		{Status: true, GasUsed: hexutil.Uint64(46_000)},
		{Status: true, GasUsed: hexutil.Uint64(200_000)},
	}}
	c := mainnet(t)
	sim := NewFallbackSimulator(c, backend, NewRemoteSimulator(c, backend, rpc, noRetry(), nil), nil)

	res := sim.Simulate(context.Background(), request(token, 100))
	if res.Status != model.SimulationSucceeded || res.GasEstimate != 240_000 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(rpc.lastTxs) != 2 || rpc.lastTxs[0].To != token.Address || rpc.lastTxs[1].To != router {
		t.Fatalf("bundle should approve then swap: %+v", rpc.lastTxs)
	}
}

func TestRemoteFailureFallsBackToCheapPath(t *testing.T) {
	backend := &fakeBackend{balance: big.NewInt(1_000), allowance: big.NewInt(0), gas: 100_000}
	rpc := &fakeBundleRPC{err: errors.New("connection refused")}
	c := mainnet(t)
	sim := NewFallbackSimulator(c, backend, NewRemoteSimulator(c, backend, rpc, noRetry(), nil), nil)

	res := sim.Simulate(context.Background(), request(token, 100))
	if rpc.calls != 1 {
		t.Fatalf("expected one remote call, got %d", rpc.calls)
	}
	if res.Status != model.SimulationNotApproved {
		t.Fatalf("cheap path should report the missing approval, got %s", res.Status)
	}
	if backend.estimates != 0 {
		t.Fatalf("unapproved swap needs no gas estimate, got %d", backend.estimates)
	}
}

func TestRemoteRevertIsFailed(t *testing.T) {
	backend := &fakeBackend{balance: big.NewInt(1_000), allowance: big.NewInt(1_000)}
	rpc := &fakeBundleRPC{results: []bundleTxResult{{Status: false, Error: "STF"}}}
	c := mainnet(t)

	res := NewRemoteSimulator(c, backend, rpc, noRetry(), nil).Simulate(context.Background(), request(token, 100))
	if res.Status != model.SimulationFailed {
		t.Fatalf("expected failed, got %s", res.Status)
	}
	if len(rpc.lastTxs) != 1 {
		t.Fatalf("approved swap needs no approval tx: %d", len(rpc.lastTxs))
	}
}

func TestPad(t *testing.T) {
	if got := pad(100_001, big.NewRat(13, 10)); got != 130_001 {
		t.Fatalf("pad mismatch: %d", got)
	}
	if got := pad(7, nil); got != 7 {
		t.Fatalf("nil factor must keep gas: %d", got)
	}
}
