package tokens

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"alphaRouter/internal/dex"
	"alphaRouter/internal/model"
	"alphaRouter/internal/multicall"
)

var (
	detector = common.HexToAddress("0x19C97dc2a25845C7f9d1d519c8C2d4809c58b43f")
	weth     = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	fotToken = common.HexToAddress("0x00000000000000000000000000000000000000f0")
	stfToken = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	okToken  = common.HexToAddress("0x00000000000000000000000000000000000000f2")
	badToken = common.HexToAddress("0x00000000000000000000000000000000000000f3")
)

type fakeDetector struct {
	mu     sync.Mutex
	fees   map[common.Address]tokenFeesResult
	probes map[common.Address]int
}

func newFakeDetector() *fakeDetector {
	return &fakeDetector{
		fees: map[common.Address]tokenFeesResult{
			fotToken: {BuyFeeBps: big.NewInt(100), SellFeeBps: big.NewInt(200)},
			stfToken: {BuyFeeBps: big.NewInt(0), SellFeeBps: big.NewInt(0), SellReverted: true},
			okToken:  {BuyFeeBps: big.NewInt(0), SellFeeBps: big.NewInt(0)},
		},
		probes: make(map[common.Address]int),
	}
}

func (f *fakeDetector) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	parsed, err := dex.FeeDetectorABI()
	if err != nil {
		return nil, err
	}
	method := parsed.Methods["validate"]
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	token := args[0].(common.Address)

	f.mu.Lock()
	f.probes[token]++
	fees, ok := f.fees[token]
	f.mu.Unlock()
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return method.Outputs.Pack(fees)
}

func (f *fakeDetector) count(token common.Address) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probes[token]
}

func TestRiskProviderClassifies(t *testing.T) {
	fake := newFakeDetector()
	provider := NewRiskProvider(DefaultRiskConfig(detector, weth), fake, nil)

	risks := provider.GetRisk(context.Background(), []common.Address{fotToken, stfToken, okToken, badToken}, nil)
	if len(risks) != 4 {
		t.Fatalf("expected 4 results, got %d", len(risks))
	}
	if risks[fotToken].Class != ClassFeeOnTransfer {
		t.Fatalf("fot class mismatch: %s", risks[fotToken].Class)
	}
	if risks[fotToken].SellFeeBps().Int64() != 200 || risks[fotToken].BuyFeeBps().Int64() != 100 {
		t.Fatalf("fot fees mismatch: %+v", risks[fotToken].Fees)
	}
	if risks[stfToken].Class != ClassTransferBlocked {
		t.Fatalf("stf class mismatch: %s", risks[stfToken].Class)
	}
	if risks[okToken].Class != ClassUnknown || risks[okToken].Fees == nil {
		t.Fatalf("clean token mismatch: %+v", risks[okToken])
	}
	blocked := Blocked(risks)
	if _, ok := blocked[stfToken]; !ok || len(blocked) != 1 {
		t.Fatalf("blocked set mismatch: %v", blocked)
	}
}

func TestRiskProviderIsolatesReverts(t *testing.T) {
	fake := newFakeDetector()
	provider := NewRiskProvider(DefaultRiskConfig(detector, weth), fake, nil)

	risks := provider.GetRisk(context.Background(), []common.Address{badToken, fotToken}, nil)
	bad := risks[badToken]
	if bad.Fees != nil || bad.Class != ClassUnknown {
		t.Fatalf("reverted probe should yield no fee data: %+v", bad)
	}
	if risks[fotToken].Class != ClassFeeOnTransfer {
		t.Fatalf("sibling token affected by revert: %+v", risks[fotToken])
	}
}

func TestRiskProviderCacheHitSkipsProbe(t *testing.T) {
	fake := newFakeDetector()
	provider := NewRiskProvider(DefaultRiskConfig(detector, weth), fake, nil)
	tokens := []common.Address{fotToken, badToken}

	provider.GetRisk(context.Background(), tokens, nil)
	risks := provider.GetRisk(context.Background(), tokens, nil)

	if fake.count(fotToken) != 1 {
		t.Fatalf("expected a single probe for cached token, got %d", fake.count(fotToken))
	}
	if fake.count(badToken) != 1 {
		t.Fatalf("negative result should be cached, got %d probes", fake.count(badToken))
	}
	if risks[fotToken].Class != ClassFeeOnTransfer {
		t.Fatalf("cached class mismatch: %s", risks[fotToken].Class)
	}
}

func TestRiskProviderAllowlist(t *testing.T) {
	fake := newFakeDetector()
	cfg := DefaultRiskConfig(detector, weth)
	cfg.Allowlist = []common.Address{fotToken}
	provider := NewRiskProvider(cfg, fake, nil)

	risks := provider.GetRisk(context.Background(), []common.Address{fotToken, weth}, nil)
	if fake.count(fotToken) != 0 || fake.count(weth) != 0 {
		t.Fatalf("allowlisted tokens must not be probed")
	}
	if risks[fotToken].Class != ClassUnknown || risks[weth].Class != ClassUnknown {
		t.Fatalf("allowlisted tokens should be unknown: %+v", risks)
	}
}

type fakeTokenExecutor struct {
	decimals map[common.Address]uint8
	symbols  map[common.Address]string
	legacy   map[common.Address]string
	batches  int
}

func (f *fakeTokenExecutor) Call(ctx context.Context, calls []multicall.Call, opts multicall.Options) (*multicall.Batch, error) {
	f.batches++
	batch := &multicall.Batch{BlockNumber: 1, Results: make([]multicall.Result, len(calls))}
	for i, call := range calls {
		switch call.Method {
		case "decimals":
			if d, ok := f.decimals[call.Target]; ok {
				batch.Results[i] = multicall.Result{Success: true, Values: []interface{}{d}}
			}
		case "symbol":
			if call.ABI.Methods["symbol"].Outputs[0].Type.T == abi.FixedBytesTy {
				if s, ok := f.legacy[call.Target]; ok {
					var out [32]byte
					copy(out[:], s)
					batch.Results[i] = multicall.Result{Success: true, Values: []interface{}{out}}
				}
				continue
			}
			if s, ok := f.symbols[call.Target]; ok {
				batch.Results[i] = multicall.Result{Success: true, Values: []interface{}{s}}
			}
		}
	}
	return batch, nil
}

func TestMetadataProviderResolvesAndCaches(t *testing.T) {
	usdc := common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	mkr := common.HexToAddress("0x9f8F72aA9304c8B593d555F12eF6589cC3A579A2")
	broken := common.HexToAddress("0x00000000000000000000000000000000000000dd")
	known := model.NewToken(1, weth, 18, "WETH")

	fake := &fakeTokenExecutor{
		decimals: map[common.Address]uint8{usdc: 6, mkr: 18},
		symbols:  map[common.Address]string{usdc: "USDC"},
		legacy:   map[common.Address]string{mkr: "MKR"},
	}
	provider := NewMetadataProvider(1, fake, []model.Asset{known}, nil)

	assets, err := provider.GetAssets(context.Background(), []common.Address{usdc, mkr, broken, weth, usdc}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(assets) != 3 {
		t.Fatalf("expected 3 assets, got %d", len(assets))
	}
	if assets[usdc].Decimals != 6 || assets[usdc].Symbol != "USDC" {
		t.Fatalf("usdc mismatch: %+v", assets[usdc])
	}
	if assets[mkr].Symbol != "MKR" {
		t.Fatalf("legacy symbol mismatch: %q", assets[mkr].Symbol)
	}
	if assets[weth].Symbol != "WETH" {
		t.Fatalf("seeded asset mismatch: %+v", assets[weth])
	}
	if fake.batches != 2 {
		t.Fatalf("expected metadata and legacy batches, got %d", fake.batches)
	}

	if _, err := provider.GetAsset(context.Background(), usdc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.batches != 2 {
		t.Fatalf("cached asset refetched")
	}
	if _, err := provider.GetAsset(context.Background(), broken); err == nil {
		t.Fatalf("expected error for token without decimals")
	}
}
