package dex

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"alphaRouter/internal/model"
)

var (
	testV2Factory  = common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f")
	testV2InitHash = common.HexToHash("0x96e8ac4277198ff8b6f785478aa9a39f403cb768dd02cbee326c3e7da348845f")
	testV3Factory  = common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984")
	testV3InitHash = common.HexToHash("0xe34f199b19b2b4f47f68442619d555527d244f78a3297ea89325f843f87b8b54")
	testUSDC       = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	testWETH       = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
)

func TestComputeV2PairAddress(t *testing.T) {
	want := common.HexToAddress("0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc")
	if got := ComputeV2PairAddress(testV2Factory, testV2InitHash, testUSDC, testWETH); got != want {
		t.Fatalf("pair address mismatch: %s != %s", got.Hex(), want.Hex())
	}
	if got := ComputeV2PairAddress(testV2Factory, testV2InitHash, testWETH, testUSDC); got != want {
		t.Fatalf("pair address depends on argument order: %s", got.Hex())
	}
}

func TestComputeV3PoolAddress(t *testing.T) {
	cases := map[model.FeeAmount]common.Address{
		model.FeeMedium: common.HexToAddress("0x8ad599c3A0ff1De082011EFDDc58f1908eb6e6D8"),
		model.FeeLow:    common.HexToAddress("0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640"),
	}
	for fee, want := range cases {
		got := ComputeV3PoolAddress(testV3Factory, testV3InitHash, testWETH, testUSDC, fee)
		if got != want {
			t.Fatalf("pool address mismatch for fee %d: %s != %s", fee, got.Hex(), want.Hex())
		}
	}
}

func TestAddressCache(t *testing.T) {
	cache := NewAddressCache()
	if _, ok := cache.Get(testUSDC, testWETH, model.FeeLow); ok {
		t.Fatalf("expected empty cache")
	}
	addr := common.HexToAddress("0x01")
	cache.Set(testUSDC, testWETH, model.FeeLow, addr)
	got, ok := cache.Get(testUSDC, testWETH, model.FeeLow)
	if !ok || got != addr {
		t.Fatalf("cache miss after set")
	}
	if _, ok := cache.Get(testUSDC, testWETH, model.FeeMedium); ok {
		t.Fatalf("fee tier must be part of the key")
	}
}
