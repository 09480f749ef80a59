package model

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	weth = NewToken(1, common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), 18, "WETH")
	dai  = NewToken(1, common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"), 18, "DAI")
)

func pairV2(a, b Asset, addr string) *V2Pool {
	t0, t1 := SortAssets(a, b)
	return &V2Pool{Token0: t0, Token1: t1, Reserve0: big.NewInt(1000), Reserve1: big.NewInt(2000), Address: common.HexToAddress(addr)}
}

func pairV3(a, b Asset, addr string) *V3Pool {
	t0, t1 := SortAssets(a, b)
	return &V3Pool{Token0: t0, Token1: t1, Fee: FeeMedium, SqrtPriceX96: new(big.Int).Lsh(big.NewInt(1), 96), Liquidity: big.NewInt(1), Address: common.HexToAddress(addr)}
}

func TestNewRouteInfersProtocol(t *testing.T) {
	v3, err := NewRoute([]Pool{pairV3(usdc, weth, "0x01")}, usdc, weth)
	if err != nil || v3.Protocol != ProtocolV3 {
		t.Fatalf("v3 route: %v %v", v3.Protocol, err)
	}
	v2, err := NewRoute([]Pool{pairV2(usdc, weth, "0x02"), pairV2(weth, dai, "0x03")}, usdc, dai)
	if err != nil || v2.Protocol != ProtocolV2 {
		t.Fatalf("v2 route: %v %v", v2.Protocol, err)
	}
	if len(v2.Path) != 3 || !v2.Path[1].Equal(weth) {
		t.Fatalf("path mismatch: %v", v2.Path)
	}
	mixed, err := NewRoute([]Pool{pairV3(usdc, weth, "0x01"), pairV2(weth, dai, "0x03")}, usdc, dai)
	if err != nil || mixed.Protocol != ProtocolMixed {
		t.Fatalf("mixed route: %v %v", mixed.Protocol, err)
	}
}

func TestNewRouteRejectsBrokenPaths(t *testing.T) {
	if _, err := NewRoute(nil, usdc, weth); err == nil {
		t.Fatalf("expected an error for an empty route")
	}
	if _, err := NewRoute([]Pool{pairV2(weth, dai, "0x03")}, usdc, dai); err == nil {
		t.Fatalf("expected an error for a disconnected pool")
	}
	if _, err := NewRoute([]Pool{pairV2(usdc, weth, "0x02")}, usdc, dai); err == nil {
		t.Fatalf("expected an error for a wrong output")
	}
}

func TestRouteSharesPool(t *testing.T) {
	shared := pairV2(usdc, weth, "0x02")
	a, _ := NewRoute([]Pool{shared}, usdc, weth)
	b, _ := NewRoute([]Pool{shared, pairV2(weth, dai, "0x03")}, usdc, dai)
	c, _ := NewRoute([]Pool{pairV3(usdc, weth, "0x01")}, usdc, weth)
	if !a.SharesPool(b) {
		t.Fatalf("routes through the same pool should share it")
	}
	if a.SharesPool(c) {
		t.Fatalf("distinct pools should not be shared")
	}
}
