package main

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"alphaRouter/internal/model"
	"alphaRouter/internal/pools"
)

type pairLister struct {
	requests int
}

func (l *pairLister) ListPools(_ context.Context, req pools.ListRequest) ([]model.ListedPool, error) {
	l.requests++
	return []model.ListedPool{
		{ChainID: req.ChainID, Protocol: req.Protocol, Address: common.HexToAddress("0x01"), Token0: req.TokenIn.Address, Token1: req.TokenOut.Address},
		{ChainID: req.ChainID, Protocol: req.Protocol, Address: req.TokenOut.Address},
	}, nil
}

func TestDerivePairsDedupes(t *testing.T) {
	a := model.NewToken(1, common.HexToAddress("0xa1"), 18, "A")
	b := model.NewToken(1, common.HexToAddress("0xb2"), 18, "B")
	c := model.NewToken(1, common.HexToAddress("0xc3"), 18, "C")
	lister := &pairLister{}

	got, err := derivePairs(context.Background(), lister, 1, model.ProtocolV3, []model.Asset{a, b, c}, 100)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if lister.requests != 3 {
		t.Fatalf("expected one request per pair, got %d", lister.requests)
	}
	// 0x01 is shared by every pair; the second listing is keyed by token out (b, c).
	if len(got) != 3 {
		t.Fatalf("expected 3 distinct pools, got %d", len(got))
	}
}

func TestParseFee(t *testing.T) {
	if fee, err := parseFee("3000"); err != nil || fee != model.FeeMedium {
		t.Fatalf("parse fee: %v %v", fee, err)
	}
	if _, err := parseFee("1234"); err == nil {
		t.Fatalf("expected an error for an unknown tier")
	}
}
