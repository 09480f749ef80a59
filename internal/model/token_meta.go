package model

import (
	"bytes"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// TokenMeta captures ERC20 metadata.
type TokenMeta struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
}

// Asset identifies a token on a chain. Native assets use the zero address.
type Asset struct {
	ChainID  uint64         `json:"chain_id"`
	Address  common.Address `json:"address"`
	Decimals uint8          `json:"decimals"`
	Symbol   string         `json:"symbol"`
	Native   bool           `json:"native,omitempty"`
}

// NewToken builds an ERC20 asset.
func NewToken(chainID uint64, address common.Address, decimals uint8, symbol string) Asset {
	return Asset{ChainID: chainID, Address: address, Decimals: decimals, Symbol: symbol}
}

// NewNative builds the native asset of a chain.
func NewNative(chainID uint64, decimals uint8, symbol string) Asset {
	return Asset{ChainID: chainID, Decimals: decimals, Symbol: symbol, Native: true}
}

// AssetFromMeta converts fetched token metadata into an Asset.
func AssetFromMeta(chainID uint64, meta TokenMeta) Asset {
	return NewToken(chainID, common.HexToAddress(meta.Address), meta.Decimals, meta.Symbol)
}

// Equal compares assets by chain id and address.
func (a Asset) Equal(b Asset) bool {
	return a.ChainID == b.ChainID && a.Address == b.Address
}

// SortsBefore reports whether a is token0 of a pair with b.
func (a Asset) SortsBefore(b Asset) bool {
	return bytes.Compare(a.Address.Bytes(), b.Address.Bytes()) < 0
}

// Key returns the lowercase hex address.
func (a Asset) Key() string {
	return strings.ToLower(a.Address.Hex())
}

func (a Asset) String() string {
	if a.Symbol != "" {
		return a.Symbol
	}
	return a.Address.Hex()
}

// SortAssets returns the pair in token0/token1 order.
func SortAssets(a, b Asset) (Asset, Asset) {
	if a.SortsBefore(b) {
		return a, b
	}
	return b, a
}
