package model

import "github.com/ethereum/go-ethereum/common"

// ListedPool is a pool known to a listing source, ranked by TVL.
type ListedPool struct {
	ChainID  uint64         `json:"chain_id"`
	Protocol Protocol       `json:"protocol"`
	Address  common.Address `json:"address"`
	Token0   common.Address `json:"token0"`
	Token1   common.Address `json:"token1"`
	Fee      FeeAmount      `json:"fee,omitempty"`
	TVLUSD   float64        `json:"tvl_usd"`
}

// Involves reports whether the listing touches token.
func (p ListedPool) Involves(token common.Address) bool {
	return p.Token0 == token || p.Token1 == token
}

// Connects reports whether the listing is a pool between a and b.
func (p ListedPool) Connects(a, b common.Address) bool {
	return (p.Token0 == a && p.Token1 == b) || (p.Token0 == b && p.Token1 == a)
}

// Other returns the counterpart of token in the pair.
func (p ListedPool) Other(token common.Address) common.Address {
	if p.Token0 == token {
		return p.Token1
	}
	return p.Token0
}
