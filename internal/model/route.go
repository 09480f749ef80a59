package model

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// TradeType is the direction of a swap request.
type TradeType int

const (
	ExactInput TradeType = iota
	ExactOutput
)

func (t TradeType) String() string {
	if t == ExactOutput {
		return "ExactOut"
	}
	return "ExactIn"
}

// Route is an ordered path of pools from Input to Output.
type Route struct {
	Protocol Protocol `json:"protocol"`
	Pools    []Pool   `json:"-"`
	Path     []Asset  `json:"path"`
	Input    Asset    `json:"input"`
	Output   Asset    `json:"output"`
}

// NewRoute links pools from input to output and infers the route protocol.
func NewRoute(pools []Pool, input, output Asset) (Route, error) {
	if len(pools) == 0 {
		return Route{}, fmt.Errorf("route has no pools")
	}
	path := make([]Asset, 0, len(pools)+1)
	path = append(path, input)
	current := input
	hasV2, hasV3 := false, false
	for i, pool := range pools {
		if !pool.Involves(current) {
			return Route{}, fmt.Errorf("pool %d (%s) does not involve %s", i, pool.PoolAddress().Hex(), current)
		}
		current = OtherToken(pool, current)
		path = append(path, current)
		switch pool.Kind() {
		case ProtocolV2:
			hasV2 = true
		case ProtocolV3:
			hasV3 = true
		}
	}
	if !current.Equal(output) {
		return Route{}, fmt.Errorf("route ends at %s, want %s", current, output)
	}

	protocol := ProtocolV3
	switch {
	case hasV2 && hasV3:
		protocol = ProtocolMixed
	case hasV2:
		protocol = ProtocolV2
	}

	return Route{Protocol: protocol, Pools: pools, Path: path, Input: input, Output: output}, nil
}

// PoolAddresses returns the addresses of the route's pools in order.
func (r Route) PoolAddresses() []common.Address {
	out := make([]common.Address, len(r.Pools))
	for i, pool := range r.Pools {
		out[i] = pool.PoolAddress()
	}
	return out
}

// SharesPool reports whether two routes use any pool in common.
func (r Route) SharesPool(other Route) bool {
	for _, a := range r.Pools {
		for _, b := range other.Pools {
			if a.PoolAddress() == b.PoolAddress() {
				return true
			}
		}
	}
	return false
}

// ID identifies the route by its pool sequence.
func (r Route) ID() string {
	parts := make([]string, len(r.Pools))
	for i, pool := range r.Pools {
		parts[i] = strings.ToLower(pool.PoolAddress().Hex())
	}
	return string(r.Protocol) + ":" + strings.Join(parts, ",")
}

func (r Route) String() string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(string(r.Protocol))
	b.WriteString("] ")
	for i, pool := range r.Pools {
		b.WriteString(r.Path[i].String())
		switch p := pool.(type) {
		case *V3Pool:
			fmt.Fprintf(&b, " -- %s [%s] --> ", p.Fee, shortAddress(p.Address))
		default:
			fmt.Fprintf(&b, " -- [%s] --> ", shortAddress(pool.PoolAddress()))
		}
	}
	b.WriteString(r.Output.String())
	return b.String()
}

func shortAddress(addr common.Address) string {
	hex := addr.Hex()
	return hex[:6] + ".." + hex[len(hex)-4:]
}
