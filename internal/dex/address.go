package dex

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"alphaRouter/internal/model"
)

// ComputeV2PairAddress derives a constant-product pair address with CREATE2.
func ComputeV2PairAddress(factory common.Address, initCodeHash common.Hash, tokenA, tokenB common.Address) common.Address {
	token0, token1 := sortAddresses(tokenA, tokenB)
	salt := crypto.Keccak256Hash(token0.Bytes(), token1.Bytes())
	return crypto.CreateAddress2(factory, salt, initCodeHash.Bytes())
}

// ComputeV3PoolAddress derives a concentrated-liquidity pool address with CREATE2.
func ComputeV3PoolAddress(factory common.Address, initCodeHash common.Hash, tokenA, tokenB common.Address, fee model.FeeAmount) common.Address {
	token0, token1 := sortAddresses(tokenA, tokenB)
	salt := crypto.Keccak256Hash(
		common.LeftPadBytes(token0.Bytes(), 32),
		common.LeftPadBytes(token1.Bytes(), 32),
		common.LeftPadBytes(new(big.Int).SetUint64(uint64(fee)).Bytes(), 32),
	)
	return crypto.CreateAddress2(factory, salt, initCodeHash.Bytes())
}

func sortAddresses(a, b common.Address) (common.Address, common.Address) {
	if a.Cmp(b) < 0 {
		return a, b
	}
	return b, a
}

type addressKey struct {
	token0 common.Address
	token1 common.Address
	fee    model.FeeAmount
}

// AddressCache memoizes derived pool addresses. Entries never expire since
// CREATE2 addresses are a pure function of their inputs.
type AddressCache struct {
	mu   sync.RWMutex
	data map[addressKey]common.Address
}

func NewAddressCache() *AddressCache {
	return &AddressCache{data: make(map[addressKey]common.Address)}
}

func (c *AddressCache) Get(token0, token1 common.Address, fee model.FeeAmount) (common.Address, bool) {
	c.mu.RLock()
	addr, ok := c.data[addressKey{token0, token1, fee}]
	c.mu.RUnlock()
	return addr, ok
}

func (c *AddressCache) Set(token0, token1 common.Address, fee model.FeeAmount, addr common.Address) {
	c.mu.Lock()
	c.data[addressKey{token0, token1, fee}] = addr
	c.mu.Unlock()
}

// Len returns the number of cached addresses.
func (c *AddressCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
