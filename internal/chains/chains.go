package chains

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"alphaRouter/internal/model"
)

const (
	Mainnet uint64 = 1
	Celo    uint64 = 42220
)

// GasCosts holds heuristic gas overheads for a chain.
type GasCosts struct {
	V3BaseSwapCost      uint64
	V3CostPerHop        uint64
	V3CostPerInitTick   uint64
	V3SingleHopOverhead uint64
	V2BaseSwapCost      uint64
	V2CostPerExtraHop   uint64
}

// Addresses holds deployed contract addresses for a chain.
type Addresses struct {
	V2Factory        common.Address
	V2InitCodeHash   common.Hash
	V3Factory        common.Address
	V3InitCodeHash   common.Hash
	QuoterV2         common.Address
	MixedQuoter      common.Address
	Multicall        common.Address
	SwapRouter02     common.Address
	TokenFeeDetector common.Address
}

// Chain describes everything routing needs to know about a network.
type Chain struct {
	ID            uint64
	Name          string
	Native        model.Asset
	WrappedNative model.Asset
	BaseTokens    []model.Asset
	USDTokens     []model.Asset
	Addresses     Addresses
	Gas           GasCosts

	V2Supported        bool
	MixedSupported     bool
	SimulationDisabled bool
	// GasPadding multiplies simulated gas before it is reported.
	GasPadding *big.Rat
}

var defaultGas = GasCosts{
	V3BaseSwapCost:      2000,
	V3CostPerHop:        80000,
	V3CostPerInitTick:   31000,
	V3SingleHopOverhead: 15000,
	V2BaseSwapCost:      115000,
	V2CostPerExtraHop:   20000,
}

var registry = map[uint64]*Chain{}

func register(c *Chain) {
	registry[c.ID] = c
}

func init() {
	weth := model.NewToken(Mainnet, common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), 18, "WETH")
	usdc := model.NewToken(Mainnet, common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), 6, "USDC")
	usdt := model.NewToken(Mainnet, common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7"), 6, "USDT")
	dai := model.NewToken(Mainnet, common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"), 18, "DAI")
	wbtc := model.NewToken(Mainnet, common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599"), 8, "WBTC")

	register(&Chain{
		ID:            Mainnet,
		Name:          "mainnet",
		Native:        model.NewNative(Mainnet, 18, "ETH"),
		WrappedNative: weth,
		BaseTokens:    []model.Asset{usdc, usdt, wbtc, dai, weth},
		USDTokens:     []model.Asset{usdc, usdt, dai},
		Addresses: Addresses{
			V2Factory:        common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"),
			V2InitCodeHash:   common.HexToHash("0x96e8ac4277198ff8b6f785478aa9a39f403cb768dd02cbee326c3e7da348845f"),
			V3Factory:        common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984"),
			V3InitCodeHash:   common.HexToHash("0xe34f199b19b2b4f47f68442619d555527d244f78a3297ea89325f843f87b8b54"),
			QuoterV2:         common.HexToAddress("0x61fFE014bA17989E743c5F6cB21bF9697530B21e"),
			MixedQuoter:      common.HexToAddress("0x84E44095eeBfEC7793Cd7d5b57B7e401D7f1cA2E"),
			Multicall:        common.HexToAddress("0x1F98415757620B543A52E61c46B32eB19261F984"),
			SwapRouter02:     common.HexToAddress("0x68b3465833fb72A70ecDF485E0e4C7bD8665Fc45"),
			TokenFeeDetector: common.HexToAddress("0x19C97dc2a25845C7f9d1d519c8C2d4809c58b43f"),
		},
		Gas:            defaultGas,
		V2Supported:    true,
		MixedSupported: true,
		GasPadding:     big.NewRat(12, 10),
	})

	celo := model.NewToken(Celo, common.HexToAddress("0x471EcE3750Da237f93B8E339c536989b8978a438"), 18, "CELO")
	cusd := model.NewToken(Celo, common.HexToAddress("0x765DE816845861e75A25fCA122bb6898B8B1282a"), 18, "CUSD")
	ceur := model.NewToken(Celo, common.HexToAddress("0xD8763CBa276a3738E6DE85b4b3bF5FDed6D6cA73"), 18, "CEUR")
	daiCelo := model.NewToken(Celo, common.HexToAddress("0xE4fE50cdD716522A56204352f00AA110F731932d"), 18, "DAI")

	register(&Chain{
		ID:   Celo,
		Name: "celo",
		// CELO is both the gas token and an ERC20, so it is its own wrapped form.
		Native:        celo,
		WrappedNative: celo,
		BaseTokens:    []model.Asset{cusd, ceur, celo},
		USDTokens:     []model.Asset{cusd, daiCelo},
		Addresses: Addresses{
			V2Factory:      common.HexToAddress("0x62d5b84bE28a183aBB507E125B384122D2C25fAE"),
			V2InitCodeHash: common.HexToHash("0xb3b8ff62960acea3a88039ebcf80699f15786f1b17cebd82802f7375827a339c"),
			V3Factory:      common.HexToAddress("0xAfE208a311B21f13EF87E33A90049fC17A7acDEc"),
			V3InitCodeHash: common.HexToHash("0xe34f199b19b2b4f47f68442619d555527d244f78a3297ea89325f843f87b8b54"),
			QuoterV2:       common.HexToAddress("0x82825d0554fA07f7FC52Ab63c961F330fdEFa8E8"),
			Multicall:      common.HexToAddress("0x633987602DE5C4F337e3DbF265303A1080324204"),
			SwapRouter02:   common.HexToAddress("0x5615CDAb10dc425a742d643d949a7F474C01abc4"),
		},
		Gas:         defaultGas,
		V2Supported: true,
		// No mixed-route quoter is deployed here.
		MixedSupported: false,
		GasPadding:     big.NewRat(13, 10),
	})
}

// Get returns the registered chain for id.
func Get(id uint64) (*Chain, error) {
	c, ok := registry[id]
	if !ok {
		return nil, fmt.Errorf("unsupported chain %d", id)
	}
	return c, nil
}

// Register adds or replaces a chain definition, used for forks and tests.
func Register(c *Chain) {
	if c == nil {
		return
	}
	if c.GasPadding == nil {
		c.GasPadding = big.NewRat(12, 10)
	}
	register(c)
}

// Wrap returns the wrapped form of a native asset.
func (c *Chain) Wrap(asset model.Asset) model.Asset {
	if asset.Native {
		return c.WrappedNative
	}
	return asset
}

// IsWrappedNative reports whether asset is the chain's wrapped native token.
func (c *Chain) IsWrappedNative(asset model.Asset) bool {
	return asset.Equal(c.WrappedNative)
}

// IsBaseToken reports whether asset is one of the routing connectors.
func (c *Chain) IsBaseToken(asset model.Asset) bool {
	for _, base := range c.BaseTokens {
		if base.Equal(asset) {
			return true
		}
	}
	return false
}
