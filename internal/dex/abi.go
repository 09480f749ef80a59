package dex

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const v3PoolABIJSON = `[
  {"inputs": [], "name": "slot0", "outputs": [
    {"internalType": "uint160", "name": "sqrtPriceX96", "type": "uint160"},
    {"internalType": "int24", "name": "tick", "type": "int24"},
    {"internalType": "uint16", "name": "observationIndex", "type": "uint16"},
    {"internalType": "uint16", "name": "observationCardinality", "type": "uint16"},
    {"internalType": "uint16", "name": "observationCardinalityNext", "type": "uint16"},
    {"internalType": "uint8", "name": "feeProtocol", "type": "uint8"},
    {"internalType": "bool", "name": "unlocked", "type": "bool"}
  ], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "liquidity", "outputs": [{"internalType": "uint128", "name": "", "type": "uint128"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "token0", "outputs": [{"internalType": "address", "name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "token1", "outputs": [{"internalType": "address", "name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "fee", "outputs": [{"internalType": "uint24", "name": "", "type": "uint24"}], "stateMutability": "view", "type": "function"}
]`

const v2PairABIJSON = `[
  {"inputs": [], "name": "getReserves", "outputs": [
    {"internalType": "uint112", "name": "reserve0", "type": "uint112"},
    {"internalType": "uint112", "name": "reserve1", "type": "uint112"},
    {"internalType": "uint32", "name": "blockTimestampLast", "type": "uint32"}
  ], "stateMutability": "view", "type": "function"}
]`

const multicallABIJSON = `[
  {"inputs": [{"components": [
      {"internalType": "address", "name": "target", "type": "address"},
      {"internalType": "uint256", "name": "gasLimit", "type": "uint256"},
      {"internalType": "bytes", "name": "callData", "type": "bytes"}
    ], "internalType": "struct UniswapInterfaceMulticall.Call[]", "name": "calls", "type": "tuple[]"}],
   "name": "multicall",
   "outputs": [
    {"internalType": "uint256", "name": "blockNumber", "type": "uint256"},
    {"components": [
      {"internalType": "bool", "name": "success", "type": "bool"},
      {"internalType": "uint256", "name": "gasUsed", "type": "uint256"},
      {"internalType": "bytes", "name": "returnData", "type": "bytes"}
    ], "internalType": "struct UniswapInterfaceMulticall.Result[]", "name": "returnData", "type": "tuple[]"}
   ],
   "stateMutability": "nonpayable", "type": "function"}
]`

const quoterV2ABIJSON = `[
  {"inputs": [
    {"internalType": "bytes", "name": "path", "type": "bytes"},
    {"internalType": "uint256", "name": "amountIn", "type": "uint256"}
  ], "name": "quoteExactInput", "outputs": [
    {"internalType": "uint256", "name": "amountOut", "type": "uint256"},
    {"internalType": "uint160[]", "name": "sqrtPriceX96AfterList", "type": "uint160[]"},
    {"internalType": "uint32[]", "name": "initializedTicksCrossedList", "type": "uint32[]"},
    {"internalType": "uint256", "name": "gasEstimate", "type": "uint256"}
  ], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [
    {"internalType": "bytes", "name": "path", "type": "bytes"},
    {"internalType": "uint256", "name": "amountOut", "type": "uint256"}
  ], "name": "quoteExactOutput", "outputs": [
    {"internalType": "uint256", "name": "amountIn", "type": "uint256"},
    {"internalType": "uint160[]", "name": "sqrtPriceX96AfterList", "type": "uint160[]"},
    {"internalType": "uint32[]", "name": "initializedTicksCrossedList", "type": "uint32[]"},
    {"internalType": "uint256", "name": "gasEstimate", "type": "uint256"}
  ], "stateMutability": "nonpayable", "type": "function"}
]`

const mixedQuoterABIJSON = `[
  {"inputs": [
    {"internalType": "bytes", "name": "path", "type": "bytes"},
    {"internalType": "uint256", "name": "amountIn", "type": "uint256"}
  ], "name": "quoteExactInput", "outputs": [
    {"internalType": "uint256", "name": "amountOut", "type": "uint256"},
    {"internalType": "uint160[]", "name": "v3SqrtPriceX96AfterList", "type": "uint160[]"},
    {"internalType": "uint32[]", "name": "v3InitializedTicksCrossedList", "type": "uint32[]"},
    {"internalType": "uint256", "name": "v3SwapGasEstimate", "type": "uint256"}
  ], "stateMutability": "nonpayable", "type": "function"}
]`

const feeDetectorABIJSON = `[
  {"inputs": [
    {"internalType": "address", "name": "token", "type": "address"},
    {"internalType": "address", "name": "baseToken", "type": "address"},
    {"internalType": "uint256", "name": "amountToBorrow", "type": "uint256"}
  ], "name": "validate", "outputs": [
    {"components": [
      {"internalType": "uint256", "name": "buyFeeBps", "type": "uint256"},
      {"internalType": "uint256", "name": "sellFeeBps", "type": "uint256"},
      {"internalType": "bool", "name": "feeTakenOnTransfer", "type": "bool"},
      {"internalType": "bool", "name": "externalTransferFailed", "type": "bool"},
      {"internalType": "bool", "name": "sellReverted", "type": "bool"}
    ], "internalType": "struct TokenFees", "name": "fotResult", "type": "tuple"}
  ], "stateMutability": "nonpayable", "type": "function"}
]`

const swapRouterABIJSON = `[
  {"inputs": [
    {"internalType": "uint256", "name": "deadline", "type": "uint256"},
    {"internalType": "bytes[]", "name": "data", "type": "bytes[]"}
  ], "name": "multicall", "outputs": [{"internalType": "bytes[]", "name": "", "type": "bytes[]"}], "stateMutability": "payable", "type": "function"},
  {"inputs": [{"components": [
      {"internalType": "bytes", "name": "path", "type": "bytes"},
      {"internalType": "address", "name": "recipient", "type": "address"},
      {"internalType": "uint256", "name": "amountIn", "type": "uint256"},
      {"internalType": "uint256", "name": "amountOutMinimum", "type": "uint256"}
    ], "internalType": "struct IV3SwapRouter.ExactInputParams", "name": "params", "type": "tuple"}],
   "name": "exactInput", "outputs": [{"internalType": "uint256", "name": "amountOut", "type": "uint256"}], "stateMutability": "payable", "type": "function"},
  {"inputs": [{"components": [
      {"internalType": "bytes", "name": "path", "type": "bytes"},
      {"internalType": "address", "name": "recipient", "type": "address"},
      {"internalType": "uint256", "name": "amountOut", "type": "uint256"},
      {"internalType": "uint256", "name": "amountInMaximum", "type": "uint256"}
    ], "internalType": "struct IV3SwapRouter.ExactOutputParams", "name": "params", "type": "tuple"}],
   "name": "exactOutput", "outputs": [{"internalType": "uint256", "name": "amountIn", "type": "uint256"}], "stateMutability": "payable", "type": "function"},
  {"inputs": [
    {"internalType": "uint256", "name": "amountIn", "type": "uint256"},
    {"internalType": "uint256", "name": "amountOutMin", "type": "uint256"},
    {"internalType": "address[]", "name": "path", "type": "address[]"},
    {"internalType": "address", "name": "to", "type": "address"}
  ], "name": "swapExactTokensForTokens", "outputs": [{"internalType": "uint256", "name": "amountOut", "type": "uint256"}], "stateMutability": "payable", "type": "function"},
  {"inputs": [
    {"internalType": "uint256", "name": "amountOut", "type": "uint256"},
    {"internalType": "uint256", "name": "amountInMax", "type": "uint256"},
    {"internalType": "address[]", "name": "path", "type": "address[]"},
    {"internalType": "address", "name": "to", "type": "address"}
  ], "name": "swapTokensForExactTokens", "outputs": [{"internalType": "uint256", "name": "amountIn", "type": "uint256"}], "stateMutability": "payable", "type": "function"},
  {"inputs": [
    {"internalType": "uint256", "name": "amountMinimum", "type": "uint256"},
    {"internalType": "address", "name": "recipient", "type": "address"}
  ], "name": "unwrapWETH9", "outputs": [], "stateMutability": "payable", "type": "function"},
  {"inputs": [
    {"internalType": "uint256", "name": "amountMinimum", "type": "uint256"},
    {"internalType": "address", "name": "recipient", "type": "address"},
    {"internalType": "uint256", "name": "feeBips", "type": "uint256"},
    {"internalType": "address", "name": "feeRecipient", "type": "address"}
  ], "name": "unwrapWETH9WithFee", "outputs": [], "stateMutability": "payable", "type": "function"},
  {"inputs": [
    {"internalType": "address", "name": "token", "type": "address"},
    {"internalType": "uint256", "name": "amountMinimum", "type": "uint256"},
    {"internalType": "address", "name": "recipient", "type": "address"}
  ], "name": "sweepToken", "outputs": [], "stateMutability": "payable", "type": "function"},
  {"inputs": [
    {"internalType": "address", "name": "token", "type": "address"},
    {"internalType": "uint256", "name": "amountMinimum", "type": "uint256"},
    {"internalType": "address", "name": "recipient", "type": "address"},
    {"internalType": "uint256", "name": "feeBips", "type": "uint256"},
    {"internalType": "address", "name": "feeRecipient", "type": "address"}
  ], "name": "sweepTokenWithFee", "outputs": [], "stateMutability": "payable", "type": "function"},
  {"inputs": [], "name": "refundETH", "outputs": [], "stateMutability": "payable", "type": "function"}
]`

type lazyABI struct {
	raw    string
	once   sync.Once
	parsed abi.ABI
	err    error
}

func (l *lazyABI) get() (abi.ABI, error) {
	l.once.Do(func() {
		l.parsed, l.err = abi.JSON(strings.NewReader(l.raw))
	})
	return l.parsed, l.err
}

var (
	v3PoolABI      = &lazyABI{raw: v3PoolABIJSON}
	v2PairABI      = &lazyABI{raw: v2PairABIJSON}
	multicallABI   = &lazyABI{raw: multicallABIJSON}
	quoterV2ABI    = &lazyABI{raw: quoterV2ABIJSON}
	mixedQuoterABI = &lazyABI{raw: mixedQuoterABIJSON}
	feeDetectorABI = &lazyABI{raw: feeDetectorABIJSON}
	swapRouterABI  = &lazyABI{raw: swapRouterABIJSON}
)

// V3PoolABI returns the parsed concentrated-liquidity pool ABI.
func V3PoolABI() (abi.ABI, error) { return v3PoolABI.get() }

// V2PairABI returns the parsed constant-product pair ABI.
func V2PairABI() (abi.ABI, error) { return v2PairABI.get() }

// MulticallABI returns the parsed UniswapInterfaceMulticall ABI.
func MulticallABI() (abi.ABI, error) { return multicallABI.get() }

// QuoterV2ABI returns the parsed QuoterV2 ABI.
func QuoterV2ABI() (abi.ABI, error) { return quoterV2ABI.get() }

// MixedQuoterABI returns the parsed mixed-route quoter ABI.
func MixedQuoterABI() (abi.ABI, error) { return mixedQuoterABI.get() }

// FeeDetectorABI returns the parsed token fee detector ABI.
func FeeDetectorABI() (abi.ABI, error) { return feeDetectorABI.get() }

// SwapRouterABI returns the parsed SwapRouter02 ABI subset used for call data.
func SwapRouterABI() (abi.ABI, error) { return swapRouterABI.get() }
