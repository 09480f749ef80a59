package tokens

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"alphaRouter/internal/chain"
	"alphaRouter/internal/dex"
	"alphaRouter/internal/metrics"
)

// Classification is the transfer behaviour detected for a token.
type Classification int

const (
	ClassUnknown Classification = iota
	// ClassFeeOnTransfer tokens deduct a fee on buy, sell or transfer.
	ClassFeeOnTransfer
	// ClassTransferBlocked tokens cannot be transferred out of a pool.
	ClassTransferBlocked
)

func (c Classification) String() string {
	switch c {
	case ClassFeeOnTransfer:
		return "FOT"
	case ClassTransferBlocked:
		return "STF"
	default:
		return "UNKN"
	}
}

// MarshalText renders the classification by name.
func (c Classification) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// TokenFees is the fee detector result for a token.
type TokenFees struct {
	BuyFeeBps              *big.Int
	SellFeeBps             *big.Int
	FeeTakenOnTransfer     bool
	ExternalTransferFailed bool
	SellReverted           bool
}

// Risk is the per-token result. Fees is nil when no fee data is available.
type Risk struct {
	Token common.Address `json:"token"`
	Class Classification `json:"class"`
	Fees  *TokenFees     `json:"fees,omitempty"`
}

// BuyFeeBps returns the buy fee or zero.
func (r Risk) BuyFeeBps() *big.Int {
	if r.Fees == nil || r.Fees.BuyFeeBps == nil {
		return new(big.Int)
	}
	return r.Fees.BuyFeeBps
}

// SellFeeBps returns the sell fee or zero.
func (r Risk) SellFeeBps() *big.Int {
	if r.Fees == nil || r.Fees.SellFeeBps == nil {
		return new(big.Int)
	}
	return r.Fees.SellFeeBps
}

// Classify maps detector output to a classification.
func Classify(fees *TokenFees) Classification {
	if fees == nil {
		return ClassUnknown
	}
	if fees.ExternalTransferFailed || fees.SellReverted {
		return ClassTransferBlocked
	}
	if fees.FeeTakenOnTransfer || positive(fees.BuyFeeBps) || positive(fees.SellFeeBps) {
		return ClassFeeOnTransfer
	}
	return ClassUnknown
}

func positive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}

// RiskConfig configures RiskProvider.
type RiskConfig struct {
	Detector       common.Address
	BaseToken      common.Address
	AmountToBorrow *big.Int
	TTL            time.Duration
	Allowlist      []common.Address
	Concurrency    int
}

// DefaultRiskConfig returns the probe settings for a detector deployment.
func DefaultRiskConfig(detector, baseToken common.Address) RiskConfig {
	return RiskConfig{
		Detector:       detector,
		BaseToken:      baseToken,
		AmountToBorrow: big.NewInt(100_000),
		TTL:            600 * time.Second,
		Concurrency:    16,
	}
}

// RiskProvider classifies tokens with an isolated fee detector probe per
// token. Positive and negative results are cached for the configured TTL.
type RiskProvider struct {
	cfg       RiskConfig
	caller    chain.Caller
	cache     *gocache.Cache
	allowlist map[common.Address]struct{}
	logger    *zap.Logger
}

func NewRiskProvider(cfg RiskConfig, caller chain.Caller, logger *zap.Logger) *RiskProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 600 * time.Second
	}
	if cfg.AmountToBorrow == nil {
		cfg.AmountToBorrow = big.NewInt(100_000)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 16
	}
	allow := make(map[common.Address]struct{}, len(cfg.Allowlist))
	for _, addr := range cfg.Allowlist {
		allow[addr] = struct{}{}
	}
	return &RiskProvider{
		cfg:       cfg,
		caller:    caller,
		cache:     gocache.New(cfg.TTL, 2*cfg.TTL),
		allowlist: allow,
		logger:    logger,
	}
}

type tokenFeesResult struct {
	BuyFeeBps              *big.Int
	SellFeeBps             *big.Int
	FeeTakenOnTransfer     bool
	ExternalTransferFailed bool
	SellReverted           bool
}

// GetRisk returns a result for every distinct token. Probe failures yield an
// unknown result with no fee data and never affect other tokens.
func (p *RiskProvider) GetRisk(ctx context.Context, tokens []common.Address, block *uint64) map[common.Address]Risk {
	out := make(map[common.Address]Risk, len(tokens))
	var mu sync.Mutex
	var toProbe []common.Address

	for _, token := range tokens {
		if _, done := out[token]; done {
			continue
		}
		if cached, ok := p.cache.Get(cacheKey(token)); ok {
			metrics.TokenRiskProbes.WithLabelValues("cache_hit").Inc()
			out[token] = cached.(Risk)
			continue
		}
		if _, ok := p.allowlist[token]; ok || token == p.cfg.BaseToken {
			metrics.TokenRiskProbes.WithLabelValues("allowlist").Inc()
			risk := Risk{Token: token, Class: ClassUnknown}
			out[token] = risk
			p.cache.SetDefault(cacheKey(token), risk)
			continue
		}
		out[token] = Risk{Token: token}
		toProbe = append(toProbe, token)
	}
	if len(toProbe) == 0 {
		return out
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for _, token := range toProbe {
		token := token
		g.Go(func() error {
			fees, err := p.probe(gctx, token, block)
			risk := Risk{Token: token, Class: Classify(fees), Fees: fees}
			if err != nil {
				metrics.TokenRiskProbes.WithLabelValues("revert").Inc()
				p.logger.Warn("token fee probe failed", zap.String("token", token.Hex()), zap.Error(err))
			} else {
				metrics.TokenRiskProbes.WithLabelValues(risk.Class.String()).Inc()
			}
			mu.Lock()
			out[token] = risk
			mu.Unlock()
			if gctx.Err() == nil {
				p.cache.SetDefault(cacheKey(token), risk)
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (p *RiskProvider) probe(ctx context.Context, token common.Address, block *uint64) (*TokenFees, error) {
	parsed, err := dex.FeeDetectorABI()
	if err != nil {
		return nil, err
	}
	values, err := dex.Call(ctx, p.caller, p.cfg.Detector, parsed, "validate", chain.BlockArg(block), token, p.cfg.BaseToken, p.cfg.AmountToBorrow)
	if err != nil {
		return nil, err
	}
	res := *abi.ConvertType(values[0], new(tokenFeesResult)).(*tokenFeesResult)
	return &TokenFees{
		BuyFeeBps:              res.BuyFeeBps,
		SellFeeBps:             res.SellFeeBps,
		FeeTakenOnTransfer:     res.FeeTakenOnTransfer,
		ExternalTransferFailed: res.ExternalTransferFailed,
		SellReverted:           res.SellReverted,
	}, nil
}

// Blocked returns the tokens classified as transfer blocked.
func Blocked(risks map[common.Address]Risk) map[common.Address]struct{} {
	out := make(map[common.Address]struct{})
	for addr, risk := range risks {
		if risk.Class == ClassTransferBlocked {
			out[addr] = struct{}{}
		}
	}
	return out
}

func cacheKey(token common.Address) string {
	return strings.ToLower(token.Hex())
}
