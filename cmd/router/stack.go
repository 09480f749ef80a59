package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"alphaRouter/internal/chain"
	"alphaRouter/internal/chains"
	"alphaRouter/internal/config"
	"alphaRouter/internal/gas"
	"alphaRouter/internal/model"
	"alphaRouter/internal/multicall"
	"alphaRouter/internal/pools"
	"alphaRouter/internal/quote"
	"alphaRouter/internal/router"
	"alphaRouter/internal/simulate"
	"alphaRouter/internal/storage/postgres"
	"alphaRouter/internal/tokens"
)

// stack is the wired set of providers behind one command.
type stack struct {
	chain   *chains.Chain
	client  *chain.Client
	v3      pools.V3Provider
	v2      pools.V2Provider
	derived *pools.DerivedLister
	assets  *tokens.MetadataProvider
	router  *router.AlphaRouter
	store   *postgres.Store
	simRPC  *rpc.Client
	aliases map[string]string
	logger  *zap.Logger
}

func buildStack(ctx context.Context, cfg config.Config, logger *zap.Logger) (*stack, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	c, err := chains.Get(cfg.ChainID)
	if err != nil {
		return nil, err
	}

	client, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	s := &stack{chain: c, client: client, aliases: cfg.Tokens, logger: logger}

	id, err := client.GetChainID(ctx)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("read chain id: %w", err)
	}
	if id.Uint64() != c.ID {
		s.Close()
		return nil, fmt.Errorf("rpc serves chain %s, configured chain is %d", id, c.ID)
	}

	retry := chain.RetryPolicy{Retries: cfg.MaxRetries, MinDelay: cfg.RetryBackoff, MaxDelay: 10 * cfg.RetryBackoff}
	mcCfg := multicall.DefaultConfig(c.Addresses.Multicall)
	mcCfg.Retry = retry
	batcher := multicall.NewBatcher(mcCfg, client, logger)

	lifetime, err := cfg.CacheLifetime()
	if err != nil {
		s.Close()
		return nil, err
	}
	v3 := pools.NewCachingV3Provider(pools.NewOnChainV3Provider(c, batcher, logger), lifetime, logger)
	s.v3 = v3
	var v2Quoter quote.Engine
	if c.V2Supported {
		s.v2 = pools.NewCachingV2Provider(pools.NewOnChainV2Provider(c, batcher, logger), logger)
		v2Quoter = quote.NewV2Engine(logger)
	}
	s.derived = pools.NewDerivedLister(s.v2, s.v3, logger)

	var lister pools.Lister = s.derived
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		s.store = store
	}
	if cfg.PoolSource == config.PoolSourcePostgres {
		lister = s.store
	}

	known := append([]model.Asset{c.WrappedNative}, c.BaseTokens...)
	known = append(known, c.USDTokens...)
	s.assets = tokens.NewMetadataProvider(c.ID, batcher, known, logger)

	var risk router.RiskSource
	if c.Addresses.TokenFeeDetector != (common.Address{}) {
		riskCfg := tokens.DefaultRiskConfig(c.Addresses.TokenFeeDetector, c.WrappedNative.Address)
		riskCfg.TTL = cfg.RiskCacheTTL
		riskCfg.Concurrency = cfg.RiskConcurrency
		risk = tokens.NewRiskProvider(riskCfg, client, logger)
	}

	var simulator simulate.Simulator = simulate.NewEstimateGasSimulator(c, client, logger)
	if cfg.SimulationRPCURL != "" {
		simRPC, err := rpc.DialContext(ctx, cfg.SimulationRPCURL)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("connect simulation rpc: %w", err)
		}
		s.simRPC = simRPC
		remoteCfg := simulate.DefaultRemoteConfig()
		remoteCfg.Method = cfg.SimulationMethod
		remote := simulate.NewRemoteSimulator(c, client, simRPC, remoteCfg, logger)
		simulator = simulate.NewFallbackSimulator(c, client, remote, logger)
	}

	r, err := router.New(router.Deps{
		Chain:      c,
		Blocks:     client,
		V3Provider: s.v3,
		V2Provider: s.v2,
		V3Lister:   lister,
		V2Lister:   lister,
		Assets:     s.assets,
		Risk:       risk,
		V3Quoter:   quote.NewOnChainEngine(c, batcher, quote.DefaultOnChainConfig(), logger),
		V2Quoter:   v2Quoter,
		GasModels:  gas.NewFactory(c, s.v3, s.v2, logger),
		Simulator:  simulator,
	}, logger)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("build router: %w", err)
	}
	s.router = r
	return s, nil
}

func (s *stack) Close() {
	if s.store != nil {
		s.store.Close()
	}
	if s.simRPC != nil {
		s.simRPC.Close()
	}
	s.client.Close()
}

// resolveAsset accepts the native symbol, a known or aliased symbol, or an
// address.
func (s *stack) resolveAsset(ctx context.Context, arg string) (model.Asset, error) {
	if strings.EqualFold(arg, s.chain.Native.Symbol) {
		return s.chain.Native, nil
	}
	if alias, ok := s.aliases[strings.ToLower(arg)]; ok {
		arg = alias
	}
	if common.IsHexAddress(arg) {
		asset, err := s.assets.GetAsset(ctx, common.HexToAddress(arg))
		if err != nil {
			return model.Asset{}, fmt.Errorf("resolve token %s: %w", arg, err)
		}
		return asset, nil
	}
	candidates := append([]model.Asset{s.chain.WrappedNative}, s.chain.BaseTokens...)
	candidates = append(candidates, s.chain.USDTokens...)
	for _, a := range candidates {
		if strings.EqualFold(a.Symbol, arg) {
			return a, nil
		}
	}
	return model.Asset{}, fmt.Errorf("unknown token %q", arg)
}
