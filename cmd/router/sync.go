package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"alphaRouter/internal/config"
	"alphaRouter/internal/model"
	"alphaRouter/internal/pools"
	"alphaRouter/internal/storage/postgres"
)

func runSyncPools(cmd *cobra.Command, args []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.PGDSN == "" {
		return fmt.Errorf("pg dsn is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	serveMetrics(ctx, cfg.MetricsAddr, logger)

	s, err := buildStack(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.store.Migrate(ctx); err != nil {
		return err
	}

	assets := make([]model.Asset, 0, len(args))
	for _, arg := range args {
		a, err := s.resolveAsset(ctx, arg)
		if err != nil {
			return err
		}
		if a.Native {
			a = s.chain.WrappedNative
		}
		assets = append(assets, a)
	}

	block, err := s.client.LatestBlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("read block number: %w", err)
	}

	protocols := []model.Protocol{model.ProtocolV3}
	if s.chain.V2Supported {
		protocols = append(protocols, model.ProtocolV2)
	}
	for _, protocol := range protocols {
		listed, err := derivePairs(ctx, s.derived, s.chain.ID, protocol, assets, block)
		if err != nil {
			return err
		}
		if err := s.store.UpsertPools(ctx, listed); err != nil {
			return err
		}
		if err := s.store.SaveSyncState(ctx, postgres.SyncStateName(s.chain.ID, protocol), block); err != nil {
			return fmt.Errorf("save sync state: %w", err)
		}
		logger.Info("pools synced",
			zap.String("protocol", string(protocol)),
			zap.Int("pools", len(listed)),
			zap.Uint64("block", block),
		)
	}
	return nil
}

// derivePairs lists pools for every pair of assets and dedupes them by address.
func derivePairs(ctx context.Context, lister pools.Lister, chainID uint64, protocol model.Protocol, assets []model.Asset, block uint64) ([]model.ListedPool, error) {
	seen := make(map[common.Address]struct{})
	var out []model.ListedPool
	for i := 0; i < len(assets); i++ {
		for j := i + 1; j < len(assets); j++ {
			listed, err := lister.ListPools(ctx, pools.ListRequest{
				ChainID:     chainID,
				Protocol:    protocol,
				TokenIn:     assets[i],
				TokenOut:    assets[j],
				BlockNumber: &block,
			})
			if err != nil {
				return nil, fmt.Errorf("derive %s pools: %w", protocol, err)
			}
			for _, p := range listed {
				if _, ok := seen[p.Address]; ok {
					continue
				}
				seen[p.Address] = struct{}{}
				out = append(out, p)
			}
		}
	}
	return out, nil
}
