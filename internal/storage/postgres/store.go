package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"alphaRouter/internal/model"
	"alphaRouter/internal/pools"
)

const defaultListLimit = 2000

const schema = `
CREATE TABLE IF NOT EXISTS pools (
	chain_id     BIGINT           NOT NULL,
	protocol     TEXT             NOT NULL,
	pool_address TEXT             NOT NULL,
	token0       TEXT             NOT NULL,
	token1       TEXT             NOT NULL,
	fee          INTEGER          NOT NULL DEFAULT 0,
	tvl_usd      DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ      NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ      NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, pool_address)
);
CREATE INDEX IF NOT EXISTS pools_chain_protocol_tvl ON pools (chain_id, protocol, tvl_usd DESC);
CREATE TABLE IF NOT EXISTS sync_state (
	name         TEXT        PRIMARY KEY,
	last_block   BIGINT      NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store keeps a TVL ranked pool snapshot in Postgres. It serves as a
// pools.Lister for candidate selection.
type Store struct {
	pool      *pgxpool.Pool
	listLimit int
}

var _ pools.Lister = (*Store)(nil)

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, listLimit: defaultListLimit}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// SetListLimit caps how many pools ListPools returns per protocol.
func (s *Store) SetListLimit(limit int) {
	if limit > 0 {
		s.listLimit = limit
	}
}

// Migrate creates the tables the store uses when they are missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// UpsertPools inserts or updates pool listings.
func (s *Store) UpsertPools(ctx context.Context, listed []model.ListedPool) error {
	if len(listed) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range listed {
		batch.Queue(`
			INSERT INTO pools (
				chain_id, protocol, pool_address, token0, token1, fee, tvl_usd, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
			ON CONFLICT (chain_id, pool_address)
			DO UPDATE SET
				protocol = EXCLUDED.protocol,
				token0 = EXCLUDED.token0,
				token1 = EXCLUDED.token1,
				fee = EXCLUDED.fee,
				tvl_usd = EXCLUDED.tvl_usd,
				updated_at = now()
		`,
			int64(p.ChainID),
			string(p.Protocol),
			hexKey(p.Address),
			hexKey(p.Token0),
			hexKey(p.Token1),
			int32(p.Fee),
			p.TVLUSD,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range listed {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert pool: %w", err)
		}
	}
	return nil
}

// ListPools returns the deepest pools of the requested protocol. The snapshot
// is not block aware, so req.BlockNumber is ignored.
func (s *Store) ListPools(ctx context.Context, req pools.ListRequest) ([]model.ListedPool, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pool_address, token0, token1, fee, tvl_usd
		FROM pools
		WHERE chain_id = $1 AND protocol = $2
		ORDER BY tvl_usd DESC
		LIMIT $3
	`, int64(req.ChainID), string(req.Protocol), s.listLimit)
	if err != nil {
		return nil, fmt.Errorf("query pools: %w", err)
	}
	defer rows.Close()

	var out []model.ListedPool
	for rows.Next() {
		var (
			address, token0, token1 string
			fee                     int32
			tvl                     float64
		)
		if err := rows.Scan(&address, &token0, &token1, &fee, &tvl); err != nil {
			return nil, fmt.Errorf("scan pool: %w", err)
		}
		out = append(out, model.ListedPool{
			ChainID:  req.ChainID,
			Protocol: req.Protocol,
			Address:  common.HexToAddress(address),
			Token0:   common.HexToAddress(token0),
			Token1:   common.HexToAddress(token1),
			Fee:      model.FeeAmount(fee),
			TVLUSD:   tvl,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read pools: %w", err)
	}
	return out, nil
}

// LoadSyncState returns the block of the last pool sync for a name.
func (s *Store) LoadSyncState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var block int64
	row := s.pool.QueryRow(ctx, `SELECT last_block FROM sync_state WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(block), true, nil
}

// SaveSyncState upserts the block of the last pool sync for a name.
func (s *Store) SaveSyncState(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_state (name, last_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_block = EXCLUDED.last_block, updated_at = now()
	`, name, int64(block))
	return err
}

// SyncStateName keys the sync state of one chain and protocol.
func SyncStateName(chainID uint64, protocol model.Protocol) string {
	return fmt.Sprintf("pools:%d:%s", chainID, protocol)
}

func hexKey(a common.Address) string {
	return strings.ToLower(a.Hex())
}
