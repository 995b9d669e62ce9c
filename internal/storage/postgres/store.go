package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"vaultindex/internal/model"
)

// uniqueViolation is the Postgres error code for a unique constraint hit.
const uniqueViolation = "23505"

// Store provides Postgres persistence for vaults, processed events and tree
// nodes.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks connectivity for health reporting.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// EnsureSchema creates the tables and constraints the store depends on. The
// unique index on processed_events is what makes racing duplicate deliveries
// safe.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS vaults (
			id UUID PRIMARY KEY,
			chain_id BIGINT NOT NULL,
			vault_address TEXT NOT NULL,
			current_root TEXT NOT NULL DEFAULT '',
			latest_block BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (chain_id, vault_address)
		)`,
		`CREATE TABLE IF NOT EXISTS processed_events (
			tx_hash TEXT NOT NULL,
			log_index BIGINT NOT NULL,
			vault_id UUID NOT NULL,
			event_kind TEXT NOT NULL,
			processed_at TIMESTAMPTZ NOT NULL,
			raw_payload JSONB,
			result JSONB,
			PRIMARY KEY (tx_hash, log_index)
		)`,
		`CREATE TABLE IF NOT EXISTS merkle_nodes (
			vault_id UUID NOT NULL,
			level INT NOT NULL,
			node_index BIGINT NOT NULL,
			hash TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (vault_id, level, node_index)
		)`,
		`CREATE TABLE IF NOT EXISTS merkle_tree_leaves (
			vault_id UUID NOT NULL,
			leaf_index BIGINT NOT NULL,
			commitment TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			nullifier_hash TEXT NOT NULL DEFAULT '',
			spent_nullifier TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (vault_id, leaf_index)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_leaves_nullifier
			ON merkle_tree_leaves (vault_id, nullifier_hash) WHERE is_active`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *Store) GetOrCreateVault(ctx context.Context, chainID uint64, address string) (model.Vault, error) {
	id := uuid.NewString()
	// Insert-or-noop, then read back. The read sees either our row or the
	// one a concurrent creator won with.
	_, err := s.pool.Exec(ctx, `
		INSERT INTO vaults (id, chain_id, vault_address)
		VALUES ($1, $2, $3)
		ON CONFLICT (chain_id, vault_address) DO NOTHING
	`, id, int64(chainID), address)
	if err != nil {
		return model.Vault{}, &model.DatabaseError{Op: "create vault", Err: err}
	}

	var vault model.Vault
	var dbChainID, latestBlock int64
	row := s.pool.QueryRow(ctx, `
		SELECT id, chain_id, vault_address, current_root, latest_block
		FROM vaults WHERE chain_id=$1 AND vault_address=$2
	`, int64(chainID), address)
	if err := row.Scan(&vault.ID, &dbChainID, &vault.Address, &vault.CurrentRoot, &latestBlock); err != nil {
		return model.Vault{}, &model.DatabaseError{Op: "read vault", Err: err}
	}
	vault.ChainID = uint64(dbChainID)
	vault.LatestBlock = uint64(latestBlock)
	return vault, nil
}

func (s *Store) GetVault(ctx context.Context, vaultID string) (model.Vault, error) {
	var vault model.Vault
	var chainID, latestBlock int64
	row := s.pool.QueryRow(ctx, `
		SELECT id, chain_id, vault_address, current_root, latest_block
		FROM vaults WHERE id=$1
	`, vaultID)
	if err := row.Scan(&vault.ID, &chainID, &vault.Address, &vault.CurrentRoot, &latestBlock); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Vault{}, model.ErrVaultNotFound
		}
		return model.Vault{}, &model.DatabaseError{Op: "read vault", Err: err}
	}
	vault.ChainID = uint64(chainID)
	vault.LatestBlock = uint64(latestBlock)
	return vault, nil
}

func (s *Store) FindVault(ctx context.Context, chainID uint64, address string) (model.Vault, error) {
	var vault model.Vault
	var dbChainID, latestBlock int64
	row := s.pool.QueryRow(ctx, `
		SELECT id, chain_id, vault_address, current_root, latest_block
		FROM vaults WHERE chain_id=$1 AND vault_address=$2
	`, int64(chainID), address)
	if err := row.Scan(&vault.ID, &dbChainID, &vault.Address, &vault.CurrentRoot, &latestBlock); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Vault{}, model.ErrVaultNotFound
		}
		return model.Vault{}, &model.DatabaseError{Op: "find vault", Err: err}
	}
	vault.ChainID = uint64(dbChainID)
	vault.LatestBlock = uint64(latestBlock)
	return vault, nil
}

func (s *Store) UpdateVaultRoot(ctx context.Context, vaultID, root string, block uint64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE vaults
		SET current_root=$2, latest_block=GREATEST(latest_block, $3), updated_at=now()
		WHERE id=$1
	`, vaultID, root, int64(block))
	if err != nil {
		return &model.DatabaseError{Op: "update vault root", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return model.ErrVaultNotFound
	}
	return nil
}

func (s *Store) GetProcessedEvent(ctx context.Context, txHash string, logIndex uint64) (*model.ProcessedEvent, error) {
	var ev model.ProcessedEvent
	var dbLogIndex int64
	row := s.pool.QueryRow(ctx, `
		SELECT tx_hash, log_index, vault_id, event_kind, processed_at, raw_payload, result
		FROM processed_events WHERE tx_hash=$1 AND log_index=$2
	`, txHash, int64(logIndex))
	if err := row.Scan(&ev.TxHash, &dbLogIndex, &ev.VaultID, &ev.Kind, &ev.ProcessedAt, &ev.RawPayload, &ev.Result); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, &model.DatabaseError{Op: "read processed event", Err: err}
	}
	ev.LogIndex = uint64(dbLogIndex)
	return &ev, nil
}

func (s *Store) InsertProcessedEvent(ctx context.Context, ev model.ProcessedEvent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO processed_events (tx_hash, log_index, vault_id, event_kind, processed_at, raw_payload, result)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, ev.TxHash, int64(ev.LogIndex), ev.VaultID, string(ev.Kind), ev.ProcessedAt, ev.RawPayload, ev.Result)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return model.ErrDuplicateEvent
		}
		return &model.DatabaseError{Op: "insert processed event", Err: err}
	}
	return nil
}

func (s *Store) UpsertNode(ctx context.Context, vaultID string, level int, index uint64, hash string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO merkle_nodes (vault_id, level, node_index, hash)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (vault_id, level, node_index)
		DO UPDATE SET hash = EXCLUDED.hash, updated_at = now()
	`, vaultID, level, int64(index), hash)
	if err != nil {
		return &model.DatabaseError{Op: "upsert node", Err: err}
	}
	return nil
}

func (s *Store) GetNode(ctx context.Context, vaultID string, level int, index uint64) (string, bool, error) {
	var hash string
	row := s.pool.QueryRow(ctx, `
		SELECT hash FROM merkle_nodes WHERE vault_id=$1 AND level=$2 AND node_index=$3
	`, vaultID, level, int64(index))
	if err := row.Scan(&hash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, &model.DatabaseError{Op: "read node", Err: err}
	}
	return hash, true, nil
}

func (s *Store) InsertLeaf(ctx context.Context, leaf model.TreeLeaf) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO merkle_tree_leaves (vault_id, leaf_index, commitment, is_active, nullifier_hash)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (vault_id, leaf_index)
		DO UPDATE SET commitment = EXCLUDED.commitment, is_active = EXCLUDED.is_active, updated_at = now()
	`, leaf.VaultID, int64(leaf.LeafIndex), leaf.Commitment, leaf.IsActive, leaf.NullifierHash)
	if err != nil {
		return &model.DatabaseError{Op: "insert leaf", Err: err}
	}
	return nil
}

func (s *Store) GetLeaf(ctx context.Context, vaultID string, index uint64) (*model.TreeLeaf, error) {
	var leaf model.TreeLeaf
	var dbIndex int64
	row := s.pool.QueryRow(ctx, `
		SELECT vault_id, leaf_index, commitment, is_active, nullifier_hash, spent_nullifier
		FROM merkle_tree_leaves WHERE vault_id=$1 AND leaf_index=$2
	`, vaultID, int64(index))
	if err := row.Scan(&leaf.VaultID, &dbIndex, &leaf.Commitment, &leaf.IsActive, &leaf.NullifierHash, &leaf.SpentNullifier); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, &model.DatabaseError{Op: "read leaf", Err: err}
	}
	leaf.LeafIndex = uint64(dbIndex)
	return &leaf, nil
}

func (s *Store) CountLeaves(ctx context.Context, vaultID string) (int, error) {
	var count int
	row := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM merkle_tree_leaves WHERE vault_id=$1`, vaultID)
	if err := row.Scan(&count); err != nil {
		return 0, &model.DatabaseError{Op: "count leaves", Err: err}
	}
	return count, nil
}

func (s *Store) MarkLeafSpent(ctx context.Context, vaultID, nullifierHash string) (*model.TreeLeaf, error) {
	var leaf model.TreeLeaf
	var dbIndex int64
	row := s.pool.QueryRow(ctx, `
		UPDATE merkle_tree_leaves
		SET is_active = FALSE, spent_nullifier = $2, updated_at = now()
		WHERE vault_id = $1 AND nullifier_hash = $2 AND is_active
		RETURNING vault_id, leaf_index, commitment, is_active, nullifier_hash, spent_nullifier
	`, vaultID, nullifierHash)
	if err := row.Scan(&leaf.VaultID, &dbIndex, &leaf.Commitment, &leaf.IsActive, &leaf.NullifierHash, &leaf.SpentNullifier); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, &model.DatabaseError{Op: "mark leaf spent", Err: err}
	}
	leaf.LeafIndex = uint64(dbIndex)
	return &leaf, nil
}
