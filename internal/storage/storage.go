package storage

import (
	"context"

	"vaultindex/internal/model"
)

// Store is the persistence collaborator the pipeline needs. Every operation
// is individually atomic; the pipeline never assumes cross-call
// transactions. InsertProcessedEvent must enforce uniqueness of
// (tx_hash, log_index) and return model.ErrDuplicateEvent on conflict; that
// constraint is the correctness backstop for racing duplicate deliveries.
type Store interface {
	// GetOrCreateVault resolves a vault by (chainID, lowercase address),
	// creating the record on first sight.
	GetOrCreateVault(ctx context.Context, chainID uint64, address string) (model.Vault, error)
	// GetVault reads a vault by id; model.ErrVaultNotFound if absent.
	GetVault(ctx context.Context, vaultID string) (model.Vault, error)
	// FindVault reads a vault by (chainID, lowercase address) without
	// creating it; model.ErrVaultNotFound if absent.
	FindVault(ctx context.Context, chainID uint64, address string) (model.Vault, error)
	// UpdateVaultRoot records the root and latest block after a mutation.
	UpdateVaultRoot(ctx context.Context, vaultID, root string, block uint64) error

	// GetProcessedEvent returns the stored record for the identity, or nil.
	GetProcessedEvent(ctx context.Context, txHash string, logIndex uint64) (*model.ProcessedEvent, error)
	// InsertProcessedEvent stores the record exactly once.
	InsertProcessedEvent(ctx context.Context, ev model.ProcessedEvent) error

	// UpsertNode writes a tree node hash at (vaultID, level, index).
	UpsertNode(ctx context.Context, vaultID string, level int, index uint64, hash string) error
	// GetNode reads a tree node; ok is false if it was never written.
	GetNode(ctx context.Context, vaultID string, level int, index uint64) (string, bool, error)

	// InsertLeaf records a level-0 leaf row.
	InsertLeaf(ctx context.Context, leaf model.TreeLeaf) error
	// GetLeaf returns the leaf at an index, or nil.
	GetLeaf(ctx context.Context, vaultID string, index uint64) (*model.TreeLeaf, error)
	// CountLeaves reports the number of leaf rows for a vault.
	CountLeaves(ctx context.Context, vaultID string) (int, error)
	// MarkLeafSpent flips is_active off for the active leaf registered under
	// the nullifier and records the spend. Returns nil when no active leaf
	// matches, which is not an error.
	MarkLeafSpent(ctx context.Context, vaultID, nullifierHash string) (*model.TreeLeaf, error)
}
