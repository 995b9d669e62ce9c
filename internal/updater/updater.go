package updater

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"vaultindex/internal/hasher"
	"vaultindex/internal/merkle"
	"vaultindex/internal/model"
	"vaultindex/internal/storage"
)

// Updater translates routed events into tree mutations. Handlers are safe to
// retry: the idempotency guard in front of them prevents duplicate
// application, and re-applying the same leaf value reproduces the same root.
type Updater struct {
	store  storage.Store
	logger *zap.Logger
}

func NewUpdater(store storage.Store, logger *zap.Logger) *Updater {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Updater{store: store, logger: logger}
}

// HandleDeposit inserts the commitment at its contract-assigned index and
// returns the applied mutation with the new root. A deposit carrying the
// note's nullifier registers it on the leaf so a later spend matches.
func (u *Updater) HandleDeposit(ctx context.Context, vaultID string, ev model.DepositEvent) (*model.MerkleUpdate, error) {
	commitment, err := parseHash(vaultID, "commitment", ev.Commitment)
	if err != nil {
		return nil, err
	}
	if ev.LeafIndex >= merkle.MaxLeaves {
		return nil, &model.MerkleUpdateError{
			VaultID: vaultID,
			Reason:  fmt.Sprintf("deposit leafIndex %d out of range", ev.LeafIndex),
		}
	}

	leaf := model.TreeLeaf{
		VaultID:    vaultID,
		LeafIndex:  ev.LeafIndex,
		Commitment: commitment.Hex(),
		IsActive:   true,
	}
	if ev.NullifierHash != "" {
		nullifier, err := parseHash(vaultID, "nullifierHash", ev.NullifierHash)
		if err != nil {
			return nil, err
		}
		leaf.NullifierHash = nullifier.Hex()
	}
	if err := u.store.InsertLeaf(ctx, leaf); err != nil {
		return nil, fmt.Errorf("insert deposit leaf: %w", err)
	}

	tree := merkle.NewTree(u.store, vaultID)
	root, written, err := tree.Insert(ctx, ev.LeafIndex, hasher.LeafHash(commitment, ev.LeafIndex))
	if err != nil {
		return nil, err
	}

	u.logger.Info("deposit applied",
		zap.String("vault_id", vaultID),
		zap.Uint64("leaf_index", ev.LeafIndex),
		zap.Int("nodes_written", written),
	)

	return &model.MerkleUpdate{
		LeafIndex:  ev.LeafIndex,
		Commitment: commitment.Hex(),
		NewRoot:    root.Hex(),
		TreeType:   model.TreeTypeDeposit,
	}, nil
}

// HandleActionExecuted marks the spent note inactive and inserts the change
// commitment. A nullifier with no matching active leaf is logged and
// tolerated: replays and notes deposited before indexing started both look
// like that, and neither may abort the pipeline.
func (u *Updater) HandleActionExecuted(ctx context.Context, vaultID string, ev model.ActionExecutedEvent) (*model.MerkleUpdate, *model.NullifierInvalidation, error) {
	nullifier, err := parseHash(vaultID, "nullifierHash", ev.NullifierHash)
	if err != nil {
		return nil, nil, err
	}
	changeCommitment, err := parseHash(vaultID, "changeCommitment", ev.ChangeCommitment)
	if err != nil {
		return nil, nil, err
	}
	if ev.ChangeIndex >= merkle.MaxLeaves {
		return nil, nil, &model.MerkleUpdateError{
			VaultID: vaultID,
			Reason:  fmt.Sprintf("changeIndex %d out of range", ev.ChangeIndex),
		}
	}

	invalidation := &model.NullifierInvalidation{NullifierHash: nullifier.Hex()}
	spent, err := u.store.MarkLeafSpent(ctx, vaultID, nullifier.Hex())
	if err != nil {
		return nil, nil, fmt.Errorf("mark leaf spent: %w", err)
	}
	if spent != nil {
		invalidation.Found = true
		leafIndex := spent.LeafIndex
		invalidation.LeafIndex = &leafIndex
		u.logger.Info("note invalidated",
			zap.String("vault_id", vaultID),
			zap.Uint64("leaf_index", leafIndex),
			zap.String("nullifier", nullifier.Hex()),
		)
	} else {
		u.logger.Warn("no active leaf matches nullifier",
			zap.String("vault_id", vaultID),
			zap.String("nullifier", nullifier.Hex()),
		)
	}

	if err := u.store.InsertLeaf(ctx, model.TreeLeaf{
		VaultID:    vaultID,
		LeafIndex:  ev.ChangeIndex,
		Commitment: changeCommitment.Hex(),
		IsActive:   true,
	}); err != nil {
		return nil, nil, fmt.Errorf("insert change leaf: %w", err)
	}

	tree := merkle.NewTree(u.store, vaultID)
	root, _, err := tree.Insert(ctx, ev.ChangeIndex, hasher.LeafHash(changeCommitment, ev.ChangeIndex))
	if err != nil {
		return nil, nil, err
	}

	return &model.MerkleUpdate{
		LeafIndex:  ev.ChangeIndex,
		Commitment: changeCommitment.Hex(),
		NewRoot:    root.Hex(),
		TreeType:   model.TreeTypeChange,
	}, invalidation, nil
}

// parseHash requires a full-width 32-byte hex value and reduces it into the
// field.
func parseHash(vaultID, field, value string) (hasher.Digest, error) {
	if len(value) != 66 {
		return hasher.Digest{}, &model.MerkleUpdateError{
			VaultID: vaultID,
			Reason:  fmt.Sprintf("%s must be a 0x-prefixed 64-char hex value, got %q", field, value),
		}
	}
	digest, err := hasher.FromHex(value)
	if err != nil {
		return hasher.Digest{}, &model.MerkleUpdateError{
			VaultID: vaultID,
			Reason:  fmt.Sprintf("%s: %v", field, err),
		}
	}
	return digest, nil
}
