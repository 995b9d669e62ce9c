package updater

import (
	"context"
	"errors"
	"strings"
	"testing"

	"vaultindex/internal/merkle"
	"vaultindex/internal/model"
	"vaultindex/internal/storage"
)

// hash builds a full-width hex value below the field modulus, so the stored
// reduced form matches the input byte for byte.
func hash(b string) string {
	return "0x00" + strings.Repeat(b, 31)
}

func setup(t *testing.T) (*Updater, storage.Store, string) {
	t.Helper()
	store := storage.NewMemoryStore()
	vault, err := store.GetOrCreateVault(context.Background(), 1, "0x"+strings.Repeat("ab", 20))
	if err != nil {
		t.Fatalf("create vault: %v", err)
	}
	return NewUpdater(store, nil), store, vault.ID
}

func TestHandleDeposit(t *testing.T) {
	ctx := context.Background()
	u, store, vaultID := setup(t)

	update, err := u.HandleDeposit(ctx, vaultID, model.DepositEvent{
		Commitment: hash("aa"),
		LeafIndex:  0,
	})
	if err != nil {
		t.Fatalf("handle deposit: %v", err)
	}
	if update.TreeType != model.TreeTypeDeposit || update.LeafIndex != 0 {
		t.Fatalf("unexpected update: %+v", update)
	}
	if update.NewRoot == "" {
		t.Fatalf("new root must be reported")
	}

	leaf, err := store.GetLeaf(ctx, vaultID, 0)
	if err != nil {
		t.Fatalf("read leaf: %v", err)
	}
	if leaf == nil || !leaf.IsActive {
		t.Fatalf("deposit leaf missing or inactive: %+v", leaf)
	}
}

func TestHandleDepositRejectsBadCommitment(t *testing.T) {
	ctx := context.Background()
	u, _, vaultID := setup(t)

	var updateErr *model.MerkleUpdateError
	_, err := u.HandleDeposit(ctx, vaultID, model.DepositEvent{Commitment: "0xshort", LeafIndex: 0})
	if !errors.As(err, &updateErr) {
		t.Fatalf("expected MerkleUpdateError, got %v", err)
	}

	_, err = u.HandleDeposit(ctx, vaultID, model.DepositEvent{Commitment: hash("aa"), LeafIndex: merkle.MaxLeaves})
	if !errors.As(err, &updateErr) {
		t.Fatalf("expected MerkleUpdateError for out-of-range index, got %v", err)
	}
}

// A deposit that carries the note's nullifier registers it on the leaf; a
// later spend of that nullifier finds and invalidates the note.
func TestHandleDepositRegistersNullifier(t *testing.T) {
	ctx := context.Background()
	u, store, vaultID := setup(t)

	if _, err := u.HandleDeposit(ctx, vaultID, model.DepositEvent{
		Commitment:    hash("aa"),
		LeafIndex:     0,
		NullifierHash: hash("bb"),
	}); err != nil {
		t.Fatalf("handle deposit: %v", err)
	}

	leaf, err := store.GetLeaf(ctx, vaultID, 0)
	if err != nil {
		t.Fatalf("read leaf: %v", err)
	}
	if leaf == nil || leaf.NullifierHash != hash("bb") {
		t.Fatalf("nullifier not registered: %+v", leaf)
	}

	_, invalidation, err := u.HandleActionExecuted(ctx, vaultID, model.ActionExecutedEvent{
		NullifierHash:    hash("bb"),
		ChangeCommitment: hash("cc"),
		ChangeIndex:      1,
	})
	if err != nil {
		t.Fatalf("handle action: %v", err)
	}
	if !invalidation.Found || invalidation.LeafIndex == nil || *invalidation.LeafIndex != 0 {
		t.Fatalf("spend must match the registered nullifier: %+v", invalidation)
	}
}

func TestHandleDepositRejectsBadNullifier(t *testing.T) {
	ctx := context.Background()
	u, _, vaultID := setup(t)

	var updateErr *model.MerkleUpdateError
	_, err := u.HandleDeposit(ctx, vaultID, model.DepositEvent{
		Commitment:    hash("aa"),
		LeafIndex:     0,
		NullifierHash: "0xnope",
	})
	if !errors.As(err, &updateErr) {
		t.Fatalf("expected MerkleUpdateError, got %v", err)
	}
}

func TestHandleActionExecutedSpendsRegisteredNote(t *testing.T) {
	ctx := context.Background()
	u, store, vaultID := setup(t)

	// A note whose nullifier was registered ahead of the spend.
	if err := store.InsertLeaf(ctx, model.TreeLeaf{
		VaultID:       vaultID,
		LeafIndex:     0,
		Commitment:    hash("aa"),
		IsActive:      true,
		NullifierHash: hash("bb"),
	}); err != nil {
		t.Fatalf("seed leaf: %v", err)
	}

	update, invalidation, err := u.HandleActionExecuted(ctx, vaultID, model.ActionExecutedEvent{
		NullifierHash:    hash("bb"),
		ChangeCommitment: hash("cc"),
		ChangeIndex:      1,
	})
	if err != nil {
		t.Fatalf("handle action: %v", err)
	}
	if update.TreeType != model.TreeTypeChange || update.LeafIndex != 1 {
		t.Fatalf("unexpected update: %+v", update)
	}
	if !invalidation.Found || invalidation.LeafIndex == nil || *invalidation.LeafIndex != 0 {
		t.Fatalf("invalidation must point at the spent leaf: %+v", invalidation)
	}

	spent, err := store.GetLeaf(ctx, vaultID, 0)
	if err != nil {
		t.Fatalf("read spent leaf: %v", err)
	}
	if spent.IsActive || spent.SpentNullifier != hash("bb") {
		t.Fatalf("spent leaf not invalidated: %+v", spent)
	}

	change, err := store.GetLeaf(ctx, vaultID, 1)
	if err != nil {
		t.Fatalf("read change leaf: %v", err)
	}
	if change == nil || !change.IsActive {
		t.Fatalf("change leaf missing: %+v", change)
	}
}

// An unmatched nullifier is tolerated: the handler logs, skips invalidation,
// and still inserts the change leaf.
func TestHandleActionExecutedUnmatchedNullifier(t *testing.T) {
	ctx := context.Background()
	u, store, vaultID := setup(t)

	update, invalidation, err := u.HandleActionExecuted(ctx, vaultID, model.ActionExecutedEvent{
		NullifierHash:    hash("ee"),
		ChangeCommitment: hash("cc"),
		ChangeIndex:      5,
	})
	if err != nil {
		t.Fatalf("handler must not fail on unmatched nullifier: %v", err)
	}
	if invalidation.Found || invalidation.LeafIndex != nil {
		t.Fatalf("invalidation must report not found: %+v", invalidation)
	}
	if update == nil || update.LeafIndex != 5 {
		t.Fatalf("change leaf must still be inserted: %+v", update)
	}

	change, err := store.GetLeaf(ctx, vaultID, 5)
	if err != nil {
		t.Fatalf("read change leaf: %v", err)
	}
	if change == nil {
		t.Fatalf("change leaf row missing")
	}
}

func TestHandleActionExecutedRejectsBadFields(t *testing.T) {
	ctx := context.Background()
	u, _, vaultID := setup(t)

	var updateErr *model.MerkleUpdateError
	_, _, err := u.HandleActionExecuted(ctx, vaultID, model.ActionExecutedEvent{
		NullifierHash:    "garbage",
		ChangeCommitment: hash("cc"),
		ChangeIndex:      1,
	})
	if !errors.As(err, &updateErr) {
		t.Fatalf("expected MerkleUpdateError, got %v", err)
	}

	_, _, err = u.HandleActionExecuted(ctx, vaultID, model.ActionExecutedEvent{
		NullifierHash:    hash("bb"),
		ChangeCommitment: hash("cc"),
		ChangeIndex:      merkle.MaxLeaves + 1,
	})
	if !errors.As(err, &updateErr) {
		t.Fatalf("expected MerkleUpdateError for out-of-range change index, got %v", err)
	}
}
