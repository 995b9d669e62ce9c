package proof

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"vaultindex/internal/merkle"
	"vaultindex/internal/model"
	"vaultindex/internal/storage"
)

// Service is the read path for inclusion proofs. It is independent of the
// mutation pipeline so proof-serving latency never blocks ingestion; it
// reads the same persisted node set the last completed commit wrote.
type Service struct {
	store  storage.Store
	logger *zap.Logger
}

func NewService(store storage.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// Proof reconstructs the inclusion proof for (vault, leafIndex). A leaf that
// was never confirmed, or that has been invalidated by a spend, answers
// membership=false with the current root and an empty path; "not yet
// confirmed" is an expected caller-visible state, not a failure.
func (s *Service) Proof(ctx context.Context, vaultID string, leafIndex uint64) (model.MerkleProof, error) {
	if _, err := s.store.GetVault(ctx, vaultID); err != nil {
		return model.MerkleProof{}, err
	}

	tree := merkle.NewTree(s.store, vaultID)

	leaf, err := s.store.GetLeaf(ctx, vaultID, leafIndex)
	if err != nil {
		return model.MerkleProof{}, fmt.Errorf("read leaf: %w", err)
	}
	if leaf == nil || !leaf.IsActive {
		root, err := tree.Root(ctx)
		if err != nil {
			return model.MerkleProof{}, err
		}
		return model.MerkleProof{
			Root:       root.Hex(),
			LeafIndex:  leafIndex,
			Path:       []model.ProofStep{},
			Membership: false,
		}, nil
	}

	p, err := tree.Proof(ctx, leafIndex)
	if err != nil {
		return model.MerkleProof{}, err
	}
	return p, nil
}

// Root returns a vault's current root as stored by the registry, falling
// back to the computed tree root for a vault that has seen no events.
func (s *Service) Root(ctx context.Context, vaultID string) (string, error) {
	vlt, err := s.store.GetVault(ctx, vaultID)
	if err != nil {
		return "", err
	}
	if vlt.CurrentRoot != "" {
		return vlt.CurrentRoot, nil
	}
	root, err := merkle.NewTree(s.store, vaultID).Root(ctx)
	if err != nil {
		return "", err
	}
	return root.Hex(), nil
}
