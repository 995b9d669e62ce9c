package merkle

import (
	"context"
	"fmt"

	"vaultindex/internal/hasher"
	"vaultindex/internal/model"
	"vaultindex/internal/storage"
)

const (
	// TreeHeight is fixed by the deployed contract's accumulator size.
	TreeHeight = 20
	// MaxLeaves is the leaf index space, 2^TreeHeight.
	MaxLeaves = uint64(1) << TreeHeight
)

// Tree is a height-20 sparse Merkle tree over one vault's commitments.
// Nodes live in the store keyed by (vault, level, index); subtrees that were
// never populated are represented by per-level zero hashes instead of rows.
// The tree does not deduplicate writes: exactly-once application is owned by
// the idempotency layer in front of it.
type Tree struct {
	store   storage.Store
	vaultID string
}

func NewTree(store storage.Store, vaultID string) *Tree {
	return &Tree{store: store, vaultID: vaultID}
}

// node reads a node hash, substituting the zero hash for a branch that was
// never written.
func (t *Tree) node(ctx context.Context, level int, index uint64) (hasher.Digest, error) {
	hex, ok, err := t.store.GetNode(ctx, t.vaultID, level, index)
	if err != nil {
		return hasher.Digest{}, err
	}
	if !ok {
		return hasher.ZeroHash(level), nil
	}
	digest, err := hasher.FromHex(hex)
	if err != nil {
		return hasher.Digest{}, fmt.Errorf("corrupt node at level %d index %d: %w", level, index, err)
	}
	return digest, nil
}

// set writes the level-0 node and recomputes every ancestor up to the root.
// At each level the node is combined with its sibling in index-bit order: an
// even index is a left child. Returns the new root and the number of nodes
// written.
func (t *Tree) set(ctx context.Context, index uint64, value hasher.Digest) (hasher.Digest, int, error) {
	if index >= MaxLeaves {
		return hasher.Digest{}, 0, &model.MerkleUpdateError{
			VaultID: t.vaultID,
			Reason:  fmt.Sprintf("leaf index %d outside tree of height %d", index, TreeHeight),
		}
	}

	current := value
	if err := t.store.UpsertNode(ctx, t.vaultID, 0, index, current.Hex()); err != nil {
		return hasher.Digest{}, 0, err
	}
	written := 1

	for level := 0; level < TreeHeight; level++ {
		sibling, err := t.node(ctx, level, index^1)
		if err != nil {
			return hasher.Digest{}, written, err
		}
		if index&1 == 0 {
			current = hasher.Compress2(current, sibling)
		} else {
			current = hasher.Compress2(sibling, current)
		}
		index >>= 1
		if err := t.store.UpsertNode(ctx, t.vaultID, level+1, index, current.Hex()); err != nil {
			return hasher.Digest{}, written, err
		}
		written++
	}

	return current, written, nil
}

// Insert places a leaf value at an index and rehashes to the root.
func (t *Tree) Insert(ctx context.Context, index uint64, value hasher.Digest) (hasher.Digest, int, error) {
	return t.set(ctx, index, value)
}

// Update replaces the leaf value at an index and rehashes to the root.
func (t *Tree) Update(ctx context.Context, index uint64, value hasher.Digest) (hasher.Digest, int, error) {
	return t.set(ctx, index, value)
}

// Delete resets the leaf to the canonical zero value. The node row is kept
// so sibling lookups stay well-defined.
func (t *Tree) Delete(ctx context.Context, index uint64) (hasher.Digest, int, error) {
	return t.set(ctx, index, hasher.ZeroHash(0))
}

// Root returns the current root, which is the zero-tree root for a vault
// with no leaves.
func (t *Tree) Root(ctx context.Context) (hasher.Digest, error) {
	return t.node(ctx, TreeHeight, 0)
}

// Proof builds an inclusion proof for a leaf index. The proof's root is
// folded from the leaf hash and the sibling path as the walk reads them, so
// root and path can never disagree even when a writer lands between node
// reads. A leaf that was never set yields membership=false with an empty
// path and the current root; that is an expected answer, not an error.
func (t *Tree) Proof(ctx context.Context, index uint64) (model.MerkleProof, error) {
	if index >= MaxLeaves {
		return model.MerkleProof{}, &model.MerkleUpdateError{
			VaultID: t.vaultID,
			Reason:  fmt.Sprintf("leaf index %d outside tree of height %d", index, TreeHeight),
		}
	}

	leafHex, ok, err := t.store.GetNode(ctx, t.vaultID, 0, index)
	if err != nil {
		return model.MerkleProof{}, err
	}
	if !ok {
		root, err := t.Root(ctx)
		if err != nil {
			return model.MerkleProof{}, err
		}
		return model.MerkleProof{
			Root:       root.Hex(),
			LeafIndex:  index,
			Path:       []model.ProofStep{},
			Membership: false,
		}, nil
	}

	current, err := hasher.FromHex(leafHex)
	if err != nil {
		return model.MerkleProof{}, fmt.Errorf("corrupt node at level 0 index %d: %w", index, err)
	}

	proof := model.MerkleProof{
		LeafIndex:  index,
		Path:       make([]model.ProofStep, 0, TreeHeight),
		Membership: true,
	}

	idx := index
	for level := 0; level < TreeHeight; level++ {
		sibling, err := t.node(ctx, level, idx^1)
		if err != nil {
			return model.MerkleProof{}, err
		}
		side := model.SideLeft
		if idx&1 == 1 {
			side = model.SideRight
			current = hasher.Compress2(sibling, current)
		} else {
			current = hasher.Compress2(current, sibling)
		}
		proof.Path = append(proof.Path, model.ProofStep{
			Level:   level + 1,
			Sibling: sibling.Hex(),
			Side:    side,
		})
		idx >>= 1
	}
	proof.Root = current.Hex()

	return proof, nil
}

// VerifyProof folds a level-0 value through a proof path and checks the
// result against the proof's root. Shared by tests and by callers that want
// to sanity-check a proof before handing it to a prover.
func VerifyProof(value hasher.Digest, proof model.MerkleProof) bool {
	current := value
	for _, step := range proof.Path {
		sibling, err := hasher.FromHex(step.Sibling)
		if err != nil {
			return false
		}
		switch step.Side {
		case model.SideLeft:
			current = hasher.Compress2(current, sibling)
		case model.SideRight:
			current = hasher.Compress2(sibling, current)
		default:
			return false
		}
	}
	return current.Hex() == proof.Root
}
