package model

// Vault is one indexed instance of the vault contract, identified by
// (chain id, lowercase contract address).
type Vault struct {
	ID          string `json:"id"`
	ChainID     uint64 `json:"chain_id"`
	Address     string `json:"address"`
	CurrentRoot string `json:"current_root"`
	LatestBlock uint64 `json:"latest_block"`
}

// TreeLeaf is a level-0 tree entry. NullifierHash is the nullifier registered
// for the commitment when it is known ahead of the spend; SpentNullifier is
// set when the leaf is invalidated. Invalidation flips IsActive without
// touching the stored hash, so roots already handed out keep verifying.
type TreeLeaf struct {
	VaultID        string `json:"vault_id"`
	LeafIndex      uint64 `json:"leaf_index"`
	Commitment     string `json:"commitment"`
	IsActive       bool   `json:"is_active"`
	NullifierHash  string `json:"nullifier_hash,omitempty"`
	SpentNullifier string `json:"spent_nullifier,omitempty"`
}
