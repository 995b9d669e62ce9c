package model

// ProofStep is one level of an inclusion proof. Side records which branch
// the leaf's ancestor occupies at this level: "left" means the ancestor is
// the left child and the sibling sits on the right.
type ProofStep struct {
	Level   int    `json:"level"`
	Sibling string `json:"sibling"`
	Side    string `json:"side"`
}

const (
	SideLeft  = "left"
	SideRight = "right"
)

// MerkleProof is an inclusion proof against a specific root snapshot. For a
// leaf that was never inserted (or has been invalidated) Membership is false
// and Path is empty; the root is still reported so the caller can see the
// snapshot the answer refers to.
type MerkleProof struct {
	Root       string      `json:"root"`
	LeafIndex  uint64      `json:"leaf_index"`
	Path       []ProofStep `json:"path"`
	Membership bool        `json:"membership"`
}
