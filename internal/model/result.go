package model

import "time"

// Tree types recorded on a MerkleUpdate.
const (
	TreeTypeDeposit = "deposit"
	TreeTypeChange  = "change"
)

// MerkleUpdate describes the tree mutation applied for one event.
type MerkleUpdate struct {
	LeafIndex  uint64 `json:"leaf_index"`
	Commitment string `json:"commitment"`
	NewRoot    string `json:"new_root"`
	TreeType   string `json:"tree_type"`
}

// NullifierInvalidation reports the outcome of marking a note spent. Found is
// false when no active leaf matched the nullifier, which is expected for
// replays and for notes deposited before indexing started.
type NullifierInvalidation struct {
	NullifierHash string  `json:"nullifier_hash"`
	Found         bool    `json:"found"`
	LeafIndex     *uint64 `json:"leaf_index,omitempty"`
}

// ProcessingResult is the orchestrator's answer for one payload.
type ProcessingResult struct {
	Success      bool                   `json:"success"`
	EventKind    EventKind              `json:"event_kind"`
	TxHash       string                 `json:"tx_hash"`
	LogIndex     uint64                 `json:"log_index"`
	VaultID      string                 `json:"vault_id,omitempty"`
	Idempotent   bool                   `json:"idempotent"`
	MerkleUpdate *MerkleUpdate          `json:"merkle_update,omitempty"`
	Invalidation *NullifierInvalidation `json:"invalidation,omitempty"`
	Error        string                 `json:"error,omitempty"`
	ProcessedAt  time.Time              `json:"processed_at"`
}

// BatchItemResult pairs one batch entry with its outcome. Err is set instead
// of Result when the item failed.
type BatchItemResult struct {
	Index  int               `json:"index"`
	Result *ProcessingResult `json:"result,omitempty"`
	Err    string            `json:"error,omitempty"`
}

// BatchProcessingResult aggregates a bounded batch run. Items are reported in
// submission order; a failed item never aborts the remainder.
type BatchProcessingResult struct {
	Total      int               `json:"total"`
	Successful int               `json:"successful"`
	Failed     int               `json:"failed"`
	Items      []BatchItemResult `json:"items"`
}
