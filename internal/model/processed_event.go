package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// ProcessedEvent is the durable exactly-once record for one emitted log
// entry, keyed by (transaction hash, log index). The raw payload and the
// returned result are kept so a replayed delivery can be answered without
// reprocessing.
type ProcessedEvent struct {
	TxHash      string          `json:"tx_hash"`
	LogIndex    uint64          `json:"log_index"`
	VaultID     string          `json:"vault_id"`
	Kind        EventKind       `json:"kind"`
	ProcessedAt time.Time       `json:"processed_at"`
	RawPayload  json.RawMessage `json:"raw_payload,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// EventKey renders the composite identity, useful for logs and map keys.
func EventKey(txHash string, logIndex uint64) string {
	return fmt.Sprintf("%s:%d", txHash, logIndex)
}
