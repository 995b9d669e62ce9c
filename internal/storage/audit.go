package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"vaultindex/internal/model"
)

// AuditEntry is one accepted payload appended to the audit trail.
type AuditEntry struct {
	TxHash     string               `json:"tx_hash"`
	LogIndex   uint64               `json:"log_index"`
	EventKind  model.EventKind      `json:"event_kind"`
	ReceivedAt string               `json:"received_at"`
	Payload    model.WebhookPayload `json:"payload"`
}

// JsonlAudit appends accepted payloads to a JSONL file. A nil *JsonlAudit is
// a valid no-op sink.
type JsonlAudit struct {
	path string
	mu   sync.Mutex
}

func NewJsonlAudit(path string) *JsonlAudit {
	if path == "" {
		return nil
	}
	return &JsonlAudit{path: path}
}

// Append writes one audit line.
func (a *JsonlAudit) Append(payload model.WebhookPayload, kind model.EventKind) error {
	if a == nil {
		return nil
	}

	dir := filepath.Dir(a.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create audit dir: %w", err)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	file, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open audit file: %w", err)
	}
	defer file.Close()

	entry := AuditEntry{
		TxHash:     payload.TransactionHash,
		LogIndex:   payload.LogIndex,
		EventKind:  kind,
		ReceivedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Payload:    payload,
	}

	writer := bufio.NewWriter(file)
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	if _, err := writer.Write(line); err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}
	if err := writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush audit file: %w", err)
	}

	return nil
}
