package model

import (
	"errors"
	"fmt"
	"strings"
)

// Processing phases recorded on EventProcessingError.
const (
	PhaseValidation  = "validation"
	PhaseIdempotency = "idempotency"
	PhaseRouting     = "routing"
	PhaseProcessing  = "processing"
	PhaseRecording   = "recording"
)

var (
	// ErrDuplicateEvent is returned by stores when an insert hits the
	// (tx_hash, log_index) unique constraint.
	ErrDuplicateEvent = errors.New("event already processed")

	// ErrVaultNotFound is returned for reads against an unknown vault.
	ErrVaultNotFound = errors.New("vault not found")

	// ErrBatchTooLarge rejects an oversized batch before any item runs.
	ErrBatchTooLarge = errors.New("batch exceeds size limit")

	// ErrRollbackUnsupported marks reorg rollback as an open requirement.
	// The intended policy is to mark processed events past the block as
	// reverted and recompute the affected subtree bottom-up from the
	// remaining active leaves; neither step is implemented.
	ErrRollbackUnsupported = errors.New("rollback not supported")
)

// FieldError is a single field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every problem found in a payload so callers can
// report them all at once.
type ValidationErrors []FieldError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, fe := range e {
		msgs = append(msgs, fe.Error())
	}
	return "invalid payload: " + strings.Join(msgs, "; ")
}

// MerkleUpdateError is a tree mutation rejected for violating an invariant,
// such as an out-of-range index or a malformed hash.
type MerkleUpdateError struct {
	VaultID string
	Reason  string
}

func (e *MerkleUpdateError) Error() string {
	return fmt.Sprintf("merkle update rejected for vault %s: %s", e.VaultID, e.Reason)
}

// DatabaseError wraps a persistence failure. These are treated as transient
// and safe to retry because the idempotency layer makes reapplication a
// no-op.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database %s: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }

// EventProcessingError wraps a pipeline failure with the phase it occurred
// in.
type EventProcessingError struct {
	Phase string
	Key   string
	Err   error
}

func (e *EventProcessingError) Error() string {
	return fmt.Sprintf("process event %s (%s): %v", e.Key, e.Phase, e.Err)
}

func (e *EventProcessingError) Unwrap() error { return e.Err }
