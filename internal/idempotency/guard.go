package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"vaultindex/internal/model"
	"vaultindex/internal/storage"
)

// Guard is the exactly-once layer keyed by (transaction hash, log index).
// The application-level check may race with a concurrent delivery of the
// same event; the store's unique constraint is the backstop, and the loser
// of that race converges to the winner's stored result.
type Guard struct {
	store  storage.Store
	logger *zap.Logger
}

func NewGuard(store storage.Store, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{store: store, logger: logger}
}

// Check looks up a prior result for the identity. A duplicate returns the
// stored result tagged idempotent.
func (g *Guard) Check(ctx context.Context, txHash string, logIndex uint64) (*model.ProcessingResult, bool, error) {
	ev, err := g.store.GetProcessedEvent(ctx, txHash, logIndex)
	if err != nil {
		return nil, false, fmt.Errorf("idempotency lookup: %w", err)
	}
	if ev == nil {
		return nil, false, nil
	}

	result, err := resultFromRecord(ev)
	if err != nil {
		return nil, false, err
	}
	return result, true, nil
}

// Record stores the processed-event row after successful processing.
// model.ErrDuplicateEvent means a concurrent delivery won the insert.
func (g *Guard) Record(ctx context.Context, payload model.WebhookPayload, result model.ProcessingResult) error {
	rawPayload, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	rawResult, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	return g.store.InsertProcessedEvent(ctx, model.ProcessedEvent{
		TxHash:      payload.TransactionHash,
		LogIndex:    payload.LogIndex,
		VaultID:     result.VaultID,
		Kind:        result.EventKind,
		ProcessedAt: time.Now().UTC(),
		RawPayload:  rawPayload,
		Result:      rawResult,
	})
}

// Process wraps check-then-act. On first sight it runs fn, records the
// outcome, and returns it; on a duplicate (detected up front or by losing
// the insert race) it returns the stored result without re-invoking fn.
func (g *Guard) Process(ctx context.Context, payload model.WebhookPayload, fn func(context.Context) (model.ProcessingResult, error)) (model.ProcessingResult, error) {
	key := model.EventKey(payload.TransactionHash, payload.LogIndex)

	stored, duplicate, err := g.Check(ctx, payload.TransactionHash, payload.LogIndex)
	if err != nil {
		return model.ProcessingResult{}, err
	}
	if duplicate {
		g.logger.Debug("duplicate event short-circuited", zap.String("event", key))
		return *stored, nil
	}

	result, err := fn(ctx)
	if err != nil {
		return model.ProcessingResult{}, err
	}
	result.Idempotent = false

	if err := g.Record(ctx, payload, result); err != nil {
		if errors.Is(err, model.ErrDuplicateEvent) {
			// Lost the race to a concurrent delivery; its record is the
			// authoritative outcome.
			g.logger.Warn("lost idempotency race, returning stored result", zap.String("event", key))
			ev, lookupErr := g.store.GetProcessedEvent(ctx, payload.TransactionHash, payload.LogIndex)
			if lookupErr != nil || ev == nil {
				return model.ProcessingResult{}, fmt.Errorf("reread after duplicate insert %s: %v", key, lookupErr)
			}
			winner, convErr := resultFromRecord(ev)
			if convErr != nil {
				return model.ProcessingResult{}, convErr
			}
			return *winner, nil
		}
		return model.ProcessingResult{}, &model.EventProcessingError{Phase: model.PhaseRecording, Key: key, Err: err}
	}

	return result, nil
}

func resultFromRecord(ev *model.ProcessedEvent) (*model.ProcessingResult, error) {
	result := model.ProcessingResult{
		Success:     true,
		EventKind:   ev.Kind,
		TxHash:      ev.TxHash,
		LogIndex:    ev.LogIndex,
		VaultID:     ev.VaultID,
		ProcessedAt: ev.ProcessedAt,
	}
	if len(ev.Result) > 0 {
		if err := json.Unmarshal(ev.Result, &result); err != nil {
			return nil, fmt.Errorf("decode stored result for %s: %w", model.EventKey(ev.TxHash, ev.LogIndex), err)
		}
	}
	result.Idempotent = true
	return &result, nil
}
