package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"vaultindex/internal/idempotency"
	"vaultindex/internal/metrics"
	"vaultindex/internal/model"
	"vaultindex/internal/storage"
	"vaultindex/internal/updater"
	"vaultindex/internal/vault"
	"vaultindex/internal/webhook"
)

// DefaultBatchLimit caps a single batch submission.
const DefaultBatchLimit = 100

// Config holds runtime settings for the processor.
type Config struct {
	BatchLimit   int
	MaxRetries   int
	RetryBackoff time.Duration
}

// Processor composes validation, routing, idempotency and tree mutation into
// the event pipeline. Events for one vault are serialized behind a per-vault
// lock because out-of-order application corrupts ancestor hashes; different
// vaults proceed in parallel.
type Processor struct {
	cfg       Config
	store     storage.Store
	registry  *vault.Registry
	guard     *idempotency.Guard
	updater   *updater.Updater
	validator *webhook.Validator
	audit     *storage.JsonlAudit
	metrics   *metrics.Metrics
	logger    *zap.Logger

	mu         sync.Mutex
	vaultLocks map[string]*sync.Mutex
}

// New builds a Processor with its dependencies. audit may be nil.
func New(cfg Config, store storage.Store, registry *vault.Registry, validator *webhook.Validator, audit *storage.JsonlAudit, m *metrics.Metrics, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = DefaultBatchLimit
	}
	return &Processor{
		cfg:        cfg,
		store:      store,
		registry:   registry,
		guard:      idempotency.NewGuard(store, logger),
		updater:    updater.NewUpdater(store, logger),
		validator:  validator,
		audit:      audit,
		metrics:    m,
		logger:     logger,
		vaultLocks: make(map[string]*sync.Mutex),
	}
}

// ProcessWebhookPayload runs one payload through the pipeline. A payload
// that fails validation yields a failure result with kind unknown and no
// mutation; the error return is reserved for pipeline failures past
// validation.
func (p *Processor) ProcessWebhookPayload(ctx context.Context, payload model.WebhookPayload) (model.ProcessingResult, error) {
	started := time.Now()
	defer func() {
		p.metrics.ProcessingSeconds.Observe(time.Since(started).Seconds())
	}()

	key := model.EventKey(payload.TransactionHash, payload.LogIndex)

	if errs := p.validator.Validate(payload); len(errs) > 0 {
		p.metrics.Failures.WithLabelValues(model.PhaseValidation).Inc()
		p.logger.Warn("payload rejected", zap.String("event", key), zap.String("errors", errs.Error()))
		return p.failureResult(payload, errs.Error()), nil
	}

	params, err := webhook.MapParams(payload.DecodedParametersNames, payload.DecodedParametersValues)
	if err != nil {
		p.metrics.Failures.WithLabelValues(model.PhaseValidation).Inc()
		return p.failureResult(payload, err.Error()), nil
	}

	var vlt model.Vault
	err = withRetry(ctx, p.cfg.MaxRetries, p.cfg.RetryBackoff, func(ctx context.Context) error {
		var resolveErr error
		vlt, resolveErr = p.registry.Resolve(ctx, payload.BlockchainNetworkID, payload.ContractAddress)
		return resolveErr
	})
	if err != nil {
		p.metrics.Failures.WithLabelValues(model.PhaseProcessing).Inc()
		return model.ProcessingResult{}, &model.EventProcessingError{Phase: model.PhaseProcessing, Key: key, Err: err}
	}

	unlock := p.lockVault(vlt.ID)
	defer unlock()

	result, err := p.guard.Process(ctx, payload, func(ctx context.Context) (model.ProcessingResult, error) {
		return p.apply(ctx, payload, params, vlt)
	})
	if err != nil {
		p.metrics.Failures.WithLabelValues(phaseOf(err)).Inc()
		return model.ProcessingResult{}, err
	}

	if result.Idempotent {
		p.metrics.Duplicates.Inc()
	} else {
		p.metrics.EventsProcessed.WithLabelValues(string(result.EventKind)).Inc()
		if auditErr := p.audit.Append(payload, result.EventKind); auditErr != nil {
			p.logger.Warn("audit append failed", zap.String("event", key), zap.Error(auditErr))
		}
	}

	return result, nil
}

// apply is the first-sight path run under the idempotency guard and the
// vault lock.
func (p *Processor) apply(ctx context.Context, payload model.WebhookPayload, params map[string]any, vlt model.Vault) (model.ProcessingResult, error) {
	key := model.EventKey(payload.TransactionHash, payload.LogIndex)

	event, err := webhook.BuildEvent(params)
	if err != nil {
		return model.ProcessingResult{}, &model.EventProcessingError{Phase: model.PhaseRouting, Key: key, Err: err}
	}

	result := model.ProcessingResult{
		Success:     true,
		EventKind:   event.Kind,
		TxHash:      payload.TransactionHash,
		LogIndex:    payload.LogIndex,
		VaultID:     vlt.ID,
		ProcessedAt: time.Now().UTC(),
	}

	switch event.Kind {
	case model.EventDeposit:
		update, err := p.updater.HandleDeposit(ctx, vlt.ID, *event.Deposit)
		if err != nil {
			return model.ProcessingResult{}, err
		}
		result.MerkleUpdate = update

	case model.EventActionExecuted, model.EventERC20Withdrawal:
		update, invalidation, err := p.updater.HandleActionExecuted(ctx, vlt.ID, *event.Action)
		if err != nil {
			return model.ProcessingResult{}, err
		}
		result.MerkleUpdate = update
		result.Invalidation = invalidation

	case model.EventUnknown:
		// Accepted and recorded with no mutation so the ledger stays a
		// complete audit trail.
		p.logger.Info("unknown event recorded",
			zap.String("event", key),
			zap.String("fields", webhook.FieldSummary(params)),
		)
	}

	if result.MerkleUpdate != nil {
		block := uint64(0)
		if payload.BlockNumber != nil {
			block = *payload.BlockNumber
		}
		err := withRetry(ctx, p.cfg.MaxRetries, p.cfg.RetryBackoff, func(ctx context.Context) error {
			return p.registry.UpdateRoot(ctx, vlt.ID, result.MerkleUpdate.NewRoot, block)
		})
		if err != nil {
			return model.ProcessingResult{}, &model.EventProcessingError{Phase: model.PhaseProcessing, Key: key, Err: err}
		}
		p.logger.Info("event applied",
			zap.String("event", key),
			zap.String("kind", string(event.Kind)),
			zap.String("summary", webhook.DescribeEvent(event)),
			zap.String("root", result.MerkleUpdate.NewRoot),
		)
	}

	return result, nil
}

// ProcessBatch processes payloads independently and in order. An oversized
// batch is rejected wholesale before any item runs; a failing item is
// reported and never aborts the rest.
func (p *Processor) ProcessBatch(ctx context.Context, payloads []model.WebhookPayload) (model.BatchProcessingResult, error) {
	if len(payloads) > p.cfg.BatchLimit {
		p.metrics.BatchesRejected.Inc()
		return model.BatchProcessingResult{}, fmt.Errorf("%w: %d items, limit %d", model.ErrBatchTooLarge, len(payloads), p.cfg.BatchLimit)
	}

	batch := model.BatchProcessingResult{
		Total: len(payloads),
		Items: make([]model.BatchItemResult, 0, len(payloads)),
	}

	for i, payload := range payloads {
		item := model.BatchItemResult{Index: i}

		result, err := p.ProcessWebhookPayload(ctx, payload)
		switch {
		case err != nil:
			item.Err = err.Error()
			batch.Failed++
		case !result.Success:
			item.Result = &result
			item.Err = result.Error
			batch.Failed++
		default:
			item.Result = &result
			batch.Successful++
		}

		batch.Items = append(batch.Items, item)
	}

	return batch, nil
}

// RollbackToBlock would revert processed events and tree mutations past a
// block after a chain reorg: mark the affected processed events reverted,
// then recompute the affected subtree bottom-up from the remaining active
// leaves. Neither step is implemented; callers get an explicit error instead
// of a silent no-op.
func (p *Processor) RollbackToBlock(ctx context.Context, vaultID string, block uint64) error {
	return fmt.Errorf("rollback vault %s to block %d: %w", vaultID, block, model.ErrRollbackUnsupported)
}

func (p *Processor) failureResult(payload model.WebhookPayload, message string) model.ProcessingResult {
	return model.ProcessingResult{
		Success:     false,
		EventKind:   model.EventUnknown,
		TxHash:      payload.TransactionHash,
		LogIndex:    payload.LogIndex,
		Error:       message,
		ProcessedAt: time.Now().UTC(),
	}
}

// lockVault serializes processing per vault.
func (p *Processor) lockVault(vaultID string) func() {
	p.mu.Lock()
	lock, ok := p.vaultLocks[vaultID]
	if !ok {
		lock = &sync.Mutex{}
		p.vaultLocks[vaultID] = lock
	}
	p.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

func phaseOf(err error) string {
	var procErr *model.EventProcessingError
	if errors.As(err, &procErr) {
		return procErr.Phase
	}
	var updateErr *model.MerkleUpdateError
	if errors.As(err, &updateErr) {
		return model.PhaseProcessing
	}
	var dbErr *model.DatabaseError
	if errors.As(err, &dbErr) {
		return model.PhaseRecording
	}
	return model.PhaseProcessing
}
