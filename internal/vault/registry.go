package vault

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"vaultindex/internal/model"
	"vaultindex/internal/storage"
)

// Registry maps (chainID, vaultAddress) to vault identity and caches the
// current root and latest processed block. Records are created on first
// sight and never deleted.
type Registry struct {
	store  storage.Store
	logger *zap.Logger

	mu    sync.RWMutex
	cache map[string]model.Vault // by "chainID:address"
}

func NewRegistry(store storage.Store, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		store:  store,
		logger: logger,
		cache:  make(map[string]model.Vault),
	}
}

// NormalizeAddress lowercases a checksummed or mixed-case address. Returns
// an error for anything that is not a 20-byte hex address.
func NormalizeAddress(address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("invalid vault address: %s", address)
	}
	return strings.ToLower(common.HexToAddress(address).Hex()), nil
}

// Resolve returns the vault for (chainID, address), creating it on first
// sight.
func (r *Registry) Resolve(ctx context.Context, chainID uint64, address string) (model.Vault, error) {
	normalized, err := NormalizeAddress(address)
	if err != nil {
		return model.Vault{}, err
	}
	key := fmt.Sprintf("%d:%s", chainID, normalized)

	r.mu.RLock()
	cached, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	vault, err := r.store.GetOrCreateVault(ctx, chainID, normalized)
	if err != nil {
		return model.Vault{}, fmt.Errorf("resolve vault %s: %w", key, err)
	}
	if vault.CurrentRoot == "" {
		r.logger.Info("vault registered",
			zap.String("vault_id", vault.ID),
			zap.Uint64("chain_id", chainID),
			zap.String("address", normalized),
		)
	}

	r.mu.Lock()
	r.cache[key] = vault
	r.mu.Unlock()
	return vault, nil
}

// Get reads a vault by id, preferring the cache.
func (r *Registry) Get(ctx context.Context, vaultID string) (model.Vault, error) {
	r.mu.RLock()
	for _, vault := range r.cache {
		if vault.ID == vaultID {
			r.mu.RUnlock()
			return vault, nil
		}
	}
	r.mu.RUnlock()
	return r.store.GetVault(ctx, vaultID)
}

// UpdateRoot persists a new root and block for a vault and refreshes the
// cache so readers never see a root older than the last completed commit.
func (r *Registry) UpdateRoot(ctx context.Context, vaultID, root string, block uint64) error {
	if err := r.store.UpdateVaultRoot(ctx, vaultID, root, block); err != nil {
		return fmt.Errorf("update vault root: %w", err)
	}

	r.mu.Lock()
	for key, vault := range r.cache {
		if vault.ID != vaultID {
			continue
		}
		vault.CurrentRoot = root
		if block > vault.LatestBlock {
			vault.LatestBlock = block
		}
		r.cache[key] = vault
	}
	r.mu.Unlock()
	return nil
}
