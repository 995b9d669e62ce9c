package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"vaultindex/internal/model"
)

// MemoryStore is a map-backed Store. It serves tests and single-process
// deployments that do not need durability.
type MemoryStore struct {
	mu         sync.RWMutex
	vaults     map[string]model.Vault // by id
	vaultByKey map[string]string      // "chainID:address" -> id
	events     map[string]model.ProcessedEvent
	nodes      map[string]string // "vaultID:level:index" -> hash
	leaves     map[string]model.TreeLeaf
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		vaults:     make(map[string]model.Vault),
		vaultByKey: make(map[string]string),
		events:     make(map[string]model.ProcessedEvent),
		nodes:      make(map[string]string),
		leaves:     make(map[string]model.TreeLeaf),
	}
}

func vaultKey(chainID uint64, address string) string {
	return fmt.Sprintf("%d:%s", chainID, address)
}

func nodeKey(vaultID string, level int, index uint64) string {
	return fmt.Sprintf("%s:%d:%d", vaultID, level, index)
}

func leafKey(vaultID string, index uint64) string {
	return fmt.Sprintf("%s:%d", vaultID, index)
}

func (s *MemoryStore) GetOrCreateVault(_ context.Context, chainID uint64, address string) (model.Vault, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := vaultKey(chainID, address)
	if id, ok := s.vaultByKey[key]; ok {
		return s.vaults[id], nil
	}

	vault := model.Vault{
		ID:      uuid.NewString(),
		ChainID: chainID,
		Address: address,
	}
	s.vaults[vault.ID] = vault
	s.vaultByKey[key] = vault.ID
	return vault, nil
}

func (s *MemoryStore) GetVault(_ context.Context, vaultID string) (model.Vault, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vault, ok := s.vaults[vaultID]
	if !ok {
		return model.Vault{}, model.ErrVaultNotFound
	}
	return vault, nil
}

func (s *MemoryStore) FindVault(_ context.Context, chainID uint64, address string) (model.Vault, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.vaultByKey[vaultKey(chainID, address)]
	if !ok {
		return model.Vault{}, model.ErrVaultNotFound
	}
	return s.vaults[id], nil
}

func (s *MemoryStore) UpdateVaultRoot(_ context.Context, vaultID, root string, block uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	vault, ok := s.vaults[vaultID]
	if !ok {
		return model.ErrVaultNotFound
	}
	vault.CurrentRoot = root
	if block > vault.LatestBlock {
		vault.LatestBlock = block
	}
	s.vaults[vaultID] = vault
	return nil
}

func (s *MemoryStore) GetProcessedEvent(_ context.Context, txHash string, logIndex uint64) (*model.ProcessedEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.events[model.EventKey(txHash, logIndex)]
	if !ok {
		return nil, nil
	}
	out := ev
	return &out, nil
}

func (s *MemoryStore) InsertProcessedEvent(_ context.Context, ev model.ProcessedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := model.EventKey(ev.TxHash, ev.LogIndex)
	if _, ok := s.events[key]; ok {
		return model.ErrDuplicateEvent
	}
	s.events[key] = ev
	return nil
}

func (s *MemoryStore) UpsertNode(_ context.Context, vaultID string, level int, index uint64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nodes[nodeKey(vaultID, level, index)] = hash
	return nil
}

func (s *MemoryStore) GetNode(_ context.Context, vaultID string, level int, index uint64) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hash, ok := s.nodes[nodeKey(vaultID, level, index)]
	return hash, ok, nil
}

func (s *MemoryStore) InsertLeaf(_ context.Context, leaf model.TreeLeaf) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.leaves[leafKey(leaf.VaultID, leaf.LeafIndex)] = leaf
	return nil
}

func (s *MemoryStore) GetLeaf(_ context.Context, vaultID string, index uint64) (*model.TreeLeaf, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	leaf, ok := s.leaves[leafKey(vaultID, index)]
	if !ok {
		return nil, nil
	}
	out := leaf
	return &out, nil
}

func (s *MemoryStore) CountLeaves(_ context.Context, vaultID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, leaf := range s.leaves {
		if leaf.VaultID == vaultID {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) MarkLeafSpent(_ context.Context, vaultID, nullifierHash string) (*model.TreeLeaf, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, leaf := range s.leaves {
		if leaf.VaultID != vaultID || !leaf.IsActive || leaf.NullifierHash != nullifierHash {
			continue
		}
		leaf.IsActive = false
		leaf.SpentNullifier = nullifierHash
		s.leaves[key] = leaf
		out := leaf
		return &out, nil
	}
	return nil, nil
}
