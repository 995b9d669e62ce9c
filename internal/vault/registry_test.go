package vault

import (
	"context"
	"strings"
	"testing"

	"vaultindex/internal/storage"
)

func TestResolveCreatesOnFirstSight(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry(storage.NewMemoryStore(), nil)

	first, err := registry.Resolve(ctx, 1, "0xAbCd000000000000000000000000000000000001")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if first.ID == "" {
		t.Fatalf("vault id must be assigned on creation")
	}
	if first.Address != strings.ToLower(first.Address) {
		t.Fatalf("address must be normalized lowercase: %s", first.Address)
	}

	// Same pair, different casing: identical vault.
	again, err := registry.Resolve(ctx, 1, "0xABCD000000000000000000000000000000000001")
	if err != nil {
		t.Fatalf("resolve again: %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("(chainID, address) must resolve to a single vault: %s != %s", again.ID, first.ID)
	}

	// Same address on another chain is a distinct vault.
	other, err := registry.Resolve(ctx, 5, "0xabcd000000000000000000000000000000000001")
	if err != nil {
		t.Fatalf("resolve other chain: %v", err)
	}
	if other.ID == first.ID {
		t.Fatalf("chain id must be part of the vault identity")
	}
}

func TestResolveRejectsBadAddress(t *testing.T) {
	registry := NewRegistry(storage.NewMemoryStore(), nil)
	if _, err := registry.Resolve(context.Background(), 1, "bogus"); err == nil {
		t.Fatalf("expected error for malformed address")
	}
}

func TestUpdateRootRefreshesCache(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry(storage.NewMemoryStore(), nil)

	vault, err := registry.Resolve(ctx, 1, "0xabcd000000000000000000000000000000000001")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if err := registry.UpdateRoot(ctx, vault.ID, "0x1234", 42); err != nil {
		t.Fatalf("update root: %v", err)
	}

	got, err := registry.Resolve(ctx, 1, "0xabcd000000000000000000000000000000000001")
	if err != nil {
		t.Fatalf("resolve after update: %v", err)
	}
	if got.CurrentRoot != "0x1234" || got.LatestBlock != 42 {
		t.Fatalf("cache not refreshed: %+v", got)
	}

	// Block numbers never move backwards.
	if err := registry.UpdateRoot(ctx, vault.ID, "0x5678", 7); err != nil {
		t.Fatalf("update root: %v", err)
	}
	got, _ = registry.Get(ctx, vault.ID)
	if got.LatestBlock != 42 {
		t.Fatalf("latest block regressed: %d", got.LatestBlock)
	}
}
