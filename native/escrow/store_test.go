package escrow

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"escrowd/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	return NewStore(db)
}

func TestStoreCreateGet(t *testing.T) {
	store := newTestStore(t)
	rec := validRecord()

	stored, created, err := store.Create(rec)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !created {
		t.Fatal("fresh create reported as existing")
	}
	if stored.ContractAddress != rec.ContractAddress {
		t.Fatalf("address = %s", stored.ContractAddress)
	}

	got, err := store.Get(rec.ContractAddress)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Invoice.ID != rec.Invoice.ID || got.State != StateDraft {
		t.Fatalf("round-trip mismatch: %+v", got)
	}

	// Create against an existing address hands back the stored record.
	dup := validRecord()
	dup.Invoice.Description = "something else"
	existing, created, err := store.Create(dup)
	if err != nil {
		t.Fatalf("duplicate create: %v", err)
	}
	if created {
		t.Fatal("duplicate create reported as fresh")
	}
	if existing.Invoice.Description != rec.Invoice.Description {
		t.Fatal("duplicate create overwrote the stored record")
	}
}

func TestStoreGetUnknown(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestStoreMutatePersistsOnlyOnSuccess(t *testing.T) {
	store := newTestStore(t)
	if _, _, err := store.Create(validRecord()); err != nil {
		t.Fatalf("create: %v", err)
	}
	addr := validRecord().ContractAddress

	boom := fmt.Errorf("boom")
	if _, err := store.Mutate(addr, func(rec *Record) error {
		rec.State = StateAccepted
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("mutate err = %v", err)
	}
	got, err := store.Get(addr)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.State != StateDraft {
		t.Fatalf("failed mutate persisted state %s", got.State)
	}

	if _, err := store.Mutate(addr, func(rec *Record) error {
		rec.State = StateAccepted
		return nil
	}); err != nil {
		t.Fatalf("mutate: %v", err)
	}
	got, err = store.Get(addr)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.State != StateAccepted {
		t.Fatalf("state = %s, want accepted", got.State)
	}
}

func TestStoreMutateRejectsInvariantViolations(t *testing.T) {
	store := newTestStore(t)
	if _, _, err := store.Create(validRecord()); err != nil {
		t.Fatalf("create: %v", err)
	}
	addr := validRecord().ContractAddress

	// A transition function that breaks the balance invariant must not persist.
	if _, err := store.Mutate(addr, func(rec *Record) error {
		rec.Balance = big.NewInt(100)
		return nil
	}); err == nil {
		t.Fatal("invariant-violating mutate persisted")
	}
	got, err := store.Get(addr)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Balance.Sign() != 0 {
		t.Fatalf("balance = %s", got.Balance)
	}
}

func TestStoreMutateUnknownAddress(t *testing.T) {
	store := newTestStore(t)
	called := false
	_, err := store.Mutate("missing", func(rec *Record) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if called {
		t.Fatal("transition function ran for an unknown address")
	}
}
