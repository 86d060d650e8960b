package ledger

import (
	"context"
	"errors"
	"math/big"
	"testing"
)

func TestSimLedgerTransferFromVault(t *testing.T) {
	sim := NewSimLedger()
	sim.SetNowFunc(func() int64 { return 42 })

	conf, err := sim.Transfer(context.Background(), Vault, "alice", big.NewInt(500))
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if conf.ID == "" {
		t.Fatal("missing confirmation id")
	}
	if conf.Timestamp != 42 {
		t.Fatalf("timestamp = %d", conf.Timestamp)
	}
	if got := sim.Balance("alice"); got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("alice balance = %s", got)
	}
	if got := len(sim.Transfers()); got != 1 {
		t.Fatalf("transfer log = %d entries", got)
	}
}

func TestSimLedgerIdentityTransferNeedsBalance(t *testing.T) {
	sim := NewSimLedger()
	ctx := context.Background()

	if _, err := sim.Transfer(ctx, "alice", "bob", big.NewInt(10)); !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("err = %v, want ErrTransferFailed", err)
	}

	if _, err := sim.Transfer(ctx, Vault, "alice", big.NewInt(10)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := sim.Transfer(ctx, "alice", "bob", big.NewInt(10)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := sim.Balance("alice"); got.Sign() != 0 {
		t.Fatalf("alice balance = %s", got)
	}
	if got := sim.Balance("bob"); got.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("bob balance = %s", got)
	}
}

func TestSimLedgerRejectsBadArguments(t *testing.T) {
	sim := NewSimLedger()
	ctx := context.Background()

	if _, err := sim.Transfer(ctx, Vault, "", big.NewInt(1)); !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("empty recipient err = %v", err)
	}
	if _, err := sim.Transfer(ctx, Vault, "alice", nil); !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("nil amount err = %v", err)
	}
	if _, err := sim.Transfer(ctx, Vault, "alice", big.NewInt(0)); !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("zero amount err = %v", err)
	}
}

func TestSimLedgerFailNext(t *testing.T) {
	sim := NewSimLedger()
	ctx := context.Background()
	sim.FailNext(ErrTimeout)

	if _, err := sim.Transfer(ctx, Vault, "alice", big.NewInt(1)); !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want injected ErrTimeout", err)
	}
	if got := sim.Balance("alice"); got.Sign() != 0 {
		t.Fatalf("failed transfer moved funds: %s", got)
	}
	// The injection is one-shot.
	if _, err := sim.Transfer(ctx, Vault, "alice", big.NewInt(1)); err != nil {
		t.Fatalf("second transfer: %v", err)
	}
}

func TestSimLedgerCancelledContext(t *testing.T) {
	sim := NewSimLedger()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := sim.Transfer(ctx, Vault, "alice", big.NewInt(1)); !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}
