// Package ledger defines the boundary through which the escrow engine moves
// value. The engine never signs, serializes or submits anything itself; it
// hands a transfer instruction to a Transport and treats anything other than
// a confirmation as a failed transition.
package ledger

import (
	"context"
	"errors"
	"math/big"
)

// Vault is the purse identifier for funds held by the escrow itself. A
// transfer from Vault settles held funds to a party; a transfer to Vault is
// never requested by the engine (deposits arrive through the hosting
// substrate before the engine observes them).
const Vault = "escrow-vault"

var (
	// ErrTransferFailed reports a transfer the ledger rejected outright.
	ErrTransferFailed = errors.New("ledger: transfer failed")
	// ErrTimeout reports a transfer whose confirmation never arrived.
	ErrTimeout = errors.New("ledger: confirmation timed out")
)

// Confirmation describes a settled transfer.
type Confirmation struct {
	ID        string   `json:"id"`
	From      string   `json:"from"`
	To        string   `json:"to"`
	Amount    *big.Int `json:"amount"`
	Timestamp int64    `json:"timestamp"`
}

// Transport moves value between identities. Implementations must be
// synchronous from the caller's perspective: Transfer returns only once the
// movement is confirmed or has definitively failed. Retry policy belongs to
// the caller, never to the transport.
type Transport interface {
	Transfer(ctx context.Context, from, to string, amount *big.Int) (*Confirmation, error)
}
