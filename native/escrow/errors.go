package escrow

import "errors"

// Sentinel errors forming the engine's failure taxonomy. Every operation
// failure wraps exactly one of these so callers can dispatch with errors.Is
// while still receiving a human-readable message.
var (
	// ErrInvalidInvoice reports a construction-time field violation.
	ErrInvalidInvoice = errors.New("escrow: invalid invoice")
	// ErrNotFound reports an unknown contract address.
	ErrNotFound = errors.New("escrow: not found")
	// ErrUnauthorized reports a caller not permitted for the operation.
	ErrUnauthorized = errors.New("escrow: unauthorized")
	// ErrInvalidState reports an operation not valid from the current state.
	ErrInvalidState = errors.New("escrow: invalid state")
	// ErrInsufficientFunds reports funding below the invoiced amount.
	ErrInsufficientFunds = errors.New("escrow: insufficient funds")
	// ErrNoArbiter reports dispute resolution with no arbiter configured.
	ErrNoArbiter = errors.New("escrow: no arbiter configured")
	// ErrTransportFailure reports a failed or timed-out ledger transfer. The
	// record is guaranteed to be left in its pre-transition state.
	ErrTransportFailure = errors.New("escrow: ledger transport failure")
)
