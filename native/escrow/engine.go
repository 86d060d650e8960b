package escrow

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"escrowd/core/events"
	"escrowd/ledger"
	"escrowd/observability"
)

// Engine is the authoritative escrow state machine. Every operation loads the
// record under its address lock, verifies caller authorization and the
// current-state precondition, applies the effect as a single atomic write and
// emits exactly one event on success. Fund movement is delegated to the
// ledger transport and the record is persisted only after the transport
// confirms, so a transport failure never leaves a partial transition behind.
type Engine struct {
	store   *Store
	ledger  ledger.Transport
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine wires the engine to its store and ledger transport with a no-op
// emitter. Callers can override the emitter via SetEmitter.
func NewEngine(store *Store, transport ledger.Transport) *Engine {
	return &Engine{
		store:   store,
		ledger:  transport,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) emit(evt *events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) observe(operation string, started time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	observability.EngineMetrics().ObserveTransition(operation, outcome, started)
}

// DeriveAddress computes the deterministic contract address for an invoice as
// keccak256(issuer, payer, invoice id). Deterministic addresses make Create
// idempotent without storing any extra lookup index.
func DeriveAddress(issuer, payer, invoiceID string) string {
	hash := ethcrypto.Keccak256([]byte(issuer), []byte(payer), []byte(invoiceID))
	return hex.EncodeToString(hash)
}

// CreateParams carries the caller-supplied invoice fields.
type CreateParams struct {
	InvoiceID   string
	Description string
	Amount      *big.Int
	Issuer      string
	Payer       string
	Arbiter     string
	DueDate     int64
}

// Create validates the invoice and persists a fresh record in Draft with a
// zero balance. Re-creating an identical invoice returns the existing record;
// a conflicting definition for the same address fails.
func (e *Engine) Create(params CreateParams) (*Record, error) {
	started := time.Now()
	inv := Invoice{
		ID:          strings.TrimSpace(params.InvoiceID),
		Description: strings.TrimSpace(params.Description),
		Amount:      params.Amount,
		Issuer:      strings.TrimSpace(params.Issuer),
		Payer:       strings.TrimSpace(params.Payer),
		Arbiter:     strings.TrimSpace(params.Arbiter),
		CreatedAt:   e.now(),
		DueDate:     params.DueDate,
	}
	if err := ValidateInvoice(&inv); err != nil {
		e.observe("create", started, err)
		return nil, err
	}
	rec := &Record{
		ContractAddress: DeriveAddress(inv.Issuer, inv.Payer, inv.ID),
		Invoice:         inv,
		State:           StateDraft,
		Balance:         big.NewInt(0),
	}
	stored, created, err := e.store.Create(rec)
	if err != nil {
		e.observe("create", started, err)
		return nil, err
	}
	if !created {
		if !sameDefinition(&stored.Invoice, &inv) {
			err = fmt.Errorf("%w: invoice %q already exists with a different definition", ErrInvalidInvoice, inv.ID)
			e.observe("create", started, err)
			return nil, err
		}
		e.observe("create", started, nil)
		return stored, nil
	}
	e.observe("create", started, nil)
	e.emit(NewCreatedEvent(stored, inv.Issuer, e.now()))
	return stored, nil
}

func sameDefinition(a, b *Invoice) bool {
	if a == nil || b == nil {
		return false
	}
	if a.ID != b.ID || a.Description != b.Description {
		return false
	}
	if a.Issuer != b.Issuer || a.Payer != b.Payer || a.Arbiter != b.Arbiter {
		return false
	}
	if a.DueDate != b.DueDate {
		return false
	}
	if a.Amount == nil || b.Amount == nil {
		return a.Amount == b.Amount
	}
	return a.Amount.Cmp(b.Amount) == 0
}

// Get returns the current record for the address.
func (e *Engine) Get(addr string) (*Record, error) {
	return e.store.Get(strings.TrimSpace(addr))
}

// Accept moves a Draft escrow to Accepted. Payer only.
func (e *Engine) Accept(ctx context.Context, addr, caller string) error {
	started := time.Now()
	caller = strings.TrimSpace(caller)
	var evt *events.Event
	_, err := e.store.Mutate(strings.TrimSpace(addr), func(rec *Record) error {
		if caller != rec.Invoice.Payer {
			return fmt.Errorf("%w: accept requires the payer", ErrUnauthorized)
		}
		if rec.State != StateDraft {
			return fmt.Errorf("%w: cannot accept from %s", ErrInvalidState, rec.State)
		}
		oldState := rec.State
		rec.State = StateAccepted
		evt = NewAcceptedEvent(rec, caller, oldState, e.now())
		return nil
	})
	e.observe("accept", started, err)
	if err != nil {
		return err
	}
	e.emit(evt)
	return nil
}

// Fund records the payer's deposit and moves an Accepted escrow to Funded.
// Partial funding is rejected; a deposit above the invoiced amount is
// accepted and tracked in full, so release and refund always move exactly
// what was deposited.
func (e *Engine) Fund(ctx context.Context, addr, caller string, amount *big.Int) error {
	started := time.Now()
	caller = strings.TrimSpace(caller)
	var evt *events.Event
	_, err := e.store.Mutate(strings.TrimSpace(addr), func(rec *Record) error {
		if caller != rec.Invoice.Payer {
			return fmt.Errorf("%w: fund requires the payer", ErrUnauthorized)
		}
		if rec.State != StateAccepted {
			return fmt.Errorf("%w: cannot fund from %s", ErrInvalidState, rec.State)
		}
		if amount == nil || amount.Cmp(rec.Invoice.Amount) < 0 {
			return fmt.Errorf("%w: invoice requires at least %s", ErrInsufficientFunds, rec.Invoice.Amount)
		}
		oldState := rec.State
		rec.Balance = new(big.Int).Set(amount)
		rec.State = StateFunded
		evt = NewFundedEvent(rec, caller, oldState, e.now())
		return nil
	})
	e.observe("fund", started, err)
	if err != nil {
		return err
	}
	e.emit(evt)
	return nil
}

// Release settles a Funded escrow in favour of the issuer. Payer only. The
// held balance is transferred through the ledger transport before the record
// is persisted; a transport failure aborts the transition.
func (e *Engine) Release(ctx context.Context, addr, caller string) error {
	started := time.Now()
	caller = strings.TrimSpace(caller)
	var evt *events.Event
	_, err := e.store.Mutate(strings.TrimSpace(addr), func(rec *Record) error {
		if caller != rec.Invoice.Payer {
			return fmt.Errorf("%w: release requires the payer", ErrUnauthorized)
		}
		if rec.State != StateFunded {
			return fmt.Errorf("%w: cannot release from %s", ErrInvalidState, rec.State)
		}
		amount := new(big.Int).Set(rec.Balance)
		if _, err := e.ledger.Transfer(ctx, ledger.Vault, rec.Invoice.Issuer, amount); err != nil {
			return fmt.Errorf("%w: release transfer: %v", ErrTransportFailure, err)
		}
		oldState := rec.State
		rec.Balance = big.NewInt(0)
		rec.State = StateReleased
		evt = NewReleasedEvent(rec, caller, oldState, amount.String(), e.now())
		return nil
	})
	e.observe("release", started, err)
	if err != nil {
		return err
	}
	e.emit(evt)
	return nil
}

// Cancel closes a Draft or Accepted escrow. Either party may cancel
// unilaterally before funds are committed; once Funded the only exits are
// release or dispute resolution. Any held balance (none expected pre-Funded)
// is returned to the payer.
func (e *Engine) Cancel(ctx context.Context, addr, caller string) error {
	started := time.Now()
	caller = strings.TrimSpace(caller)
	var evt *events.Event
	_, err := e.store.Mutate(strings.TrimSpace(addr), func(rec *Record) error {
		if caller != rec.Invoice.Issuer && caller != rec.Invoice.Payer {
			return fmt.Errorf("%w: cancel requires the issuer or payer", ErrUnauthorized)
		}
		if rec.State != StateDraft && rec.State != StateAccepted {
			return fmt.Errorf("%w: cannot cancel from %s", ErrInvalidState, rec.State)
		}
		if rec.Balance.Sign() > 0 {
			if _, err := e.ledger.Transfer(ctx, ledger.Vault, rec.Invoice.Payer, rec.Balance); err != nil {
				return fmt.Errorf("%w: cancel refund: %v", ErrTransportFailure, err)
			}
		}
		oldState := rec.State
		rec.Balance = big.NewInt(0)
		rec.State = StateCancelled
		evt = NewCancelledEvent(rec, caller, oldState, e.now())
		return nil
	})
	e.observe("cancel", started, err)
	if err != nil {
		return err
	}
	e.emit(evt)
	return nil
}

// Dispute flags a Funded escrow as disputed, freezing the held balance until
// the arbiter resolves it. Either party may raise a dispute.
func (e *Engine) Dispute(ctx context.Context, addr, caller, reason string) error {
	started := time.Now()
	caller = strings.TrimSpace(caller)
	var evt *events.Event
	_, err := e.store.Mutate(strings.TrimSpace(addr), func(rec *Record) error {
		if caller != rec.Invoice.Issuer && caller != rec.Invoice.Payer {
			return fmt.Errorf("%w: dispute requires the issuer or payer", ErrUnauthorized)
		}
		if rec.State != StateFunded {
			return fmt.Errorf("%w: cannot dispute from %s", ErrInvalidState, rec.State)
		}
		oldState := rec.State
		rec.DisputeReason = strings.TrimSpace(reason)
		rec.State = StateDisputed
		evt = NewDisputedEvent(rec, caller, oldState, e.now())
		return nil
	})
	e.observe("dispute", started, err)
	if err != nil {
		return err
	}
	e.emit(evt)
	return nil
}
