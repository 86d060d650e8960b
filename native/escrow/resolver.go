package escrow

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"escrowd/core/events"
	"escrowd/ledger"
)

// ResolveDispute settles a Disputed escrow by arbiter fiat. The held balance
// goes to the issuer (state Released) or back to the payer (state Cancelled)
// depending on releaseToIssuer. When no arbiter is configured the engine
// refuses to guess: resolution must happen through an out-of-band mutual
// agreement, so the call fails with ErrNoArbiter for every caller. The
// dispute reason is retained on the record for audit.
func (e *Engine) ResolveDispute(ctx context.Context, addr, caller string, releaseToIssuer bool) error {
	started := time.Now()
	caller = strings.TrimSpace(caller)
	var evt *events.Event
	_, err := e.store.Mutate(strings.TrimSpace(addr), func(rec *Record) error {
		if !rec.Invoice.HasArbiter() {
			return fmt.Errorf("%w: resolution requires out-of-band agreement", ErrNoArbiter)
		}
		if caller != rec.Invoice.Arbiter {
			return fmt.Errorf("%w: resolve_dispute requires the arbiter", ErrUnauthorized)
		}
		if rec.State != StateDisputed {
			return fmt.Errorf("%w: cannot resolve from %s", ErrInvalidState, rec.State)
		}
		recipient := rec.Invoice.Issuer
		newState := StateReleased
		if !releaseToIssuer {
			recipient = rec.Invoice.Payer
			newState = StateCancelled
		}
		amount := new(big.Int).Set(rec.Balance)
		if _, err := e.ledger.Transfer(ctx, ledger.Vault, recipient, amount); err != nil {
			return fmt.Errorf("%w: resolution transfer: %v", ErrTransportFailure, err)
		}
		oldState := rec.State
		rec.Balance = big.NewInt(0)
		rec.State = newState
		evt = NewResolvedEvent(rec, caller, oldState, recipient, amount.String(), e.now())
		return nil
	})
	e.observe("resolve_dispute", started, err)
	if err != nil {
		return err
	}
	e.emit(evt)
	return nil
}
