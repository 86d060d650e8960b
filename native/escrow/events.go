package escrow

import (
	"strconv"

	"escrowd/core/events"
)

const (
	EventTypeCreated   = "escrow.created"
	EventTypeAccepted  = "escrow.accepted"
	EventTypeFunded    = "escrow.funded"
	EventTypeReleased  = "escrow.released"
	EventTypeCancelled = "escrow.cancelled"
	EventTypeDisputed  = "escrow.disputed"
	EventTypeResolved  = "escrow.resolved"
)

// NewCreatedEvent returns the canonical event payload for a newly created
// escrow. Creation has no prior state, so only the resulting state is
// reported.
func NewCreatedEvent(rec *Record, actor string, ts int64) *events.Event {
	evt := newTransitionEvent(EventTypeCreated, "create", rec, actor, ts)
	if rec != nil && rec.Invoice.Amount != nil {
		evt.Attributes["amount"] = rec.Invoice.Amount.String()
	}
	return evt
}

// NewAcceptedEvent returns the canonical event payload emitted when the payer
// accepts the escrow terms.
func NewAcceptedEvent(rec *Record, actor string, oldState State, ts int64) *events.Event {
	return newStateChangeEvent(EventTypeAccepted, "accept", rec, actor, oldState, ts)
}

// NewFundedEvent returns the canonical event payload emitted when the payer
// deposits funds.
func NewFundedEvent(rec *Record, actor string, oldState State, ts int64) *events.Event {
	evt := newStateChangeEvent(EventTypeFunded, "fund", rec, actor, oldState, ts)
	if rec != nil && rec.Balance != nil {
		evt.Attributes["amount"] = rec.Balance.String()
	}
	return evt
}

// NewReleasedEvent returns the canonical event payload for a release of held
// funds to the issuer.
func NewReleasedEvent(rec *Record, actor string, oldState State, amount string, ts int64) *events.Event {
	evt := newStateChangeEvent(EventTypeReleased, "release", rec, actor, oldState, ts)
	evt.Attributes["amount"] = amount
	if rec != nil {
		evt.Attributes["recipient"] = rec.Invoice.Issuer
	}
	return evt
}

// NewCancelledEvent returns the canonical event payload emitted when an escrow
// is cancelled before funds are committed.
func NewCancelledEvent(rec *Record, actor string, oldState State, ts int64) *events.Event {
	return newStateChangeEvent(EventTypeCancelled, "cancel", rec, actor, oldState, ts)
}

// NewDisputedEvent returns the canonical event payload emitted when an escrow
// is flagged as disputed.
func NewDisputedEvent(rec *Record, actor string, oldState State, ts int64) *events.Event {
	evt := newStateChangeEvent(EventTypeDisputed, "dispute", rec, actor, oldState, ts)
	if rec != nil && rec.DisputeReason != "" {
		evt.Attributes["reason"] = rec.DisputeReason
	}
	return evt
}

// NewResolvedEvent returns the canonical event payload emitted when the
// arbiter settles a dispute.
func NewResolvedEvent(rec *Record, actor string, oldState State, recipient, amount string, ts int64) *events.Event {
	evt := newStateChangeEvent(EventTypeResolved, "resolve_dispute", rec, actor, oldState, ts)
	evt.Attributes["recipient"] = recipient
	evt.Attributes["amount"] = amount
	return evt
}

func newTransitionEvent(eventType, operation string, rec *Record, actor string, ts int64) *events.Event {
	attrs := map[string]string{
		"operation": operation,
		"actor":     actor,
		"timestamp": strconv.FormatInt(ts, 10),
	}
	if rec != nil {
		attrs["contractAddress"] = rec.ContractAddress
		attrs["newState"] = rec.State.String()
	}
	return &events.Event{Type: eventType, Attributes: attrs}
}

func newStateChangeEvent(eventType, operation string, rec *Record, actor string, oldState State, ts int64) *events.Event {
	evt := newTransitionEvent(eventType, operation, rec, actor, ts)
	evt.Attributes["oldState"] = oldState.String()
	return evt
}
