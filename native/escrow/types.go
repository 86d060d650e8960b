package escrow

import (
	"fmt"
	"math/big"
	"strings"
)

// State represents the lifecycle states supported by the escrow engine.
type State uint8

const (
	StateDraft State = iota
	StateAccepted
	StateFunded
	StateReleased
	StateCancelled
	StateDisputed
)

var stateNames = map[State]string{
	StateDraft:     "draft",
	StateAccepted:  "accepted",
	StateFunded:    "funded",
	StateReleased:  "released",
	StateCancelled: "cancelled",
	StateDisputed:  "disputed",
}

// Valid reports whether the state value is within the supported range.
func (s State) Valid() bool {
	_, ok := stateNames[s]
	return ok
}

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == StateReleased || s == StateCancelled
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Invoice captures the immutable terms of a single escrow agreement. It is
// created together with its Record and never swapped afterwards.
type Invoice struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Amount      *big.Int `json:"amount"`
	Issuer      string   `json:"issuer"`
	Payer       string   `json:"payer"`
	Arbiter     string   `json:"arbiter,omitempty"`
	CreatedAt   int64    `json:"createdAt"`
	DueDate     int64    `json:"dueDate,omitempty"`
}

// HasArbiter reports whether dispute arbitration is configured.
func (inv *Invoice) HasArbiter() bool {
	return inv != nil && strings.TrimSpace(inv.Arbiter) != ""
}

// Clone returns a deep copy of the invoice.
func (inv *Invoice) Clone() *Invoice {
	if inv == nil {
		return nil
	}
	clone := *inv
	if inv.Amount != nil {
		clone.Amount = new(big.Int).Set(inv.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}

// ValidateInvoice checks the construction-time field rules. The due date is
// informational only and is deliberately not checked against the clock.
func ValidateInvoice(inv *Invoice) error {
	if inv == nil {
		return fmt.Errorf("%w: nil invoice", ErrInvalidInvoice)
	}
	if strings.TrimSpace(inv.ID) == "" {
		return fmt.Errorf("%w: id must not be empty", ErrInvalidInvoice)
	}
	if strings.TrimSpace(inv.Description) == "" {
		return fmt.Errorf("%w: description must not be empty", ErrInvalidInvoice)
	}
	if inv.Amount == nil || inv.Amount.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidInvoice)
	}
	issuer := strings.TrimSpace(inv.Issuer)
	payer := strings.TrimSpace(inv.Payer)
	if issuer == "" || payer == "" {
		return fmt.Errorf("%w: issuer and payer identities are required", ErrInvalidInvoice)
	}
	if issuer == payer {
		return fmt.Errorf("%w: issuer and payer must differ", ErrInvalidInvoice)
	}
	return nil
}

// Record is the mutable aggregate for one escrow instance, keyed by its
// contract address. Terminal records are retained for audit.
type Record struct {
	ContractAddress string   `json:"contractAddress"`
	Invoice         Invoice  `json:"invoice"`
	State           State    `json:"state"`
	Balance         *big.Int `json:"balance"`
	DisputeReason   string   `json:"disputeReason,omitempty"`
}

// Clone returns a deep copy of the record so callers can safely mutate the
// copy without affecting the stored instance.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Invoice = *r.Invoice.Clone()
	if r.Balance != nil {
		clone.Balance = new(big.Int).Set(r.Balance)
	} else {
		clone.Balance = big.NewInt(0)
	}
	return &clone
}

// SanitizeRecord validates and normalises the supplied record, returning a
// cloned instance with a non-nil balance. The balance/state invariant is
// enforced here so an inconsistent record can never be persisted: a non-zero
// balance is only legal while funds are held (Funded or Disputed), and
// terminal states must hold nothing.
func SanitizeRecord(r *Record) (*Record, error) {
	if r == nil {
		return nil, fmt.Errorf("nil escrow record")
	}
	if strings.TrimSpace(r.ContractAddress) == "" {
		return nil, fmt.Errorf("escrow record missing contract address")
	}
	if err := ValidateInvoice(&r.Invoice); err != nil {
		return nil, err
	}
	if !r.State.Valid() {
		return nil, fmt.Errorf("invalid escrow state: %d", r.State)
	}
	clone := r.Clone()
	if clone.Balance.Sign() < 0 {
		return nil, fmt.Errorf("escrow balance must be non-negative")
	}
	if clone.Balance.Sign() > 0 && clone.State != StateFunded && clone.State != StateDisputed {
		return nil, fmt.Errorf("escrow balance held outside funded/disputed state %s", clone.State)
	}
	if clone.State.Terminal() && clone.Balance.Sign() != 0 {
		return nil, fmt.Errorf("terminal escrow state %s with non-zero balance", clone.State)
	}
	return clone, nil
}
