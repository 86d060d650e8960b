package ledger

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SimLedger is an in-memory Transport for demo deployments and tests. It
// credits recipients immediately and keeps an ordered log of every confirmed
// transfer. The vault purse is treated as unbounded: deposits into escrow are
// a hosting-substrate concern, so the simulation only accounts for what
// leaves the vault.
type SimLedger struct {
	mu        sync.Mutex
	balances  map[string]*big.Int
	transfers []Confirmation
	nextErr   error
	nowFn     func() int64
}

func NewSimLedger() *SimLedger {
	return &SimLedger{
		balances: make(map[string]*big.Int),
		nowFn:    func() int64 { return time.Now().Unix() },
	}
}

// SetNowFunc overrides the confirmation timestamp source. For tests.
func (l *SimLedger) SetNowFunc(now func() int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	l.nowFn = now
}

// FailNext makes the next Transfer call return err without moving funds.
// For tests exercising transport-failure atomicity.
func (l *SimLedger) FailNext(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextErr = err
}

func (l *SimLedger) Transfer(ctx context.Context, from, to string, amount *big.Int) (*Confirmation, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.nextErr != nil {
		err := l.nextErr
		l.nextErr = nil
		return nil, err
	}
	if strings.TrimSpace(to) == "" {
		return nil, fmt.Errorf("%w: missing recipient", ErrTransferFailed)
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrTransferFailed)
	}
	if from != Vault {
		held := l.balanceLocked(from)
		if held.Cmp(amount) < 0 {
			return nil, fmt.Errorf("%w: insufficient balance for %s", ErrTransferFailed, from)
		}
		held.Sub(held, amount)
	}
	l.balanceLocked(to).Add(l.balanceLocked(to), amount)
	conf := Confirmation{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		Amount:    new(big.Int).Set(amount),
		Timestamp: l.nowFn(),
	}
	l.transfers = append(l.transfers, conf)
	out := conf
	out.Amount = new(big.Int).Set(conf.Amount)
	return &out, nil
}

func (l *SimLedger) balanceLocked(identity string) *big.Int {
	bal, ok := l.balances[identity]
	if !ok {
		bal = big.NewInt(0)
		l.balances[identity] = bal
	}
	return bal
}

// Balance returns the simulated holdings of an identity.
func (l *SimLedger) Balance(identity string) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.balanceLocked(identity))
}

// Transfers returns a snapshot of the confirmed transfer log.
func (l *SimLedger) Transfers() []Confirmation {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Confirmation, len(l.transfers))
	for i, conf := range l.transfers {
		out[i] = conf
		out[i].Amount = new(big.Int).Set(conf.Amount)
	}
	return out
}
