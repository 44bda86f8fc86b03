// Package custody abstracts the currency layer that actually moves value
// between accounts. The engine only authorizes amounts; a Ledger executes
// them all-or-nothing.
package custody

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInsufficientFunds is returned when a debit would drive an account
	// balance below zero. No partial movement occurs.
	ErrInsufficientFunds = errors.New("custody: insufficient funds")

	// ErrZeroTransfer is returned for zero-amount movements.
	ErrZeroTransfer = errors.New("custody: zero amount")
)

// Ledger moves value between named accounts. Every call is atomic: it either
// fully commits or leaves all balances untouched.
type Ledger interface {
	// Escrow moves amount from a bettor account into a market vault.
	Escrow(ctx context.Context, from, vault string, amount uint64) error

	// Release moves amount out of a market vault to a recipient.
	Release(ctx context.Context, vault, to string, amount uint64) error

	// Mint credits newly issued tokens to an account.
	Mint(ctx context.Context, to string, amount uint64) error

	// Transfer moves amount between two ordinary accounts.
	Transfer(ctx context.Context, from, to string, amount uint64) error

	// Balance returns the current balance of an account.
	Balance(ctx context.Context, account string) (uint64, error)
}

// VaultAccount returns the custody account name holding a market's escrow.
func VaultAccount(marketID uint64) string {
	return fmt.Sprintf("vault:%d", marketID)
}

// Record is an immutable trace of one executed movement.
type Record struct {
	ID     string    `json:"id"`
	Kind   string    `json:"kind"` // "escrow", "release", "mint", "transfer"
	From   string    `json:"from"` // empty for mints
	To     string    `json:"to"`
	Amount uint64    `json:"amount"`
	At     time.Time `json:"at"`
}

// MemoryLedger implements Ledger with in-memory balances. Used for testing
// and single-node development. Not suitable for production (no persistence).
type MemoryLedger struct {
	mu       sync.RWMutex
	balances map[string]uint64
	records  []Record
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{balances: make(map[string]uint64)}
}

func (l *MemoryLedger) Escrow(_ context.Context, from, vault string, amount uint64) error {
	return l.move("escrow", from, vault, amount)
}

func (l *MemoryLedger) Release(_ context.Context, vault, to string, amount uint64) error {
	return l.move("release", vault, to, amount)
}

func (l *MemoryLedger) Transfer(_ context.Context, from, to string, amount uint64) error {
	return l.move("transfer", from, to, amount)
}

func (l *MemoryLedger) Mint(_ context.Context, to string, amount uint64) error {
	if amount == 0 {
		return ErrZeroTransfer
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.balances[to] += amount
	l.record("mint", "", to, amount)
	return nil
}

func (l *MemoryLedger) Balance(_ context.Context, account string) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[account], nil
}

// Records returns a copy of the movement trace, oldest first.
func (l *MemoryLedger) Records() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

func (l *MemoryLedger) move(kind, from, to string, amount uint64) error {
	if amount == 0 {
		return ErrZeroTransfer
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[from] < amount {
		return fmt.Errorf("%w: account %s holds %d, needs %d",
			ErrInsufficientFunds, from, l.balances[from], amount)
	}
	l.balances[from] -= amount
	l.balances[to] += amount
	l.record(kind, from, to, amount)
	return nil
}

// record appends a trace entry. Caller must hold l.mu.
func (l *MemoryLedger) record(kind, from, to string, amount uint64) {
	l.records = append(l.records, Record{
		ID:     uuid.New().String(),
		Kind:   kind,
		From:   from,
		To:     to,
		Amount: amount,
		At:     time.Now().UTC(),
	})
}
