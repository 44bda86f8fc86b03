// Package engine implements the prediction-market settlement core: the market
// lifecycle state machine, the position ledger, and the payout/fee
// computation. The engine validates first and mutates last; every operation is
// a single unit of work against the records it names.
//
// Caller identities arrive as already-verified parameters. The engine holds no
// ambient identity and performs no signature checks of its own.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sibyl-protocol/sibyl/internal/custody"
	"github.com/sibyl-protocol/sibyl/internal/model"
	"github.com/sibyl-protocol/sibyl/internal/store"
)

// Clock supplies the host's notion of now. Time only enters the engine via
// deadline comparisons.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Engine executes the six public operations against a record store and two
// custody ledgers (the SBYL wager token and the native staking currency).
// A mutex serializes operations (single-instance). For horizontal scaling,
// replace with database-level optimistic concurrency.
type Engine struct {
	store  store.Store
	wager  custody.Ledger // SBYL: escrow, payouts, fee transfers, mints
	native custody.Ledger // staking currency paid into the treasury on swaps
	clock  Clock
	mu     sync.Mutex
}

// New creates an engine. Pass a SystemClock outside of tests.
func New(st store.Store, wager, native custody.Ledger, clock Clock) *Engine {
	return &Engine{
		store:  st,
		wager:  wager,
		native: native,
		clock:  clock,
	}
}

// InitParams configures the one-shot protocol initialization.
type InitParams struct {
	Authority  string
	Oracle     string
	Treasury   string
	WagerToken string
	FeeBps     uint16
	SwapCap    uint64
}

// Initialize creates the protocol singleton. A second call fails with
// ErrAlreadyInitialized and leaves the existing record untouched.
func (e *Engine) Initialize(ctx context.Context, params InitParams) (*model.Protocol, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if params.FeeBps > feeDenominator {
		return nil, ErrInvalidFeeBps
	}
	if params.SwapCap == 0 {
		return nil, ErrZeroAmount
	}

	p := &model.Protocol{
		Authority:   params.Authority,
		Oracle:      params.Oracle,
		Treasury:    params.Treasury,
		WagerToken:  params.WagerToken,
		FeeBps:      params.FeeBps,
		SwapCap:     params.SwapCap,
		MarketCount: 0,
	}

	if err := e.store.CreateProtocol(ctx, p); err != nil {
		if isExists(err) {
			return nil, ErrAlreadyInitialized
		}
		return nil, err
	}

	slog.Info("protocol initialized",
		"authority", p.Authority,
		"oracle", p.Oracle,
		"fee_bps", p.FeeBps,
		"swap_cap", p.SwapCap,
	)
	return p, nil
}

// CreateMarket opens a new market. Only the protocol authority may create
// markets; the new id is the protocol's market counter, which then advances.
func (e *Engine) CreateMarket(ctx context.Context, title, description string, deadline int64, requester string) (*model.Market, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	protocol, err := e.store.GetProtocol(ctx)
	if err != nil {
		return nil, err
	}
	if requester != protocol.Authority {
		return nil, ErrUnauthorized
	}
	if len(title) > model.MaxTitleLen {
		return nil, ErrTitleTooLong
	}
	if len(description) > model.MaxDescLen {
		return nil, ErrDescriptionTooLong
	}
	if deadline <= e.clock.Now().Unix() {
		return nil, ErrDeadlineInPast
	}

	m := &model.Market{
		ID:          protocol.MarketCount,
		Authority:   protocol.Authority,
		Title:       title,
		Description: description,
		Deadline:    deadline,
		YesPool:     0,
		NoPool:      0,
		Status:      model.StatusOpen,
		Outcome:     model.OutcomeNone,
		CreatedAt:   e.clock.Now().UTC(),
	}

	if err := e.store.CreateMarket(ctx, m); err != nil {
		return nil, err
	}

	protocol.MarketCount++
	if err := e.store.UpdateProtocol(ctx, protocol); err != nil {
		return nil, fmt.Errorf("advance market counter: %w", err)
	}

	slog.Info("market created", "id", m.ID, "title", m.Title, "deadline", m.Deadline)
	return m, nil
}

// PlaceBet escrows amount from the bettor into the market vault and records
// it on the (market, bettor, side) position. Repeated bets on the same side
// accumulate; Yes and No positions in one market are independent records.
func (e *Engine) PlaceBet(ctx context.Context, marketID uint64, bettor string, side model.Outcome, amount uint64) (*model.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.store.GetMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}
	if m.Status != model.StatusOpen {
		return nil, ErrMarketNotOpen
	}
	if e.clock.Now().Unix() >= m.Deadline {
		return nil, ErrMarketExpired
	}
	if amount == 0 {
		return nil, ErrZeroAmount
	}
	if !side.Stakeable() {
		return nil, ErrInvalidBetSide
	}

	if err := e.wager.Escrow(ctx, bettor, custody.VaultAccount(m.ID), amount); err != nil {
		return nil, fmt.Errorf("escrow stake: %w", err)
	}

	pos, err := e.store.GetPosition(ctx, marketID, bettor, side)
	switch {
	case isNotFound(err):
		pos = &model.Position{
			MarketID: marketID,
			Owner:    bettor,
			Side:     side,
			Amount:   amount,
			Claimed:  false,
		}
	case err != nil:
		return nil, err
	default:
		pos.Amount += amount
	}

	switch side {
	case model.OutcomeYes:
		m.YesPool += amount
	case model.OutcomeNo:
		m.NoPool += amount
	}

	if err := e.store.UpdateMarket(ctx, m); err != nil {
		return nil, err
	}
	if err := e.store.PutPosition(ctx, pos); err != nil {
		return nil, err
	}

	slog.Info("bet placed",
		"market", marketID,
		"bettor", bettor,
		"side", side.String(),
		"amount", amount,
		"yes_pool", m.YesPool,
		"no_pool", m.NoPool,
	)
	return pos, nil
}

// SwapToSbyl converts the native staking currency into SBYL 1:1. The payment
// settles to the protocol treasury and fresh SBYL is minted to the payer.
// The cap bounds each call individually, not a running total.
func (e *Engine) SwapToSbyl(ctx context.Context, payer string, amount uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	protocol, err := e.store.GetProtocol(ctx)
	if err != nil {
		return err
	}
	if amount == 0 {
		return ErrZeroAmount
	}
	if amount > protocol.SwapCap {
		return ErrSwapCapExceeded
	}

	if err := e.native.Transfer(ctx, payer, protocol.Treasury, amount); err != nil {
		return fmt.Errorf("collect swap payment: %w", err)
	}
	if err := e.wager.Mint(ctx, payer, amount); err != nil {
		return fmt.Errorf("mint sbyl: %w", err)
	}

	slog.Info("swap executed", "payer", payer, "amount", amount)
	return nil
}

// Resolve finalizes a market at the oracle-reported outcome. Pools are frozen
// forever afterwards; a second resolve fails ErrMarketNotResolvable.
func (e *Engine) Resolve(ctx context.Context, marketID uint64, caller string, outcome model.Outcome, confidence uint8) (*model.Market, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	protocol, err := e.store.GetProtocol(ctx)
	if err != nil {
		return nil, err
	}
	if caller != protocol.Oracle {
		return nil, ErrUnauthorized
	}

	m, err := e.store.GetMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}
	// Locked is reserved for future use but must stay resolvable.
	if m.Status != model.StatusOpen && m.Status != model.StatusLocked {
		return nil, ErrMarketNotResolvable
	}
	if e.clock.Now().Unix() < m.Deadline {
		return nil, ErrDeadlineNotReached
	}
	if confidence > 100 {
		return nil, ErrInvalidConfidence
	}
	if !outcome.Resolvable() {
		return nil, ErrInvalidOutcome
	}

	m.Status = model.StatusResolved
	m.Outcome = outcome
	m.OracleConfidence = confidence

	if err := e.store.UpdateMarket(ctx, m); err != nil {
		return nil, err
	}

	slog.Info("market resolved",
		"market", marketID,
		"outcome", outcome.String(),
		"confidence", confidence,
	)
	return m, nil
}

// Claim settles one position exactly once. On a winning claim the net payout
// goes to the caller and the fee to the treasury; on an Invalid outcome each
// side refunds against its own pool with no fee. The treasury account supplied
// by the caller must match the protocol treasury before anything moves.
func (e *Engine) Claim(ctx context.Context, marketID uint64, caller string, side model.Outcome, treasury string) (*Payout, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	protocol, err := e.store.GetProtocol(ctx)
	if err != nil {
		return nil, err
	}

	m, err := e.store.GetMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}
	if m.Status != model.StatusResolved {
		return nil, ErrMarketNotResolved
	}

	pos, err := e.store.GetPosition(ctx, marketID, caller, side)
	if err != nil {
		return nil, err
	}
	if pos.Owner != caller {
		return nil, ErrUnauthorized
	}
	if pos.Claimed {
		return nil, ErrAlreadyClaimed
	}
	if m.Outcome != model.OutcomeInvalid && pos.Side != m.Outcome {
		return nil, ErrNotWinner
	}

	payout := computePayout(m, pos, protocol.FeeBps)
	if payout.Net == 0 {
		return nil, ErrNoPayout
	}
	if treasury != protocol.Treasury {
		return nil, ErrTreasuryMismatch
	}

	vault := custody.VaultAccount(m.ID)
	if err := e.wager.Release(ctx, vault, caller, payout.Net); err != nil {
		return nil, fmt.Errorf("release payout: %w", err)
	}
	if payout.Fee > 0 {
		if err := e.wager.Release(ctx, vault, treasury, payout.Fee); err != nil {
			return nil, fmt.Errorf("release fee: %w", err)
		}
	}

	pos.Claimed = true
	if err := e.store.PutPosition(ctx, pos); err != nil {
		return nil, err
	}

	slog.Info("payout claimed",
		"market", marketID,
		"owner", caller,
		"side", side.String(),
		"gross", payout.Gross,
		"fee", payout.Fee,
		"net", payout.Net,
	)
	return &payout, nil
}

// GetProtocol returns the protocol singleton.
func (e *Engine) GetProtocol(ctx context.Context) (*model.Protocol, error) {
	return e.store.GetProtocol(ctx)
}

// GetMarket returns one market by id.
func (e *Engine) GetMarket(ctx context.Context, id uint64) (*model.Market, error) {
	return e.store.GetMarket(ctx, id)
}

// ListMarkets returns all markets ordered by id.
func (e *Engine) ListMarkets(ctx context.Context) ([]model.Market, error) {
	return e.store.ListMarkets(ctx)
}

// ListPositions returns all positions held by one bettor.
func (e *Engine) ListPositions(ctx context.Context, owner string) ([]model.Position, error) {
	return e.store.ListPositionsByOwner(ctx, owner)
}

// ListMarketPositions returns all positions staked on one market.
func (e *Engine) ListMarketPositions(ctx context.Context, marketID uint64) ([]model.Position, error) {
	return e.store.ListPositionsByMarket(ctx, marketID)
}

func isNotFound(err error) bool { return errors.Is(err, store.ErrNotFound) }

func isExists(err error) bool { return errors.Is(err, store.ErrAlreadyExists) }
