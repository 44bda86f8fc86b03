package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sibyl-protocol/sibyl/internal/model"
)

func testProtocol() *model.Protocol {
	return &model.Protocol{
		Authority:  "admin",
		Oracle:     "oracle",
		Treasury:   "treasury",
		WagerToken: "SBYL",
		FeeBps:     500,
		SwapCap:    10_000_000_000,
	}
}

func testMarket(id uint64) *model.Market {
	return &model.Market{
		ID:        id,
		Authority: "admin",
		Title:     "Will it rain tomorrow?",
		Deadline:  1_700_000_000,
		Status:    model.StatusOpen,
		Outcome:   model.OutcomeNone,
		CreatedAt: time.Unix(1_690_000_000, 0).UTC(),
	}
}

func TestMemoryStore_ProtocolSingleton(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.GetProtocol(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before create, got %v", err)
	}

	if err := s.CreateProtocol(ctx, testProtocol()); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.CreateProtocol(ctx, testProtocol()); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists on second create, got %v", err)
	}

	p, err := s.GetProtocol(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	p.MarketCount = 99
	if err := s.UpdateProtocol(ctx, p); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, _ := s.GetProtocol(ctx)
	if got.MarketCount != 99 {
		t.Errorf("market_count = %d, want 99", got.MarketCount)
	}
}

func TestMemoryStore_MarketCRUD(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.GetMarket(ctx, 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.CreateMarket(ctx, testMarket(0)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.CreateMarket(ctx, testMarket(0)); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if err := s.CreateMarket(ctx, testMarket(1)); err != nil {
		t.Fatalf("create second: %v", err)
	}

	m, err := s.GetMarket(ctx, 0)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	m.YesPool = 500
	if err := s.UpdateMarket(ctx, m); err != nil {
		t.Fatalf("update: %v", err)
	}

	if err := s.UpdateMarket(ctx, testMarket(42)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating missing market, got %v", err)
	}

	markets, err := s.ListMarkets(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(markets) != 2 || markets[0].ID != 0 || markets[1].ID != 1 {
		t.Errorf("unexpected listing: %+v", markets)
	}
	if markets[0].YesPool != 500 {
		t.Errorf("update not visible in listing: %+v", markets[0])
	}
}

func TestMemoryStore_CopyOutIsolation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.CreateMarket(ctx, testMarket(0)); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Mutating a returned market must not leak into the store.
	m, _ := s.GetMarket(ctx, 0)
	m.YesPool = 12345

	fresh, _ := s.GetMarket(ctx, 0)
	if fresh.YesPool != 0 {
		t.Errorf("caller mutation leaked into store: %+v", fresh)
	}
}

func TestMemoryStore_PositionUpsertAndListings(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	put := func(marketID uint64, owner string, side model.Outcome, amount uint64) {
		t.Helper()
		err := s.PutPosition(ctx, &model.Position{
			MarketID: marketID, Owner: owner, Side: side, Amount: amount,
		})
		if err != nil {
			t.Fatalf("put position: %v", err)
		}
	}

	if _, err := s.GetPosition(ctx, 0, "alice", model.OutcomeYes); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	put(0, "alice", model.OutcomeYes, 500)
	put(0, "alice", model.OutcomeYes, 700) // upsert overwrites
	put(0, "alice", model.OutcomeNo, 100)
	put(0, "bob", model.OutcomeNo, 300)
	put(1, "alice", model.OutcomeYes, 50)

	p, err := s.GetPosition(ctx, 0, "alice", model.OutcomeYes)
	if err != nil {
		t.Fatalf("get position: %v", err)
	}
	if p.Amount != 700 {
		t.Errorf("upsert amount = %d, want 700", p.Amount)
	}

	byMarket, err := s.ListPositionsByMarket(ctx, 0)
	if err != nil {
		t.Fatalf("list by market: %v", err)
	}
	if len(byMarket) != 3 {
		t.Fatalf("market 0 positions = %d, want 3", len(byMarket))
	}
	// Deterministic (owner, side) order.
	if byMarket[0].Owner != "alice" || byMarket[0].Side != model.OutcomeYes {
		t.Errorf("unexpected first position: %+v", byMarket[0])
	}
	if byMarket[2].Owner != "bob" {
		t.Errorf("unexpected last position: %+v", byMarket[2])
	}

	byOwner, err := s.ListPositionsByOwner(ctx, "alice")
	if err != nil {
		t.Fatalf("list by owner: %v", err)
	}
	if len(byOwner) != 3 {
		t.Fatalf("alice positions = %d, want 3", len(byOwner))
	}
	if byOwner[2].MarketID != 1 {
		t.Errorf("expected market 1 last, got %+v", byOwner[2])
	}
}
