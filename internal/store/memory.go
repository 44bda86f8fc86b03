package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sibyl-protocol/sibyl/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu        sync.RWMutex
	protocol  *model.Protocol
	markets   map[uint64]*model.Market
	positions map[positionKey]*model.Position
}

type positionKey struct {
	marketID uint64
	owner    string
	side     model.Outcome
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		markets:   make(map[uint64]*model.Market),
		positions: make(map[positionKey]*model.Position),
	}
}

func (s *MemoryStore) CreateProtocol(_ context.Context, p *model.Protocol) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.protocol != nil {
		return fmt.Errorf("protocol: %w", ErrAlreadyExists)
	}
	// Store a copy to avoid external mutation.
	cp := *p
	s.protocol = &cp
	return nil
}

func (s *MemoryStore) GetProtocol(_ context.Context) (*model.Protocol, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.protocol == nil {
		return nil, fmt.Errorf("protocol: %w", ErrNotFound)
	}
	cp := *s.protocol
	return &cp, nil
}

func (s *MemoryStore) UpdateProtocol(_ context.Context, p *model.Protocol) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.protocol == nil {
		return fmt.Errorf("protocol: %w", ErrNotFound)
	}
	cp := *p
	s.protocol = &cp
	return nil
}

func (s *MemoryStore) CreateMarket(_ context.Context, m *model.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.markets[m.ID]; ok {
		return fmt.Errorf("market %d: %w", m.ID, ErrAlreadyExists)
	}
	cp := *m
	s.markets[m.ID] = &cp
	return nil
}

func (s *MemoryStore) GetMarket(_ context.Context, id uint64) (*model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.markets[id]
	if !ok {
		return nil, fmt.Errorf("market %d: %w", id, ErrNotFound)
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryStore) ListMarkets(_ context.Context) ([]model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	markets := make([]model.Market, 0, len(s.markets))
	for _, m := range s.markets {
		markets = append(markets, *m)
	}
	sort.Slice(markets, func(i, j int) bool { return markets[i].ID < markets[j].ID })
	return markets, nil
}

func (s *MemoryStore) UpdateMarket(_ context.Context, m *model.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.markets[m.ID]; !ok {
		return fmt.Errorf("market %d: %w", m.ID, ErrNotFound)
	}
	cp := *m
	s.markets[m.ID] = &cp
	return nil
}

func (s *MemoryStore) GetPosition(_ context.Context, marketID uint64, owner string, side model.Outcome) (*model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.positions[positionKey{marketID, owner, side}]
	if !ok {
		return nil, fmt.Errorf("position (%d,%s,%s): %w", marketID, owner, side, ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) PutPosition(_ context.Context, p *model.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	s.positions[positionKey{p.MarketID, p.Owner, p.Side}] = &cp
	return nil
}

func (s *MemoryStore) ListPositionsByMarket(_ context.Context, marketID uint64) ([]model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Position
	for _, p := range s.positions {
		if p.MarketID == marketID {
			result = append(result, *p)
		}
	}
	sortPositions(result)
	return result, nil
}

func (s *MemoryStore) ListPositionsByOwner(_ context.Context, owner string) ([]model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Position
	for _, p := range s.positions {
		if p.Owner == owner {
			result = append(result, *p)
		}
	}
	sortPositions(result)
	return result, nil
}

// sortPositions orders by (market, owner, side) for deterministic listings.
func sortPositions(ps []model.Position) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].MarketID != ps[j].MarketID {
			return ps[i].MarketID < ps[j].MarketID
		}
		if ps[i].Owner != ps[j].Owner {
			return ps[i].Owner < ps[j].Owner
		}
		return ps[i].Side < ps[j].Side
	})
}
