package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sibyl-protocol/sibyl/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreateProtocol(ctx context.Context, p *model.Protocol) error {
	if err := s.primary.CreateProtocol(ctx, p); err != nil {
		return err
	}
	s.cacheJSON(ctx, protocolKey(), p)
	return nil
}

func (s *CachedStore) UpdateProtocol(ctx context.Context, p *model.Protocol) error {
	if err := s.primary.UpdateProtocol(ctx, p); err != nil {
		return err
	}
	s.rdb.Del(ctx, protocolKey())
	return nil
}

func (s *CachedStore) CreateMarket(ctx context.Context, m *model.Market) error {
	if err := s.primary.CreateMarket(ctx, m); err != nil {
		return err
	}
	s.cacheJSON(ctx, marketKey(m.ID), m)
	return nil
}

func (s *CachedStore) UpdateMarket(ctx context.Context, m *model.Market) error {
	if err := s.primary.UpdateMarket(ctx, m); err != nil {
		return err
	}
	// Invalidate cache; next read will re-populate.
	s.rdb.Del(ctx, marketKey(m.ID))
	return nil
}

func (s *CachedStore) PutPosition(ctx context.Context, p *model.Position) error {
	if err := s.primary.PutPosition(ctx, p); err != nil {
		return err
	}
	s.rdb.Del(ctx, positionKeyStr(p.MarketID, p.Owner, p.Side))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetProtocol(ctx context.Context) (*model.Protocol, error) {
	data, err := s.rdb.Get(ctx, protocolKey()).Bytes()
	if err == nil {
		var p model.Protocol
		if json.Unmarshal(data, &p) == nil {
			return &p, nil
		}
	}

	p, err := s.primary.GetProtocol(ctx)
	if err != nil {
		return nil, err
	}

	s.cacheJSON(ctx, protocolKey(), p)
	return p, nil
}

func (s *CachedStore) GetMarket(ctx context.Context, id uint64) (*model.Market, error) {
	data, err := s.rdb.Get(ctx, marketKey(id)).Bytes()
	if err == nil {
		var m model.Market
		if json.Unmarshal(data, &m) == nil {
			return &m, nil
		}
	}

	// Cache miss: read from primary.
	m, err := s.primary.GetMarket(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheJSON(ctx, marketKey(id), m)
	return m, nil
}

func (s *CachedStore) GetPosition(ctx context.Context, marketID uint64, owner string, side model.Outcome) (*model.Position, error) {
	key := positionKeyStr(marketID, owner, side)
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var p model.Position
		if json.Unmarshal(data, &p) == nil {
			return &p, nil
		}
	}

	p, err := s.primary.GetPosition(ctx, marketID, owner, side)
	if err != nil {
		return nil, err
	}

	s.cacheJSON(ctx, key, p)
	return p, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListMarkets(ctx context.Context) ([]model.Market, error) {
	return s.primary.ListMarkets(ctx)
}

func (s *CachedStore) ListPositionsByMarket(ctx context.Context, marketID uint64) ([]model.Position, error) {
	return s.primary.ListPositionsByMarket(ctx, marketID)
}

func (s *CachedStore) ListPositionsByOwner(ctx context.Context, owner string) ([]model.Position, error) {
	return s.primary.ListPositionsByOwner(ctx, owner)
}

// --- Cache helpers ---

func (s *CachedStore) cacheJSON(ctx context.Context, key string, v any) {
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}

func protocolKey() string { return "protocol" }

func marketKey(id uint64) string { return fmt.Sprintf("market:%d", id) }

func positionKeyStr(marketID uint64, owner string, side model.Outcome) string {
	return fmt.Sprintf("position:%d:%s:%s", marketID, owner, side)
}
