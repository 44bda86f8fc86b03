// Package store defines the persistence interface for the settlement engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/sibyl-protocol/sibyl/internal/model"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrAlreadyExists is returned when creating a record whose key is taken.
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- Protocol singleton ---

	// CreateProtocol persists the singleton. Fails with ErrAlreadyExists if
	// the protocol was already initialized.
	CreateProtocol(ctx context.Context, p *model.Protocol) error

	// GetProtocol retrieves the singleton, or ErrNotFound before init.
	GetProtocol(ctx context.Context) (*model.Protocol, error)

	// UpdateProtocol overwrites the singleton (market counter bumps).
	UpdateProtocol(ctx context.Context, p *model.Protocol) error

	// --- Market records ---

	// CreateMarket persists a new market under its id.
	CreateMarket(ctx context.Context, m *model.Market) error

	// GetMarket retrieves a market by id.
	GetMarket(ctx context.Context, id uint64) (*model.Market, error)

	// ListMarkets returns all markets ordered by id.
	ListMarkets(ctx context.Context) ([]model.Market, error)

	// UpdateMarket overwrites a market's mutable state (pools, status,
	// outcome, confidence).
	UpdateMarket(ctx context.Context, m *model.Market) error

	// --- Position records ---

	// GetPosition retrieves the position for (marketID, owner, side).
	GetPosition(ctx context.Context, marketID uint64, owner string, side model.Outcome) (*model.Position, error)

	// PutPosition creates or overwrites a position under its composite key.
	PutPosition(ctx context.Context, p *model.Position) error

	// ListPositionsByMarket returns all positions staked on one market.
	ListPositionsByMarket(ctx context.Context, marketID uint64) ([]model.Position, error)

	// ListPositionsByOwner returns all positions held by one bettor.
	ListPositionsByOwner(ctx context.Context, owner string) ([]model.Position, error)
}
