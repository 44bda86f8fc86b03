package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sibyl-protocol/sibyl/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Amounts are stored as BIGINT in SBYL base units; enums as SMALLINT.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS protocol (
			singleton         BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (singleton),
			authority         TEXT NOT NULL,
			oracle            TEXT NOT NULL,
			treasury          TEXT NOT NULL,
			wager_token       TEXT NOT NULL,
			fee_bps           SMALLINT NOT NULL CHECK (fee_bps BETWEEN 0 AND 10000),
			swap_cap          BIGINT NOT NULL,
			market_count      BIGINT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS markets (
			id                BIGINT PRIMARY KEY,
			authority         TEXT NOT NULL,
			title             TEXT NOT NULL,
			description       TEXT NOT NULL,
			deadline          BIGINT NOT NULL,
			yes_pool          BIGINT NOT NULL DEFAULT 0,
			no_pool           BIGINT NOT NULL DEFAULT 0,
			status            SMALLINT NOT NULL,
			outcome           SMALLINT NOT NULL,
			oracle_confidence SMALLINT NOT NULL DEFAULT 0,
			created_at        TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS positions (
			market_id         BIGINT NOT NULL REFERENCES markets(id),
			owner             TEXT NOT NULL,
			side              SMALLINT NOT NULL,
			amount            BIGINT NOT NULL,
			claimed           BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (market_id, owner, side)
		);
		CREATE INDEX IF NOT EXISTS positions_owner_idx ON positions (owner);
	`)
	return err
}

func (s *PostgresStore) CreateProtocol(ctx context.Context, p *model.Protocol) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO protocol (authority, oracle, treasury, wager_token, fee_bps, swap_cap, market_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.Authority, p.Oracle, p.Treasury, p.WagerToken, int16(p.FeeBps), int64(p.SwapCap), int64(p.MarketCount))
	if isUniqueViolation(err) {
		return fmt.Errorf("protocol: %w", ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("insert protocol: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetProtocol(ctx context.Context) (*model.Protocol, error) {
	var p model.Protocol
	var feeBps int16
	var swapCap, marketCount int64
	err := s.pool.QueryRow(ctx,
		`SELECT authority, oracle, treasury, wager_token, fee_bps, swap_cap, market_count FROM protocol`).
		Scan(&p.Authority, &p.Oracle, &p.Treasury, &p.WagerToken, &feeBps, &swapCap, &marketCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("protocol: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select protocol: %w", err)
	}
	p.FeeBps = uint16(feeBps)
	p.SwapCap = uint64(swapCap)
	p.MarketCount = uint64(marketCount)
	return &p, nil
}

func (s *PostgresStore) UpdateProtocol(ctx context.Context, p *model.Protocol) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE protocol SET authority=$1, oracle=$2, treasury=$3, wager_token=$4,
		 fee_bps=$5, swap_cap=$6, market_count=$7`,
		p.Authority, p.Oracle, p.Treasury, p.WagerToken, int16(p.FeeBps), int64(p.SwapCap), int64(p.MarketCount))
	if err != nil {
		return fmt.Errorf("update protocol: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("protocol: %w", ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) CreateMarket(ctx context.Context, m *model.Market) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO markets (id, authority, title, description, deadline, yes_pool, no_pool, status, outcome, oracle_confidence, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		int64(m.ID), m.Authority, m.Title, m.Description, m.Deadline,
		int64(m.YesPool), int64(m.NoPool), int16(m.Status), int16(m.Outcome),
		int16(m.OracleConfidence), m.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("market %d: %w", m.ID, ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("insert market: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetMarket(ctx context.Context, id uint64) (*model.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, authority, title, description, deadline, yes_pool, no_pool, status, outcome, oracle_confidence, created_at
		 FROM markets WHERE id = $1`, int64(id))
	m, err := scanMarket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("market %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select market: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) ListMarkets(ctx context.Context) ([]model.Market, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, authority, title, description, deadline, yes_pool, no_pool, status, outcome, oracle_confidence, created_at
		 FROM markets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list markets: %w", err)
	}
	defer rows.Close()

	var markets []model.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan market: %w", err)
		}
		markets = append(markets, *m)
	}
	return markets, rows.Err()
}

func (s *PostgresStore) UpdateMarket(ctx context.Context, m *model.Market) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE markets SET yes_pool=$2, no_pool=$3, status=$4, outcome=$5, oracle_confidence=$6
		 WHERE id = $1`,
		int64(m.ID), int64(m.YesPool), int64(m.NoPool), int16(m.Status), int16(m.Outcome), int16(m.OracleConfidence))
	if err != nil {
		return fmt.Errorf("update market: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("market %d: %w", m.ID, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) GetPosition(ctx context.Context, marketID uint64, owner string, side model.Outcome) (*model.Position, error) {
	var p model.Position
	var mid int64
	var sd int16
	var amount int64
	err := s.pool.QueryRow(ctx,
		`SELECT market_id, owner, side, amount, claimed FROM positions
		 WHERE market_id = $1 AND owner = $2 AND side = $3`,
		int64(marketID), owner, int16(side)).
		Scan(&mid, &p.Owner, &sd, &amount, &p.Claimed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("position (%d,%s,%s): %w", marketID, owner, side, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select position: %w", err)
	}
	p.MarketID = uint64(mid)
	p.Side = model.Outcome(sd)
	p.Amount = uint64(amount)
	return &p, nil
}

func (s *PostgresStore) PutPosition(ctx context.Context, p *model.Position) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO positions (market_id, owner, side, amount, claimed)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (market_id, owner, side)
		 DO UPDATE SET amount = EXCLUDED.amount, claimed = EXCLUDED.claimed`,
		int64(p.MarketID), p.Owner, int16(p.Side), int64(p.Amount), p.Claimed)
	if err != nil {
		return fmt.Errorf("upsert position: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListPositionsByMarket(ctx context.Context, marketID uint64) ([]model.Position, error) {
	return s.listPositions(ctx,
		`SELECT market_id, owner, side, amount, claimed FROM positions
		 WHERE market_id = $1 ORDER BY market_id, owner, side`, int64(marketID))
}

func (s *PostgresStore) ListPositionsByOwner(ctx context.Context, owner string) ([]model.Position, error) {
	return s.listPositions(ctx,
		`SELECT market_id, owner, side, amount, claimed FROM positions
		 WHERE owner = $1 ORDER BY market_id, owner, side`, owner)
}

func (s *PostgresStore) listPositions(ctx context.Context, sql string, arg any) ([]model.Position, error) {
	rows, err := s.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()

	var positions []model.Position
	for rows.Next() {
		var p model.Position
		var mid, amount int64
		var sd int16
		if err := rows.Scan(&mid, &p.Owner, &sd, &amount, &p.Claimed); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		p.MarketID = uint64(mid)
		p.Side = model.Outcome(sd)
		p.Amount = uint64(amount)
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

func scanMarket(row pgx.Row) (*model.Market, error) {
	var m model.Market
	var id, yesPool, noPool int64
	var status, outcome, confidence int16
	err := row.Scan(&id, &m.Authority, &m.Title, &m.Description, &m.Deadline,
		&yesPool, &noPool, &status, &outcome, &confidence, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.ID = uint64(id)
	m.YesPool = uint64(yesPool)
	m.NoPool = uint64(noPool)
	m.Status = model.Status(status)
	m.Outcome = model.Outcome(outcome)
	m.OracleConfidence = uint8(confidence)
	return &m, nil
}

// isUniqueViolation reports whether err is a Postgres unique_violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
