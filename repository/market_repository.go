package repository

import (
	"context"
	"fmt"

	"pumprug/database"
	"pumprug/domain/entities"
	"pumprug/domain/interfaces"

	"github.com/jackc/pgx/v5"
)

type marketRepository struct {
	q Queryable
}

// NewMarketRepository creates a new market repository
func NewMarketRepository(db *database.DB) interfaces.MarketRepository {
	return &marketRepository{q: db.Pool}
}

// newMarketRepository creates a new market repository with a transaction
func newMarketRepository(tx Queryable) interfaces.MarketRepository {
	return &marketRepository{q: tx}
}

const marketColumns = `id, token_mint, phase, starts_at, ends_at, duration_minutes,
		pump_pool, rug_pool, pump_odds, rug_odds, outcome,
		start_price, start_liquidity, final_price, resolve_attempts,
		created_at, settled_at`

func (r *marketRepository) Create(ctx context.Context, market *entities.Market) error {
	query := `
		INSERT INTO markets (token_mint, phase, starts_at, ends_at, duration_minutes, start_price, start_liquidity)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := r.q.QueryRow(ctx, query,
		market.TokenMint,
		market.Phase,
		market.StartsAt,
		market.EndsAt,
		market.DurationMinutes,
		market.StartPrice,
		market.StartLiquidity,
	).Scan(&market.ID, &market.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create market: %w", err)
	}

	return nil
}

func (r *marketRepository) GetByID(ctx context.Context, id int64) (*entities.Market, error) {
	query := `SELECT ` + marketColumns + ` FROM markets WHERE id = $1`
	return r.scanOne(r.q.QueryRow(ctx, query, id))
}

func (r *marketRepository) GetByIDForUpdate(ctx context.Context, id int64) (*entities.Market, error) {
	query := `SELECT ` + marketColumns + ` FROM markets WHERE id = $1 FOR UPDATE`
	return r.scanOne(r.q.QueryRow(ctx, query, id))
}

func (r *marketRepository) Update(ctx context.Context, market *entities.Market) error {
	query := `
		UPDATE markets
		SET phase = $2, pump_pool = $3, rug_pool = $4, pump_odds = $5, rug_odds = $6,
			outcome = $7, final_price = $8, resolve_attempts = $9, settled_at = $10
		WHERE id = $1`

	tag, err := r.q.Exec(ctx, query,
		market.ID,
		market.Phase,
		market.PumpPool,
		market.RugPool,
		market.PumpOdds,
		market.RugOdds,
		market.Outcome,
		market.FinalPrice,
		market.ResolveAttempts,
		market.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update market: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("market %d: %w", market.ID, entities.ErrNotFound)
	}

	return nil
}

func (r *marketRepository) GetByPhase(ctx context.Context, phase entities.MarketPhase) ([]*entities.Market, error) {
	query := `SELECT ` + marketColumns + ` FROM markets WHERE phase = $1 ORDER BY starts_at`

	rows, err := r.q.Query(ctx, query, phase)
	if err != nil {
		return nil, fmt.Errorf("failed to query markets: %w", err)
	}
	defer rows.Close()

	var markets []*entities.Market
	for rows.Next() {
		market, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		markets = append(markets, market)
	}

	return markets, rows.Err()
}

func (r *marketRepository) scanOne(row pgx.Row) (*entities.Market, error) {
	market, err := r.scan(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return market, nil
}

func (r *marketRepository) scan(row pgx.Row) (*entities.Market, error) {
	var market entities.Market
	err := row.Scan(
		&market.ID,
		&market.TokenMint,
		&market.Phase,
		&market.StartsAt,
		&market.EndsAt,
		&market.DurationMinutes,
		&market.PumpPool,
		&market.RugPool,
		&market.PumpOdds,
		&market.RugOdds,
		&market.Outcome,
		&market.StartPrice,
		&market.StartLiquidity,
		&market.FinalPrice,
		&market.ResolveAttempts,
		&market.CreatedAt,
		&market.SettledAt,
	)
	if err == pgx.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan market: %w", err)
	}
	return &market, nil
}
