package repository

import (
	"context"
	"fmt"

	"pumprug/database"
	"pumprug/domain/entities"
	"pumprug/domain/interfaces"
)

type matchRepository struct {
	q Queryable
}

// NewMatchRepository creates a new match repository
func NewMatchRepository(db *database.DB) interfaces.MatchRepository {
	return &matchRepository{q: db.Pool}
}

// newMatchRepository creates a new match repository with a transaction
func newMatchRepository(tx Queryable) interfaces.MatchRepository {
	return &matchRepository{q: tx}
}

func (r *matchRepository) Create(ctx context.Context, match *entities.Match) error {
	query := `
		INSERT INTO matches (market_id, pump_bet_id, rug_bet_id, amount)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.q.QueryRow(ctx, query,
		match.MarketID,
		match.PumpBetID,
		match.RugBetID,
		match.Amount,
	).Scan(&match.ID, &match.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create match: %w", err)
	}

	return nil
}

func (r *matchRepository) GetByMarket(ctx context.Context, marketID int64) ([]*entities.Match, error) {
	query := `
		SELECT id, market_id, pump_bet_id, rug_bet_id, amount, created_at
		FROM matches
		WHERE market_id = $1
		ORDER BY id`
	return r.queryMany(ctx, query, marketID)
}

func (r *matchRepository) GetByBet(ctx context.Context, betID int64) ([]*entities.Match, error) {
	query := `
		SELECT id, market_id, pump_bet_id, rug_bet_id, amount, created_at
		FROM matches
		WHERE pump_bet_id = $1 OR rug_bet_id = $1
		ORDER BY id`
	return r.queryMany(ctx, query, betID)
}

func (r *matchRepository) queryMany(ctx context.Context, query string, args ...any) ([]*entities.Match, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	var matches []*entities.Match
	for rows.Next() {
		var match entities.Match
		if err := rows.Scan(
			&match.ID,
			&match.MarketID,
			&match.PumpBetID,
			&match.RugBetID,
			&match.Amount,
			&match.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, &match)
	}

	return matches, rows.Err()
}
