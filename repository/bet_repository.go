package repository

import (
	"context"
	"fmt"

	"pumprug/database"
	"pumprug/domain/entities"
	"pumprug/domain/interfaces"

	"github.com/jackc/pgx/v5"
)

type betRepository struct {
	q Queryable
}

// NewBetRepository creates a new bet repository
func NewBetRepository(db *database.DB) interfaces.BetRepository {
	return &betRepository{q: db.Pool}
}

// newBetRepository creates a new bet repository with a transaction
func newBetRepository(tx Queryable) interfaces.BetRepository {
	return &betRepository{q: tx}
}

const betColumns = `id, market_id, user_id, side, gross_amount, net_amount, fee_amount,
		status, matched_amount, odds_locked, refund_amount, payout_amount,
		created_at, matched_at, settled_at`

func (r *betRepository) Create(ctx context.Context, bet *entities.Bet) error {
	query := `
		INSERT INTO bets (market_id, user_id, side, gross_amount, net_amount, fee_amount, status, matched_amount, odds_locked)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`

	err := r.q.QueryRow(ctx, query,
		bet.MarketID,
		bet.UserID,
		bet.Side,
		bet.GrossAmount,
		bet.NetAmount,
		bet.FeeAmount,
		bet.Status,
		bet.MatchedAmount,
		bet.OddsLocked,
	).Scan(&bet.ID, &bet.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create bet: %w", err)
	}

	return nil
}

func (r *betRepository) GetByID(ctx context.Context, id int64) (*entities.Bet, error) {
	query := `SELECT ` + betColumns + ` FROM bets WHERE id = $1`

	bet, err := r.scan(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return bet, nil
}

func (r *betRepository) GetByMarket(ctx context.Context, marketID int64) ([]*entities.Bet, error) {
	query := `SELECT ` + betColumns + ` FROM bets WHERE market_id = $1 ORDER BY created_at, id`
	return r.queryMany(ctx, query, marketID)
}

func (r *betRepository) GetUnmatchedByMarketAndSide(ctx context.Context, marketID int64, side entities.BetSide) ([]*entities.Bet, error) {
	// Oldest first: earlier wagers get their capacity consumed before
	// later ones
	query := `SELECT ` + betColumns + `
		FROM bets
		WHERE market_id = $1 AND side = $2 AND matched_amount < net_amount
			AND status IN ('pending', 'matched')
		ORDER BY created_at, id`
	return r.queryMany(ctx, query, marketID, side)
}

func (r *betRepository) Update(ctx context.Context, bet *entities.Bet) error {
	query := `
		UPDATE bets
		SET status = $2, matched_amount = $3, refund_amount = $4, payout_amount = $5,
			matched_at = $6, settled_at = $7
		WHERE id = $1`

	tag, err := r.q.Exec(ctx, query,
		bet.ID,
		bet.Status,
		bet.MatchedAmount,
		bet.RefundAmount,
		bet.PayoutAmount,
		bet.MatchedAt,
		bet.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update bet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("bet %d: %w", bet.ID, entities.ErrNotFound)
	}

	return nil
}

func (r *betRepository) GetByUser(ctx context.Context, userID int64, limit int) ([]*entities.Bet, error) {
	query := `SELECT ` + betColumns + ` FROM bets WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
	return r.queryMany(ctx, query, userID, limit)
}

func (r *betRepository) queryMany(ctx context.Context, query string, args ...any) ([]*entities.Bet, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bets: %w", err)
	}
	defer rows.Close()

	var bets []*entities.Bet
	for rows.Next() {
		bet, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		bets = append(bets, bet)
	}

	return bets, rows.Err()
}

func (r *betRepository) scan(row pgx.Row) (*entities.Bet, error) {
	var bet entities.Bet
	err := row.Scan(
		&bet.ID,
		&bet.MarketID,
		&bet.UserID,
		&bet.Side,
		&bet.GrossAmount,
		&bet.NetAmount,
		&bet.FeeAmount,
		&bet.Status,
		&bet.MatchedAmount,
		&bet.OddsLocked,
		&bet.RefundAmount,
		&bet.PayoutAmount,
		&bet.CreatedAt,
		&bet.MatchedAt,
		&bet.SettledAt,
	)
	if err == pgx.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan bet: %w", err)
	}
	return &bet, nil
}
