package repository

import (
	"context"
	"errors"
	"fmt"

	"pumprug/database"
	"pumprug/domain/entities"
	"pumprug/domain/interfaces"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pendingBetRepository struct {
	q Queryable
}

// NewPendingBetRepository creates a new pending bet repository
func NewPendingBetRepository(db *database.DB) interfaces.PendingBetRepository {
	return &pendingBetRepository{q: db.Pool}
}

// newPendingBetRepository creates a new pending bet repository with a transaction
func newPendingBetRepository(tx Queryable) interfaces.PendingBetRepository {
	return &pendingBetRepository{q: tx}
}

const pendingBetColumns = `id, nonce, user_id, market_id, side, amount, wallet_address,
		status, ledger_reference, verified_signature, error_reason, created_at, updated_at`

func (r *pendingBetRepository) Create(ctx context.Context, pendingBet *entities.PendingBet) error {
	query := `
		INSERT INTO pending_bets (nonce, user_id, market_id, side, amount, wallet_address, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	err := r.q.QueryRow(ctx, query,
		pendingBet.Nonce,
		pendingBet.UserID,
		pendingBet.MarketID,
		pendingBet.Side,
		pendingBet.Amount,
		pendingBet.WalletAddress,
		pendingBet.Status,
	).Scan(&pendingBet.ID, &pendingBet.CreatedAt, &pendingBet.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("nonce %q: %w", pendingBet.Nonce, entities.ErrDuplicateNonce)
		}
		return fmt.Errorf("failed to create pending bet: %w", err)
	}

	return nil
}

func (r *pendingBetRepository) GetByNonce(ctx context.Context, nonce string) (*entities.PendingBet, error) {
	query := `SELECT ` + pendingBetColumns + ` FROM pending_bets WHERE nonce = $1`

	var pendingBet entities.PendingBet
	err := r.q.QueryRow(ctx, query, nonce).Scan(
		&pendingBet.ID,
		&pendingBet.Nonce,
		&pendingBet.UserID,
		&pendingBet.MarketID,
		&pendingBet.Side,
		&pendingBet.Amount,
		&pendingBet.WalletAddress,
		&pendingBet.Status,
		&pendingBet.LedgerReference,
		&pendingBet.VerifiedSignature,
		&pendingBet.ErrorReason,
		&pendingBet.CreatedAt,
		&pendingBet.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending bet: %w", err)
	}

	return &pendingBet, nil
}

// TransitionStatus performs a compare-and-set on the status column. The
// WHERE clause guarantees at most one caller observes the transition.
func (r *pendingBetRepository) TransitionStatus(ctx context.Context, nonce string, from, to entities.PendingBetStatus) (bool, error) {
	query := `
		UPDATE pending_bets
		SET status = $3, updated_at = NOW()
		WHERE nonce = $1 AND status = $2`

	tag, err := r.q.Exec(ctx, query, nonce, from, to)
	if err != nil {
		return false, fmt.Errorf("failed to transition pending bet status: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *pendingBetRepository) Update(ctx context.Context, pendingBet *entities.PendingBet) error {
	query := `
		UPDATE pending_bets
		SET status = $2, ledger_reference = $3, verified_signature = $4, error_reason = $5, updated_at = NOW()
		WHERE id = $1`

	tag, err := r.q.Exec(ctx, query,
		pendingBet.ID,
		pendingBet.Status,
		pendingBet.LedgerReference,
		pendingBet.VerifiedSignature,
		pendingBet.ErrorReason,
	)
	if err != nil {
		return fmt.Errorf("failed to update pending bet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("pending bet %d: %w", pendingBet.ID, entities.ErrNotFound)
	}

	return nil
}

func (r *pendingBetRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM pending_bets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete pending bet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("pending bet %d: %w", id, entities.ErrNotFound)
	}

	return nil
}
