package infrastructure

import (
	"context"
	"errors"
	"testing"

	"pumprug/domain/testhelpers"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestTransactionalCrediter_HoldsCreditsUntilFlush(t *testing.T) {
	ctx := context.Background()
	real := new(testhelpers.MockBalanceCrediter)
	crediter := NewTransactionalCrediter(real)

	require.NoError(t, crediter.Credit(ctx, 100, 12500, "settlement:1:10"))
	require.NoError(t, crediter.Credit(ctx, 200, 4900, "settlement:1:11"))

	// Nothing reaches the payout queue while the transaction is open
	real.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	real.On("Credit", ctx, int64(100), int64(12500), "settlement:1:10").Return(nil)
	real.On("Credit", ctx, int64(200), int64(4900), "settlement:1:11").Return(nil)

	crediter.Flush(ctx)

	real.AssertExpectations(t)
}

func TestTransactionalCrediter_DiscardDropsCredits(t *testing.T) {
	ctx := context.Background()
	real := new(testhelpers.MockBalanceCrediter)
	crediter := NewTransactionalCrediter(real)

	require.NoError(t, crediter.Credit(ctx, 100, 12500, "settlement:1:10"))

	// Rollback: the buffered credit must never hit the queue, even if a
	// later transaction flushes the same crediter
	crediter.Discard()
	crediter.Flush(ctx)

	real.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTransactionalCrediter_FlushContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	real := new(testhelpers.MockBalanceCrediter)
	crediter := NewTransactionalCrediter(real)

	require.NoError(t, crediter.Credit(ctx, 100, 12500, "settlement:1:10"))
	require.NoError(t, crediter.Credit(ctx, 200, 4900, "settlement:1:11"))

	real.On("Credit", ctx, int64(100), int64(12500), "settlement:1:10").Return(errors.New("redis: connection refused"))
	real.On("Credit", ctx, int64(200), int64(4900), "settlement:1:11").Return(nil)

	// One failed credit must not block the rest of the batch
	crediter.Flush(ctx)

	real.AssertExpectations(t)
}
