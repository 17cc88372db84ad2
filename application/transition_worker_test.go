package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockLeaderLock struct {
	mock.Mock
}

func (m *mockLeaderLock) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	args := m.Called(ctx, key, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(func()), args.Error(1)
}

type mockTransitionSource struct {
	mock.Mock
}

func (m *mockTransitionSource) PopDue(ctx context.Context, now time.Time, limit int) ([]DueTransition, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]DueTransition), args.Error(1)
}

func TestTransitionWorker_Tick_NotLeaderSkipsQueue(t *testing.T) {
	ctx := context.Background()
	lock := new(mockLeaderLock)
	source := new(mockTransitionSource)
	worker := NewTransitionWorker(nil, source, nil, nil, lock)

	lock.On("Acquire", ctx, transitionLeaderKey, transitionLeaderTTL).Return(nil, ErrLockHeld)

	worker.tick(ctx)

	source.AssertNotCalled(t, "PopDue", mock.Anything, mock.Anything, mock.Anything)
}

func TestTransitionWorker_Tick_LockErrorSkipsQueue(t *testing.T) {
	ctx := context.Background()
	lock := new(mockLeaderLock)
	source := new(mockTransitionSource)
	worker := NewTransitionWorker(nil, source, nil, nil, lock)

	// A failed acquire is not leadership; the queue stays untouched
	lock.On("Acquire", ctx, transitionLeaderKey, transitionLeaderTTL).
		Return(nil, errors.New("redis: connection refused"))

	worker.tick(ctx)

	source.AssertNotCalled(t, "PopDue", mock.Anything, mock.Anything, mock.Anything)
}

func TestTransitionWorker_Tick_LeaderClaimsDueAndReleases(t *testing.T) {
	ctx := context.Background()
	lock := new(mockLeaderLock)
	source := new(mockTransitionSource)
	worker := NewTransitionWorker(nil, source, nil, nil, lock)

	released := false
	lock.On("Acquire", ctx, transitionLeaderKey, transitionLeaderTTL).
		Return(func() { released = true }, nil)
	source.On("PopDue", ctx, mock.AnythingOfType("time.Time"), transitionBatchSize).
		Return([]DueTransition{}, nil)

	worker.tick(ctx)

	source.AssertExpectations(t)
	assert.True(t, released)
}
