package infrastructure

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"pumprug/application"
	"pumprug/domain/entities"
	"pumprug/domain/interfaces"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const transitionQueueKey = "pumprug:transitions"

// popDueLua atomically removes and returns the members whose score has
// passed, so two workers racing on the same queue cannot both claim one
const popDueLua = `
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, member in ipairs(due) do
    redis.call('ZREM', KEYS[1], member)
end
return due
`

// RedisScheduler implements the TransitionScheduler interface with a redis
// sorted set used as a delay queue: member identifies the transition,
// score is the due time. Scheduling the same transition again just moves
// its due time, which is exactly the reschedule semantics retries need.
type RedisScheduler struct {
	rdb    *redis.Client
	popDue *redis.Script
}

// NewRedisScheduler creates a new redis-backed transition scheduler
func NewRedisScheduler(rdb *redis.Client) *RedisScheduler {
	return &RedisScheduler{
		rdb:    rdb,
		popDue: redis.NewScript(popDueLua),
	}
}

// Schedule enqueues a transition callback for the given instant
func (s *RedisScheduler) Schedule(ctx context.Context, marketID int64, target entities.MarketPhase, at time.Time) error {
	member := fmt.Sprintf("%d:%s", marketID, target)
	err := s.rdb.ZAdd(ctx, transitionQueueKey, redis.Z{
		Score:  float64(at.Unix()),
		Member: member,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to schedule transition %s: %w", member, err)
	}

	log.WithFields(log.Fields{
		"marketId": marketID,
		"target":   target,
		"at":       at,
	}).Debug("Transition scheduled")

	return nil
}

// PopDue atomically claims up to limit transitions whose due time has
// passed. Claimed transitions are removed from the queue; a handler that
// fails must reschedule explicitly.
func (s *RedisScheduler) PopDue(ctx context.Context, now time.Time, limit int) ([]application.DueTransition, error) {
	members, err := s.popDue.Run(ctx, s.rdb, []string{transitionQueueKey}, now.Unix(), limit).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("failed to pop due transitions: %w", err)
	}

	transitions := make([]application.DueTransition, 0, len(members))
	for _, member := range members {
		transition, err := parseTransitionMember(member)
		if err != nil {
			log.WithError(err).WithField("member", member).Error("Dropping malformed transition queue entry")
			continue
		}
		transitions = append(transitions, transition)
	}

	return transitions, nil
}

func parseTransitionMember(member string) (application.DueTransition, error) {
	parts := strings.SplitN(member, ":", 2)
	if len(parts) != 2 {
		return application.DueTransition{}, fmt.Errorf("malformed transition member %q", member)
	}
	marketID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return application.DueTransition{}, fmt.Errorf("malformed market id in %q: %w", member, err)
	}
	return application.DueTransition{
		MarketID: marketID,
		Target:   entities.MarketPhase(parts[1]),
	}, nil
}

var (
	_ interfaces.TransitionScheduler = (*RedisScheduler)(nil)
	_ application.TransitionSource   = (*RedisScheduler)(nil)
)
