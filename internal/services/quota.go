package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"microlearn-backend/internal/models"
)

// QuotaService tracks uploads per user per calendar day. The counter key
// embeds the date, so a new day always starts from zero without any reset
// job; stale keys expire on their own.
type QuotaService struct {
	redis      *redis.Client
	dailyLimit int
}

func NewQuotaService(redisClient *redis.Client, dailyLimit int) *QuotaService {
	return &QuotaService{redis: redisClient, dailyLimit: dailyLimit}
}

// QuotaKey builds the date-stamped counter key for one user and day.
func QuotaKey(userID uuid.UUID, day time.Time) string {
	return fmt.Sprintf("upload_quota:%s:%s", userID.String(), day.Format("2006-01-02"))
}

// QuotaExceeded is the plan gate: premium accounts are never blocked, free
// accounts are blocked once today's count reaches the limit.
func QuotaExceeded(plan string, count, limit int) bool {
	if plan == models.PlanPremium {
		return false
	}
	return count >= limit
}

// Allow reports whether the user may upload now, plus today's count so the
// handler can echo it back to the client.
func (q *QuotaService) Allow(ctx context.Context, userID uuid.UUID, plan string) (bool, int, error) {
	count, err := q.redis.Get(ctx, QuotaKey(userID, time.Now())).Int()
	if err != nil && err != redis.Nil {
		return false, 0, fmt.Errorf("read upload quota: %w", err)
	}

	return !QuotaExceeded(plan, count, q.dailyLimit), count, nil
}

// Record counts one accepted upload. The 48h TTL outlives the day the key
// names, so counts stay readable until they are irrelevant.
func (q *QuotaService) Record(ctx context.Context, userID uuid.UUID) error {
	key := QuotaKey(userID, time.Now())

	pipe := q.redis.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 48*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record upload: %w", err)
	}
	return nil
}

// Limit exposes the configured daily limit for client display.
func (q *QuotaService) Limit() int {
	return q.dailyLimit
}
