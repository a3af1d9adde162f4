package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"medpos/backend/internal/domain"
)

const monthlyKeyPrefix = "medpos:sales:monthly:"

func NewRedisClient(addr string, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

type RedisReportCache struct {
	client redis.Cmdable
}

func NewRedisReportCache(client redis.Cmdable) *RedisReportCache {
	return &RedisReportCache{client: client}
}

func (c *RedisReportCache) GetMonthly(ctx context.Context, month string) (*domain.MonthlySalesSummary, bool, error) {
	val, err := c.client.Get(ctx, monthlyKeyPrefix+month).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var summary domain.MonthlySalesSummary
	if err := json.Unmarshal([]byte(val), &summary); err != nil {
		return nil, false, err
	}
	return &summary, true, nil
}

func (c *RedisReportCache) SetMonthly(ctx context.Context, summary *domain.MonthlySalesSummary, ttl time.Duration) error {
	if summary == nil {
		return nil
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, monthlyKeyPrefix+summary.Month, payload, ttl).Err()
}
