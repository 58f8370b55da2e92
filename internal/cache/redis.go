package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pandutama/tripbooking/config"
	"github.com/pandutama/tripbooking/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RedisCache keeps the read-mostly package catalog and the last-known booking
// snapshot per booking code. Snapshot entries exist only so a failing store
// can be degraded to a stale-but-honest answer; the TTL is the staleness
// policy.
type RedisCache struct {
	client      *redis.Client
	catalogTTL  time.Duration
	snapshotTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, catalogTTL, snapshotTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:      redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		catalogTTL:  catalogTTL,
		snapshotTTL: snapshotTTL,
	}
}

func (c *RedisCache) GetPackages(ctx context.Context) ([]domain.TourPackage, error) {
	data, err := c.client.Get(ctx, catalogKey()).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var packages []domain.TourPackage
	if err := json.Unmarshal(data, &packages); err != nil {
		return nil, err
	}
	return packages, nil
}

func (c *RedisCache) SetPackages(ctx context.Context, packages []domain.TourPackage) error {
	payload, err := json.Marshal(packages)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, catalogKey(), payload, c.catalogTTL).Err()
}

func (c *RedisCache) GetBookingSnapshot(ctx context.Context, code string) (*domain.Booking, error) {
	data, err := c.client.Get(ctx, snapshotKey(code)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var b domain.Booking
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *RedisCache) SetBookingSnapshot(ctx context.Context, b *domain.Booking) error {
	payload, err := json.Marshal(b)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, snapshotKey(b.Code), payload, c.snapshotTTL).Err()
}

func catalogKey() string {
	return "cache:packages"
}

func snapshotKey(code string) string {
	return fmt.Sprintf("booking:%s", code)
}
