package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/LeventeLantos/message-scheduler/internal/model"
)

const defaultClaimTTL = 5 * time.Minute

type RedisCache struct {
	rdb      *redis.Client
	ttl      time.Duration
	claimTTL time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl, claimTTL: defaultClaimTTL}
}

// WithClaimTTL bounds how long a crashed sweeper can hold an entry.
func (c *RedisCache) WithClaimTTL(ttl time.Duration) *RedisCache {
	if ttl > 0 {
		c.claimTTL = ttl
	}
	return c
}

type sentValue struct {
	Channel   model.Channel `json:"channel"`
	Recipient string        `json:"recipient"`
	RemoteID  string        `json:"remoteId,omitempty"`
	SentAt    time.Time     `json:"sentAt"`
}

func sentKey(id int64) string  { return fmt.Sprintf("msg:%d", id) }
func claimKey(id int64) string { return fmt.Sprintf("claim:%d", id) }

func (c *RedisCache) Claim(ctx context.Context, scheduleID int64) (bool, error) {
	return c.rdb.SetNX(ctx, claimKey(scheduleID), time.Now().UTC().Format(time.RFC3339Nano), c.claimTTL).Result()
}

func (c *RedisCache) Release(ctx context.Context, scheduleID int64) error {
	return c.rdb.Del(ctx, claimKey(scheduleID)).Err()
}

func (c *RedisCache) StoreSent(ctx context.Context, e model.ScheduleEntry, remoteID string, sentAt time.Time) error {
	val := sentValue{
		Channel:   e.Channel,
		Recipient: e.Recipient,
		RemoteID:  remoteID,
		SentAt:    sentAt.UTC(),
	}

	b, err := json.Marshal(val)
	if err != nil {
		return err
	}

	return c.rdb.Set(ctx, sentKey(e.ID), b, c.ttl).Err()
}
