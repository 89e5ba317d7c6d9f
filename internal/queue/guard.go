package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultClaimTTL bounds how long a processed message id is remembered.
const DefaultClaimTTL = 24 * time.Hour

// Claimer records that a message is being processed so a redelivery of
// the same id is skipped.
type Claimer interface {
	Claim(ctx context.Context, messageID string) (bool, error)
	Release(ctx context.Context, messageID string) error
}

// RedisClaimer claims message ids with SET NX.  A nil client claims every
// id, which disables the guard when Redis is not configured.
type RedisClaimer struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisClaimer returns a claimer storing keys as
// "<prefix>:claim:<message id>".
func NewRedisClaimer(rdb *redis.Client, prefix string, ttl time.Duration) *RedisClaimer {
	if prefix == "" {
		prefix = "deferred"
	}
	if ttl <= 0 {
		ttl = DefaultClaimTTL
	}
	return &RedisClaimer{rdb: rdb, prefix: prefix, ttl: ttl}
}

// Claim reports whether the caller is the first to process messageID.
func (c *RedisClaimer) Claim(ctx context.Context, messageID string) (bool, error) {
	if c == nil || c.rdb == nil || messageID == "" {
		return true, nil
	}
	ok, err := c.rdb.SetNX(ctx, c.key(messageID), time.Now().UTC().Unix(), c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim message %s: %w", messageID, err)
	}
	return ok, nil
}

func (c *RedisClaimer) key(messageID string) string {
	return c.prefix + ":claim:" + messageID
}

// Release forgets messageID so a redelivery is processed again.
func (c *RedisClaimer) Release(ctx context.Context, messageID string) error {
	if c == nil || c.rdb == nil || messageID == "" {
		return nil
	}
	if err := c.rdb.Del(ctx, c.key(messageID)).Err(); err != nil {
		return fmt.Errorf("release message %s: %w", messageID, err)
	}
	return nil
}
