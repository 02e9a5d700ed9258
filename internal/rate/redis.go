package rate

import (
	"context"
	"fmt"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

// RedisLimiter: fixed window sencillo (INCR + EXPIRE), ventana compartida
// entre todas las instancias del auth server.
type RedisLimiter struct {
	Client *rdb.Client
	Prefix string
	Config Config
}

func NewRedisLimiter(client *rdb.Client, prefix string, cfg Config) *RedisLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisLimiter{Client: client, Prefix: prefix, Config: cfg}
}

func (l *RedisLimiter) Consume(ctx context.Context, organizationID string) (Status, error) {
	now := time.Now().UTC()
	winStart := now.Truncate(l.Config.RateInterval)
	key := fmt.Sprintf("%s%s:%d", l.Prefix, organizationID, winStart.Unix())

	pipe := l.Client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return Status{}, err
	}

	// set expiry on first hit
	if incr.Val() == 1 {
		_ = l.Client.Expire(ctx, key, l.Config.RateInterval).Err()
	}

	return l.Config.status(incr.Val()), nil
}
