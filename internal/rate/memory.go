package rate

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryLimiter: ventana fija en memoria sobre go-cache. Solo vale para
// despliegues de una instancia; con varias réplicas usar RedisLimiter.
type MemoryLimiter struct {
	cache  *gocache.Cache
	config Config
}

func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	return &MemoryLimiter{
		cache:  gocache.New(cfg.RateInterval, 2*cfg.RateInterval),
		config: cfg,
	}
}

func (l *MemoryLimiter) Consume(_ context.Context, organizationID string) (Status, error) {
	now := time.Now().UTC()
	winStart := now.Truncate(l.config.RateInterval)
	key := fmt.Sprintf("%s:%d", organizationID, winStart.Unix())

	if err := l.cache.Add(key, int64(1), l.config.RateInterval); err == nil {
		return l.config.status(1), nil
	}
	hits, err := l.cache.IncrementInt64(key, 1)
	if err != nil {
		// la ventana expiró entre Add e Increment: contamos como primer hit
		l.cache.Set(key, int64(1), l.config.RateInterval)
		return l.config.status(1), nil
	}
	return l.config.status(hits), nil
}
