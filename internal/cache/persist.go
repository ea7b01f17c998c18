// internal/cache/persist.go
package cache

import (
	"context"
	"time"

	"fridgetrack-sync/internal/common/database"
)

// Persister stores JSON snapshots of successful fetches so a new process can
// start from the last known values. Hydrated values are always treated as
// stale.
type Persister interface {
	Load(ctx context.Context, hash string) ([]byte, bool, error)
	Save(ctx context.Context, hash string, data []byte) error
	Delete(ctx context.Context, hash string) error
}

const redisKeyPrefix = "fridgetrack:query:"

// RedisPersister keeps snapshots in Redis under fridgetrack:query:<hash>.
type RedisPersister struct {
	client *database.RedisClient
	ttl    time.Duration
}

func NewRedisPersister(client *database.RedisClient, ttl time.Duration) *RedisPersister {
	return &RedisPersister{client: client, ttl: ttl}
}

func (p *RedisPersister) Load(ctx context.Context, hash string) ([]byte, bool, error) {
	return p.client.GetBytes(ctx, redisKeyPrefix+hash)
}

func (p *RedisPersister) Save(ctx context.Context, hash string, data []byte) error {
	return p.client.Set(ctx, redisKeyPrefix+hash, data, p.ttl)
}

func (p *RedisPersister) Delete(ctx context.Context, hash string) error {
	return p.client.Del(ctx, redisKeyPrefix+hash)
}

// Purge removes every persisted snapshot.
func (p *RedisPersister) Purge(ctx context.Context) error {
	_, err := p.client.DelPattern(ctx, redisKeyPrefix+"*")
	return err
}
