package price

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const redisKeyPrefix = "wicksy:price:"

// RedisEntries keeps cache entries in redis so several bot processes share one fetch per symbol.
// Keys expire after the TTL; the cache still checks FetchedAt against its own clock.
type RedisEntries struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisEntries(client *redis.Client, ttl time.Duration) *RedisEntries {
	return &RedisEntries{client: client, ttl: ttl}
}

func (r *RedisEntries) Load(ctx context.Context, symbol string) (Entry, bool) {
	data, err := r.client.Get(ctx, redisKeyPrefix+symbol).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warnf("⚠️ Redis price cache read failed for %s: %v", symbol, err)
		}
		return Entry{}, false
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		log.Warnf("⚠️ Corrupt price cache entry for %s: %v", symbol, err)
		return Entry{}, false
	}
	return e, true
}

func (r *RedisEntries) Store(ctx context.Context, symbol string, e Entry) {
	data, err := json.Marshal(e)
	if err != nil {
		log.Warnf("⚠️ Failed to encode price cache entry for %s: %v", symbol, err)
		return
	}
	if err := r.client.Set(ctx, redisKeyPrefix+symbol, data, r.ttl).Err(); err != nil {
		log.Warnf("⚠️ Redis price cache write failed for %s: %v", symbol, err)
	}
}
