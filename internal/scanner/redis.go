package scanner

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard holds the sweep lock in redis so only one bot instance sweeps
// at a time. The lock expires on its own if the holder dies.
type RedisGuard struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisGuard(client *redis.Client, key string, ttl time.Duration, logger *zap.Logger) *RedisGuard {
	if key == "" {
		key = "ticketbot:inactivity-sweep"
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisGuard{client: client, key: key, ttl: ttl, logger: logger}
}

func (g *RedisGuard) Acquire(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, g.key, token, g.ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, g.client, []string{g.key}, token).Err(); err != nil {
			g.logger.Warn("sweep lock release failed", zap.String("key", g.key), zap.Error(err))
		}
	}, true, nil
}
