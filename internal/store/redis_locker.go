package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spigell/profile-fusion/internal/profile"
	"github.com/spigell/profile-fusion/internal/utils"
)

const (
	defaultLockTTL  = 2 * time.Minute
	defaultLockPoll = 100 * time.Millisecond
	lockKeyPrefix   = "profile-fusion:lock:"
	releaseTimeout  = 3 * time.Second
	unlockLuaScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) else return 0 end`
)

// redisClient is the part of *redis.Client the locker needs.
type redisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// RedisOptions configures the Redis locker.
type RedisOptions struct {
	URL  string
	TTL  time.Duration
	Wait time.Duration
	Poll time.Duration
}

// RedisLocker serializes work per key across processes sharing one Redis.
// Locks expire after TTL so a crashed holder cannot block a profile forever.
type RedisLocker struct {
	client redisClient
	ttl    time.Duration
	wait   time.Duration
	poll   time.Duration
	logger *zap.Logger
}

// NewRedisLocker connects to Redis and verifies the connection.
func NewRedisLocker(ctx context.Context, opts RedisOptions, log *zap.Logger) (*RedisLocker, *redis.Client, error) {
	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("redis unreachable at %s: %w", redisOpts.Addr, err)
	}

	return newRedisLocker(client, opts, log), client, nil
}

func newRedisLocker(client redisClient, opts RedisOptions, log *zap.Logger) *RedisLocker {
	if opts.TTL <= 0 {
		opts.TTL = defaultLockTTL
	}
	if opts.Wait <= 0 {
		opts.Wait = defaultLockWait
	}
	if opts.Poll <= 0 {
		opts.Poll = defaultLockPoll
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisLocker{client: client, ttl: opts.TTL, wait: opts.Wait, poll: opts.Poll, logger: log}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	if key == "" {
		return nil, errEmptyKey
	}

	redisKey := lockKeyPrefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("acquiring lock %s: %w", key, err)
		}
		if ok {
			return l.releaser(redisKey, token), nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, profile.ErrConcurrentModification
		}
		if err := utils.WaitFor(ctx, min(l.poll, remaining)); err != nil {
			return nil, err
		}
	}
}

func (l *RedisLocker) releaser(redisKey, token string) func() {
	released := false
	return func() {
		if released {
			return
		}
		released = true

		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()

		if err := l.client.Eval(ctx, unlockLuaScript, []string{redisKey}, token).Err(); err != nil {
			l.logger.Warn("failed to release profile lock", zap.String("key", redisKey), zap.Error(err))
		}
	}
}
