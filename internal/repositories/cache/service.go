package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotHeld is returned when releasing a lock owned by someone else or
// already expired.
var ErrNotHeld = errors.New("lock not held")

// Only the holder's token may delete the key.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock is a held lock; Release gives it back.
type Lock interface {
	Key() string
	Release(ctx context.Context) error
}

type redisLock struct {
	client redis.UniversalClient
	key    string
	token  string
}

func (l *redisLock) Key() string {
	return l.key
}

func (l *redisLock) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int()
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.key, err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

// LockService hands out TTL-bounded single-holder locks on redis keys.
type LockService struct {
	client redis.UniversalClient
	prefix string
}

func NewLockService(client redis.UniversalClient, prefix string) *LockService {
	if client == nil {
		panic("redis client is required")
	}
	return &LockService{client: client, prefix: prefix}
}

// TryAcquire takes the lock if free. It returns (nil, nil) when another
// holder has it.
func (s *LockService) TryAcquire(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	full := s.prefix + key
	token := uuid.NewString()
	ok, err := s.client.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", full, err)
	}
	if !ok {
		return nil, nil
	}
	return &redisLock{client: s.client, key: full, token: token}, nil
}
