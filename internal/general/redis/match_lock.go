package redis

import (
	"context"
	"fmt"
	"time"

	"isuride/internal/ports"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const (
	matchLockKey = "isuride:matching:lock"
	// DefaultMatchLockTTL outlives any matching round; a crashed holder frees it on expiry.
	DefaultMatchLockTTL = 5 * time.Second
)

// release deletes the key only if it still holds our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// MatchLock is a SET NX PX lock shared by every matcher process.
type MatchLock struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewMatchLock returns a ports.MatchLock over client.
func NewMatchLock(client *goredis.Client, ttl time.Duration) ports.MatchLock {
	if ttl <= 0 {
		ttl = DefaultMatchLockTTL
	}
	return &MatchLock{client: client, ttl: ttl}
}

func (lock *MatchLock) TryLock(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := lock.client.SetNX(ctx, matchLockKey, token, lock.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire match lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// release even if the round's ctx was cancelled
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, lock.client, []string{matchLockKey}, token).Err()
	}
	return release, true, nil
}
