package lockregistry

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// extendScript resets the expiry only while the key still holds the caller's token.
var extendScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// RedisRegistry shares account locks between instances. Every acquisition gets its own token, so a
// stale holder can neither extend nor release a lock someone else took after expiry.
type RedisRegistry struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

var _ Locker = (*RedisRegistry)(nil)

// NewRedis stores locks under prefix + "account:<id>".
func NewRedis(client *redis.Client, ttl time.Duration, prefix string) *RedisRegistry {
	return &RedisRegistry{
		client: client,
		ttl:    ttl,
		prefix: prefix,
	}
}

func (r *RedisRegistry) TTL() time.Duration { return r.ttl }

func (r *RedisRegistry) key(accountID int64) string {
	return fmt.Sprintf("%saccount:%d", r.prefix, accountID)
}

func (r *RedisRegistry) TryAcquire(ctx context.Context, accountID int64) (Lease, bool, error) {
	const op = "lockregistry.Redis.TryAcquire"
	lease := Lease{AccountID: accountID, Token: uuid.NewString()}

	ok, err := r.client.SetNX(ctx, r.key(accountID), lease.Token, r.ttl).Result()
	if err != nil {
		return Lease{}, false, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return Lease{}, false, nil
	}
	return lease, true, nil
}

func (r *RedisRegistry) Extend(ctx context.Context, lease Lease) (bool, error) {
	const op = "lockregistry.Redis.Extend"
	n, err := extendScript.Run(ctx, r.client, []string{r.key(lease.AccountID)}, lease.Token, r.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}

func (r *RedisRegistry) Release(ctx context.Context, lease Lease) error {
	const op = "lockregistry.Redis.Release"
	if lease.Token == "" {
		return nil
	}
	if err := releaseScript.Run(ctx, r.client, []string{r.key(lease.AccountID)}, lease.Token).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
