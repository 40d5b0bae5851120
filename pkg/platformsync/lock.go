package platformsync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker serializes work per key using Redis SETNX-style advisory
// locks, per spec §5: a second tick that finds a sync already in
// flight for the same (user, platform) skips rather than blocks.
// Reused by pkg/signal (per-user) and pkg/deliverable (per-deliverable).
type Locker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLocker wraps client with a default lock TTL, so a crashed holder
// never wedges a key forever.
func NewLocker(client *redis.Client, ttl time.Duration) *Locker {
	return &Locker{client: client, ttl: ttl}
}

// TryLock attempts to acquire key, returning a random token that must
// be passed to Unlock, and ok=false if another holder already has it.
func (l *Locker) TryLock(ctx context.Context, key string) (token string, ok bool, err error) {
	token = uuid.NewString()
	acquired, err := l.client.SetNX(ctx, lockKey(key), token, l.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire lock %q: %w", key, err)
	}
	return token, acquired, nil
}

// Unlock releases key only if token matches the current holder, so a
// lock that already expired and was re-acquired by someone else isn't
// released out from under them.
func (l *Locker) Unlock(ctx context.Context, key, token string) error {
	const script = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`
	if err := l.client.Eval(ctx, script, []string{lockKey(key)}, token).Err(); err != nil {
		return fmt.Errorf("failed to release lock %q: %w", key, err)
	}
	return nil
}

func lockKey(key string) string {
	return "yarnnn:lock:" + key
}

// SyncLockKey builds the (user, platform) lock key used by the sync
// engine.
func SyncLockKey(userID uuid.UUID, platform string) string {
	return fmt.Sprintf("sync:%s:%s", userID, platform)
}

// SignalLockKey builds the per-user lock key used by the signal
// orchestrator, so a second tick never starts a second signal pass for
// a user while one is in flight (spec §5).
func SignalLockKey(userID uuid.UUID) string {
	return fmt.Sprintf("signal:%s", userID)
}

// DeliverableLockKey builds the per-deliverable lock key used by the
// generation engine, so at most one generation runs for a deliverable
// at a time (spec §5).
func DeliverableLockKey(deliverableID uuid.UUID) string {
	return fmt.Sprintf("deliverable:%s", deliverableID)
}
