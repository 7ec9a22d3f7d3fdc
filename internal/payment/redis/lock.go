package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-paycom/internal/logger"
	"ms-paycom/internal/utils"
)

const (
	lockPrefix = "payment_lock:"

	DefaultLockTTL = 30 * time.Second
)

// releaseScript deletes the key only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker serializes operations on a payment across service instances.
type Locker struct {
	Client *redis.Client
	TTL    time.Duration
	Logger *logger.Logger
}

func NewLocker(client *redis.Client, ttl time.Duration, log *logger.Logger) *Locker {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &Locker{Client: client, TTL: ttl, Logger: log}
}

func lockKey(paymentID string) string {
	return lockPrefix + paymentID
}

// Acquire takes the lock for paymentID. ok is false when another owner holds
// it. The returned token must be passed to Release.
func (l *Locker) Acquire(ctx context.Context, paymentID string) (string, bool, error) {
	token := utils.GenerateUUID()
	ok, err := l.Client.SetNX(ctx, lockKey(paymentID), token, l.TTL).Result()
	if err != nil {
		return "", false, fmt.Errorf("lock payment %s: %w", paymentID, err)
	}
	if !ok {
		l.Logger.LogLock("BUSY", paymentID)
		return "", false, nil
	}
	l.Logger.LogLock("ACQUIRED", paymentID)
	return token, true, nil
}

// Release drops the lock if token still owns it. Releasing an expired or
// foreign lock is a no-op.
func (l *Locker) Release(ctx context.Context, paymentID, token string) error {
	n, err := releaseScript.Run(ctx, l.Client, []string{lockKey(paymentID)}, token).Int()
	if err != nil {
		return fmt.Errorf("unlock payment %s: %w", paymentID, err)
	}
	if n == 0 {
		l.Logger.Warn("LOCK", fmt.Sprintf("lock for payment %s was no longer held by this owner", paymentID))
		return nil
	}
	l.Logger.LogLock("RELEASED", paymentID)
	return nil
}

// IsLocked reports whether any owner currently holds the lock.
func (l *Locker) IsLocked(ctx context.Context, paymentID string) (bool, error) {
	_, err := l.Client.Get(ctx, lockKey(paymentID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// WatchExpiredLocks reports payment locks that expired instead of being
// released, which means an operation outlived the TTL. It needs keyspace
// notifications ("Ex") and returns when ctx is done.
func (l *Locker) WatchExpiredLocks(ctx context.Context, onExpired func(paymentID string)) {
	if err := l.Client.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err(); err != nil {
		l.Logger.Warn("REDIS", fmt.Sprintf("Failed to enable keyspace notifications: %v", err))
	}

	channel := fmt.Sprintf("__keyevent@%d__:expired", l.Client.Options().DB)
	pubsub := l.Client.PSubscribe(ctx, channel)
	l.Logger.Info("REDIS", "Subscribed to "+channel)

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if paymentID, ok := PaymentIDFromLockKey(msg.Payload); ok {
					l.Logger.Warn("LOCK", fmt.Sprintf("lock for payment %s expired before release", paymentID))
					if onExpired != nil {
						onExpired(paymentID)
					}
				}
			}
		}
	}()
}

// PaymentIDFromLockKey extracts the payment id from a lock key.
func PaymentIDFromLockKey(key string) (string, bool) {
	if !strings.HasPrefix(key, lockPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(key, lockPrefix)
	return id, id != ""
}
