// Package orderlock serializes lifecycle event handling per order. The state
// machine assumes at most one in-flight apply per order; different orders
// stay fully independent.
package orderlock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

var ErrOrderBusy = errors.New("order_busy")

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Locker holds a short-lived per-order lock in redis so concurrent webhook
// deliveries across processes cannot interleave on one order. The token
// guards release: only the holder's release deletes the key.
type Locker struct {
	client *redis.Client
	script *redis.Script
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
	}
}

func lockKey(orderID snowflake.ID) string {
	return "checkout:order_lock:" + orderID.String()
}

func (l *Locker) TryLock(ctx context.Context, orderID snowflake.ID, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, errors.New("lock client not configured")
	}
	if orderID == 0 {
		return "", false, errors.New("lock order id is empty")
	}
	if ttl <= 0 {
		return "", false, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, lockKey(orderID), token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l *Locker) Release(ctx context.Context, orderID snowflake.ID, token string) error {
	if l == nil || l.client == nil {
		return nil
	}
	if orderID == 0 || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{lockKey(orderID)}, token).Err()
}

// KeyedMutex is the in-process fallback when no redis client is configured.
// Entries are reference counted and dropped once the last holder unlocks, so
// the map does not grow with order history.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[snowflake.ID]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[snowflake.ID]*entry)}
}

func (k *KeyedMutex) Lock(orderID snowflake.ID) {
	k.mu.Lock()
	e, ok := k.locks[orderID]
	if !ok {
		e = &entry{}
		k.locks[orderID] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
}

func (k *KeyedMutex) Unlock(orderID snowflake.ID) {
	k.mu.Lock()
	e, ok := k.locks[orderID]
	if ok {
		e.refs--
		if e.refs <= 0 {
			delete(k.locks, orderID)
		}
	}
	k.mu.Unlock()

	if ok {
		e.mu.Unlock()
	}
}

// Guard serializes one order across both layers: the keyed mutex always, the
// redis lock when available. It returns a release func and ErrOrderBusy when
// another process holds the distributed lock.
type Guard struct {
	Mutex  *KeyedMutex
	Locker *Locker
	TTL    time.Duration
}

func NewGuard(locker *Locker) *Guard {
	return &Guard{
		Mutex:  NewKeyedMutex(),
		Locker: locker,
		TTL:    30 * time.Second,
	}
}

func (g *Guard) Acquire(ctx context.Context, orderID snowflake.ID) (func(), error) {
	g.Mutex.Lock(orderID)

	if g.Locker == nil {
		return func() { g.Mutex.Unlock(orderID) }, nil
	}

	token, ok, err := g.Locker.TryLock(ctx, orderID, g.TTL)
	if err != nil {
		g.Mutex.Unlock(orderID)
		return nil, err
	}
	if !ok {
		g.Mutex.Unlock(orderID)
		return nil, ErrOrderBusy
	}

	return func() {
		// release outlives a cancelled request context
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = g.Locker.Release(releaseCtx, orderID, token)
		g.Mutex.Unlock(orderID)
	}, nil
}
