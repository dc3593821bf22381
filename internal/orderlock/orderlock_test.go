package orderlock

import (
	"context"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutexSerializesSameOrder(t *testing.T) {
	km := NewKeyedMutex()
	orderID := snowflake.ID(1)

	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			km.Lock(orderID)
			counter++
			km.Unlock(orderID)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestKeyedMutexDropsIdleEntries(t *testing.T) {
	km := NewKeyedMutex()

	km.Lock(snowflake.ID(1))
	km.Lock(snowflake.ID(2))
	km.Unlock(snowflake.ID(1))
	km.Unlock(snowflake.ID(2))

	km.mu.Lock()
	defer km.mu.Unlock()
	assert.Empty(t, km.locks, "released entries must not accumulate")
}

func TestKeyedMutexIndependentOrders(t *testing.T) {
	km := NewKeyedMutex()

	km.Lock(snowflake.ID(1))

	done := make(chan struct{})
	go func() {
		km.Lock(snowflake.ID(2))
		km.Unlock(snowflake.ID(2))
		close(done)
	}()

	<-done // a different order must not wait on order 1's lock
	km.Unlock(snowflake.ID(1))
}

func TestGuardWithoutRedisUsesKeyedMutex(t *testing.T) {
	g := NewGuard(nil)

	release, err := g.Acquire(context.Background(), snowflake.ID(7))
	require.NoError(t, err)
	release()

	release, err = g.Acquire(context.Background(), snowflake.ID(7))
	require.NoError(t, err)
	release()
}
