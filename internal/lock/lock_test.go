package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

func exerciseLocker(t *testing.T, l Locker) {
	ctx := context.Background()
	key := "account:" + uuid.NewString()

	unlock, ok, err := l.TryLock(ctx, key)
	if err != nil || !ok {
		t.Fatalf("first TryLock = %v, %v", ok, err)
	}

	if _, ok, err := l.TryLock(ctx, key); err != nil || ok {
		t.Fatalf("second TryLock should fail while held, got ok=%v err=%v", ok, err)
	}

	other, ok, err := l.TryLock(ctx, key+":other")
	if err != nil || !ok {
		t.Fatalf("independent key should be free, got ok=%v err=%v", ok, err)
	}
	other()

	waitCtx, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(waitCtx, key); err == nil {
		t.Fatal("Lock should time out while the key is held")
	}

	unlock()
	unlock()

	again, ok, err := l.TryLock(ctx, key)
	if err != nil || !ok {
		t.Fatalf("TryLock after release = %v, %v", ok, err)
	}
	again()
}

func TestLocal(t *testing.T) {
	exerciseLocker(t, NewLocal())
}

func TestLocalSerializes(t *testing.T) {
	l := NewLocal()
	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "credentials:1")
			if err != nil {
				t.Error(err)
				return
			}
			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	if maxSeen.Load() != 1 {
		t.Errorf("expected at most one holder, saw %d", maxSeen.Load())
	}
	if l.Held("credentials:1") {
		t.Error("key should be free after all holders released")
	}
	if len(l.slots) != 0 {
		t.Errorf("expected slots to be cleaned up, have %d", len(l.slots))
	}
}

func newTestRedis(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	r := NewRedis(client, ttl)
	r.retry = 10 * time.Millisecond
	return r, mr
}

func TestRedis(t *testing.T) {
	r, _ := newTestRedis(t, 5*time.Second)
	exerciseLocker(t, r)
}

func TestRedisLockKey(t *testing.T) {
	r, mr := newTestRedis(t, 5*time.Second)

	unlock, ok, err := r.TryLock(context.Background(), "sync:acct-1")
	if err != nil || !ok {
		t.Fatalf("TryLock = %v, %v", ok, err)
	}
	key := redisKeyPrefix + "sync:acct-1"
	if !mr.Exists(key) {
		t.Fatalf("expected %s to be set", key)
	}
	if ttl := mr.TTL(key); ttl <= 0 || ttl > 5*time.Second {
		t.Errorf("TTL = %s, want a positive expiry up to 5s", ttl)
	}

	unlock()
	if mr.Exists(key) {
		t.Error("unlock should delete the key")
	}
}

func TestRedisReleaseChecksToken(t *testing.T) {
	r, mr := newTestRedis(t, time.Second)
	ctx := context.Background()
	key := redisKeyPrefix + "sync:acct-2"

	stale, ok, err := r.TryLock(ctx, "sync:acct-2")
	if err != nil || !ok {
		t.Fatalf("TryLock = %v, %v", ok, err)
	}

	mr.FastForward(2 * time.Second)
	if mr.Exists(key) {
		t.Fatal("lock should expire after its TTL")
	}

	fresh, ok, err := r.TryLock(ctx, "sync:acct-2")
	if err != nil || !ok {
		t.Fatalf("TryLock after expiry = %v, %v", ok, err)
	}
	owner, _ := mr.Get(key)

	stale()
	if got, _ := mr.Get(key); got != owner {
		t.Fatalf("expired holder released the new owner's lock: value %q, want %q", got, owner)
	}
	if _, ok, _ := r.TryLock(ctx, "sync:acct-2"); ok {
		t.Error("key should still be held by the new owner")
	}

	fresh()
	if mr.Exists(key) {
		t.Error("owner release should delete the key")
	}
}

func TestRedisUnavailable(t *testing.T) {
	r, mr := newTestRedis(t, time.Second)
	mr.Close()

	if _, _, err := r.TryLock(context.Background(), "sync:acct-3"); err == nil {
		t.Fatal("expected an error when redis is down")
	}
}
