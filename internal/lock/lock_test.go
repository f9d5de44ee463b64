package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestLocalTryLock(t *testing.T) {
	l := NewLocal()
	if !l.TryLock("proposal-1") {
		t.Fatal("expected first TryLock to succeed")
	}
	if l.TryLock("proposal-1") {
		t.Fatal("expected second TryLock to fail")
	}
	if !l.TryLock("proposal-2") {
		t.Fatal("distinct keys should not conflict")
	}
	l.Unlock("proposal-1")
	if !l.TryLock("proposal-1") {
		t.Fatal("expected TryLock after Unlock to succeed")
	}
}

func TestLocalLockSerializes(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Lock(ctx, "proposal-1")
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Errorf("expected at most one holder at a time, saw %d", maxSeen)
	}
}

func TestLocalLockHonorsContext(t *testing.T) {
	l := NewLocal()
	l.TryLock("busy")

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	_, err := l.Lock(ctx, "busy")
	if !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("expected ErrNotAcquired, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error to be wrapped, got %v", err)
	}
}

func TestRedisLockConnectionError(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := NewRedis(client, time.Second).Lock(ctx, "proposal-1"); err == nil {
		t.Fatal("expected an error when redis is unreachable")
	}
}

var _ Locker = (*Local)(nil)
var _ Locker = (*Redis)(nil)
