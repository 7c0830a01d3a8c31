package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLocalLocker_SameKeyIsExclusive(t *testing.T) {
	l := NewLocalLocker(5, 50*time.Millisecond)
	ctx := context.Background()

	lease, ok, err := l.Acquire(ctx, "upload:t1")
	if err != nil || !ok {
		t.Fatalf("first Acquire = %v, %v", ok, err)
	}

	start := time.Now()
	_, ok, err = l.Acquire(ctx, "upload:t1")
	if err != nil {
		t.Fatalf("second Acquire error = %v", err)
	}
	if ok {
		t.Fatal("second Acquire on a held key should fail")
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("second Acquire returned after %v, expected it to wait", elapsed)
	}

	if err := lease.Release(ctx); err != nil {
		t.Fatal(err)
	}
	lease, ok, err = l.Acquire(ctx, "upload:t1")
	if err != nil || !ok {
		t.Fatalf("Acquire after Release = %v, %v", ok, err)
	}
	lease.Release(ctx)
}

func TestLocalLocker_DifferentKeysRunTogether(t *testing.T) {
	l := NewLocalLocker(2, 50*time.Millisecond)
	ctx := context.Background()

	a, ok, _ := l.Acquire(ctx, "upload:a")
	if !ok {
		t.Fatal("Acquire(a) failed")
	}
	b, ok, _ := l.Acquire(ctx, "upload:b")
	if !ok {
		t.Fatal("Acquire(b) failed")
	}
	if got := l.ActiveCount(); got != 2 {
		t.Errorf("ActiveCount = %d, want 2", got)
	}
	if got := l.Available(); got != 0 {
		t.Errorf("Available = %d, want 0", got)
	}

	// Global cap reached.
	if _, _, err := l.Acquire(ctx, "upload:c"); !errors.Is(err, ErrTooManyUploads) {
		t.Errorf("Acquire(c) error = %v, want ErrTooManyUploads", err)
	}

	a.Release(ctx)
	b.Release(ctx)
	if got := l.ActiveCount(); got != 0 {
		t.Errorf("ActiveCount after release = %d, want 0", got)
	}
}

func TestLocalLocker_ReleaseIsIdempotent(t *testing.T) {
	l := NewLocalLocker(1, 10*time.Millisecond)
	ctx := context.Background()

	lease, _, _ := l.Acquire(ctx, "k")
	lease.Release(ctx)
	lease.Release(ctx)

	if got := l.Available(); got != 1 {
		t.Errorf("Available = %d, want 1", got)
	}
	if len(l.keys) != 0 {
		t.Errorf("keys map holds %d entries after release, want 0", len(l.keys))
	}
}

func TestLocalLocker_ContextCancelled(t *testing.T) {
	l := NewLocalLocker(1, time.Second)
	held, _, _ := l.Acquire(context.Background(), "k")
	defer held.Release(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, ok, err := l.Acquire(ctx, "k")
	if ok || !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire = %v, %v, want context.Canceled", ok, err)
	}
}

func TestLocalLocker_SerializesHolders(t *testing.T) {
	l := NewLocalLocker(5, time.Second)
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, ok, err := l.Acquire(ctx, "upload:t1")
			if err != nil || !ok {
				t.Errorf("Acquire = %v, %v", ok, err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			lease.Release(ctx)
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxInside)
	}
}

func TestLocalLocker_WaitForDrain(t *testing.T) {
	l := NewLocalLocker(2, time.Second)
	lease, _, _ := l.Acquire(context.Background(), "k")

	go func() {
		time.Sleep(50 * time.Millisecond)
		lease.Release(context.Background())
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.WaitForDrain(ctx); err != nil {
		t.Errorf("WaitForDrain() error = %v", err)
	}
}
