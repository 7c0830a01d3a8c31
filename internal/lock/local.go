package lock

// local.go implements per-key locking inside one process.
//
// Each key gets a one-slot semaphore so two uploads for the same tenant never
// overlap. A second, shared semaphore caps the number of uploads running
// across all tenants. WaitForDrain blocks until every lease is released and
// is used during graceful shutdown.

import (
	"context"
	"sync"
	"time"

	"github.com/JonMunkholm/gradebook/internal/gradebook"
)

type keySlot struct {
	sem  chan struct{}
	refs int
}

// LocalLocker is an in-process gradebook.Locker.
type LocalLocker struct {
	global  chan struct{}
	maxWait time.Duration

	mu     sync.Mutex
	keys   map[string]*keySlot
	active int
}

var _ gradebook.Locker = (*LocalLocker)(nil)

// NewLocalLocker allows at most maxConcurrent leases at once. Acquire waits
// up to maxWait for a busy key or a free slot.
func NewLocalLocker(maxConcurrent int, maxWait time.Duration) *LocalLocker {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if maxWait <= 0 {
		maxWait = DefaultWait
	}
	return &LocalLocker{
		global:  make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
		keys:    make(map[string]*keySlot),
	}
}

// Acquire takes the key. It returns ok=false if the key is still held when
// the wait expires, and ErrTooManyUploads if the key was free but no global
// slot opened in time.
func (l *LocalLocker) Acquire(ctx context.Context, key string) (gradebook.Lease, bool, error) {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	slot := l.ref(key)

	select {
	case slot.sem <- struct{}{}:
	case <-waitCtx.Done():
		l.unref(key)
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, false, nil
	}

	select {
	case l.global <- struct{}{}:
	case <-waitCtx.Done():
		<-slot.sem
		l.unref(key)
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, false, ErrTooManyUploads
	}

	l.mu.Lock()
	l.active++
	l.mu.Unlock()

	return &localLease{l: l, key: key, slot: slot}, true, nil
}

func (l *LocalLocker) ref(key string) *keySlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot, ok := l.keys[key]
	if !ok {
		slot = &keySlot{sem: make(chan struct{}, 1)}
		l.keys[key] = slot
	}
	slot.refs++
	return slot
}

func (l *LocalLocker) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if slot, ok := l.keys[key]; ok {
		slot.refs--
		if slot.refs == 0 {
			delete(l.keys, key)
		}
	}
}

// ActiveCount returns the number of leases currently held.
func (l *LocalLocker) ActiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Available returns the number of free global slots.
func (l *LocalLocker) Available() int {
	return cap(l.global) - len(l.global)
}

// WaitForDrain blocks until all leases are released or ctx is cancelled.
func (l *LocalLocker) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

type localLease struct {
	l    *LocalLocker
	key  string
	slot *keySlot
	once sync.Once
}

// Release frees the key and the global slot. Extra calls are no-ops.
func (lz *localLease) Release(context.Context) error {
	lz.once.Do(func() {
		lz.l.mu.Lock()
		lz.l.active--
		lz.l.mu.Unlock()

		<-lz.l.global
		<-lz.slot.sem
		lz.l.unref(lz.key)
	})
	return nil
}
