package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/spigell/profile-fusion/internal/profile"
)

const defaultLockWait = 10 * time.Second

var errEmptyKey = errors.New("lock key is empty")

// Locker grants exclusive access to a profile id. Acquire waits a bounded
// time and fails with profile.ErrConcurrentModification when the key stays
// busy. The returned release func must be called exactly once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// LocalLocker serializes work per key inside one process. Different keys
// never contend.
type LocalLocker struct {
	wait time.Duration

	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  *semaphore.Weighted
	refs int
}

func NewLocalLocker(wait time.Duration) *LocalLocker {
	if wait <= 0 {
		wait = defaultLockWait
	}
	return &LocalLocker{wait: wait, locks: make(map[string]*keyLock)}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	if key == "" {
		return nil, errEmptyKey
	}

	lock := l.ref(key)

	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	if err := lock.sem.Acquire(waitCtx, 1); err != nil {
		l.unref(key)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, profile.ErrConcurrentModification
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			lock.sem.Release(1)
			l.unref(key)
		})
	}, nil
}

func (l *LocalLocker) ref(key string) *keyLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[key]
	if !ok {
		lock = &keyLock{sem: semaphore.NewWeighted(1)}
		l.locks[key] = lock
	}
	lock.refs++
	return lock
}

func (l *LocalLocker) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[key]
	if !ok {
		return
	}
	lock.refs--
	if lock.refs <= 0 {
		delete(l.locks, key)
	}
}

// keys reports how many keys are tracked.
func (l *LocalLocker) keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
