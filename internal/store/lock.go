package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrLockBusy is returned when a project lock could not be taken in time.
var ErrLockBusy = errors.New("project is locked by another invoice request")

// Locker serializes invoice creation per project, so the history a request
// assembles against is the history it appends to.
type Locker interface {
	// Lock blocks until the project is held or ctx ends. The returned func
	// releases the lock and must be called exactly once.
	Lock(ctx context.Context, projectID string) (unlock func(), err error)
}

// LocalLocker serializes within one process.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]chan struct{})}
}

func (l *LocalLocker) slot(projectID string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.slots[projectID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[projectID] = ch
	}
	return ch
}

func (l *LocalLocker) Lock(ctx context.Context, projectID string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("lock project %s: %w: %w", projectID, ErrLockBusy, err)
	}
	ch := l.slot(projectID)
	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("lock project %s: %w: %w", projectID, ErrLockBusy, ctx.Err())
	}
}
