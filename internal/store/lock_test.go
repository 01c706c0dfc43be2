package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestLocalLockerSerializes(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "p1")
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
			unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Errorf("%d holders at once, want 1", maxSeen)
	}
}

func TestLocalLockerTimeout(t *testing.T) {
	l := NewLocalLocker()
	unlock, err := l.Lock(context.Background(), "p1")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "p1"); !errors.Is(err, ErrLockBusy) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want ErrLockBusy", err)
	}

	// other projects are independent
	other, err := l.Lock(context.Background(), "p2")
	if err != nil {
		t.Fatalf("p2: %v", err)
	}
	other()

	unlock()
	unlock() // second call is a no-op
	again, err := l.Lock(context.Background(), "p1")
	if err != nil {
		t.Fatal(err)
	}
	again()
}

func TestLocalLockerCanceledCallerNeverLocks(t *testing.T) {
	l := NewLocalLocker()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 50; i++ {
		if unlock, err := l.Lock(ctx, "free"); !errors.Is(err, ErrLockBusy) || !errors.Is(err, context.Canceled) {
			if unlock != nil {
				unlock()
			}
			t.Fatalf("attempt %d: err = %v, want ErrLockBusy", i, err)
		}
	}

	unlock, err := l.Lock(context.Background(), "free")
	if err != nil {
		t.Fatalf("lock after canceled attempts: %v", err)
	}
	unlock()
}
