package browser

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeHandle struct {
	pingErr error
	closed  atomic.Bool
}

func (f *fakeHandle) Navigate(ctx context.Context, url string) error { return nil }
func (f *fakeHandle) WaitURLContains(ctx context.Context, frag string) error { return nil }
func (f *fakeHandle) WaitElement(ctx context.Context, selector string) error { return nil }
func (f *fakeHandle) HTML(ctx context.Context) (string, error) { return "<html></html>", nil }
func (f *fakeHandle) Ping(ctx context.Context) error { return f.pingErr }
func (f *fakeHandle) Close() error {
	f.closed.Store(true)
	return nil
}

func TestLazyLaunchAndReuse(t *testing.T) {
	var launches int
	h := &fakeHandle{}
	m := NewManager(func(ctx context.Context) (Handle, error) {
		launches++
		return h, nil
	}, discardLogger())

	if launches != 0 {
		t.Fatal("browser must not start before first use")
	}
	for i := 0; i < 3; i++ {
		if err := m.Do(context.Background(), func(Tab) error { return nil }); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
	}
	if launches != 1 {
		t.Errorf("launches = %d, want 1", launches)
	}
}

func TestRestartOnFailedProbe(t *testing.T) {
	dead := &fakeHandle{pingErr: errors.New("target closed")}
	fresh := &fakeHandle{}
	handles := []*fakeHandle{dead, fresh}
	var launches int
	m := NewManager(func(ctx context.Context) (Handle, error) {
		h := handles[launches]
		launches++
		return h, nil
	}, discardLogger())

	// primeiro uso sobe o handle "morto"
	if err := m.Do(context.Background(), func(Tab) error { return nil }); err != nil {
		t.Fatalf("first Do() error = %v", err)
	}

	var used Tab
	if err := m.Do(context.Background(), func(tab Tab) error { used = tab; return nil }); err != nil {
		t.Fatalf("second Do() error = %v", err)
	}
	if launches != 2 {
		t.Errorf("launches = %d, want 2", launches)
	}
	if !dead.closed.Load() {
		t.Error("dead handle should be closed before restart")
	}
	if used != Tab(fresh) {
		t.Error("second Do() should run on the restarted handle")
	}
}

func TestSessionUnavailableAfterSingleRestart(t *testing.T) {
	var launches int
	m := NewManager(func(ctx context.Context) (Handle, error) {
		launches++
		return nil, errors.New("chromium not found")
	}, discardLogger())

	called := false
	err := m.Do(context.Background(), func(Tab) error { called = true; return nil })
	if !errors.Is(err, ErrSessionUnavailable) {
		t.Fatalf("Do() error = %v, want ErrSessionUnavailable", err)
	}
	if called {
		t.Error("fn must not run without a session")
	}
	if launches != 1 {
		t.Errorf("launches = %d, want exactly 1 per acquisition", launches)
	}
}

func TestFailedRestartReportsUnavailableAndRetriesLater(t *testing.T) {
	dead := &fakeHandle{pingErr: errors.New("target closed")}
	fresh := &fakeHandle{}
	var launches int
	m := NewManager(func(ctx context.Context) (Handle, error) {
		launches++
		switch launches {
		case 1:
			return dead, nil
		case 2:
			return nil, errors.New("chromium crashed")
		default:
			return fresh, nil
		}
	}, discardLogger())

	if err := m.Do(context.Background(), func(Tab) error { return nil }); err != nil {
		t.Fatalf("first Do() error = %v", err)
	}

	called := false
	err := m.Do(context.Background(), func(Tab) error { called = true; return nil })
	if !errors.Is(err, ErrSessionUnavailable) {
		t.Fatalf("Do() after failed restart error = %v, want ErrSessionUnavailable", err)
	}
	if called {
		t.Error("fn must not run without a session")
	}
	if !dead.closed.Load() {
		t.Error("unresponsive handle should be closed")
	}
	if launches != 2 {
		t.Errorf("launches = %d, want 2 (single restart per acquisition)", launches)
	}

	var used Tab
	if err := m.Do(context.Background(), func(tab Tab) error { used = tab; return nil }); err != nil {
		t.Fatalf("Do() after recovery error = %v", err)
	}
	if launches != 3 || used != Tab(fresh) {
		t.Errorf("launches = %d, want 3 with the new handle in use", launches)
	}
}

func TestDoIsExclusive(t *testing.T) {
	m := NewManager(func(ctx context.Context) (Handle, error) { return &fakeHandle{}, nil }, discardLogger())

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Do(context.Background(), func(Tab) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					cur := atomic.LoadInt32(&maxInside)
					if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
		}()
	}
	wg.Wait()
	if maxInside != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxInside)
	}
}

func TestDoHonoursContextWhileWaiting(t *testing.T) {
	m := NewManager(func(ctx context.Context) (Handle, error) { return &fakeHandle{}, nil }, discardLogger())

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = m.Do(context.Background(), func(Tab) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := m.Do(ctx, func(Tab) error { return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Do() error = %v, want deadline exceeded", err)
	}
	close(release)
}

func TestCloseDisposesAndRejectsFurtherUse(t *testing.T) {
	h := &fakeHandle{}
	m := NewManager(func(ctx context.Context) (Handle, error) { return h, nil }, discardLogger())
	if err := m.Do(context.Background(), func(Tab) error { return nil }); err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	if err := m.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !h.closed.Load() {
		t.Error("handle should be closed")
	}
	if err := m.Do(context.Background(), func(Tab) error { return nil }); !errors.Is(err, ErrSessionUnavailable) {
		t.Errorf("Do() after Close error = %v, want ErrSessionUnavailable", err)
	}
}

func TestCloseForcesShutdownWhenOperationHangs(t *testing.T) {
	h := &fakeHandle{}
	m := NewManager(func(ctx context.Context) (Handle, error) { return h, nil }, discardLogger())

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = m.Do(context.Background(), func(Tab) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_ = m.Close(ctx)
	if !h.closed.Load() {
		t.Error("handle should be closed even while an operation holds the lock")
	}
}
