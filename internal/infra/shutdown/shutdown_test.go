package shutdown

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func recordHook(mu *sync.Mutex, order *[]string, name string, err error) Hook {
	return func(context.Context) error {
		mu.Lock()
		*order = append(*order, name)
		mu.Unlock()
		return err
	}
}

func TestHandler_Trigger(t *testing.T) {
	h := NewHandler(time.Second, nil)

	var mu sync.Mutex
	var order []string
	h.OnShutdown("cache", recordHook(&mu, &order, "cache", nil))
	h.OnShutdown("lifecycle", recordHook(&mu, &order, "lifecycle", nil))
	h.OnShutdown("http", recordHook(&mu, &order, "http", nil))

	h.Trigger("listener failed")
	h.Trigger("ignored")

	if err := h.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	if got := strings.Join(order, ","); got != "http,lifecycle,cache" {
		t.Errorf("hook order = %s, want reverse registration", got)
	}
	select {
	case <-h.Done():
	default:
		t.Error("Done() not closed after Wait")
	}
}

func TestHandler_ContextCancel(t *testing.T) {
	h := NewHandler(time.Second, nil)

	called := make(chan struct{})
	h.OnShutdown("probe", func(context.Context) error {
		close(called)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.Wait(ctx) }()

	select {
	case <-h.Done():
		t.Fatal("shutdown ran before cancellation")
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Wait() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() did not return after cancel")
	}
	select {
	case <-called:
	default:
		t.Error("hook was not called")
	}
}

func TestHandler_HookErrorsJoined(t *testing.T) {
	h := NewHandler(time.Second, nil)

	var mu sync.Mutex
	var order []string
	errCache := errors.New("badger close failed")
	errHTTP := errors.New("server busy")
	h.OnShutdown("cache", recordHook(&mu, &order, "cache", errCache))
	h.OnShutdown("ok", recordHook(&mu, &order, "ok", nil))
	h.OnShutdown("http", recordHook(&mu, &order, "http", errHTTP))

	h.Trigger("test")
	err := h.Wait(context.Background())

	if !errors.Is(err, errCache) || !errors.Is(err, errHTTP) {
		t.Errorf("Wait() error = %v, want both hook errors", err)
	}
	if len(order) != 3 {
		t.Errorf("ran %d hooks, want all 3", len(order))
	}
	if !strings.Contains(err.Error(), "cache: badger close failed") {
		t.Errorf("error %q does not name the hook", err)
	}
}

func TestHandler_HookDeadline(t *testing.T) {
	h := NewHandler(30*time.Millisecond, nil)

	h.OnShutdown("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	h.Trigger("test")
	start := time.Now()
	err := h.Wait(context.Background())

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want deadline exceeded", err)
	}
	if time.Since(start) > time.Second {
		t.Error("hook deadline not applied")
	}
}
