package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/navarch/homing/internal/store"
)

func testClient(st store.Store) *Client {
	return NewClient(st, ClientConfig{
		PollInterval:    5 * time.Millisecond,
		ResponseTimeout: time.Second,
		Keyspace:        "test",
	})
}

func serve(t *testing.T, l *Listener) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

func TestCallRoundTrip(t *testing.T) {
	st := store.NewMemoryStore()
	l := NewListener(st, ListenerConfig{PollInterval: 5 * time.Millisecond, Owner: "srv-1"})
	l.Handle("echo", func(ctx context.Context, args json.RawMessage, ctxt Ctxt) (interface{}, error) {
		if ctxt.PlanID != "plan-1" || ctxt.Keyspace != "test" {
			t.Errorf("ctxt = %+v", ctxt)
		}
		var in map[string]string
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, err
		}
		return map[string]string{"got": in["msg"]}, nil
	})
	defer serve(t, l)()

	var out map[string]string
	err := testClient(st).Call(context.Background(), "plan-1", "echo", map[string]string{"msg": "hi"}, &out)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if out["got"] != "hi" {
		t.Fatalf("out = %v", out)
	}
}

func TestCallRemoteFailure(t *testing.T) {
	st := store.NewMemoryStore()
	l := NewListener(st, ListenerConfig{PollInterval: 5 * time.Millisecond})
	l.Handle("boom", func(ctx context.Context, args json.RawMessage, ctxt Ctxt) (interface{}, error) {
		return nil, errors.New("backend unavailable")
	})
	defer serve(t, l)()

	err := testClient(st).Call(context.Background(), "plan-1", "boom", nil, nil)
	if !errors.Is(err, ErrRemote) {
		t.Fatalf("err = %v, want ErrRemote", err)
	}
}

func TestCallUnknownMethod(t *testing.T) {
	st := store.NewMemoryStore()
	l := NewListener(st, ListenerConfig{PollInterval: 5 * time.Millisecond})
	defer serve(t, l)()

	err := testClient(st).Call(context.Background(), "plan-1", "no_such_method", nil, nil)
	if !errors.Is(err, ErrRemote) {
		t.Fatalf("err = %v, want ErrRemote for unknown method", err)
	}
}

func TestCallTimeout(t *testing.T) {
	st := store.NewMemoryStore()
	// no listener running, so the request row never completes

	c := NewClient(st, ClientConfig{
		PollInterval:    5 * time.Millisecond,
		ResponseTimeout: 30 * time.Millisecond,
	})
	err := c.Call(context.Background(), "plan-1", "echo", nil, nil)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestCallContextCancelled(t *testing.T) {
	st := store.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- testClient(st).Call(ctx, "plan-1", "echo", nil, nil)
	}()
	cancel()
	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("call did not return after cancellation")
	}
}

func TestProcessNextNoWork(t *testing.T) {
	st := store.NewMemoryStore()
	l := NewListener(st, ListenerConfig{})
	processed, err := l.ProcessNext(context.Background())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if processed {
		t.Fatal("processed = true with an empty queue")
	}
}
