package discovery

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLoopRunsInOrder(t *testing.T) {
	loop := NewLoop(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		if !loop.Post(func() { got = append(got, i) }) {
			t.Fatal("Post before Run should queue")
		}
	}
	go loop.Run(ctx)

	if err := loop.Call(ctx, func() {}); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("got %v, want ascending order", got)
		}
	}
	if len(got) != 5 {
		t.Fatalf("ran %d functions, want 5", len(got))
	}
}

func TestLoopAfterStop(t *testing.T) {
	loop := NewLoop(1)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- loop.Run(ctx) }()
	cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}

	if loop.Post(func() {}) {
		t.Error("Post after stop should report false")
	}
	if err := loop.Call(context.Background(), func() {}); !errors.Is(err, ErrLoopStopped) {
		t.Errorf("Call() error = %v, want ErrLoopStopped", err)
	}
}

func TestLoopCallHonorsContext(t *testing.T) {
	loop := NewLoop(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// Nothing runs the loop, so Call times out after queuing.
	if err := loop.Call(ctx, func() {}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Call() error = %v, want deadline exceeded", err)
	}
}
