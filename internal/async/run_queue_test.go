package async

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunQueueSerializesAndCoalesces(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	var runs []Trigger
	running, maxRunning := 0, 0

	q := NewRunQueue(context.Background(), func(ctx context.Context, tr Trigger) error {
		mu.Lock()
		running++
		if running > maxRunning {
			maxRunning = running
		}
		runs = append(runs, tr)
		first := len(runs) == 1
		mu.Unlock()
		if first {
			<-release
		}
		mu.Lock()
		running--
		mu.Unlock()
		return nil
	}, quiet())

	if err := q.Enqueue(context.Background(), Trigger{Reason: "a", Paths: []string{"1"}}); err != nil {
		t.Fatal(err)
	}
	// wait for the first run to start
	deadline := time.Now().Add(5 * time.Second)
	for {
		mu.Lock()
		n := len(runs)
		mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first run never started")
		}
		time.Sleep(5 * time.Millisecond)
	}
	for _, p := range []string{"2", "3", "4"} {
		if err := q.Enqueue(context.Background(), Trigger{Reason: "b", Paths: []string{p}}); err != nil {
			t.Fatal(err)
		}
	}
	close(release)

	deadline = time.Now().Add(5 * time.Second)
	for {
		mu.Lock()
		n := len(runs)
		mu.Unlock()
		if n == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("runs = %d, want 2", n)
		}
		time.Sleep(5 * time.Millisecond)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Shutdown(ctx)

	mu.Lock()
	defer mu.Unlock()
	if maxRunning != 1 {
		t.Errorf("max concurrent runs = %d", maxRunning)
	}
	if len(runs) != 2 || len(runs[1].Paths) != 3 {
		t.Fatalf("runs = %+v", runs)
	}
	if err := q.Enqueue(context.Background(), Trigger{Reason: "late"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("enqueue after shutdown = %v", err)
	}
}

func TestRunQueueShutdownCancelsRun(t *testing.T) {
	started := make(chan struct{})
	q := NewRunQueue(context.Background(), func(ctx context.Context, _ Trigger) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}, quiet())
	if err := q.Enqueue(context.Background(), Trigger{Reason: "x"}); err != nil {
		t.Fatal(err)
	}
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() { q.Shutdown(ctx); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not return")
	}
}

func TestRunQueueRunTimeout(t *testing.T) {
	got := make(chan error, 1)
	var q Queue = NewRunQueue(context.Background(), func(ctx context.Context, _ Trigger) error {
		select {
		case <-ctx.Done():
			got <- ctx.Err()
		case <-time.After(5 * time.Second):
			got <- nil
		}
		return nil
	}, quiet(), WithRunTimeout(20*time.Millisecond))
	defer q.Shutdown(context.Background())

	if err := q.Enqueue(context.Background(), Trigger{Reason: "x"}); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-got:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("run ctx err = %v, want deadline exceeded", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run was not bounded by the timeout")
	}
}
