package queue

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestQueue_FIFOOrder(t *testing.T) {
	q := New()
	for _, id := range []string{"a", "b", "c"} {
		if err := q.Enqueue(Item{JobID: id}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	ctx := context.Background()
	for _, want := range []string{"a", "b", "c"} {
		it, ok := q.Dequeue(ctx)
		if !ok {
			t.Fatal("unexpected closed queue")
		}
		if it.JobID != want {
			t.Errorf("expected %s, got %s", want, it.JobID)
		}
	}
}

func TestQueue_DequeueBlocksUntilEnqueue(t *testing.T) {
	q := New()
	got := make(chan Item, 1)

	go func() {
		it, ok := q.Dequeue(context.Background())
		if ok {
			got <- it
		}
	}()

	time.Sleep(20 * time.Millisecond)
	if err := q.Enqueue(Item{JobID: "late"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	select {
	case it := <-got:
		if it.JobID != "late" {
			t.Errorf("expected 'late', got %s", it.JobID)
		}
	case <-time.After(time.Second):
		t.Fatal("dequeue never woke up")
	}
}

func TestQueue_CloseStopsIntakeButDrains(t *testing.T) {
	q := New()
	_ = q.Enqueue(Item{JobID: "pending"})
	q.Close()

	if err := q.Enqueue(Item{JobID: "rejected"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}

	it, ok := q.Dequeue(context.Background())
	if !ok || it.JobID != "pending" {
		t.Fatalf("expected to drain pending item, got ok=%v item=%+v", ok, it)
	}

	if _, ok := q.Dequeue(context.Background()); ok {
		t.Fatal("expected closed+empty queue to report done")
	}
}

func TestQueue_DequeueHonorsContext(t *testing.T) {
	q := New()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, ok := q.Dequeue(ctx); ok {
		t.Fatal("expected context cancellation to unblock dequeue")
	}
}
