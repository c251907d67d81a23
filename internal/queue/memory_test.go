package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"cinegen/internal/domain"
)

func testJob(id string) *domain.Job {
	return &domain.Job{
		ID:     id,
		Kind:   domain.JobKindVideo,
		Prompt: "a calm lake at sunrise",
		Status: domain.JobStatusQueued,
	}
}

func TestMemoryFIFOOrder(t *testing.T) {
	q := NewMemory()
	defer q.Close()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := q.Enqueue(ctx, testJob(fmt.Sprintf("job-%d", i))); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	for i := 0; i < 5; i++ {
		job, err := q.Dequeue(ctx, time.Second)
		if err != nil {
			t.Fatalf("dequeue %d: %v", i, err)
		}
		if job == nil {
			t.Fatalf("dequeue %d returned empty", i)
		}
		want := fmt.Sprintf("job-%d", i)
		if job.ID != want {
			t.Fatalf("dequeue order: got %q want %q", job.ID, want)
		}
	}
}

func TestMemoryDequeueTimeoutReturnsEmpty(t *testing.T) {
	q := NewMemory()
	defer q.Close()

	start := time.Now()
	job, err := q.Dequeue(context.Background(), 50*time.Millisecond)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if job != nil {
		t.Fatalf("expected empty result, got job %q", job.ID)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("dequeue returned before the wait elapsed: %v", elapsed)
	}
}

func TestMemoryDequeueWakesOnEnqueue(t *testing.T) {
	q := NewMemory()
	defer q.Close()
	ctx := context.Background()

	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Enqueue(ctx, testJob("late"))
	}()

	job, err := q.Dequeue(ctx, 2*time.Second)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if job == nil || job.ID != "late" {
		t.Fatalf("expected job %q, got %#v", "late", job)
	}
}

func TestMemoryAtMostOnceDelivery(t *testing.T) {
	q := NewMemory()
	defer q.Close()
	ctx := context.Background()

	const total = 100
	for i := 0; i < total; i++ {
		if _, err := q.Enqueue(ctx, testJob(fmt.Sprintf("job-%d", i))); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	var mu sync.Mutex
	seen := make(map[string]int)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, err := q.Dequeue(ctx, 20*time.Millisecond)
				if err != nil {
					t.Errorf("dequeue: %v", err)
					return
				}
				if job == nil {
					return
				}
				mu.Lock()
				seen[job.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != total {
		t.Fatalf("delivered %d distinct jobs, want %d", len(seen), total)
	}
	for id, count := range seen {
		if count != 1 {
			t.Fatalf("job %q delivered %d times", id, count)
		}
	}
}

func TestMemoryEnqueueAfterCloseFails(t *testing.T) {
	q := NewMemory()
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := q.Enqueue(context.Background(), testJob("x")); err == nil {
		t.Fatalf("expected enqueue on closed queue to fail")
	}
}
