package workerpool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRunsAllTasks(t *testing.T) {
	p := New(4)
	defer p.Close()

	var n int64
	var wg sync.WaitGroup
	wg.Add(100)
	for i := 0; i < 100; i++ {
		if err := p.Submit(func() {
			atomic.AddInt64(&n, 1)
			wg.Done()
		}); err != nil {
			t.Fatal(err)
		}
	}
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tasks")
	}
	if atomic.LoadInt64(&n) != 100 {
		t.Fatalf("ran %d tasks, want 100", n)
	}
}

func TestPoolCloseDrainsQueueBeforeReturning(t *testing.T) {
	p := New(2)
	var n int64
	for i := 0; i < 20; i++ {
		_ = p.Submit(func() {
			time.Sleep(time.Millisecond)
			atomic.AddInt64(&n, 1)
		})
	}
	p.Close()
	if atomic.LoadInt64(&n) != 20 {
		t.Fatalf("ran %d tasks before Close returned, want 20", n)
	}
}

func TestSubmitAfterCloseFails(t *testing.T) {
	p := New(1)
	p.Close()
	if err := p.Submit(func() {}); err != ErrPoolClosed {
		t.Fatalf("got %v, want ErrPoolClosed", err)
	}
}
