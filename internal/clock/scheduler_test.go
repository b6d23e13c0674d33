package clock

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerRunsEachTaskAtItsOwnPeriod(t *testing.T) {
	var fast, slow int32
	sched := NewScheduler(NewSystemSource())
	ctx, cancel := context.WithCancel(context.Background())
	sched.Start(ctx, []Task{
		{Name: "fast", Period: 5 * time.Millisecond, Handler: func(Time) { atomic.AddInt32(&fast, 1) }},
		{Name: "slow", Period: 50 * time.Millisecond, Handler: func(Time) { atomic.AddInt32(&slow, 1) }},
	})
	time.Sleep(120 * time.Millisecond)
	cancel()
	sched.Stop()

	if atomic.LoadInt32(&fast) < 5 {
		t.Fatalf("expected fast task to tick repeatedly, got %d", fast)
	}
	if atomic.LoadInt32(&slow) == 0 {
		t.Fatalf("expected slow task to tick at least once")
	}
	if atomic.LoadInt32(&slow) >= atomic.LoadInt32(&fast) {
		t.Fatalf("expected fast task to outpace slow task: fast=%d slow=%d", fast, slow)
	}
}

func TestSchedulerCoalescesSlowHandler(t *testing.T) {
	var concurrent int32
	var maxConcurrent int32
	sched := NewScheduler(NewSystemSource())
	ctx, cancel := context.WithCancel(context.Background())
	sched.Start(ctx, []Task{
		{Name: "slow-handler", Period: 5 * time.Millisecond, Handler: func(Time) {
			n := atomic.AddInt32(&concurrent, 1)
			for {
				old := atomic.LoadInt32(&maxConcurrent)
				if n <= old || atomic.CompareAndSwapInt32(&maxConcurrent, old, n) {
					break
				}
			}
			time.Sleep(30 * time.Millisecond)
			atomic.AddInt32(&concurrent, -1)
		}},
	})
	time.Sleep(100 * time.Millisecond)
	cancel()
	sched.Stop()

	if atomic.LoadInt32(&maxConcurrent) > 1 {
		t.Fatalf("expected at most one in-flight invocation, observed %d concurrent", maxConcurrent)
	}
}

func TestStopLetsInFlightHandlerFinish(t *testing.T) {
	started := make(chan struct{})
	finished := make(chan struct{}, 1)
	sched := NewScheduler(NewSystemSource())
	ctx, cancel := context.WithCancel(context.Background())
	sched.Start(ctx, []Task{
		{Name: "long", Period: 5 * time.Millisecond, Handler: func(Time) {
			select {
			case started <- struct{}{}:
			default:
			}
			time.Sleep(40 * time.Millisecond)
			select {
			case finished <- struct{}{}:
			default:
			}
		}},
	})
	<-started
	cancel()
	sched.Stop()
	select {
	case <-finished:
	default:
		t.Fatalf("expected in-flight handler to run to completion before Stop returns")
	}
}
