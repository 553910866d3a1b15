// Package scheduler runs player-visible output on a single consumer
// goroutine driven by a fixed tick, so every delivery batch observes one
// consistent order.
package scheduler

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultTick is the length of one tick.
const DefaultTick = 50 * time.Millisecond

// Task is a unit of deferred work.
type Task func()

// Scheduler is implemented by TickLoop.
type Scheduler interface {
	// Submit runs fn on the next tick.
	Submit(fn Task)
	// RunAfter runs fn once ticks ticks have passed. Zero behaves like
	// Submit.
	RunAfter(ticks int, fn Task)
}

type job struct {
	due int64
	seq uint64
	fn  Task
}

type queue []job

func (q queue) Len() int { return len(q) }
func (q queue) Less(i, j int) bool {
	if q[i].due != q[j].due {
		return q[i].due < q[j].due
	}
	return q[i].seq < q[j].seq
}
func (q queue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *queue) Push(x any)   { *q = append(*q, x.(job)) }
func (q *queue) Pop() any {
	old := *q
	n := len(old)
	j := old[n-1]
	*q = old[:n-1]
	return j
}

// TickLoop orders jobs by due tick, then by submission.
type TickLoop struct {
	mu     sync.Mutex
	now    int64
	seq    uint64
	jobs   queue
	tick   time.Duration
	logger *zap.Logger
}

// NewTickLoop creates a loop. A non-positive tick uses DefaultTick.
func NewTickLoop(tick time.Duration, logger *zap.Logger) *TickLoop {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &TickLoop{tick: tick, logger: logger}
}

func (l *TickLoop) Submit(fn Task) { l.RunAfter(0, fn) }

func (l *TickLoop) RunAfter(ticks int, fn Task) {
	if ticks < 1 {
		ticks = 1
	}
	l.mu.Lock()
	l.seq++
	heap.Push(&l.jobs, job{due: l.now + int64(ticks), seq: l.seq, fn: fn})
	l.mu.Unlock()
}

// Pending returns the number of queued jobs.
func (l *TickLoop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.jobs.Len()
}

// Advance moves one tick forward and runs every job now due. Only one
// goroutine may call it; Run does so on every tick.
func (l *TickLoop) Advance() int {
	l.mu.Lock()
	l.now++
	var due []job
	for l.jobs.Len() > 0 && l.jobs[0].due <= l.now {
		due = append(due, heap.Pop(&l.jobs).(job))
	}
	l.mu.Unlock()

	for _, j := range due {
		l.run(j.fn)
	}
	return len(due)
}

func (l *TickLoop) run(fn Task) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("scheduled task panicked", zap.Any("panic", r))
		}
	}()
	fn()
}

// Run advances the loop every tick until ctx is cancelled, then drains
// whatever is already due.
func (l *TickLoop) Run(ctx context.Context) {
	t := time.NewTicker(l.tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			l.Advance()
			return
		case <-t.C:
			l.Advance()
		}
	}
}
