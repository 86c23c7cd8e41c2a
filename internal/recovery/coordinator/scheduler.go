package coordinator

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// Result is the terminal outcome of a scheduled execution.
type Result struct {
	Value any
	Err   error
}

// Scheduler runs coordinated executions without a goroutine sleeping
// through each backoff window: a retrying task is re-queued on a timer heap
// and picked up by a worker when due. The delay and jitter math is the
// strategy's, unchanged.
type Scheduler struct {
	coord   *Coordinator
	workers int

	mu      sync.Mutex
	queue   taskHeap
	wake    chan struct{}
	stopped bool
	wg      sync.WaitGroup
}

type task struct {
	inv  *invocation
	due  time.Time
	done chan Result
}

// NewScheduler creates a scheduler over the coordinator with the given
// worker count (minimum 1).
func NewScheduler(coord *Coordinator, workers int) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	return &Scheduler{
		coord:   coord,
		workers: workers,
		wake:    make(chan struct{}, 1),
	}
}

// Start launches the dispatcher and workers until ctx is canceled.
func (s *Scheduler) Start(ctx context.Context) {
	ready := make(chan *task)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(ready)
		s.dispatch(ctx, ready)
	}()

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for t := range ready {
				s.run(ctx, t)
			}
		}()
	}
}

// Wait blocks until the dispatcher and workers have exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Submit enqueues an operation for immediate execution and returns a
// channel that delivers the single terminal result.
func (s *Scheduler) Submit(name, workflowID string, op Operation) <-chan Result {
	done := make(chan Result, 1)
	t := &task{
		inv:  &invocation{name: name, workflowID: workflowID, op: op},
		due:  s.coord.clock.Now(),
		done: done,
	}
	s.push(t)
	return done
}

func (s *Scheduler) push(t *task) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		t.done <- Result{Err: context.Canceled}
		return
	}
	heap.Push(&s.queue, t)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// dispatch pops due tasks and hands them to workers, sleeping only until
// the next due time.
func (s *Scheduler) dispatch(ctx context.Context, ready chan<- *task) {
	defer s.drain()

	for {
		s.mu.Lock()
		var next *task
		var wait time.Duration
		if len(s.queue) > 0 {
			head := s.queue[0]
			now := s.coord.clock.Now()
			if !head.due.After(now) {
				next = heap.Pop(&s.queue).(*task)
			} else {
				wait = head.due.Sub(now)
			}
		}
		s.mu.Unlock()

		if next != nil {
			select {
			case ready <- next:
				continue
			case <-ctx.Done():
				next.done <- Result{Err: ctx.Err()}
				return
			}
		}

		if wait <= 0 {
			// Queue empty: wait for a submission.
			select {
			case <-s.wake:
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-s.coord.clock.After(wait):
		case <-s.wake:
		case <-ctx.Done():
			return
		}
	}
}

// run executes one attempt and either delivers the result or re-queues the
// task at its next due time.
func (s *Scheduler) run(ctx context.Context, t *task) {
	// A task handed over right as the context dies must not invoke the
	// operation with a canceled context.
	if err := ctx.Err(); err != nil {
		t.done <- Result{Err: err}
		return
	}

	value, retryIn, done, err := s.coord.step(ctx, t.inv)
	if done {
		t.done <- Result{Value: value, Err: err}
		return
	}
	t.due = s.coord.clock.Now().Add(retryIn)
	s.push(t)
}

// drain fails every queued task once the dispatcher stops.
func (s *Scheduler) drain() {
	s.mu.Lock()
	s.stopped = true
	pending := s.queue
	s.queue = nil
	s.mu.Unlock()

	for _, t := range pending {
		t.done <- Result{Err: context.Canceled}
	}
}

type taskHeap []*task

func (h taskHeap) Len() int           { return len(h) }
func (h taskHeap) Less(i, j int) bool { return h[i].due.Before(h[j].due) }
func (h taskHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x any)        { *h = append(*h, x.(*task)) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}
