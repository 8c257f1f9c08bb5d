package engine

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Supervisor runs tasks on their own goroutines. A panicking task is logged
// and counted; it never takes down or cancels its siblings.
type Supervisor struct {
	wg     sync.WaitGroup
	logger *zap.Logger
	panics atomic.Int64
}

func NewSupervisor(logger *zap.Logger) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{logger: logger.Named("supervisor")}
}

// Go starts fn under name.
func (s *Supervisor) Go(name string, fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.panics.Add(1)
				s.logger.Error("task panicked",
					zap.String("task", name),
					zap.Any("panic", r),
					zap.Stack("stack"))
			}
		}()
		fn()
	}()
}

// Wait blocks until every started task has returned.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

// Panics returns how many tasks panicked.
func (s *Supervisor) Panics() int64 {
	return s.panics.Load()
}

// ticketQueue runs tasks one at a time in the order tickets were taken.
type ticketQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	next    uint64
	serving uint64
}

func newTicketQueue() *ticketQueue {
	q := &ticketQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *ticketQueue) take() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	t := q.next
	q.next++
	return t
}

func (q *ticketQueue) wait(t uint64) {
	q.mu.Lock()
	for q.serving != t {
		q.cond.Wait()
	}
	q.mu.Unlock()
}

func (q *ticketQueue) done() {
	q.mu.Lock()
	q.serving++
	q.mu.Unlock()
	q.cond.Broadcast()
}
