// Package worker runs accepted tasks to completion: a shared FIFO queue, a
// fixed pool of workers draining it, the per-task pipeline and the eviction
// sweeper.
package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/domain"
)

// ErrQueueClosed is returned by Push after Close, and by Pop once a closed
// queue is drained.
var ErrQueueClosed = errors.New("worker: queue closed")

// Queue is an unbounded FIFO of in-flight tasks. Push never blocks; Pop
// blocks until a task is available or its context ends.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []domain.InFlightTask
	head   int
	closed bool
}

func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends task and wakes one waiting worker.
func (q *Queue) Push(task domain.InFlightTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.items = append(q.items, task)
	q.cond.Signal()
	return nil
}

// Pop removes the oldest task.
func (q *Queue) Pop(ctx context.Context) (domain.InFlightTask, error) {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for q.head == len(q.items) {
		if q.closed {
			return domain.InFlightTask{}, ErrQueueClosed
		}
		if err := ctx.Err(); err != nil {
			return domain.InFlightTask{}, err
		}
		q.cond.Wait()
	}
	task := q.items[q.head]
	q.items[q.head] = domain.InFlightTask{}
	q.head++
	if q.head == len(q.items) {
		q.items, q.head = q.items[:0], 0
	}
	return task, nil
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Close rejects further pushes and releases idle workers.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
