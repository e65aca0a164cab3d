package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/domain"
	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/infra"
)

// Processor runs one task end to end and records its terminal outcome.
type Processor interface {
	Process(ctx context.Context, task domain.InFlightTask)
}

// Pool is a fixed set of long-lived workers consuming one queue.
type Pool struct {
	queue   *Queue
	proc    Processor
	workers int
	logger  infra.Logger
}

func NewPool(queue *Queue, proc Processor, workers int, logger infra.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{queue: queue, proc: proc, workers: workers, logger: logger}
}

// Run starts the workers and blocks until ctx ends or the queue is closed
// and drained. A task being processed when ctx ends is left to finish its
// terminal write.
func (p *Pool) Run(ctx context.Context) {
	p.logger.Info().Int("workers", p.workers).Msg("worker: pool started")
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.loop(ctx, id)
		}(i + 1)
	}
	wg.Wait()
	p.logger.Info().Msg("worker: pool stopped")
}

func (p *Pool) loop(ctx context.Context, id int) {
	for {
		task, err := p.queue.Pop(ctx)
		if err != nil {
			if !errors.Is(err, ErrQueueClosed) && ctx.Err() == nil {
				p.logger.Error().Err(err).Int("worker", id).Msg("worker: dequeue failed")
			}
			return
		}
		p.handle(ctx, id, task)
	}
}

func (p *Pool) handle(ctx context.Context, id int, task domain.InFlightTask) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().
				Err(fmt.Errorf("panic: %v", r)).
				Int("worker", id).
				Str("client_id", task.Key.ClientID).
				Str("task_type", string(task.Key.Type)).
				Msg("worker: processor panicked")
		}
	}()
	p.logger.Debug().
		Int("worker", id).
		Str("client_id", task.Key.ClientID).
		Str("task_type", string(task.Key.Type)).
		Str("sha256", task.Key.ContentHash).
		Msg("worker: picked task")
	p.proc.Process(ctx, task)
}
