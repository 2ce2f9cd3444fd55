package worker

import (
	"context"
	"log"
	"sync"
)

// Job is one unit of work processed by the pool.
type Job[T any] struct {
	Key     string
	Payload T
}

// Pool runs a handler over jobs with a fixed number of workers.
type Pool[T any] struct {
	jobs    chan Job[T]
	handler func(ctx context.Context, job Job[T]) error
	wg      sync.WaitGroup
	mu      sync.Mutex
	failed  int
}

func NewPool[T any](bufferSize int, handler func(ctx context.Context, job Job[T]) error) *Pool[T] {
	return &Pool[T]{
		jobs:    make(chan Job[T], bufferSize),
		handler: handler,
	}
}

func (p *Pool[T]) Start(ctx context.Context, workerCount int) {
	if workerCount < 1 {
		workerCount = 1
	}
	for i := 0; i < workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

func (p *Pool[T]) worker(ctx context.Context) {
	defer p.wg.Done()

	for job := range p.jobs {
		if ctx.Err() != nil {
			p.recordFailure()
			continue
		}
		if err := p.handler(ctx, job); err != nil {
			p.recordFailure()
			log.Printf("[WORKER] job %s failed: %v", job.Key, err)
		}
	}
}

func (p *Pool[T]) recordFailure() {
	p.mu.Lock()
	p.failed++
	p.mu.Unlock()
}

// Submit enqueues a job, blocking while the buffer is full. It returns false
// when ctx is done first.
func (p *Pool[T]) Submit(ctx context.Context, job Job[T]) bool {
	select {
	case p.jobs <- job:
		return true
	case <-ctx.Done():
		return false
	}
}

// Shutdown stops accepting jobs, waits for in-flight ones and returns how
// many failed.
func (p *Pool[T]) Shutdown() int {
	close(p.jobs)
	p.wg.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failed
}
