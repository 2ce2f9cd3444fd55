package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPool_ProcessesAllJobs(t *testing.T) {
	var processed int64
	pool := NewPool(4, func(ctx context.Context, job Job[int]) error {
		atomic.AddInt64(&processed, int64(job.Payload))
		if job.Payload%10 == 0 {
			return errors.New("multiple of ten")
		}
		return nil
	})
	pool.Start(context.Background(), 3)

	for i := 1; i <= 100; i++ {
		assert.True(t, pool.Submit(context.Background(), Job[int]{Key: fmt.Sprint(i), Payload: i}))
	}
	failed := pool.Shutdown()

	assert.Equal(t, int64(5050), atomic.LoadInt64(&processed))
	assert.Equal(t, 10, failed)
}

func TestPool_SubmitRespectsContext(t *testing.T) {
	block := make(chan struct{})
	pool := NewPool(0, func(ctx context.Context, job Job[string]) error {
		<-block
		return nil
	})
	pool.Start(context.Background(), 1)

	assert.True(t, pool.Submit(context.Background(), Job[string]{Key: "first"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.False(t, pool.Submit(ctx, Job[string]{Key: "second"}))

	close(block)
	assert.Equal(t, 0, pool.Shutdown())
}

func TestScheduler_Every(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var runs int64
	s := NewScheduler()
	s.Every(ctx, "tick", 5*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt64(&runs, 1)
		return nil
	})

	assert.Eventually(t, func() bool { return atomic.LoadInt64(&runs) >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	s.Wait()
}
