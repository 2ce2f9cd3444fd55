package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextDailyRun(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"before hour", time.Date(2025, 3, 15, 1, 30, 0, 0, time.UTC), time.Date(2025, 3, 15, 2, 0, 0, 0, time.UTC)},
		{"exactly at hour", time.Date(2025, 3, 15, 2, 0, 0, 0, time.UTC), time.Date(2025, 3, 16, 2, 0, 0, 0, time.UTC)},
		{"after hour", time.Date(2025, 3, 15, 18, 0, 0, 0, time.UTC), time.Date(2025, 3, 16, 2, 0, 0, 0, time.UTC)},
		{"month end", time.Date(2025, 3, 31, 23, 0, 0, 0, time.UTC), time.Date(2025, 4, 1, 2, 0, 0, 0, time.UTC)},
		{"non-UTC input", time.Date(2025, 3, 15, 3, 0, 0, 0, time.FixedZone("EST", -5*3600)), time.Date(2025, 3, 16, 2, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextDailyRun(tt.now, 2))
		})
	}
}

func TestScheduler_EveryStopsOnCancel(t *testing.T) {
	var runs int64
	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler()
	s.Every(ctx, "tick", 5*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt64(&runs, 1)
		return nil
	})

	assert.Eventually(t, func() bool { return atomic.LoadInt64(&runs) >= 2 }, time.Second, time.Millisecond)
	cancel()
	s.Wait()
}

func TestScheduler_DisabledTasksDoNotStart(t *testing.T) {
	s := NewScheduler()
	s.Every(context.Background(), "off", 0, func(ctx context.Context) error { return nil })
	s.Daily(context.Background(), "bad", 24, func(ctx context.Context, runAt time.Time) error { return nil })
	s.Wait()
}
