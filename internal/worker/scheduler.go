package worker

import (
	"context"
	"log"
	"sync"
	"time"
)

// Scheduler runs named background tasks on fixed intervals until its context
// is cancelled.
type Scheduler struct {
	wg sync.WaitGroup
}

func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Every runs task once per interval. Runs never overlap: a slow run delays
// the next tick.
func (s *Scheduler) Every(ctx context.Context, name string, interval time.Duration, task func(ctx context.Context) error) {
	if interval <= 0 {
		log.Printf("[SCHEDULER] %s disabled", name)
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := task(ctx); err != nil {
					log.Printf("[SCHEDULER] %s failed: %v", name, err)
				}
			}
		}
	}()
	log.Printf("[SCHEDULER] %s every %s", name, interval)
}

// Daily runs task once a day at hourUTC:00, passing the scheduled run time.
func (s *Scheduler) Daily(ctx context.Context, name string, hourUTC int, task func(ctx context.Context, runAt time.Time) error) {
	if hourUTC < 0 || hourUTC > 23 {
		log.Printf("[SCHEDULER] %s disabled: hour %d out of range", name, hourUTC)
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			next := NextDailyRun(time.Now().UTC(), hourUTC)
			timer := time.NewTimer(time.Until(next))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
				if err := task(ctx, next); err != nil {
					log.Printf("[SCHEDULER] %s failed: %v", name, err)
				}
			}
		}
	}()
	log.Printf("[SCHEDULER] %s daily at %02d:00 UTC", name, hourUTC)
}

// NextDailyRun returns the first hourUTC:00 strictly after now.
func NextDailyRun(now time.Time, hourUTC int) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), hourUTC, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Wait blocks until every task goroutine has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
