package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"Briefcaster/internal/ports"
)

// CronScheduler runs jobs on standard five-field cron expressions in a fixed location.
type CronScheduler struct {
	cron *cron.Cron
	loc  *time.Location

	mu      sync.Mutex
	started bool
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler evaluating expressions in loc (UTC when nil).
func NewCronScheduler(loc *time.Location) *CronScheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &CronScheduler{
		cron: cron.New(cron.WithLocation(loc)),
		loc:  loc,
	}
}

// Schedule registers job under spec; the job receives the trigger time.
func (c *CronScheduler) Schedule(spec string, job func(time.Time)) error {
	if job == nil {
		return fmt.Errorf("schedule %q: nil job", spec)
	}
	if _, err := c.cron.AddFunc(spec, func() { job(time.Now().In(c.loc)) }); err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	return nil
}

// Start begins dispatching and stops automatically when ctx is cancelled.
func (c *CronScheduler) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}
	c.started = true
	c.cron.Start()

	go func() {
		<-ctx.Done()
		_ = c.Stop(context.Background())
	}()
	return nil
}

// Stop halts dispatching and waits for running jobs or ctx, whichever ends first.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = false
	c.mu.Unlock()

	done := c.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next reports the upcoming run of each registered entry.
func (c *CronScheduler) Next() []time.Time {
	entries := c.cron.Entries()
	out := make([]time.Time, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Next)
	}
	return out
}
