package scheduler

import (
	"context"
	"testing"
	"time"
)

func TestScheduleRejectsBadSpec(t *testing.T) {
	t.Parallel()

	s := NewCronScheduler(nil)
	if err := s.Schedule("not a cron", func(time.Time) {}); err == nil {
		t.Fatalf("expected parse error")
	}
	if err := s.Schedule("0 6 * * *", nil); err == nil {
		t.Fatalf("expected nil job error")
	}
}

func TestStartStopIsIdempotent(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	s := NewCronScheduler(loc)
	if err := s.Schedule("0 6 * * 1-5", func(time.Time) {}); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Start(ctx); err != nil {
		t.Fatalf("second start: %v", err)
	}

	next := s.Next()
	if len(next) != 1 {
		t.Fatalf("expected one entry, got %d", len(next))
	}
	if got := next[0].In(loc); got.Hour() != 6 || got.Weekday() == time.Saturday || got.Weekday() == time.Sunday {
		t.Fatalf("unexpected next run %s", got)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}
