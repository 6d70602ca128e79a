package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"Briefcaster/internal/domain"
	"Briefcaster/internal/logging"
)

type captureDriver struct {
	jobs    map[string]func(time.Time)
	started bool
	stopped bool
	badSpec string
}

func (d *captureDriver) Schedule(spec string, job func(time.Time)) error {
	if spec == d.badSpec {
		return errors.New("bad spec")
	}
	if d.jobs == nil {
		d.jobs = map[string]func(time.Time){}
	}
	d.jobs[spec] = job
	return nil
}

func (d *captureDriver) Start(context.Context) error { d.started = true; return nil }
func (d *captureDriver) Stop(context.Context) error  { d.stopped = true; return nil }

type recordingGenerator struct {
	reqs []domain.BriefingRequest
	err  error
}

func (g *recordingGenerator) Generate(_ context.Context, req domain.BriefingRequest) (domain.Briefing, error) {
	g.reqs = append(g.reqs, req)
	return domain.Briefing{ID: "b"}, g.err
}

func TestSchedulerBuildsMondayWindow(t *testing.T) {
	t.Parallel()

	driver := &captureDriver{}
	gen := &recordingGenerator{}
	jobs := []Job{{Name: "morning", Spec: "0 6 * * 1-5", Topic: "stock market", DurationMinutes: 10, LookbackHours: 24, WeekendAware: true, Audio: true}}
	s := NewScheduler(driver, gen, jobs, logging.Discard())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !driver.started {
		t.Fatalf("expected driver started")
	}

	monday := time.Date(2025, 10, 13, 6, 0, 0, 0, time.UTC)
	driver.jobs["0 6 * * 1-5"](monday)

	if len(gen.reqs) != 1 {
		t.Fatalf("expected one generation, got %d", len(gen.reqs))
	}
	req := gen.reqs[0]
	if req.Topic != "stock market" || !req.ProduceAudio || req.DurationMinutes != 10 {
		t.Fatalf("unexpected request %+v", req)
	}
	if got := req.Window.End.Sub(req.Window.Start); got != 72*time.Hour {
		t.Fatalf("expected 72h Monday lookback, got %s", got)
	}

	tuesday := monday.Add(24 * time.Hour)
	driver.jobs["0 6 * * 1-5"](tuesday)
	if got := gen.reqs[1].Window.End.Sub(gen.reqs[1].Window.Start); got != 24*time.Hour {
		t.Fatalf("expected 24h lookback on Tuesday, got %s", got)
	}

	if err := s.Stop(context.Background()); err != nil || !driver.stopped {
		t.Fatalf("expected stop, err=%v", err)
	}
}

func TestSchedulerReportsBadSpec(t *testing.T) {
	t.Parallel()

	driver := &captureDriver{badSpec: "nope"}
	s := NewScheduler(driver, &recordingGenerator{}, []Job{{Name: "broken", Spec: "nope"}}, nil)
	if err := s.Start(context.Background()); err == nil {
		t.Fatalf("expected registration error")
	}
	if driver.started {
		t.Fatalf("driver must not start after a registration failure")
	}
}

func TestSchedulerSwallowsGenerationErrors(t *testing.T) {
	t.Parallel()

	driver := &captureDriver{}
	gen := &recordingGenerator{err: &domain.NoContentError{Query: "x"}}
	s := NewScheduler(driver, gen, []Job{{Name: "j", Spec: "* * * * *", Topic: "x", DurationMinutes: 5}}, logging.Discard())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	driver.jobs["* * * * *"](time.Now())
	if len(gen.reqs) != 1 {
		t.Fatalf("expected job to run once")
	}
}
