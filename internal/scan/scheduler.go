package scan

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Trigger decides when the next scan fires. Implementations must be safe to
// call repeatedly with monotonically increasing inputs.
type Trigger interface {
	Next(after time.Time) time.Time
}

// IntervalTrigger fires at a fixed cadence.
type IntervalTrigger struct {
	Every time.Duration
}

func (t IntervalTrigger) Next(after time.Time) time.Time {
	every := t.Every
	if every <= 0 {
		every = time.Hour
	}
	return after.Add(every)
}

// BusinessHoursTrigger scans more often while portals publish. Outside the
// window it falls back to the off-hours cadence. Hours are evaluated in Loc.
type BusinessHoursTrigger struct {
	BusyEvery time.Duration
	IdleEvery time.Duration
	StartHour int
	EndHour   int
	Loc       *time.Location
}

func (t BusinessHoursTrigger) Next(after time.Time) time.Time {
	busy := t.BusyEvery
	if busy <= 0 {
		busy = 30 * time.Minute
	}
	idle := t.IdleEvery
	if idle <= 0 {
		idle = 4 * time.Hour
	}
	loc := t.Loc
	if loc == nil {
		loc = time.UTC
	}
	start, end := t.StartHour, t.EndHour
	if start == 0 && end == 0 {
		start, end = 8, 18
	}

	hour := after.In(loc).Hour()
	if hour >= start && hour < end {
		return after.Add(busy)
	}
	return after.Add(idle)
}

// Scheduler fires the orchestrator according to a Trigger until the context
// is cancelled. Overlapping fires are skipped, not queued.
type Scheduler struct {
	trigger Trigger
	run     func(ctx context.Context) error
	now     func() time.Time
}

func NewScheduler(trigger Trigger, orchestrator *Orchestrator) *Scheduler {
	return &Scheduler{
		trigger: trigger,
		run: func(ctx context.Context) error {
			_, err := orchestrator.RunScan(ctx)
			return err
		},
		now: time.Now,
	}
}

// Start blocks until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	next := s.trigger.Next(s.now())
	slog.Info("scheduler started", "next_run", next)

	for {
		wait := time.Until(next)
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			slog.Info("scheduler stopped")
			return
		case <-timer.C:
		}

		if err := s.run(ctx); err != nil {
			if errors.Is(err, ErrRunInProgress) {
				slog.Warn("scheduled scan skipped, previous run still active")
			} else {
				slog.Error("scheduled scan failed", "err", err)
			}
		}
		next = s.trigger.Next(s.now())
	}
}
