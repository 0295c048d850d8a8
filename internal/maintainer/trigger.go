package maintainer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Starter begins a maintenance pass
type Starter interface {
	Start(ctx context.Context) (uint64, error)
}

type TriggerConfig struct {
	// Interval between passes, 0 disables
	Interval time.Duration
	// DailyAt "HH:MM" UTC, empty disables
	DailyAt string
}

// Trigger starts passes on a fixed interval and at a daily wall clock time
type Trigger struct {
	starter  Starter
	interval time.Duration
	daily    bool
	hour     int
	minute   int
	now      func() time.Time
	sugar    *zap.SugaredLogger
}

func NewTrigger(starter Starter, cfg TriggerConfig, sugar *zap.SugaredLogger) (*Trigger, error) {
	t := &Trigger{
		starter:  starter,
		interval: cfg.Interval,
		now:      time.Now,
		sugar:    sugar,
	}
	if cfg.Interval < 0 {
		return nil, fmt.Errorf("trigger: negative interval %s", cfg.Interval)
	}
	if cfg.DailyAt != "" {
		at, err := time.Parse("15:04", cfg.DailyAt)
		if err != nil {
			return nil, fmt.Errorf("trigger: daily_at %q: %w", cfg.DailyAt, err)
		}
		t.daily = true
		t.hour, t.minute = at.Hour(), at.Minute()
	}
	return t, nil
}

// nextDaily returns the first daily fire time strictly after now
func (t *Trigger) nextDaily(now time.Time) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), t.hour, t.minute, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Run fires passes until ctx is done
func (t *Trigger) Run(ctx context.Context) error {
	if t.interval == 0 && !t.daily {
		t.sugar.Infow("trigger disabled")
		<-ctx.Done()
		return nil
	}

	now := t.now()
	var nextInterval, nextDaily time.Time
	if t.interval > 0 {
		nextInterval = now.Add(t.interval)
	}
	if t.daily {
		nextDaily = t.nextDaily(now)
	}
	t.sugar.Infow("trigger started", "interval", t.interval, "nextDaily", nextDaily)

	for {
		fire := nextInterval
		if fire.IsZero() || (!nextDaily.IsZero() && nextDaily.Before(fire)) {
			fire = nextDaily
		}

		timer := time.NewTimer(fire.Sub(t.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		if !nextInterval.IsZero() && !nextInterval.After(fire) {
			nextInterval = fire.Add(t.interval)
		}
		if !nextDaily.IsZero() && !nextDaily.After(fire) {
			nextDaily = t.nextDaily(fire)
		}
		t.fire(ctx)
	}
}

func (t *Trigger) fire(ctx context.Context) {
	gen, err := t.starter.Start(ctx)
	switch {
	case err == nil:
		t.sugar.Debugw("trigger fired", "generation", gen)
	case errors.Is(err, ErrPassInProgress):
		t.sugar.Infow("trigger skipped, pass in progress")
	default:
		t.sugar.Errorw("trigger", "error", err)
	}
}
