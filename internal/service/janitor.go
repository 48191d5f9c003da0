package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultJanitorSchedule sweeps drafts once an hour.
const DefaultJanitorSchedule = "@every 1h"

// ─────────────────────────────────────────────────────────────
// Draft janitor — scheduled stale-session sweep
// ─────────────────────────────────────────────────────────────

// DraftJanitor periodically abandons drafts nobody has touched within the
// retention window and deletes the ones abandoned before it.
type DraftJanitor struct {
	sessions  *SessionService
	settings  *SettingsService
	retention time.Duration
	schedule  string
	now       func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

// NewDraftJanitor creates a janitor. retention is used unless a stored
// setting overrides it; an empty schedule uses DefaultJanitorSchedule.
func NewDraftJanitor(sessions *SessionService, settings *SettingsService, retention time.Duration, schedule string) *DraftJanitor {
	if schedule == "" {
		schedule = DefaultJanitorSchedule
	}
	return &DraftJanitor{
		sessions:  sessions,
		settings:  settings,
		retention: retention,
		schedule:  schedule,
		now:       time.Now,
	}
}

// Start schedules the sweep. It is a no-op if already started.
func (j *DraftJanitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cron != nil {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(j.schedule, func() {
		if _, err := j.RunOnce(ctx); err != nil {
			log.Printf("[JANITOR] sweep failed: %v", err)
		}
	}); err != nil {
		return err
	}
	c.Start()
	j.cron = c
	log.Printf("[JANITOR] sweeping drafts %s", j.schedule)
	return nil
}

// RunOnce performs a single sweep.
func (j *DraftJanitor) RunOnce(ctx context.Context) (SweepResult, error) {
	retention := j.settings.DraftRetention(j.retention)
	res, err := j.sessions.Sweep(ctx, j.now().Add(-retention))
	if err != nil {
		return res, err
	}
	if res.Abandoned+res.Deleted+res.Evicted > 0 {
		log.Printf("[JANITOR] abandoned %d, deleted %d, evicted %d (retention %s)", res.Abandoned, res.Deleted, res.Evicted, retention)
	}
	return res, nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (j *DraftJanitor) Stop() {
	j.mu.Lock()
	c := j.cron
	j.cron = nil
	j.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}
