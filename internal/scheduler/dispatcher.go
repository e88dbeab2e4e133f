// Package scheduler implements the Cron Dispatcher (spec §4.3): it holds
// exactly one cron-style trigger per enabled schedule and invokes the Scan
// Coordinator when any fires. Grounded on the teacher's
// services/scheduler.Service (entry-ID bookkeeping, panic-recovered firing),
// generalized from a fixed job-definition registry to schedule.Watcher events.
package scheduler

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/cookiescan/internal/models"
	"github.com/ternarybob/cookiescan/internal/schedule"
)

// misfireGrace is the default window past which a delayed firing is dropped.
const misfireGrace = 300 * time.Second

// FireFunc is invoked when a schedule's trigger fires. robfig/cron runs
// each firing in its own goroutine, so a slow scan never blocks the
// dispatcher's cron loop.
type FireFunc func(scheduleID string)

// Dispatcher owns one robfig/cron.Cron and a schedule_id -> entry map.
type Dispatcher struct {
	cron   *cron.Cron
	logger arbor.ILogger
	onFire FireFunc

	mu      sync.Mutex
	entries map[string]cron.EntryID // schedule_id -> cron entry
}

func NewDispatcher(logger arbor.ILogger, onFire FireFunc) *Dispatcher {
	return &Dispatcher{
		cron:    cron.New(cron.WithSeconds()),
		logger:  logger,
		onFire:  onFire,
		entries: make(map[string]cron.EntryID),
	}
}

func (d *Dispatcher) Start() { d.cron.Start() }
func (d *Dispatcher) Stop()  { d.cron.Stop() }

// Handle applies one round of watcher events: install triggers for added
// schedules, remove-then-reinstall for modified ones, uninstall for removed
// ones. Disabled schedules never get a trigger (spec §8 invariant).
func (d *Dispatcher) Handle(events []schedule.Event) {
	for _, ev := range events {
		switch ev.Kind {
		case schedule.EventAdded:
			d.install(ev.Schedule)
		case schedule.EventModified:
			d.uninstall(ev.ID)
			d.install(ev.Schedule)
		case schedule.EventRemoved:
			d.uninstall(ev.ID)
		}
	}
}

func (d *Dispatcher) install(sched *models.Schedule) {
	if sched == nil || !sched.Enabled {
		return
	}
	cronSchedule, err := BuildSchedule(sched.Frequency, sched.TimeConfig)
	if err != nil {
		d.logger.Warn().Err(err).Str("schedule_id", sched.ID).Msg("skipping schedule with invalid time_config")
		return
	}

	scheduleID := sched.ID
	entryID := d.cron.Schedule(cronSchedule, cron.FuncJob(d.wrap(scheduleID, cronSchedule)))

	d.mu.Lock()
	d.entries[scheduleID] = entryID
	d.mu.Unlock()

	d.logger.Debug().Str("schedule_id", scheduleID).Str("frequency", string(sched.Frequency)).Msg("installed trigger")
}

func (d *Dispatcher) uninstall(scheduleID string) {
	d.mu.Lock()
	entryID, ok := d.entries[scheduleID]
	if ok {
		delete(d.entries, scheduleID)
	}
	d.mu.Unlock()
	if ok {
		d.cron.Remove(entryID)
		d.logger.Debug().Str("schedule_id", scheduleID).Msg("removed trigger")
	}
}

// wrap applies misfire-grace dropping and panic recovery around a firing,
// mirroring the teacher's recover-wrapped executeJob. Coalescing of missed
// fires is inherent to robfig/cron (a missed tick's next fire is computed
// fresh from "now", not queued), satisfying the coalesce policy for free.
// The per-schedule max-concurrent-instances=1 cap is enforced by the
// Distributed Lock, not here.
func (d *Dispatcher) wrap(scheduleID string, cronSchedule cron.Schedule) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error().Interface("panic", r).Str("schedule_id", scheduleID).Msg("panic in cron firing, recovered")
			}
		}()

		now := time.Now()
		expected := cronSchedule.Next(now.Add(-time.Minute))
		if now.Sub(expected) > misfireGrace {
			d.logger.Warn().Str("schedule_id", scheduleID).Dur("delay", now.Sub(expected)).Msg("dropping misfired trigger")
			return
		}

		d.onFire(scheduleID)
	}
}
