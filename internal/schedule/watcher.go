package schedule

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/cookiescan/internal/models"
)

// EventKind classifies one Watcher diff entry.
type EventKind string

const (
	EventAdded    EventKind = "added"
	EventModified EventKind = "modified"
	EventRemoved  EventKind = "removed"
)

// Event is one added/modified/removed notification fed to the Cron Dispatcher.
type Event struct {
	Kind     EventKind
	Schedule *models.Schedule // nil for EventRemoved; ID is always set
	ID       string
}

// Watcher periodically diffs the Repository against its own in-memory hash
// map and emits Events. It never crashes on a repository read error: it
// emits an empty diff, leaves the map untouched, logs, and continues.
type Watcher struct {
	repo          *Repository
	checkInterval time.Duration
	logger        arbor.ILogger

	mu       sync.Mutex
	lastHash map[string]string // schedule_id -> hash of HashKey
}

func NewWatcher(repo *Repository, checkInterval time.Duration, logger arbor.ILogger) *Watcher {
	if checkInterval <= 0 {
		checkInterval = 60 * time.Second
	}
	return &Watcher{
		repo:          repo,
		checkInterval: checkInterval,
		logger:        logger,
		lastHash:      make(map[string]string),
	}
}

func hashOf(k models.HashKey) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%+v", k)))
	return fmt.Sprintf("%x", sum)
}

// Diff computes one round of added/modified/removed events against all
// schedules (including disabled ones), then replaces the in-memory map.
func (w *Watcher) Diff() []Event {
	schedules, err := w.repo.List(false)
	if err != nil {
		w.logger.Warn().Err(err).Msg("schedule watcher: repository read failed, skipping this tick")
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	newHash := make(map[string]string, len(schedules))
	byID := make(map[string]*models.Schedule, len(schedules))
	for _, sched := range schedules {
		h := hashOf(sched.HashKey())
		newHash[sched.ID] = h
		byID[sched.ID] = sched
	}

	var events []Event
	for id, h := range newHash {
		if oldHash, existed := w.lastHash[id]; !existed {
			events = append(events, Event{Kind: EventAdded, Schedule: byID[id], ID: id})
		} else if oldHash != h {
			events = append(events, Event{Kind: EventModified, Schedule: byID[id], ID: id})
		}
	}
	for id := range w.lastHash {
		if _, stillExists := newHash[id]; !stillExists {
			events = append(events, Event{Kind: EventRemoved, ID: id})
		}
	}

	w.lastHash = newHash
	return events
}

// Run ticks every check_interval until ctx is cancelled, delivering each
// round's events to handle.
func (w *Watcher) Run(ctx context.Context, handle func([]Event)) {
	ticker := time.NewTicker(w.checkInterval)
	defer ticker.Stop()

	// Prime the map once at startup so the first tick reports only genuine changes.
	handle(w.Diff())

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			events := w.Diff()
			if len(events) > 0 {
				handle(events)
			}
		}
	}
}
