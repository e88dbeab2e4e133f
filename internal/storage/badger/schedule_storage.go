package badger

import (
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/cookiescan/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ScheduleStorage backs schedule.Repository with badgerhold.
type ScheduleStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

func NewScheduleStorage(db *BadgerDB, logger arbor.ILogger) *ScheduleStorage {
	return &ScheduleStorage{db: db, logger: logger}
}

func (s *ScheduleStorage) Create(sched *models.Schedule) error {
	now := time.Now().UTC()
	sched.CreatedAt = now
	sched.UpdatedAt = now
	if err := s.db.Store().Insert(sched.ID, sched); err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	return nil
}

func (s *ScheduleStorage) Get(id string) (*models.Schedule, error) {
	var sched models.Schedule
	if err := s.db.Store().Get(id, &sched); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return &sched, nil
}

func (s *ScheduleStorage) List(enabledOnly bool) ([]*models.Schedule, error) {
	var schedules []*models.Schedule
	query := &badgerhold.Query{}
	if enabledOnly {
		query = badgerhold.Where("Enabled").Eq(true)
	}
	if err := s.db.Store().Find(&schedules, query); err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	sort.Slice(schedules, func(i, j int) bool {
		if schedules[i].Domain != schedules[j].Domain {
			return schedules[i].Domain < schedules[j].Domain
		}
		return schedules[i].CreatedAt.Before(schedules[j].CreatedAt)
	})
	return schedules, nil
}

func (s *ScheduleStorage) ListByDomainConfigID(id string) ([]*models.Schedule, error) {
	var schedules []*models.Schedule
	if err := s.db.Store().Find(&schedules, badgerhold.Where("DomainConfigID").Eq(id)); err != nil {
		return nil, fmt.Errorf("list schedules by domain_config_id: %w", err)
	}
	return schedules, nil
}

// Update applies fn to the stored schedule and persists the result,
// touching updated_at. Returns false if the schedule does not exist.
func (s *ScheduleStorage) Update(id string, fn func(*models.Schedule)) (bool, error) {
	var sched models.Schedule
	if err := s.db.Store().Get(id, &sched); err != nil {
		if err == badgerhold.ErrNotFound {
			return false, nil
		}
		return false, fmt.Errorf("get schedule for update: %w", err)
	}
	fn(&sched)
	sched.UpdatedAt = time.Now().UTC()
	if err := s.db.Store().Update(id, &sched); err != nil {
		return false, fmt.Errorf("update schedule: %w", err)
	}
	return true, nil
}

// UpdateRunStatus is written by the Scan Coordinator on completion.
func (s *ScheduleStorage) UpdateRunStatus(id string, lastRun time.Time, nextRun *time.Time, status string) error {
	_, err := s.Update(id, func(sched *models.Schedule) {
		sched.LastRun = &lastRun
		sched.NextRun = nextRun
		sched.LastStatus = status
	})
	return err
}

func (s *ScheduleStorage) Delete(id string) (bool, error) {
	if err := s.db.Store().Delete(id, &models.Schedule{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return false, nil
		}
		return false, fmt.Errorf("delete schedule: %w", err)
	}
	return true, nil
}

// SyncResult reports the outcome of SyncFromExternal.
type SyncResult struct {
	Created int
	Updated int
	Skipped int
}

// SyncFromExternal upserts by domain_config_id: present-and-differs updates,
// absent creates. Never deletes schedules absent from records (out of scope).
func (s *ScheduleStorage) SyncFromExternal(records []*models.Schedule) (SyncResult, error) {
	var result SyncResult
	for _, rec := range records {
		existing, err := s.ListByDomainConfigID(rec.DomainConfigID)
		if err != nil {
			return result, err
		}
		if len(existing) == 0 {
			rec.ID = rec.DomainConfigID
			if err := s.Create(rec); err != nil {
				return result, err
			}
			result.Created++
			continue
		}
		cur := existing[0]
		if cur.HashKey() == rec.HashKey() {
			result.Skipped++
			continue
		}
		_, err = s.Update(cur.ID, func(sched *models.Schedule) {
			sched.Domain = rec.Domain
			sched.Frequency = rec.Frequency
			sched.TimeConfig = rec.TimeConfig
			sched.Enabled = rec.Enabled
			sched.ProfileID = rec.ProfileID
			sched.ScanType = rec.ScanType
			sched.ScanParams = rec.ScanParams
		})
		if err != nil {
			return result, err
		}
		result.Updated++
	}
	return result, nil
}
