// Package schedule owns the Schedule Repository (spec §4.1) and Schedule
// Watcher (spec §4.2): CRUD over Schedule records, reconciliation against an
// external source, and a hash-diff loop that feeds added/modified/removed
// events to the Cron Dispatcher.
package schedule

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/cookiescan/internal/models"
	"github.com/ternarybob/cookiescan/internal/storage/badger"
)

// Repository is the Schedule Repository of spec §4.1.
type Repository struct {
	storage *badger.ScheduleStorage
}

func NewRepository(storage *badger.ScheduleStorage) *Repository {
	return &Repository{storage: storage}
}

// Create validates time_config against frequency (a data-invariant failure
// per spec §7 must fail fast here, not at trigger time) and persists the
// schedule.
func (r *Repository) Create(domainConfigID, domain string, scanType models.ScanType, frequency models.Frequency, timeConfig models.TimeConfig, params models.ScanParams, enabled bool) (string, error) {
	if err := timeConfig.RequiredFields(frequency); err != nil {
		return "", fmt.Errorf("invalid schedule: %w", err)
	}
	if err := ValidateScanParams(params); err != nil {
		return "", fmt.Errorf("invalid schedule: %w", err)
	}
	sched := &models.Schedule{
		ID:             uuid.New().String(),
		DomainConfigID: domainConfigID,
		Domain:         domain,
		ScanType:       scanType,
		ScanParams:     params,
		Frequency:      frequency,
		TimeConfig:     timeConfig,
		Enabled:        enabled,
	}
	if err := r.storage.Create(sched); err != nil {
		return "", err
	}
	return sched.ID, nil
}

func (r *Repository) Get(id string) (*models.Schedule, error) {
	return r.storage.Get(id)
}

func (r *Repository) List(enabledOnly bool) ([]*models.Schedule, error) {
	return r.storage.List(enabledOnly)
}

func (r *Repository) ListByDomainConfigID(id string) ([]*models.Schedule, error) {
	return r.storage.ListByDomainConfigID(id)
}

// Update applies a partial mutation, validating the resulting time_config
// against its (possibly just-changed) frequency before persisting.
func (r *Repository) Update(id string, mutate func(*models.Schedule)) (bool, error) {
	var validationErr error
	ok, err := r.storage.Update(id, func(sched *models.Schedule) {
		mutate(sched)
		if verr := sched.TimeConfig.RequiredFields(sched.Frequency); verr != nil {
			validationErr = verr
			return
		}
		validationErr = ValidateScanParams(sched.ScanParams)
	})
	if err != nil {
		return false, err
	}
	if validationErr != nil {
		return false, fmt.Errorf("invalid schedule update: %w", validationErr)
	}
	return ok, nil
}

func (r *Repository) UpdateRunStatus(id string, lastRun time.Time, nextRun *time.Time, status string) error {
	return r.storage.UpdateRunStatus(id, lastRun, nextRun, status)
}

func (r *Repository) Delete(id string) (bool, error) {
	return r.storage.Delete(id)
}

// SyncFromExternal upserts by domain_config_id. allow_deep_scan=false records
// should already be filtered out by the caller (externalsync package) before
// reaching here; this method performs only the repository-level upsert.
func (r *Repository) SyncFromExternal(records []*models.Schedule) (badger.SyncResult, error) {
	for _, rec := range records {
		if err := rec.TimeConfig.RequiredFields(rec.Frequency); err != nil {
			return badger.SyncResult{}, fmt.Errorf("sync record for %s: %w", rec.DomainConfigID, err)
		}
	}
	return r.storage.SyncFromExternal(records)
}
