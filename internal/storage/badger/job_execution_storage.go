package badger

import (
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/cookiescan/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// JobExecutionStorage persists JobExecution audit rows.
type JobExecutionStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

func NewJobExecutionStorage(db *BadgerDB, logger arbor.ILogger) *JobExecutionStorage {
	return &JobExecutionStorage{db: db, logger: logger}
}

func (s *JobExecutionStorage) Create(exec *models.JobExecution) error {
	exec.LastHeartbeat = exec.StartedAt
	if err := s.db.Store().Insert(exec.ExecutionID, exec); err != nil {
		return fmt.Errorf("insert job execution: %w", err)
	}
	return nil
}

func (s *JobExecutionStorage) Get(id string) (*models.JobExecution, error) {
	var exec models.JobExecution
	if err := s.db.Store().Get(id, &exec); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get job execution: %w", err)
	}
	return &exec, nil
}

func (s *JobExecutionStorage) Update(id string, fn func(*models.JobExecution)) error {
	var exec models.JobExecution
	if err := s.db.Store().Get(id, &exec); err != nil {
		return fmt.Errorf("get job execution for update: %w", err)
	}
	fn(&exec)
	if err := s.db.Store().Update(id, &exec); err != nil {
		return fmt.Errorf("update job execution: %w", err)
	}
	return nil
}

func (s *JobExecutionStorage) Heartbeat(id string) error {
	return s.Update(id, func(exec *models.JobExecution) {
		exec.LastHeartbeat = time.Now().UTC()
	})
}

func (s *JobExecutionStorage) ListByScheduleID(scheduleID string) ([]*models.JobExecution, error) {
	var execs []*models.JobExecution
	if err := s.db.Store().Find(&execs, badgerhold.Where("ScheduleID").Eq(scheduleID).SortBy("StartedAt").Reverse()); err != nil {
		return nil, fmt.Errorf("list job executions: %w", err)
	}
	return execs, nil
}

// ListByStatus supports stale-job detection and orphan cleanup on restart.
func (s *JobExecutionStorage) ListByStatus(status models.JobExecutionStatus) ([]*models.JobExecution, error) {
	var execs []*models.JobExecution
	if err := s.db.Store().Find(&execs, badgerhold.Where("Status").Eq(status)); err != nil {
		return nil, fmt.Errorf("list job executions by status: %w", err)
	}
	return execs, nil
}

// DeleteOlderThan removes completed rows older than cutoff, implementing
// the retention policy spec.md §3 names but leaves undefined.
func (s *JobExecutionStorage) DeleteOlderThan(cutoff time.Time) (int, error) {
	var execs []*models.JobExecution
	if err := s.db.Store().Find(&execs, badgerhold.Where("StartedAt").Lt(cutoff).And("Status").Ne(models.JobExecutionStarted)); err != nil {
		return 0, fmt.Errorf("find job executions for pruning: %w", err)
	}
	deleted := 0
	for _, exec := range execs {
		if err := s.db.Store().Delete(exec.ExecutionID, &models.JobExecution{}); err != nil {
			return deleted, fmt.Errorf("delete job execution %s: %w", exec.ExecutionID, err)
		}
		deleted++
	}
	return deleted, nil
}
