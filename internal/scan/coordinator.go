package scan

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/cookiescan/internal/lock"
	"github.com/ternarybob/cookiescan/internal/models"
	"github.com/ternarybob/cookiescan/internal/schedule"
	"github.com/ternarybob/cookiescan/internal/storage/badger"
)

// lockTTL bounds how long a coordinator may hold a schedule's lock; chosen
// generously since a scan can run for minutes.
const lockTTL = 30 * time.Minute

// Coordinator glues one cron firing to one persisted ScanResult (spec
// §4.5), grounded on the teacher's job-execution bookkeeping pattern
// (insert a started row, update it on completion) generalized from a
// fixed job registry to arbitrary schedules guarded by the Distributed
// Lock.
type Coordinator struct {
	repo      *schedule.Repository
	lock      *lock.Lock
	jobExecs  *badger.JobExecutionStorage
	results   *badger.ScanResultStorage
	executor  *Executor
	admission *Admission
	logger    arbor.ILogger
}

func NewCoordinator(repo *schedule.Repository, lk *lock.Lock, jobExecs *badger.JobExecutionStorage, results *badger.ScanResultStorage, executor *Executor, admission *Admission, logger arbor.ILogger) *Coordinator {
	return &Coordinator{
		repo:      repo,
		lock:      lk,
		jobExecs:  jobExecs,
		results:   results,
		executor:  executor,
		admission: admission,
		logger:    logger,
	}
}

// Fire is the scheduler.FireFunc hook: one cron tick for scheduleID.
func (c *Coordinator) Fire(scheduleID string) {
	ctx := context.Background()
	if err := c.Run(ctx, scheduleID); err != nil {
		c.logger.Error().Err(err).Str("schedule_id", scheduleID).Msg("scheduled scan failed")
	}
}

// Run performs the full coordinator sequence (spec §4.5 steps 1-7) for one
// schedule firing. Returns nil both when the scan succeeds AND when
// another replica already owns this firing (lock contention is not an
// error condition).
func (c *Coordinator) Run(ctx context.Context, scheduleID string) error {
	token, err := c.lock.Acquire(scheduleID, lockTTL)
	if err != nil {
		if err == lock.ErrLockHeld {
			c.logger.Debug().Str("schedule_id", scheduleID).Msg("schedule already owned by another replica, skipping")
			return nil
		}
		return fmt.Errorf("acquire schedule lock: %w", err)
	}
	defer func() {
		if _, relErr := c.lock.Release(scheduleID, token); relErr != nil {
			c.logger.Warn().Err(relErr).Str("schedule_id", scheduleID).Msg("failed to release schedule lock")
		}
	}()

	sched, err := c.repo.Get(scheduleID)
	if err != nil {
		return fmt.Errorf("load schedule %s: %w", scheduleID, err)
	}
	if sched == nil {
		c.logger.Warn().Str("schedule_id", scheduleID).Msg("schedule vanished before firing could run")
		return nil
	}

	if c.admission != nil {
		if err := c.admission.Acquire(ctx); err != nil {
			return fmt.Errorf("admission control: %w", err)
		}
		defer c.admission.Release()
	}

	exec := &models.JobExecution{
		ExecutionID:    uuid.New().String(),
		ScheduleID:     scheduleID,
		JobID:          scheduleID,
		Domain:         sched.Domain,
		DomainConfigID: sched.DomainConfigID,
		Status:         models.JobExecutionStarted,
		StartedAt:      time.Now().UTC(),
	}
	if err := c.jobExecs.Create(exec); err != nil {
		return fmt.Errorf("create job execution: %w", err)
	}

	scanID := uuid.New().String()
	start := time.Now()
	result, runErr := c.executor.Run(ctx, scanID, sched.DomainConfigID, sched.Domain, sched.ScanType, sched.ScanParams)
	duration := time.Since(start)

	now := time.Now().UTC()
	if runErr != nil {
		_ = c.jobExecs.Update(exec.ExecutionID, func(e *models.JobExecution) {
			e.Status = models.JobExecutionFailed
			e.CompletedAt = &now
			e.DurationSeconds = duration.Seconds()
			e.Error = runErr.Error()
		})
		_ = c.repo.UpdateRunStatus(scheduleID, now, nil, string(models.JobExecutionFailed))
		return fmt.Errorf("scan execution failed: %w", runErr)
	}

	if err := c.results.Create(result); err != nil {
		_ = c.jobExecs.Update(exec.ExecutionID, func(e *models.JobExecution) {
			e.Status = models.JobExecutionFailed
			e.CompletedAt = &now
			e.DurationSeconds = duration.Seconds()
			e.Error = fmt.Sprintf("persist scan result: %v", err)
		})
		_ = c.repo.UpdateRunStatus(scheduleID, now, nil, string(models.JobExecutionFailed))
		return fmt.Errorf("persist scan result: %w", err)
	}

	_ = c.jobExecs.Update(exec.ExecutionID, func(e *models.JobExecution) {
		e.Status = models.JobExecutionSuccess
		e.CompletedAt = &now
		e.DurationSeconds = duration.Seconds()
		e.ScanID = scanID
	})
	_ = c.repo.UpdateRunStatus(scheduleID, now, nil, string(models.JobExecutionSuccess))

	return nil
}
