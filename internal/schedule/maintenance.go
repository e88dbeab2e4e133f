package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/cookiescan/internal/models"
	"github.com/ternarybob/cookiescan/internal/storage/badger"
)

// staleHeartbeat is how long a JobExecution can sit in status=started with
// no heartbeat update before Maintenance marks it failed (spec.md §7's
// "Unrecoverable" row: process crash mid-scan), grounded on the teacher's
// staleJobDetectorLoop (10 minute threshold).
const staleHeartbeat = 10 * time.Minute

// Maintenance runs the housekeeping the distilled spec leaves implicit but
// the original implementation performs: orphaned-job cleanup on restart,
// periodic stale-job detection, and job-execution history retention.
// Grounded on the teacher's scheduler Service.CleanupOrphanedJobs/
// DetectStaleJobs/staleJobDetectorLoop, generalized from a fixed job
// registry to arbitrary JobExecution rows keyed by schedule ID.
type Maintenance struct {
	jobExecs *badger.JobExecutionStorage
	logger   arbor.ILogger
}

func NewMaintenance(jobExecs *badger.JobExecutionStorage, logger arbor.ILogger) *Maintenance {
	return &Maintenance{jobExecs: jobExecs, logger: logger}
}

// CleanupOrphanedJobs marks any JobExecution left in status=started from a
// previous process lifetime as failed. Call once, before the dispatcher
// starts accepting new triggers.
func (m *Maintenance) CleanupOrphanedJobs() error {
	started, err := m.jobExecs.ListByStatus(models.JobExecutionStarted)
	if err != nil {
		return fmt.Errorf("list started job executions: %w", err)
	}
	if len(started) == 0 {
		return nil
	}

	m.logger.Warn().Int("count", len(started)).Msg("cleaning up orphaned job executions from previous run")
	now := time.Now().UTC()
	for _, exec := range started {
		execID := exec.ExecutionID
		if err := m.jobExecs.Update(execID, func(e *models.JobExecution) {
			e.Status = models.JobExecutionFailed
			e.CompletedAt = &now
			e.Error = "service restarted while job was running"
		}); err != nil {
			m.logger.Warn().Err(err).Str("execution_id", execID).Msg("failed to mark orphaned job execution as failed")
		}
	}
	return nil
}

// DetectStaleJobs marks JobExecutions with no heartbeat for staleHeartbeat
// as failed. Intended to run on a periodic tick alongside the schedule
// watcher.
func (m *Maintenance) DetectStaleJobs() error {
	started, err := m.jobExecs.ListByStatus(models.JobExecutionStarted)
	if err != nil {
		return fmt.Errorf("list started job executions: %w", err)
	}

	cutoff := time.Now().UTC().Add(-staleHeartbeat)
	now := time.Now().UTC()
	staleCount := 0
	for _, exec := range started {
		if exec.LastHeartbeat.After(cutoff) {
			continue
		}
		execID := exec.ExecutionID
		if err := m.jobExecs.Update(execID, func(e *models.JobExecution) {
			e.Status = models.JobExecutionFailed
			e.CompletedAt = &now
			e.Error = "stale: no heartbeat for 10+ minutes"
		}); err != nil {
			m.logger.Warn().Err(err).Str("execution_id", execID).Msg("failed to mark stale job execution as failed")
			continue
		}
		staleCount++
	}
	if staleCount > 0 {
		m.logger.Warn().Int("count", staleCount).Msg("marked stale job executions as failed")
	}
	return nil
}

// PruneJobExecutions deletes completed (non-started) JobExecution rows
// older than olderThan, implementing the retention policy spec.md §3
// names but leaves undefined.
func (m *Maintenance) PruneJobExecutions(olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	deleted, err := m.jobExecs.DeleteOlderThan(cutoff)
	if err != nil {
		return deleted, fmt.Errorf("prune job executions: %w", err)
	}
	if deleted > 0 {
		m.logger.Info().Int("count", deleted).Dur("older_than", olderThan).Msg("pruned job execution history")
	}
	return deleted, nil
}

// Run ticks stale-job detection every checkInterval and prunes history
// daily, until ctx is cancelled. CleanupOrphanedJobs is NOT called here;
// callers invoke it once at startup before Run.
func (m *Maintenance) Run(ctx context.Context, checkInterval, retention time.Duration) {
	staleTicker := time.NewTicker(checkInterval)
	defer staleTicker.Stop()

	pruneTicker := time.NewTicker(24 * time.Hour)
	defer pruneTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-staleTicker.C:
			if err := m.DetectStaleJobs(); err != nil {
				m.logger.Error().Err(err).Msg("stale job detection failed")
			}
		case <-pruneTicker.C:
			if _, err := m.PruneJobExecutions(retention); err != nil {
				m.logger.Error().Err(err).Msg("job execution pruning failed")
			}
		}
	}
}
