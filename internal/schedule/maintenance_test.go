package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/cookiescan/internal/common"
	"github.com/ternarybob/cookiescan/internal/models"
	"github.com/ternarybob/cookiescan/internal/storage/badger"
)

func newTestJobExecs(t *testing.T) *badger.JobExecutionStorage {
	t.Helper()
	logger := arbor.NewLogger()
	db, err := badger.NewBadgerDB(logger, &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return badger.NewJobExecutionStorage(db, logger)
}

func TestMaintenance_CleanupOrphanedJobs(t *testing.T) {
	store := newTestJobExecs(t)
	m := NewMaintenance(store, arbor.NewLogger())

	require.NoError(t, store.Create(&models.JobExecution{
		ExecutionID:   "exec-1",
		ScheduleID:    "sched-1",
		Status:        models.JobExecutionStarted,
		StartedAt:     time.Now().UTC(),
		LastHeartbeat: time.Now().UTC(),
	}))
	require.NoError(t, store.Create(&models.JobExecution{
		ExecutionID:   "exec-2",
		ScheduleID:    "sched-2",
		Status:        models.JobExecutionSuccess,
		StartedAt:     time.Now().UTC(),
		LastHeartbeat: time.Now().UTC(),
	}))

	require.NoError(t, m.CleanupOrphanedJobs())

	orphan, err := store.Get("exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobExecutionFailed, orphan.Status)
	assert.Contains(t, orphan.Error, "restarted")

	untouched, err := store.Get("exec-2")
	require.NoError(t, err)
	assert.Equal(t, models.JobExecutionSuccess, untouched.Status)
}

func TestMaintenance_DetectStaleJobs(t *testing.T) {
	store := newTestJobExecs(t)
	m := NewMaintenance(store, arbor.NewLogger())

	require.NoError(t, store.Create(&models.JobExecution{
		ExecutionID:   "stale-1",
		ScheduleID:    "sched-1",
		Status:        models.JobExecutionStarted,
		StartedAt:     time.Now().UTC().Add(-1 * time.Hour),
		LastHeartbeat: time.Now().UTC().Add(-20 * time.Minute),
	}))
	require.NoError(t, store.Create(&models.JobExecution{
		ExecutionID:   "fresh-1",
		ScheduleID:    "sched-2",
		Status:        models.JobExecutionStarted,
		StartedAt:     time.Now().UTC(),
		LastHeartbeat: time.Now().UTC(),
	}))

	require.NoError(t, m.DetectStaleJobs())

	stale, err := store.Get("stale-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobExecutionFailed, stale.Status)

	fresh, err := store.Get("fresh-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobExecutionStarted, fresh.Status)
}

func TestMaintenance_PruneJobExecutions(t *testing.T) {
	store := newTestJobExecs(t)
	m := NewMaintenance(store, arbor.NewLogger())

	old := time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, store.Create(&models.JobExecution{
		ExecutionID:   "old-1",
		ScheduleID:    "sched-1",
		Status:        models.JobExecutionSuccess,
		StartedAt:     old,
		CompletedAt:   &old,
		LastHeartbeat: old,
	}))
	require.NoError(t, store.Create(&models.JobExecution{
		ExecutionID:   "recent-1",
		ScheduleID:    "sched-2",
		Status:        models.JobExecutionSuccess,
		StartedAt:     time.Now().UTC(),
		LastHeartbeat: time.Now().UTC(),
	}))

	deleted, err := m.PruneJobExecutions(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	gone, err := store.Get("old-1")
	require.NoError(t, err)
	assert.Nil(t, gone)

	_, err = store.Get("recent-1")
	assert.NoError(t, err)
}

func TestMaintenance_Run_StopsOnContextCancel(t *testing.T) {
	store := newTestJobExecs(t)
	m := NewMaintenance(store, arbor.NewLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, 10*time.Millisecond, time.Hour)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
