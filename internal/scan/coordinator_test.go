package scan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/cookiescan/internal/common"
	"github.com/ternarybob/cookiescan/internal/lock"
	"github.com/ternarybob/cookiescan/internal/models"
	"github.com/ternarybob/cookiescan/internal/schedule"
	"github.com/ternarybob/cookiescan/internal/storage/badger"
)

func TestCoordinator_SkipsWhenLockHeldByAnotherReplica(t *testing.T) {
	logger := arbor.NewLogger()
	db, err := badger.NewBadgerDB(logger, &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := schedule.NewRepository(badger.NewScheduleStorage(db, logger))
	id, err := repo.Create("dc-1", "https://example.test", models.ScanTypeQuick, models.FrequencyDaily,
		models.TimeConfig{Hour: 9, Minute: 0}, models.ScanParams{MaxRetries: 1, WaitForDynamicContent: 10}, true)
	require.NoError(t, err)

	lk := lock.New(db.Store(), logger)
	_, err = lk.Acquire(id, lockTTL)
	require.NoError(t, err)

	coord := NewCoordinator(repo, lk, badger.NewJobExecutionStorage(db, logger), badger.NewScanResultStorage(db, logger), nil, nil, logger)

	err = coord.Run(context.Background(), id)
	require.NoError(t, err, "lock contention must not surface as an error")
}

func TestCoordinator_MissingScheduleIsNotAnError(t *testing.T) {
	logger := arbor.NewLogger()
	db, err := badger.NewBadgerDB(logger, &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := schedule.NewRepository(badger.NewScheduleStorage(db, logger))
	lk := lock.New(db.Store(), logger)
	coord := NewCoordinator(repo, lk, badger.NewJobExecutionStorage(db, logger), badger.NewScanResultStorage(db, logger), nil, nil, logger)

	err = coord.Run(context.Background(), "never-existed")
	require.NoError(t, err)
}
