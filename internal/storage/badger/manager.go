package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/cookiescan/internal/common"
)

// Manager aggregates the badgerhold-backed storage adapters behind one
// connection, mirroring the teacher's storage.Manager composition.
type Manager struct {
	db              *BadgerDB
	schedules       *ScheduleStorage
	scanResults     *ScanResultStorage
	jobExecs        *JobExecutionStorage
	kv              *KVStorage
	domainOverrides *DomainOverrideStorage
}

func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (*Manager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}
	return &Manager{
		db:              db,
		schedules:       NewScheduleStorage(db, logger),
		scanResults:     NewScanResultStorage(db, logger),
		jobExecs:        NewJobExecutionStorage(db, logger),
		kv:              NewKVStorage(db, logger).(*KVStorage),
		domainOverrides: NewDomainOverrideStorage(db, logger),
	}, nil
}

func (m *Manager) Schedules() *ScheduleStorage           { return m.schedules }
func (m *Manager) ScanResults() *ScanResultStorage        { return m.scanResults }
func (m *Manager) JobExecutions() *JobExecutionStorage    { return m.jobExecs }
func (m *Manager) KeyValue() *KVStorage                   { return m.kv }
func (m *Manager) DomainOverrides() *DomainOverrideStorage { return m.domainOverrides }
func (m *Manager) Store() *BadgerDB                       { return m.db }

func (m *Manager) Close() error {
	return m.db.Close()
}
