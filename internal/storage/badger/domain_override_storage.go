package badger

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/cookiescan/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// DomainOverrideStorage persists the per-domain_config_id classifier
// override map (spec §3 DomainOverride, §4.8 cascade step 1).
type DomainOverrideStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

func NewDomainOverrideStorage(db *BadgerDB, logger arbor.ILogger) *DomainOverrideStorage {
	return &DomainOverrideStorage{db: db, logger: logger}
}

// Get returns the override record for domainConfigID, or nil if none exists.
func (s *DomainOverrideStorage) Get(domainConfigID string) (*models.DomainOverride, error) {
	var rec models.DomainOverride
	if err := s.db.Store().Get(domainConfigID, &rec); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get domain override: %w", err)
	}
	return &rec, nil
}

// Upsert replaces the cookie-name -> Cookie template for one name within
// domainConfigID's override map, creating the record if it does not exist.
func (s *DomainOverrideStorage) Upsert(domainConfigID, cookieName string, tmpl models.Cookie) error {
	var rec models.DomainOverride
	err := s.db.Store().Get(domainConfigID, &rec)
	if err != nil {
		if err != badgerhold.ErrNotFound {
			return fmt.Errorf("get domain override for upsert: %w", err)
		}
		rec = models.DomainOverride{DomainConfigID: domainConfigID, Overrides: map[string]models.Cookie{}}
		rec.Overrides[cookieName] = tmpl
		if err := s.db.Store().Insert(domainConfigID, &rec); err != nil {
			return fmt.Errorf("insert domain override: %w", err)
		}
		return nil
	}
	if rec.Overrides == nil {
		rec.Overrides = map[string]models.Cookie{}
	}
	rec.Overrides[cookieName] = tmpl
	if err := s.db.Store().Update(domainConfigID, &rec); err != nil {
		return fmt.Errorf("update domain override: %w", err)
	}
	return nil
}
