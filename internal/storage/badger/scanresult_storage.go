package badger

import (
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/cookiescan/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ScanResultStorage persists ScanResult rows and their cookie batches.
type ScanResultStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

func NewScanResultStorage(db *BadgerDB, logger arbor.ILogger) *ScanResultStorage {
	return &ScanResultStorage{db: db, logger: logger}
}

func (s *ScanResultStorage) Create(result *models.ScanResult) error {
	now := time.Now().UTC()
	result.CreatedAt = now
	result.UpdatedAt = now
	result.Derive()
	if err := s.db.Store().Insert(result.ScanID, result); err != nil {
		return fmt.Errorf("insert scan result: %w", err)
	}
	return nil
}

func (s *ScanResultStorage) Get(scanID string) (*models.ScanResult, error) {
	var result models.ScanResult
	if err := s.db.Store().Get(scanID, &result); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get scan result: %w", err)
	}
	return &result, nil
}

// AppendCookieBatch appends up to 1000 cookies to a ScanResult. badgerhold's
// Update runs inside a single Badger transaction, giving the batch the
// atomicity §4.6/§6 require without a separate cookies collection.
func (s *ScanResultStorage) AppendCookieBatch(scanID string, batch []models.Cookie) error {
	if len(batch) > 1000 {
		return fmt.Errorf("cookie batch of %d exceeds the 1000-row limit", len(batch))
	}
	var result models.ScanResult
	if err := s.db.Store().Get(scanID, &result); err != nil {
		return fmt.Errorf("get scan result for cookie batch: %w", err)
	}
	result.Cookies = append(result.Cookies, batch...)
	result.Derive()
	result.UpdatedAt = time.Now().UTC()
	if err := s.db.Store().Update(scanID, &result); err != nil {
		return fmt.Errorf("append cookie batch: %w", err)
	}
	return nil
}

// Finalize transitions a ScanResult to a terminal status and persists the
// final cookie set, pages visited, and storage snapshots in one write.
func (s *ScanResultStorage) Finalize(result *models.ScanResult) error {
	result.Derive()
	result.UpdatedAt = time.Now().UTC()
	if err := s.db.Store().Update(result.ScanID, result); err != nil {
		return fmt.Errorf("finalize scan result: %w", err)
	}
	return nil
}

func (s *ScanResultStorage) ListByDomainConfigID(id string, limit int) ([]*models.ScanResult, error) {
	var results []*models.ScanResult
	q := badgerhold.Where("DomainConfigID").Eq(id).SortBy("TimestampUTC").Reverse()
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := s.db.Store().Find(&results, q); err != nil {
		return nil, fmt.Errorf("list scan results: %w", err)
	}
	return results, nil
}

func (s *ScanResultStorage) Delete(scanID string) (bool, error) {
	if err := s.db.Store().Delete(scanID, &models.ScanResult{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return false, nil
		}
		return false, fmt.Errorf("delete scan result: %w", err)
	}
	return true, nil
}
