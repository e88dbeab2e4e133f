// Package lock implements the Distributed Lock (spec §4.4): a badgerhold-
// backed key with TTL and holder token, guaranteeing at most one replica
// runs a given schedule at once. Adapted from the teacher's queue.BadgerManager
// visibility-timeout mechanics (set-if-absent + compare-and-delete), not a
// message queue — see DESIGN.md.
package lock

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
)

// ErrLockHeld is returned by Acquire when the resource is already locked.
var ErrLockHeld = errors.New("lock held by another holder")

const keyPrefix = "scheduler:lock:"

// entry is the badgerhold-persisted lock row.
type entry struct {
	ResourceID string    `badgerhold:"key"`
	Token      string
	ExpiresAt  time.Time
}

// Lock is the distributed lock over a shared badgerhold store.
type Lock struct {
	store  *badgerhold.Store
	logger arbor.ILogger
}

func New(store *badgerhold.Store, logger arbor.ILogger) *Lock {
	return &Lock{store: store, logger: logger}
}

func keyFor(resourceID string) string {
	return keyPrefix + resourceID
}

// Acquire is always non-blocking (spec §4.4: "blocking=false" is the mode
// this engine uses — the coordinator treats a miss as "another replica owns
// this firing", not something to wait out). Returns a 128-bit random token
// on success, "" and ErrLockHeld if already held by a live holder.
//
// No lock row existing yet is handled by Insert's own atomicity
// (ErrKeyExists means another replica inserted first). A row that exists
// but is expired is replaced via UpdateMatching instead of a plain
// Get-then-Update: UpdateMatching runs its find-and-mutate inside a single
// badger transaction, so two replicas racing the same expired holder can't
// both observe ExpiresAt as past and both win — badger's conflict detection
// fails one side's commit, and that side is reported back as ErrLockHeld
// rather than silently double-acquiring.
func (l *Lock) Acquire(resourceID string, ttl time.Duration) (string, error) {
	key := keyFor(resourceID)
	now := time.Now().UTC()
	token := uuid.New().String()

	row := entry{ResourceID: key, Token: token, ExpiresAt: now.Add(ttl)}
	if err := l.store.Insert(key, &row); err == nil {
		return token, nil
	} else if !errors.Is(err, badgerhold.ErrKeyExists) {
		return "", fmt.Errorf("acquire lock: %w", err)
	}

	claimed := false
	newExpiresAt := now.Add(ttl)
	err := l.store.UpdateMatching(&entry{}, badgerhold.Where("ResourceID").Eq(key).And("ExpiresAt").Le(now), func(record interface{}) error {
		e, ok := record.(*entry)
		if !ok {
			return fmt.Errorf("unexpected lock record type %T", record)
		}
		e.Token = token
		e.ExpiresAt = newExpiresAt
		claimed = true
		return nil
	})
	if err != nil {
		if errors.Is(err, badger.ErrConflict) {
			// Another replica's swap committed first; we lost the race.
			return "", ErrLockHeld
		}
		return "", fmt.Errorf("acquire expired lock: %w", err)
	}
	if !claimed {
		return "", ErrLockHeld
	}
	return token, nil
}

// Release deletes the lock only if token matches the current holder
// (compare-and-delete), so a slow replica can never release a lock another
// replica has since taken. A non-matching token, or an already-absent lock,
// is a no-op.
func (l *Lock) Release(resourceID, token string) (bool, error) {
	key := keyFor(resourceID)
	var existing entry
	if err := l.store.Get(key, &existing); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("release lock: %w", err)
	}
	if existing.Token != token {
		return false, nil
	}
	if err := l.store.Delete(key, &entry{}); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("release lock: %w", err)
	}
	return true, nil
}

// Extend renews the TTL of a held lock. Idempotent: calling it again before
// expiry simply pushes ExpiresAt further out.
func (l *Lock) Extend(resourceID, token string, ttl time.Duration) error {
	key := keyFor(resourceID)
	var existing entry
	if err := l.store.Get(key, &existing); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return fmt.Errorf("extend lock: not held")
		}
		return fmt.Errorf("extend lock: %w", err)
	}
	if existing.Token != token {
		return fmt.Errorf("extend lock: token mismatch")
	}
	existing.ExpiresAt = time.Now().UTC().Add(ttl)
	if err := l.store.Update(key, &existing); err != nil {
		return fmt.Errorf("extend lock: %w", err)
	}
	return nil
}
