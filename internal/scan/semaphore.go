// Package scan implements the Scan Coordinator and Scan Executor (spec
// §4.5, §4.6): turning one cron firing (or one operator-triggered request)
// into a persisted ScanResult.
package scan

import "context"

// Admission bounds the number of scans running at once, grounded on
// original_source/services/parallel_scan_manager.py's asyncio.Semaphore
// concurrency cap, expressed as a buffered channel per Go idiom instead of
// a semaphore object.
type Admission struct {
	slots chan struct{}
}

// NewAdmission builds an Admission allowing up to maxConcurrency scans at
// once. maxConcurrency is clamped to [1, 10], mirroring the source's bound.
func NewAdmission(maxConcurrency int) *Admission {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	if maxConcurrency > 10 {
		maxConcurrency = 10
	}
	return &Admission{slots: make(chan struct{}, maxConcurrency)}
}

// Acquire blocks until a slot is free or ctx is cancelled.
func (a *Admission) Acquire(ctx context.Context) error {
	select {
	case a.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees one slot.
func (a *Admission) Release() {
	<-a.slots
}

// AvailableSlots reports how many scans could start immediately.
func (a *Admission) AvailableSlots() int {
	return cap(a.slots) - len(a.slots)
}

// ActiveCount reports how many scans are currently running.
func (a *Admission) ActiveCount() int {
	return len(a.slots)
}
