package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/cookiescan/internal/models"
)

func TestBus_PublishOverwritesLatest(t *testing.T) {
	bus := NewBus()
	bus.Publish(Snapshot{ScanID: "s1", Status: models.ScanStatusRunning, PagesVisited: 1})
	bus.Publish(Snapshot{ScanID: "s1", Status: models.ScanStatusRunning, PagesVisited: 2})

	snap, ok := bus.Latest("s1")
	assert.True(t, ok)
	assert.Equal(t, 2, snap.PagesVisited)
}

func TestBus_LatestMissingScanReturnsFalse(t *testing.T) {
	bus := NewBus()
	_, ok := bus.Latest("never-started")
	assert.False(t, ok)
}

func TestBus_ForgetDropsSlot(t *testing.T) {
	bus := NewBus()
	bus.Publish(Snapshot{ScanID: "s1"})
	bus.Forget("s1")
	_, ok := bus.Latest("s1")
	assert.False(t, ok)
}
