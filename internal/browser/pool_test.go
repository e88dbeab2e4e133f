package browser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, 5, cfg.Size)
	assert.Equal(t, 2, cfg.WarmSize)
	assert.Equal(t, time.Second, cfg.AcquireFastPath)
	assert.Equal(t, 3600*time.Second, cfg.MaxAge)
	assert.Equal(t, 300*time.Second, cfg.MaxIdle)
	assert.Equal(t, 100, cfg.MaxUseCount)
}

func TestConfig_SizeClampedTo10(t *testing.T) {
	cfg := Config{Size: 50}.withDefaults()
	assert.Equal(t, 10, cfg.Size)
}

func TestInstance_ExpiredByUseCount(t *testing.T) {
	cfg := Config{MaxUseCount: 3}.withDefaults()
	inst := &Instance{createdAt: time.Now(), lastUsedAt: time.Now(), useCount: 3}
	assert.True(t, inst.expired(cfg))
}

func TestInstance_ExpiredByAge(t *testing.T) {
	cfg := Config{MaxAge: time.Second}.withDefaults()
	inst := &Instance{createdAt: time.Now().Add(-2 * time.Second), lastUsedAt: time.Now()}
	assert.True(t, inst.expired(cfg))
}

func TestInstance_ExpiredByIdle(t *testing.T) {
	cfg := Config{MaxIdle: time.Second}.withDefaults()
	inst := &Instance{createdAt: time.Now(), lastUsedAt: time.Now().Add(-2 * time.Second)}
	assert.True(t, inst.expired(cfg))
}

func TestInstance_NotExpiredWhenFresh(t *testing.T) {
	cfg := Config{}.withDefaults()
	inst := &Instance{createdAt: time.Now(), lastUsedAt: time.Now(), useCount: 1}
	assert.False(t, inst.expired(cfg))
}
