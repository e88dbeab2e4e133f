package wait

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/cookiescan/internal/models"
)

func TestFor_UnknownStrategyDefaultsToTimeout(t *testing.T) {
	strategy := For(models.WaitStrategy("bogus"))
	ctx := context.Background()
	start := time.Now()
	ok := strategy(ctx, 10*time.Millisecond)
	assert.True(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestSleepOnly_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sleepOnly(ctx, time.Second))
}
