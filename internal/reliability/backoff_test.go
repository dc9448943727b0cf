package reliability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExponentialBackoffCap(t *testing.T) {
	base := 100 * time.Millisecond
	capDur := 700 * time.Millisecond
	assert.Equal(t, base, ExponentialBackoff(0, base, capDur))
	assert.Equal(t, 400*time.Millisecond, ExponentialBackoff(2, base, capDur))
	assert.Equal(t, capDur, ExponentialBackoff(10, base, capDur))
}

func TestSleepHonoursContext(t *testing.T) {
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}
