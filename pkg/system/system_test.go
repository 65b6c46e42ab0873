package system

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUptime(t *testing.T) {
	startNanos.Store(0)
	assert.Zero(t, Uptime())

	InitStartTime()
	first := startNanos.Load()
	assert.NotZero(t, first)
	InitStartTime()
	assert.Equal(t, first, startNanos.Load())
	assert.GreaterOrEqual(t, Uptime(), int64(0))
}
