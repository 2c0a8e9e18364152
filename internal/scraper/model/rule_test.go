package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestAntiScrapingDefaults verifies zero-value configs fall back sanely.
func TestAntiScrapingDefaults(t *testing.T) {
	var c AntiScrapingConfig

	min, max := c.DelayBounds()
	assert.Equal(t, DefaultDelayMinMS, min)
	assert.Equal(t, DefaultDelayMaxMS, max)
	assert.Equal(t, DefaultRetryTimes, c.Retries())
	assert.Equal(t, 5*time.Second, c.RetryDelay())
	assert.Equal(t, 30*time.Second, c.Timeout())
}

// TestDelayBounds_Explicit verifies configured values pass through and an
// inverted range is repaired.
func TestDelayBounds_Explicit(t *testing.T) {
	c := AntiScrapingConfig{DelayMinMS: 100, DelayMaxMS: 300}
	min, max := c.DelayBounds()
	assert.Equal(t, 100, min)
	assert.Equal(t, 300, max)

	c = AntiScrapingConfig{DelayMinMS: 8000, DelayMaxMS: 1000}
	min, max = c.DelayBounds()
	assert.Equal(t, 8000, min)
	assert.Equal(t, 8000, max, "max never ends up below min")
}
