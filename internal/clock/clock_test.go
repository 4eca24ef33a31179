package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSinceReportsElapsedDuration(t *testing.T) {
	start := Now()
	time.Sleep(2 * time.Millisecond)
	assert.GreaterOrEqual(t, start.Since(), 2*time.Millisecond)
}

func TestSubReportsDeltaBetweenTimestamps(t *testing.T) {
	earlier := Now()
	time.Sleep(2 * time.Millisecond)
	later := Now()
	assert.GreaterOrEqual(t, later.Sub(earlier), 2*time.Millisecond)
}

func TestSecondsIsMonotonicBetweenReadings(t *testing.T) {
	a := Now()
	time.Sleep(time.Millisecond)
	b := Now()
	assert.Greater(t, b.Seconds(), a.Seconds())
}
