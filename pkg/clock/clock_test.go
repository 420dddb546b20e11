package clock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReal_UTCMicrosecond(t *testing.T) {
	now := Real().Now()
	assert.Equal(t, time.UTC, now.Location())
	assert.Zero(t, now.Nanosecond()%int(time.Microsecond))
}

func TestManual_Advance(t *testing.T) {
	start := time.Date(2026, 10, 15, 9, 0, 0, 0, time.FixedZone("CST", 8*3600))
	m := NewManual(start)

	assert.True(t, m.Now().Equal(start))
	assert.Equal(t, time.UTC, m.Now().Location())

	got := m.Advance(2 * time.Hour)
	assert.True(t, got.Equal(start.Add(2*time.Hour)))
	assert.True(t, m.Now().Equal(got))
}

func TestManual_ConcurrentAdvance(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewManual(start)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Advance(time.Second)
		}()
	}
	wg.Wait()
	assert.True(t, m.Now().Equal(start.Add(50*time.Second)))
}
