package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentage(t *testing.T) {
	cases := []struct {
		name            string
		analyzed, total int
		want            int
	}{
		{"zero total", 5, 0, 0},
		{"negative total", 3, -1, 0},
		{"negative analyzed clamped", -5, 10, 0},
		{"analyzed over total clamped", 15, 10, 100},
		{"exact half", 5, 10, 50},
		{"round half up", 1, 3, 33},
		{"round half up two thirds", 2, 3, 67},
		{"zero analyzed", 0, 10, 0},
		{"full", 10, 10, 100},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, Percentage(c.analyzed, c.total))
		})
	}
}

func TestTrackerMonotonic(t *testing.T) {
	tr := NewTracker()
	assert.Equal(t, 20, tr.Next(2, 10))
	// A later call with a lower nominal percentage must never regress.
	assert.Equal(t, 20, tr.Next(1, 10))
	assert.Equal(t, 50, tr.Next(5, 10))
	assert.Equal(t, 50, tr.Last())
}

func TestTrackerComplete(t *testing.T) {
	tr := NewTracker()
	tr.Next(1, 10)
	assert.Equal(t, 100, tr.Complete())
	assert.Equal(t, 100, tr.Next(0, 10))
}

func TestTrackerSeed(t *testing.T) {
	tr := NewTracker()
	tr.Seed(40)
	assert.Equal(t, 40, tr.Last())
	// Seeding with a lower value than current must not regress.
	tr.Seed(10)
	assert.Equal(t, 40, tr.Last())
	assert.Equal(t, 40, tr.Next(3, 10))
}
