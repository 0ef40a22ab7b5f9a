package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatRemaining(t *testing.T) {
	deadline := t0.Add(58*time.Minute + 20*time.Second)

	assert.Equal(t, "58:20", FormatRemaining(deadline, t0))
	assert.Equal(t, "0:05", FormatRemaining(deadline, deadline.Add(-5*time.Second)))
	assert.Equal(t, "0:00", FormatRemaining(deadline, deadline.Add(-500*time.Millisecond)))
	assert.Equal(t, ExpiredLabel, FormatRemaining(deadline, deadline))
	assert.Equal(t, ExpiredLabel, FormatRemaining(deadline, deadline.Add(time.Minute)))
	assert.Equal(t, ExpiredLabel, FormatRemaining(time.Time{}, t0))
}

func TestRemaining(t *testing.T) {
	assert.Equal(t, 10*time.Second, Remaining(t0.Add(10*time.Second), t0))
	assert.Zero(t, Remaining(t0, t0.Add(time.Second)))
}
