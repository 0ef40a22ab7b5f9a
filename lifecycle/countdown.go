package lifecycle

import (
	"fmt"
	"time"
)

const ExpiredLabel = "Expired"

// Remaining is the time left before expiresAt, never negative.
func Remaining(expiresAt, now time.Time) time.Duration {
	if expiresAt.IsZero() {
		return 0
	}
	d := expiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// FormatRemaining renders the countdown as m:ss, or ExpiredLabel once the
// deadline has passed.
func FormatRemaining(expiresAt, now time.Time) string {
	d := Remaining(expiresAt, now)
	if d <= 0 {
		return ExpiredLabel
	}
	minutes := int(d / time.Minute)
	seconds := int(d % time.Minute / time.Second)
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
