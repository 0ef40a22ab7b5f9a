package poller

import "time"

// Handle is a scheduled task that can be cancelled.
type Handle interface {
	Stop() bool
}

type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Handle
}

// TimerScheduler runs tasks on runtime timers.
type TimerScheduler struct{}

func (TimerScheduler) AfterFunc(d time.Duration, f func()) Handle {
	return time.AfterFunc(d, f)
}
