package checkout

import (
	"time"

	"github.com/go-co-op/gocron"
)

// Countdown runs a function on a fixed interval in the background. Runs never
// overlap; a tick that is still busy makes the next one wait.
type Countdown struct {
	scheduler *gocron.Scheduler
}

func NewCountdown(interval time.Duration, fn func()) (*Countdown, error) {
	if interval <= 0 {
		interval = time.Second
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	if _, err := s.Every(interval).Do(fn); err != nil {
		return nil, err
	}
	s.StartAsync()
	return &Countdown{scheduler: s}, nil
}

func (c *Countdown) Stop() {
	c.scheduler.Stop()
}
