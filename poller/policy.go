package poller

import "time"

// Policy controls the adaptive interval. Successful checks nudge the interval up
// by SuccessGrowth, failures multiply it by FailureBackoff, and both stop at
// MaxInterval. The interval never shrinks within one run.
type Policy struct {
	BaseInterval   time.Duration
	MaxInterval    time.Duration
	SuccessGrowth  float64
	FailureBackoff float64
	MaxFailures    int
	RequestTimeout time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		BaseInterval:   4 * time.Second,
		MaxInterval:    30 * time.Second,
		SuccessGrowth:  1.1,
		FailureBackoff: 2,
		MaxFailures:    10,
		RequestTimeout: 10 * time.Second,
	}
}

func (p Policy) normalized() Policy {
	def := DefaultPolicy()
	if p.BaseInterval <= 0 {
		p.BaseInterval = def.BaseInterval
	}
	if p.MaxInterval < p.BaseInterval {
		p.MaxInterval = p.BaseInterval
	}
	if p.SuccessGrowth < 1 {
		p.SuccessGrowth = 1
	}
	if p.FailureBackoff < 1 {
		p.FailureBackoff = def.FailureBackoff
	}
	if p.MaxFailures <= 0 {
		p.MaxFailures = def.MaxFailures
	}
	if p.RequestTimeout <= 0 {
		p.RequestTimeout = def.RequestTimeout
	}
	return p
}

func (p Policy) grow(interval time.Duration, factor float64) time.Duration {
	next := time.Duration(float64(interval) * factor)
	if next < interval {
		next = interval
	}
	if next > p.MaxInterval {
		next = p.MaxInterval
	}
	return next
}
