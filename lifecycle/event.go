package lifecycle

import (
	"time"

	"github.com/fabriqs/wedding-pix/payment"
)

type Event interface {
	Name() string
}

// Created is the gateway's answer to a create call.
type Created struct {
	Intent       payment.Intent
	TotalAmount  int64
	PollInterval time.Duration
}

// Begin moves a freshly created session into polling.
type Begin struct{}

// Restored rebuilds a session from the durable record after a restart.
type Restored struct {
	Intent       payment.Intent
	TotalAmount  int64
	PollInterval time.Duration
}

type PollResolved struct {
	Result   payment.StatusResult
	Interval time.Duration
}

type PollFailed struct {
	Err       error
	Failures  int
	Interval  time.Duration
	Exhausted bool
}

// Tick is the one second countdown heartbeat.
type Tick struct{}

type CancelResolved struct {
	Result payment.CancelResult
}

type CancelFailed struct {
	Err error
}

type Retry struct{}

type Dismiss struct{}

func (Created) Name() string        { return "created" }
func (Begin) Name() string          { return "begin" }
func (Restored) Name() string       { return "restored" }
func (PollResolved) Name() string   { return "poll_resolved" }
func (PollFailed) Name() string     { return "poll_failed" }
func (Tick) Name() string           { return "tick" }
func (CancelResolved) Name() string { return "cancel_resolved" }
func (CancelFailed) Name() string   { return "cancel_failed" }
func (Retry) Name() string          { return "retry" }
func (Dismiss) Name() string        { return "dismiss" }
