package poller

import (
	"context"
	"sync"
	"time"

	"github.com/fabriqs/wedding-pix/payment"
)

// Checker fetches the current state of one payment intent.
type Checker interface {
	CheckStatus(ctx context.Context, id string) (*payment.StatusResult, error)
}

// Result is delivered to the sink once per resolved check.
type Result struct {
	Seq       uint64
	Status    *payment.StatusResult
	Err       error
	Failures  int
	Interval  time.Duration
	Exhausted bool
}

type Sink func(Result)

// Poller drives CheckStatus for a single payment id. Only the most recently
// issued request may reach the sink: issuing a check cancels the previous one and
// bumps the sequence number, and a resolution carrying an older number is dropped.
type Poller struct {
	checker Checker
	sink    Sink
	sched   Scheduler
	policy  Policy

	mu       sync.Mutex
	parent   context.Context
	id       string
	running  bool
	seq      uint64
	failures int
	interval time.Duration
	timer    Handle
	cancel   context.CancelFunc
}

type Option func(*Poller)

func WithScheduler(s Scheduler) Option {
	return func(p *Poller) {
		p.sched = s
	}
}

func WithPolicy(policy Policy) Option {
	return func(p *Poller) {
		p.policy = policy.normalized()
	}
}

func New(checker Checker, sink Sink, opts ...Option) *Poller {
	p := &Poller{
		checker: checker,
		sink:    sink,
		sched:   TimerScheduler{},
		policy:  DefaultPolicy(),
		parent:  context.Background(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start begins polling id with an immediate first check. A zero interval means
// the policy's base interval. Any previous run is voided.
func (p *Poller) Start(ctx context.Context, id string, interval time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.haltLocked()
	if ctx == nil {
		ctx = context.Background()
	}
	if interval <= 0 {
		interval = p.policy.BaseInterval
	}
	if interval > p.policy.MaxInterval {
		interval = p.policy.MaxInterval
	}

	p.parent = ctx
	p.id = id
	p.running = true
	p.failures = 0
	p.interval = interval
	p.checkLocked()
}

// Trigger issues a check right away, voiding any in-flight one. It reports false
// when the poller is not running.
func (p *Poller) Trigger() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return false
	}
	p.checkLocked()
	return true
}

// Stop cancels the scheduled check and voids the in-flight one. A result that
// was already resolved may still reach the sink; its Seq is below Seq().
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.haltLocked()
}

func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Seq returns the number of the most recently issued check.
func (p *Poller) Seq() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seq
}

func (p *Poller) haltLocked() {
	p.running = false
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	// anything still in flight now resolves with a stale sequence number
	p.seq++
}

func (p *Poller) checkLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	if p.cancel != nil {
		p.cancel()
	}

	p.seq++
	seq := p.seq
	ctx, cancel := context.WithTimeout(p.parent, p.policy.RequestTimeout)
	p.cancel = cancel

	go p.run(ctx, cancel, p.id, seq)
}

func (p *Poller) run(ctx context.Context, cancel context.CancelFunc, id string, seq uint64) {
	defer cancel()

	start := time.Now()
	status, err := p.checker.CheckStatus(ctx, id)
	observeCheck(status, err, time.Since(start))

	p.resolve(seq, status, err)
}

func (p *Poller) resolve(seq uint64, status *payment.StatusResult, err error) {
	p.mu.Lock()
	if !p.running || seq != p.seq {
		p.mu.Unlock()
		staleResults.Inc()
		return
	}
	p.cancel = nil

	if err != nil {
		p.failures++
		p.interval = p.policy.grow(p.interval, p.policy.FailureBackoff)
	} else {
		p.failures = 0
		p.interval = p.policy.grow(p.interval, p.policy.SuccessGrowth)
	}

	result := Result{
		Seq:      seq,
		Status:   status,
		Err:      err,
		Failures: p.failures,
		Interval: p.interval,
	}
	if err != nil && p.failures >= p.policy.MaxFailures {
		p.running = false
		result.Exhausted = true
	} else {
		p.timer = p.sched.AfterFunc(p.interval, p.fire(seq))
	}
	p.mu.Unlock()

	if p.sink != nil {
		p.sink(result)
	}
}

func (p *Poller) fire(seq uint64) func() {
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if !p.running || seq != p.seq {
			return
		}
		p.timer = nil
		p.checkLocked()
	}
}
