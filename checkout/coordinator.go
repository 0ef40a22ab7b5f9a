package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/asaskevich/EventBus"

	"github.com/fabriqs/wedding-pix/lifecycle"
	"github.com/fabriqs/wedding-pix/logger"
	"github.com/fabriqs/wedding-pix/payment"
	"github.com/fabriqs/wedding-pix/poller"
	"github.com/fabriqs/wedding-pix/store"
)

// Topics published on the coordinator's bus. Handlers receive a
// lifecycle.Session.
const (
	TopicStateChanged = "checkout:state"
	TopicNotification = "checkout:notification"
	TopicConfirmed    = "checkout:confirmed"
	TopicReconcile    = "checkout:reconcile"
)

var (
	ErrNoSession     = errors.New("no payment session")
	ErrSessionActive = errors.New("a payment session is already active")
	ErrClosed        = errors.New("checkout closed")
)

type Request struct {
	TotalAmount int64
	Description string
	Customer    payment.Customer
	Metadata    map[string]string
}

// Coordinator owns the single payment session. Every transition runs under one
// mutex together with its store and poller effects; notification effects are
// published on the bus after the mutex is released.
type Coordinator struct {
	provider payment.Provider
	store    store.SessionRepository
	bus      EventBus.Bus
	poller   *poller.Poller
	now      func() time.Time

	policy        poller.Policy
	scheduler     poller.Scheduler
	expirySeconds int
	description   string

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	session   lifecycle.Session
	lastSeq   uint64
	starting  bool
	closed    bool
	countdown *Countdown
}

type Option func(*Coordinator)

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

func WithBus(bus EventBus.Bus) Option {
	return func(c *Coordinator) {
		c.bus = bus
	}
}

func WithScheduler(s poller.Scheduler) Option {
	return func(c *Coordinator) {
		c.scheduler = s
	}
}

func WithPolicy(p poller.Policy) Option {
	return func(c *Coordinator) {
		c.policy = p
	}
}

// WithExpiry sets the PIX validity requested on create.
func WithExpiry(seconds int) Option {
	return func(c *Coordinator) {
		c.expirySeconds = seconds
	}
}

func WithDescription(description string) Option {
	return func(c *Coordinator) {
		c.description = description
	}
}

func New(provider payment.Provider, repo store.SessionRepository, opts ...Option) *Coordinator {
	c := &Coordinator{
		provider:      provider,
		store:         repo,
		now:           time.Now,
		policy:        poller.DefaultPolicy(),
		scheduler:     poller.TimerScheduler{},
		expirySeconds: 3500,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.bus == nil {
		c.bus = EventBus.New()
	}
	if c.store == nil {
		c.store = store.NewMemoryRepository()
	}

	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.poller = poller.New(provider, c.onPoll,
		poller.WithScheduler(c.scheduler),
		poller.WithPolicy(c.policy),
	)
	return c
}

func (c *Coordinator) Bus() EventBus.Bus {
	return c.bus
}

// OnConfirmed registers fn to run once per confirmed payment.
func (c *Coordinator) OnConfirmed(fn func(lifecycle.Session)) error {
	return c.bus.Subscribe(TopicConfirmed, fn)
}

// Start creates a payment intent for req and begins polling it. Create
// failures are returned as they are and leave no session behind.
func (c *Coordinator) Start(ctx context.Context, req Request) (lifecycle.Session, error) {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return lifecycle.Session{}, ErrClosed
	case c.session.Active() || c.starting:
		s := c.session
		c.mu.Unlock()
		return s, ErrSessionActive
	}
	c.starting = true
	c.mu.Unlock()

	description := req.Description
	if description == "" {
		description = c.description
	}
	intent, err := c.provider.CreateIntent(ctx, &payment.IntentRequest{
		AmountCents:   req.TotalAmount,
		Description:   description,
		ExpirySeconds: c.expirySeconds,
		Customer:      req.Customer,
		Metadata:      req.Metadata,
	})

	c.mu.Lock()
	c.starting = false
	if c.closed {
		c.mu.Unlock()
		return lifecycle.Session{}, ErrClosed
	}
	if err != nil {
		c.mu.Unlock()
		logger.Error(err, "Failed to create PIX payment", map[string]interface{}{
			"amount":    req.TotalAmount,
			"retryable": payment.IsRetryable(err),
		})
		return lifecycle.Session{}, err
	}

	logger.Info("PIX payment created", map[string]interface{}{
		"payment_id": intent.ID,
		"amount":     req.TotalAmount,
		"expires_at": intent.ExpiresAt,
	})

	published, err := c.applyLocked(lifecycle.Created{
		Intent:       *intent,
		TotalAmount:  req.TotalAmount,
		PollInterval: c.policy.BaseInterval,
	})
	if err == nil {
		var more []lifecycle.Effect
		more, err = c.applyLocked(lifecycle.Begin{})
		published = append(published, more...)
	}
	s := c.session
	c.mu.Unlock()

	c.publish(s, published)
	return s, err
}

// Restore resumes the session kept in the store, if any. It reports whether a
// session was found.
func (c *Coordinator) Restore(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false, ErrClosed
	}
	if c.session.Active() || c.starting {
		c.mu.Unlock()
		return false, ErrSessionActive
	}

	record, err := c.store.Load(ctx)
	if err != nil {
		c.mu.Unlock()
		logger.Error(err, "Failed to load persisted payment", nil)
		return false, err
	}
	if record == nil {
		c.mu.Unlock()
		return false, nil
	}

	published, err := c.applyLocked(lifecycle.Restored{
		Intent:       record.Intent(),
		TotalAmount:  record.TotalAmount,
		PollInterval: c.policy.BaseInterval,
	})
	s := c.session
	c.mu.Unlock()

	if err != nil {
		return false, err
	}
	logger.Info("Restored persisted payment", map[string]interface{}{
		"payment_id": s.Intent.ID,
		"status":     s.Status.String(),
	})
	c.publish(s, published)
	return true, nil
}

// Cancel asks the gateway to cancel the active payment. A refusal keeps the
// session as it is and is reported through the returned result.
func (c *Coordinator) Cancel(ctx context.Context) (*payment.CancelResult, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if !c.session.Active() {
		c.mu.Unlock()
		return nil, ErrNoSession
	}
	if c.session.Status.Terminal() {
		err := fmt.Errorf("%w: cancel while %s", lifecycle.ErrInvalidTransition, c.session.Status)
		c.mu.Unlock()
		return nil, err
	}
	id := c.session.Intent.ID
	c.mu.Unlock()

	result, err := c.provider.Cancel(ctx, id)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return result, ErrClosed
	}
	if c.session.Intent.ID != id {
		c.mu.Unlock()
		return result, ErrNoSession
	}

	var ev lifecycle.Event
	if err != nil {
		var verr *payment.ValidationError
		if errors.As(err, &verr) {
			c.mu.Unlock()
			return nil, err
		}
		logger.Error(err, "Failed to cancel PIX payment", map[string]interface{}{"payment_id": id})
		ev = lifecycle.CancelFailed{Err: err}
	} else {
		logger.Info("PIX payment cancel answered", map[string]interface{}{
			"payment_id": id,
			"cancelled":  result.Cancelled,
			"status":     result.Status.String(),
		})
		ev = lifecycle.CancelResolved{Result: *result}
	}

	published, terr := c.applyLocked(ev)
	s := c.session
	c.mu.Unlock()

	c.publish(s, published)
	if err != nil {
		return nil, err
	}
	return result, terr
}

// RetryConnection resumes polling after a failure or a lost connection.
func (c *Coordinator) RetryConnection() error {
	return c.fire(lifecycle.Retry{})
}

// Dismiss closes a finished session and removes its persisted record.
func (c *Coordinator) Dismiss() error {
	return c.fire(lifecycle.Dismiss{})
}

// Tick enforces the expiry deadline. The countdown calls it every second.
func (c *Coordinator) Tick() {
	c.mu.Lock()
	if c.closed || !c.session.Active() {
		c.mu.Unlock()
		return
	}
	published, err := c.applyLocked(lifecycle.Tick{})
	s := c.session
	c.mu.Unlock()

	if err == nil && len(published) > 0 {
		c.publish(s, published)
	}
}

// CheckNow issues an immediate status check, as when the guest says the
// payment was made. It never confirms a payment by itself.
func (c *Coordinator) CheckNow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.session.Status.Polling() {
		return false
	}
	return c.poller.Trigger()
}

func (c *Coordinator) Snapshot() lifecycle.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// StartCountdown runs Tick every interval until Close.
func (c *Coordinator) StartCountdown(interval time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.countdown != nil {
		return nil
	}
	cd, err := NewCountdown(interval, c.Tick)
	if err != nil {
		return err
	}
	c.countdown = cd
	return nil
}

// Close stops polling and the countdown. Results still in flight are dropped.
// The persisted record is kept so the session can be restored later.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.poller.Stop()
	c.cancel()
	cd := c.countdown
	c.countdown = nil
	c.mu.Unlock()

	if cd != nil {
		cd.Stop()
	}
}

func (c *Coordinator) fire(ev lifecycle.Event) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.session.Active() {
		c.mu.Unlock()
		return ErrNoSession
	}
	published, err := c.applyLocked(ev)
	s := c.session
	c.mu.Unlock()

	if err != nil {
		return err
	}
	c.publish(s, published)
	return nil
}

func (c *Coordinator) onPoll(res poller.Result) {
	c.mu.Lock()
	if c.closed || res.Seq <= c.lastSeq {
		c.mu.Unlock()
		return
	}
	c.lastSeq = res.Seq

	var ev lifecycle.Event
	switch {
	case res.Err != nil:
		logger.Warn("Payment status check failed", map[string]interface{}{
			"payment_id": c.session.Intent.ID,
			"failures":   res.Failures,
			"exhausted":  res.Exhausted,
			"error":      res.Err.Error(),
		})
		ev = lifecycle.PollFailed{Err: res.Err, Failures: res.Failures, Interval: res.Interval, Exhausted: res.Exhausted}
	case res.Status == nil:
		ev = lifecycle.PollFailed{Err: errors.New("empty status response"), Failures: res.Failures, Interval: res.Interval, Exhausted: res.Exhausted}
	default:
		ev = lifecycle.PollResolved{Result: *res.Status, Interval: res.Interval}
	}

	published, err := c.applyLocked(ev)
	s := c.session
	c.mu.Unlock()

	if err == nil {
		c.publish(s, published)
	}
}

// applyLocked runs one transition and executes its store and poller effects.
// It returns the effects that still have to be published.
func (c *Coordinator) applyLocked(ev lifecycle.Event) ([]lifecycle.Effect, error) {
	prev := c.session
	next, effects, err := lifecycle.Transition(prev, ev, c.now())
	if err != nil {
		return nil, err
	}
	c.session = next

	var published []lifecycle.Effect
	for _, eff := range effects {
		switch eff {
		case lifecycle.Persist:
			c.persistLocked()
		case lifecycle.ClearPersistence:
			c.clearLocked(prev.Intent.ID)
		case lifecycle.StartPolling:
			c.lastSeq = c.poller.Seq()
			c.poller.Start(c.ctx, next.Intent.ID, next.PollInterval)
		case lifecycle.StopPolling:
			c.poller.Stop()
		default:
			published = append(published, eff)
		}
	}

	if prev.Status != next.Status {
		logger.Info("Payment session transition", map[string]interface{}{
			"payment_id": firstID(next, prev),
			"event":      ev.Name(),
			"from":       prev.Status.String(),
			"to":         next.Status.String(),
		})
		published = append(published, stateChanged)
	}
	return published, nil
}

// stateChanged is a local marker for TopicStateChanged; it is never produced by
// the state machine.
const stateChanged lifecycle.Effect = -1

func (c *Coordinator) persistLocked() {
	record := store.NewRecord(c.session.Intent, c.session.TotalAmount, c.now())
	ctx, cancel := context.WithTimeout(c.ctx, 5*time.Second)
	defer cancel()
	if err := c.store.Save(ctx, record); err != nil {
		logger.Error(err, "Failed to persist payment session", map[string]interface{}{
			"payment_id": record.PaymentData.ID,
		})
	}
}

func (c *Coordinator) clearLocked(id string) {
	ctx, cancel := context.WithTimeout(c.ctx, 5*time.Second)
	defer cancel()
	if err := c.store.Clear(ctx); err != nil {
		logger.Error(err, "Failed to clear persisted payment session", map[string]interface{}{
			"payment_id": id,
		})
	}
}

func (c *Coordinator) publish(s lifecycle.Session, effects []lifecycle.Effect) {
	for _, eff := range effects {
		switch eff {
		case stateChanged:
			c.bus.Publish(TopicStateChanged, s)
		case lifecycle.PlayNotification:
			c.bus.Publish(TopicNotification, s)
		case lifecycle.ConfirmPayment:
			logger.Info("PIX payment confirmed", map[string]interface{}{
				"payment_id": s.Intent.ID,
				"amount":     s.TotalAmount,
			})
			c.bus.Publish(TopicConfirmed, s)
		case lifecycle.ReconcilePaid:
			logger.Warn("Payment reported paid after local cancellation", map[string]interface{}{
				"payment_id": s.Intent.ID,
				"amount":     s.TotalAmount,
			})
			c.bus.Publish(TopicReconcile, s)
		}
	}
}

func firstID(sessions ...lifecycle.Session) string {
	for _, s := range sessions {
		if s.Intent.ID != "" {
			return s.Intent.ID
		}
	}
	return ""
}
