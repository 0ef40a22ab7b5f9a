package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabriqs/wedding-pix/payment"
)

var t0 = time.Date(2024, 11, 16, 15, 0, 0, 0, time.UTC)

func testIntent() payment.Intent {
	return payment.Intent{
		ID:        "p1",
		Amount:    9900,
		Code:      "000201PIX",
		ImageData: "data:image/png;base64,AAA",
		ExpiresAt: t0.Add(60 * time.Second),
		Status:    payment.StatusPending,
	}
}

func step(t *testing.T, s Session, ev Event, now time.Time) (Session, []Effect) {
	t.Helper()
	next, effects, err := Transition(s, ev, now)
	require.NoError(t, err)
	return next, effects
}

func pendingSession(t *testing.T) Session {
	t.Helper()
	s, _ := step(t, Session{}, Created{Intent: testIntent(), TotalAmount: 9900, PollInterval: 4 * time.Second}, t0)
	s, _ = step(t, s, Begin{}, t0)
	return s
}

func polled(status payment.Status) PollResolved {
	return PollResolved{Result: payment.StatusResult{ID: "p1", Status: status}, Interval: 4400 * time.Millisecond}
}

func TestCreatedThenBegin(t *testing.T) {
	s, effects := step(t, Session{}, Created{Intent: testIntent(), TotalAmount: 9900, PollInterval: 4 * time.Second}, t0)
	assert.Equal(t, StatusLoading, s.Status)
	assert.Equal(t, []Effect{Persist}, effects)
	assert.Equal(t, int64(9900), s.TotalAmount)

	s, effects = step(t, s, Begin{}, t0)
	assert.Equal(t, StatusPending, s.Status)
	assert.Equal(t, []Effect{StartPolling}, effects)
}

func TestCreatedRejectedWhileActive(t *testing.T) {
	s := pendingSession(t)
	_, _, err := Transition(s, Created{Intent: testIntent()}, t0)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestPaidFiresEffectsOnce(t *testing.T) {
	s := pendingSession(t)

	s, effects := step(t, s, polled(payment.StatusPaid), t0.Add(10*time.Second))
	assert.Equal(t, StatusPaid, s.Status)
	assert.Equal(t, []Effect{StopPolling, ClearPersistence, PlayNotification, ConfirmPayment}, effects)
	assert.False(t, s.CanRetry)

	// a late duplicate changes nothing
	again, effects := step(t, s, polled(payment.StatusPaid), t0.Add(11*time.Second))
	assert.Equal(t, s, again)
	assert.Empty(t, effects)
}

func TestPendingResultKeepsPolling(t *testing.T) {
	s := pendingSession(t)
	s.RetryCount = 3

	s, effects := step(t, s, polled(payment.StatusPending), t0.Add(5*time.Second))
	assert.Equal(t, StatusPending, s.Status)
	assert.Empty(t, effects)
	assert.Zero(t, s.RetryCount)
	assert.Equal(t, 4400*time.Millisecond, s.PollInterval)
}

func TestFailedResult(t *testing.T) {
	for _, remote := range []payment.Status{payment.StatusFailed, payment.StatusCancelled} {
		s := pendingSession(t)
		s, effects := step(t, s, polled(remote), t0.Add(5*time.Second))
		assert.Equal(t, StatusFailed, s.Status)
		assert.True(t, s.CanRetry)
		assert.Equal(t, ReasonPaymentFailed, s.Reason)
		assert.Equal(t, []Effect{StopPolling}, effects)
	}
}

func TestRemoteExpired(t *testing.T) {
	s := pendingSession(t)
	s, effects := step(t, s, polled(payment.StatusExpired), t0.Add(5*time.Second))
	assert.Equal(t, StatusExpired, s.Status)
	assert.Equal(t, []Effect{StopPolling}, effects)
	assert.False(t, s.CanRetry)
}

func TestExpiryWinsOverLatePendingResult(t *testing.T) {
	s := pendingSession(t)
	late := t0.Add(61 * time.Second)

	next, effects := step(t, s, polled(payment.StatusPending), late)
	assert.Equal(t, StatusExpired, next.Status)
	assert.Equal(t, []Effect{StopPolling}, effects)

	s, _ = step(t, s, Tick{}, late)
	require.Equal(t, StatusExpired, s.Status)
	s, effects = step(t, s, polled(payment.StatusPending), late.Add(time.Second))
	assert.Equal(t, StatusExpired, s.Status)
	assert.Empty(t, effects)
}

func TestTick(t *testing.T) {
	s := pendingSession(t)

	same, effects := step(t, s, Tick{}, t0.Add(59*time.Second))
	assert.Equal(t, s, same)
	assert.Empty(t, effects)

	s, effects = step(t, s, Tick{}, t0.Add(60*time.Second))
	assert.Equal(t, StatusExpired, s.Status)
	assert.Equal(t, ReasonExpired, s.Reason)
	assert.Equal(t, []Effect{StopPolling}, effects)

	for _, status := range []Status{StatusFailed, StatusError} {
		s := pendingSession(t)
		s.Status = status
		s, _ = step(t, s, Tick{}, t0.Add(2*time.Minute))
		assert.Equal(t, StatusExpired, s.Status)
	}
}

func TestTerminalStatesIgnorePollResults(t *testing.T) {
	for _, status := range []Status{StatusPaid, StatusExpired, StatusCancelled} {
		s := pendingSession(t)
		s.Status = status
		for _, remote := range []payment.Status{payment.StatusPending, payment.StatusFailed, payment.StatusExpired} {
			next, _ := step(t, s, polled(remote), t0.Add(5*time.Second))
			assert.Equal(t, status, next.Status)
		}
		next, _ := step(t, s, PollFailed{Err: errors.New("offline"), Failures: 10, Exhausted: true}, t0.Add(5*time.Second))
		assert.Equal(t, status, next.Status)
	}
}

func TestPaidAfterLocalCancelNeedsReconciliation(t *testing.T) {
	s := pendingSession(t)
	s, effects := step(t, s, CancelResolved{Result: payment.DecideCancel("p1", payment.StatusPending)}, t0.Add(5*time.Second))
	require.Equal(t, StatusCancelled, s.Status)
	assert.Equal(t, []Effect{StopPolling, ClearPersistence}, effects)

	next, effects := step(t, s, polled(payment.StatusPaid), t0.Add(6*time.Second))
	assert.Equal(t, StatusCancelled, next.Status)
	assert.Equal(t, []Effect{ReconcilePaid}, effects)
}

func TestPollFailures(t *testing.T) {
	s := pendingSession(t)
	offline := errors.New("connection refused")

	s, effects := step(t, s, PollFailed{Err: offline, Failures: 3, Interval: 16 * time.Second}, t0.Add(5*time.Second))
	assert.Equal(t, StatusPending, s.Status)
	assert.Equal(t, 3, s.RetryCount)
	assert.Equal(t, 16*time.Second, s.PollInterval)
	assert.Empty(t, effects)

	s, effects = step(t, s, PollFailed{Err: offline, Failures: 10, Interval: 30 * time.Second, Exhausted: true}, t0.Add(20*time.Second))
	assert.Equal(t, StatusError, s.Status)
	assert.True(t, s.CanRetry)
	assert.Equal(t, ReasonConnectionLost, s.Reason)
	assert.Equal(t, "connection refused", s.Detail)
	assert.Equal(t, []Effect{StopPolling}, effects)
}

func TestIntervalNeverShrinks(t *testing.T) {
	s := pendingSession(t)
	s.PollInterval = 16 * time.Second
	s, _ = step(t, s, PollResolved{Result: payment.StatusResult{Status: payment.StatusPending}, Interval: 4 * time.Second}, t0.Add(time.Second))
	assert.Equal(t, 16*time.Second, s.PollInterval)
}

func TestRetry(t *testing.T) {
	s := pendingSession(t)
	s, _ = step(t, s, PollFailed{Err: errors.New("offline"), Failures: 10, Exhausted: true}, t0.Add(5*time.Second))
	require.Equal(t, StatusError, s.Status)

	s, effects := step(t, s, Retry{}, t0.Add(6*time.Second))
	assert.Equal(t, StatusPending, s.Status)
	assert.Zero(t, s.RetryCount)
	assert.Empty(t, s.Reason)
	assert.False(t, s.CanRetry)
	assert.Equal(t, []Effect{StartPolling}, effects)

	_, _, err := Transition(s, Retry{}, t0.Add(7*time.Second))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRetryAfterDeadlineExpires(t *testing.T) {
	s := pendingSession(t)
	s, _ = step(t, s, polled(payment.StatusFailed), t0.Add(5*time.Second))

	s, effects := step(t, s, Retry{}, t0.Add(2*time.Minute))
	assert.Equal(t, StatusExpired, s.Status)
	assert.Equal(t, []Effect{StopPolling}, effects)
}

func TestCancel(t *testing.T) {
	t.Run("refused keeps status", func(t *testing.T) {
		s := pendingSession(t)
		next, effects := step(t, s, CancelResolved{Result: payment.DecideCancel("p1", payment.StatusPaid)}, t0.Add(time.Second))
		assert.Equal(t, StatusPending, next.Status)
		assert.Equal(t, ReasonCancelRefused, next.Reason)
		assert.Equal(t, payment.MessageCancelPaid, next.Detail)
		assert.Empty(t, effects)
	})

	t.Run("failed payment cancels", func(t *testing.T) {
		s := pendingSession(t)
		s, _ = step(t, s, polled(payment.StatusFailed), t0.Add(time.Second))
		s, effects := step(t, s, CancelResolved{Result: payment.DecideCancel("p1", payment.StatusFailed)}, t0.Add(2*time.Second))
		assert.Equal(t, StatusCancelled, s.Status)
		assert.Equal(t, payment.StatusFailed, s.RemoteStatus)
		assert.Equal(t, []Effect{StopPolling, ClearPersistence}, effects)
	})

	t.Run("network failure moves to error", func(t *testing.T) {
		s := pendingSession(t)
		s, effects := step(t, s, CancelFailed{Err: errors.New("timeout")}, t0.Add(time.Second))
		assert.Equal(t, StatusError, s.Status)
		assert.Equal(t, ReasonCancelFailed, s.Reason)
		assert.True(t, s.CanRetry)
		assert.Equal(t, []Effect{StopPolling}, effects)
	})

	t.Run("not allowed once terminal", func(t *testing.T) {
		s := pendingSession(t)
		s, _ = step(t, s, polled(payment.StatusPaid), t0.Add(time.Second))
		_, _, err := Transition(s, CancelResolved{Result: payment.CancelResult{Cancelled: true}}, t0.Add(2*time.Second))
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}

func TestDismiss(t *testing.T) {
	s := pendingSession(t)
	_, _, err := Transition(s, Dismiss{}, t0)
	assert.ErrorIs(t, err, ErrInvalidTransition, "an active payment cannot be dismissed")

	_, _, err = Transition(Session{}, Dismiss{}, t0)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	for _, status := range []Status{StatusExpired, StatusError, StatusFailed, StatusPaid, StatusCancelled} {
		s := pendingSession(t)
		s.Status = status
		next, effects := step(t, s, Dismiss{}, t0)
		assert.False(t, next.Active())
		assert.Equal(t, []Effect{StopPolling, ClearPersistence}, effects)
	}
}

func TestRestored(t *testing.T) {
	s, effects := step(t, Session{}, Restored{Intent: testIntent(), TotalAmount: 9900}, t0.Add(30*time.Second))
	assert.Equal(t, StatusPending, s.Status)
	assert.Equal(t, []Effect{StartPolling}, effects)

	s, effects = step(t, Session{}, Restored{Intent: testIntent(), TotalAmount: 9900}, t0.Add(90*time.Second))
	assert.Equal(t, StatusExpired, s.Status)
	assert.Empty(t, effects)
}

func TestBeginAfterDeadline(t *testing.T) {
	s, _ := step(t, Session{}, Created{Intent: testIntent()}, t0)
	s, effects := step(t, s, Begin{}, t0.Add(time.Hour))
	assert.Equal(t, StatusExpired, s.Status)
	assert.Equal(t, []Effect{StopPolling}, effects)
}

func TestEffectString(t *testing.T) {
	assert.Equal(t, "confirm_payment", ConfirmPayment.String())
	assert.Equal(t, "unknown", Effect(99).String())
	assert.True(t, Has([]Effect{StopPolling, ConfirmPayment}, ConfirmPayment))
	assert.False(t, Has(nil, Persist))
}
