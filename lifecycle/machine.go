package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/fabriqs/wedding-pix/payment"
)

var ErrInvalidTransition = errors.New("invalid transition")

func invalid(s Session, ev Event) error {
	return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, ev.Name(), s.Status)
}

// Transition is the payment session state machine. It never performs I/O: the
// returned effects describe what the caller has to do. Poll results that arrive
// in a status where they no longer apply are ignored without error.
func Transition(s Session, ev Event, now time.Time) (Session, []Effect, error) {
	switch e := ev.(type) {
	case Created:
		if s.Active() {
			return s, nil, invalid(s, ev)
		}
		next := Session{
			Intent:       e.Intent,
			TotalAmount:  e.TotalAmount,
			Status:       StatusLoading,
			RemoteStatus: e.Intent.Status,
			PollInterval: e.PollInterval,
			UpdatedAt:    now,
		}
		return next, []Effect{Persist}, nil

	case Restored:
		if s.Active() {
			return s, nil, invalid(s, ev)
		}
		next := Session{
			Intent:       e.Intent,
			TotalAmount:  e.TotalAmount,
			Status:       StatusPending,
			RemoteStatus: payment.StatusPending,
			PollInterval: e.PollInterval,
			UpdatedAt:    now,
		}
		if next.Intent.Expired(now) {
			next, _ = expire(next, now)
			return next, nil, nil
		}
		return next, []Effect{StartPolling}, nil

	case Begin:
		if s.Status != StatusLoading {
			return s, nil, invalid(s, ev)
		}
		if s.Intent.Expired(now) {
			s, effects := expire(s, now)
			return s, effects, nil
		}
		s.Status = StatusPending
		s.UpdatedAt = now
		return s, []Effect{StartPolling}, nil

	case PollResolved:
		return resolvePoll(s, e, now), pollEffects(s, e, now), nil

	case PollFailed:
		if !s.Status.Polling() {
			return s, nil, nil
		}
		if s.Intent.Expired(now) {
			s, effects := expire(s, now)
			return s, effects, nil
		}
		s.RetryCount = e.Failures
		if e.Interval > s.PollInterval {
			s.PollInterval = e.Interval
		}
		s.UpdatedAt = now
		if !e.Exhausted {
			return s, nil, nil
		}
		s.Status = StatusError
		s.Reason = ReasonConnectionLost
		s.Detail = errDetail(e.Err)
		s.CanRetry = true
		return s, []Effect{StopPolling}, nil

	case Tick:
		switch s.Status {
		case StatusLoading, StatusPending, StatusFailed, StatusError:
			if s.Intent.Expired(now) {
				s, effects := expire(s, now)
				return s, effects, nil
			}
		}
		return s, nil, nil

	case CancelResolved:
		if !cancellable(s.Status) {
			return s, nil, invalid(s, ev)
		}
		s.UpdatedAt = now
		if !e.Result.Cancelled {
			s.Reason = ReasonCancelRefused
			s.Detail = e.Result.Message
			return s, nil, nil
		}
		s.Status = StatusCancelled
		if e.Result.Status != "" {
			s.RemoteStatus = e.Result.Status
		}
		s.Reason = ""
		s.Detail = e.Result.Message
		s.CanRetry = false
		return s, []Effect{StopPolling, ClearPersistence}, nil

	case CancelFailed:
		if !cancellable(s.Status) {
			return s, nil, invalid(s, ev)
		}
		s.Status = StatusError
		s.Reason = ReasonCancelFailed
		s.Detail = errDetail(e.Err)
		s.CanRetry = true
		s.UpdatedAt = now
		return s, []Effect{StopPolling}, nil

	case Retry:
		if s.Status != StatusFailed && s.Status != StatusError {
			return s, nil, invalid(s, ev)
		}
		if s.Intent.Expired(now) {
			s, effects := expire(s, now)
			return s, effects, nil
		}
		s.Status = StatusPending
		s.RetryCount = 0
		s.Reason = ""
		s.Detail = ""
		s.CanRetry = false
		s.UpdatedAt = now
		return s, []Effect{StartPolling}, nil

	case Dismiss:
		if !s.Active() || s.Status.Polling() {
			return s, nil, invalid(s, ev)
		}
		return Session{}, []Effect{StopPolling, ClearPersistence}, nil
	}

	return s, nil, fmt.Errorf("%w: unknown event %T", ErrInvalidTransition, ev)
}

func resolvePoll(s Session, e PollResolved, now time.Time) Session {
	if !s.Status.Polling() {
		return s
	}
	// the local deadline beats whatever the gateway still reports
	if s.Intent.Expired(now) {
		s, _ = expire(s, now)
		return s
	}

	s.RemoteStatus = e.Result.Status
	s.RetryCount = 0
	if e.Interval > s.PollInterval {
		s.PollInterval = e.Interval
	}
	s.UpdatedAt = now

	switch e.Result.Status {
	case payment.StatusPaid:
		s.Status = StatusPaid
		s.Reason = ""
		s.Detail = ""
		s.CanRetry = false
	case payment.StatusFailed, payment.StatusCancelled:
		s.Status = StatusFailed
		s.Reason = ReasonPaymentFailed
		s.CanRetry = true
	case payment.StatusExpired:
		s, _ = expire(s, now)
	default:
		s.Status = StatusPending
	}
	return s
}

func pollEffects(s Session, e PollResolved, now time.Time) []Effect {
	if !s.Status.Polling() {
		if s.Status == StatusCancelled && e.Result.Status == payment.StatusPaid {
			return []Effect{ReconcilePaid}
		}
		return nil
	}
	if s.Intent.Expired(now) {
		return []Effect{StopPolling}
	}

	switch e.Result.Status {
	case payment.StatusPaid:
		return []Effect{StopPolling, ClearPersistence, PlayNotification, ConfirmPayment}
	case payment.StatusFailed, payment.StatusCancelled, payment.StatusExpired:
		return []Effect{StopPolling}
	}
	return nil
}

func expire(s Session, now time.Time) (Session, []Effect) {
	s.Status = StatusExpired
	s.Reason = ReasonExpired
	s.Detail = ""
	s.CanRetry = false
	s.UpdatedAt = now
	return s, []Effect{StopPolling}
}

func cancellable(s Status) bool {
	switch s {
	case StatusLoading, StatusPending, StatusFailed, StatusError:
		return true
	}
	return false
}

func errDetail(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
