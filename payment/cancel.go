package payment

const (
	MessageCancelPaid    = "cannot cancel paid transaction"
	MessageCancelFailed  = "transaction already failed"
	MessageCancelPending = "transaction cancelled locally (was pending)"
	MessageCancelUnknown = "unknown transaction status"
)

// DecideCancel applies the cancellation rule to the status currently reported by
// the provider. Cancelling a pending transaction only affects this system: the
// provider is not asked to void the PIX charge.
func DecideCancel(id string, remote Status) CancelResult {
	switch remote {
	case StatusPaid:
		return CancelResult{
			ID:          id,
			Cancelled:   false,
			Cancellable: false,
			Status:      StatusPaid,
			Message:     MessageCancelPaid,
		}
	case StatusFailed:
		return CancelResult{
			ID:        id,
			Cancelled: true,
			Status:    StatusFailed,
			Message:   MessageCancelFailed,
		}
	case StatusPending:
		return CancelResult{
			ID:        id,
			Cancelled: true,
			Status:    StatusCancelled,
			Message:   MessageCancelPending,
		}
	}

	if remote == "" {
		remote = StatusUnknown
	}
	return CancelResult{
		ID:          id,
		Cancelled:   false,
		Cancellable: false,
		Status:      remote,
		Message:     MessageCancelUnknown,
	}
}
