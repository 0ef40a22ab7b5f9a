package lifecycle

import (
	"time"

	"github.com/fabriqs/wedding-pix/payment"
)

// Status is the local state of a payment session. It extends the remote
// payment status with conditions detected on this side.
type Status string

const (
	StatusNone      Status = ""
	StatusLoading   Status = "loading"
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusExpired   Status = "expired"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusError     Status = "error"
)

func (s Status) String() string {
	if s == StatusNone {
		return "none"
	}
	return string(s)
}

// Terminal reports whether the status ends the session for good.
func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusExpired || s == StatusCancelled
}

// Polling reports whether automatic status checks run in this status.
func (s Status) Polling() bool {
	return s == StatusLoading || s == StatusPending
}

// Reason message ids. The locale package holds their translations.
const (
	ReasonExpired        = "ReasonExpired"
	ReasonPaymentFailed  = "ReasonPaymentFailed"
	ReasonConnectionLost = "ReasonConnectionLost"
	ReasonCancelRefused  = "ReasonCancelRefused"
	ReasonCancelFailed   = "ReasonCancelFailed"
)

// Session tracks one payment intent through checkout.
type Session struct {
	Intent       payment.Intent `json:"intent"`
	TotalAmount  int64          `json:"totalAmount"`
	Status       Status         `json:"status"`
	RemoteStatus payment.Status `json:"remoteStatus"`
	RetryCount   int            `json:"retryCount"`
	PollInterval time.Duration  `json:"pollInterval"`
	Reason       string         `json:"reason,omitempty"`
	Detail       string         `json:"detail,omitempty"`
	CanRetry     bool           `json:"canRetry"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

func (s Session) Active() bool {
	return s.Status != StatusNone
}
