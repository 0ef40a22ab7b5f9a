package checkout

import (
	"time"

	"github.com/fabriqs/wedding-pix/lifecycle"
	"github.com/fabriqs/wedding-pix/locale"
)

// View is what a presentation layer needs to render the session in one
// language.
type View struct {
	PaymentID   string           `json:"paymentId,omitempty"`
	Status      lifecycle.Status `json:"status"`
	StatusLabel string           `json:"statusLabel"`
	Amount      string           `json:"amount,omitempty"`
	Code        string           `json:"code,omitempty"`
	ImageData   string           `json:"imageData,omitempty"`
	Remaining   string           `json:"remaining,omitempty"`
	Reason      string           `json:"reason,omitempty"`
	Detail      string           `json:"detail,omitempty"`
	CanRetry    bool             `json:"canRetry"`
	CanCancel   bool             `json:"canCancel"`
	CanDismiss  bool             `json:"canDismiss"`
	CanCheckNow bool             `json:"canCheckNow"`
}

var statusMessages = map[lifecycle.Status]string{
	lifecycle.StatusLoading:   "StatusLoading",
	lifecycle.StatusPending:   "StatusPending",
	lifecycle.StatusPaid:      "StatusPaid",
	lifecycle.StatusExpired:   "StatusExpired",
	lifecycle.StatusFailed:    "StatusFailed",
	lifecycle.StatusCancelled: "StatusCancelled",
	lifecycle.StatusError:     "StatusError",
}

// View renders the current session for lang.
func (c *Coordinator) View(tr *locale.Translator, lang string) View {
	s := c.Snapshot()
	return Render(s, tr, lang, c.now())
}

// Render builds the view of s at now.
func Render(s lifecycle.Session, tr *locale.Translator, lang string, now time.Time) View {
	v := View{Status: s.Status}
	if !s.Active() {
		return v
	}

	v.PaymentID = s.Intent.ID
	v.StatusLabel = tr.T(lang, statusMessages[s.Status], nil)
	v.Amount = locale.FormatBRL(s.TotalAmount, lang)
	v.Reason = tr.T(lang, s.Reason, nil)
	v.Detail = s.Detail
	v.CanRetry = s.CanRetry
	v.CanDismiss = !s.Status.Polling()
	v.CanCheckNow = s.Status.Polling()

	switch s.Status {
	case lifecycle.StatusLoading, lifecycle.StatusPending, lifecycle.StatusFailed, lifecycle.StatusError:
		v.CanCancel = true
	}

	if s.Status == lifecycle.StatusLoading || s.Status == lifecycle.StatusPending {
		v.Code = s.Intent.Code
		v.ImageData = s.Intent.ImageData
	}
	if !s.Status.Terminal() || s.Status == lifecycle.StatusExpired {
		remaining := lifecycle.FormatRemaining(s.Intent.ExpiresAt, now)
		if remaining == lifecycle.ExpiredLabel {
			remaining = tr.T(lang, "CountdownExpired", nil)
		}
		v.Remaining = remaining
	}
	return v
}
