package payment

import (
	"context"
	"strings"
	"time"

	"github.com/thoas/go-funk"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusFailed    Status = "failed"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
	StatusUnknown   Status = "unknown"
)

var (
	pendingAliases   = []string{"pending", "waiting", "processing", "created", "active"}
	paidAliases      = []string{"paid", "approved", "completed", "succeeded", "confirmed"}
	failedAliases    = []string{"failed", "refused", "declined", "error"}
	expiredAliases   = []string{"expired"}
	cancelledAliases = []string{"cancelled", "canceled"}
)

// ParseStatus maps the vocabulary used by the payment backend (in any case) onto
// the canonical status set. An empty value means the backend has not settled the
// payment yet and is read as pending.
func ParseStatus(raw string) Status {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case s == "":
		return StatusPending
	case funk.ContainsString(pendingAliases, s):
		return StatusPending
	case funk.ContainsString(paidAliases, s):
		return StatusPaid
	case funk.ContainsString(failedAliases, s):
		return StatusFailed
	case funk.ContainsString(expiredAliases, s):
		return StatusExpired
	case funk.ContainsString(cancelledAliases, s):
		return StatusCancelled
	}
	return StatusUnknown
}

func (s Status) String() string {
	return string(s)
}

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone"`
	TaxID string `json:"taxId"`
}

type IntentRequest struct {
	AmountCents   int64             `json:"amountCents" validate:"gt=0"`
	Description   string            `json:"description"`
	ExpirySeconds int               `json:"expirySeconds" validate:"gte=0"`
	Customer      Customer          `json:"customer"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Intent is one PIX checkout attempt as issued by the gateway.
type Intent struct {
	ID        string    `json:"id"`
	Amount    int64     `json:"amount"`
	Code      string    `json:"code"`
	ImageData string    `json:"imageData"`
	ExpiresAt time.Time `json:"expiresAt"`
	Status    Status    `json:"status"`
}

// Expired reports whether the intent can no longer be paid at now.
func (i Intent) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

type StatusResult struct {
	ID        string     `json:"id"`
	Status    Status     `json:"status"`
	Amount    *int64     `json:"amount,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

type CancelResult struct {
	ID          string `json:"id,omitempty"`
	Cancelled   bool   `json:"cancelled"`
	Cancellable bool   `json:"cancellable"`
	Status      Status `json:"status"`
	Message     string `json:"message,omitempty"`
}

type Provider interface {
	CreateIntent(ctx context.Context, request *IntentRequest) (*Intent, error)
	CheckStatus(ctx context.Context, id string) (*StatusResult, error)
	Cancel(ctx context.Context, id string) (*CancelResult, error)
}
