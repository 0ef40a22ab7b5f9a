package payment

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	cases := map[string]Status{
		"PENDING":   StatusPending,
		"pending":   StatusPending,
		"":          StatusPending,
		"PAID":      StatusPaid,
		" Paid ":    StatusPaid,
		"FAILED":    StatusFailed,
		"expired":   StatusExpired,
		"CANCELLED": StatusCancelled,
		"canceled":  StatusCancelled,
		"REFUNDED":  StatusUnknown,
	}
	for raw, want := range cases {
		assert.Equal(t, want, ParseStatus(raw), "raw=%q", raw)
	}
}

func TestDecideCancel(t *testing.T) {
	paid := DecideCancel("p1", StatusPaid)
	assert.False(t, paid.Cancelled)
	assert.False(t, paid.Cancellable)
	assert.Equal(t, StatusPaid, paid.Status)

	failed := DecideCancel("p1", StatusFailed)
	assert.True(t, failed.Cancelled)
	assert.Equal(t, StatusFailed, failed.Status)

	pending := DecideCancel("p1", StatusPending)
	assert.True(t, pending.Cancelled)
	assert.Equal(t, StatusCancelled, pending.Status)
	assert.Equal(t, MessageCancelPending, pending.Message)

	unknown := DecideCancel("p1", StatusExpired)
	assert.False(t, unknown.Cancelled)
	assert.False(t, unknown.Cancellable)
	assert.Equal(t, StatusExpired, unknown.Status)

	empty := DecideCancel("p1", "")
	assert.Equal(t, StatusUnknown, empty.Status)
}

func TestValidateRejectsBadRequests(t *testing.T) {
	err := Validate(&IntentRequest{AmountCents: 0, Customer: Customer{Email: "a@b.com"}})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "amountCents")

	err = Validate(&IntentRequest{AmountCents: 9900})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "is required", verr.Fields["customer.email"])

	err = Validate(&IntentRequest{AmountCents: 9900, Customer: Customer{Email: "not-an-email"}})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), "customer.email")

	assert.NoError(t, Validate(&IntentRequest{AmountCents: 9900, Customer: Customer{Email: "a@b.com"}}))
	assert.Error(t, Validate(nil))
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(&ValidationError{}))
	assert.True(t, IsRetryable(&NetworkError{Op: "check", Err: errors.New("connection reset")}))
	assert.True(t, IsRetryable(fmt.Errorf("wrapped: %w", &NetworkError{Op: "check", Err: context.Canceled})))
	assert.True(t, IsRetryable(&GatewayError{StatusCode: 502}))
	assert.False(t, IsRetryable(&GatewayError{StatusCode: 404}))
	assert.True(t, IsRetryable(&GatewayError{StatusCode: 400, Cancellable: true}))
}

func TestIntentExpired(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	intent := Intent{ExpiresAt: now.Add(time.Minute)}
	assert.False(t, intent.Expired(now))
	assert.True(t, intent.Expired(now.Add(time.Minute)))
	assert.False(t, Intent{}.Expired(now))
}
