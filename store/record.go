package store

import (
	"context"
	"strings"
	"time"

	"github.com/fabriqs/wedding-pix/payment"
)

// SlotKey names the single active-payment slot.
const SlotKey = "active-payment"

type PaymentData struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	ImageData string    `json:"imageData"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Record is the durable form of the in-flight payment. Timestamp is the save
// time in unix milliseconds.
type Record struct {
	PaymentData PaymentData `json:"paymentData"`
	TotalAmount int64       `json:"totalAmount"`
	Timestamp   int64       `json:"timestamp"`
}

func NewRecord(intent payment.Intent, totalAmount int64, now time.Time) Record {
	return Record{
		PaymentData: PaymentData{
			ID:        intent.ID,
			Code:      intent.Code,
			ImageData: intent.ImageData,
			ExpiresAt: intent.ExpiresAt,
		},
		TotalAmount: totalAmount,
		Timestamp:   now.UnixMilli(),
	}
}

func (r Record) Valid() bool {
	return strings.TrimSpace(r.PaymentData.ID) != ""
}

// Intent rebuilds the payment intent. The remote status is not stored and comes
// back as pending until the next check.
func (r Record) Intent() payment.Intent {
	return payment.Intent{
		ID:        r.PaymentData.ID,
		Amount:    r.TotalAmount,
		Code:      r.PaymentData.Code,
		ImageData: r.PaymentData.ImageData,
		ExpiresAt: r.PaymentData.ExpiresAt,
		Status:    payment.StatusPending,
	}
}

// SessionRepository holds at most one in-flight payment. Save overwrites the
// slot. Load returns nil when the slot is empty or holds a record without an
// intent id, which it clears.
type SessionRepository interface {
	Save(ctx context.Context, record Record) error
	Load(ctx context.Context) (*Record, error)
	Clear(ctx context.Context) error
}
