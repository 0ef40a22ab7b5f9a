package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"
	"gorm.io/gorm"
)

// WebhookEvent is one notification received from the PIX provider.
type WebhookEvent struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	PaymentID  string    `json:"paymentId"`
	Event      string    `json:"event"`
	Status     string    `json:"status"`
	Verified   bool      `json:"verified"`
	Amount     int64     `json:"amount"`
	Payload    string    `json:"payload"`
	ReceivedAt time.Time `json:"receivedAt"`
}

func (WebhookEvent) TableName() string {
	return "webhook_events"
}

type EventLog struct {
	db  *gorm.DB
	now func() time.Time
}

func NewEventLog(db *gorm.DB) *EventLog {
	return &EventLog{db: db, now: time.Now}
}

// Record stores ev, assigning an id and receive time when missing.
func (l *EventLog) Record(ctx context.Context, ev *WebhookEvent) error {
	if ev.ID == "" {
		ev.ID = xid.New().String()
	}
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = l.now().UTC()
	}
	if err := l.db.WithContext(ctx).Create(ev).Error; err != nil {
		return fmt.Errorf("record webhook event: %w", err)
	}
	return nil
}

// List returns events newest first along with the total count.
func (l *EventLog) List(ctx context.Context, limit, offset int) ([]WebhookEvent, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := l.db.WithContext(ctx).Model(&WebhookEvent{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count webhook events: %w", err)
	}

	var events []WebhookEvent
	err := l.db.WithContext(ctx).
		Order("received_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&events).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list webhook events: %w", err)
	}
	return events, total, nil
}

func (l *EventLog) ByPayment(ctx context.Context, paymentID string) ([]WebhookEvent, error) {
	var events []WebhookEvent
	err := l.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("received_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("list webhook events for %s: %w", paymentID, err)
	}
	return events, nil
}
