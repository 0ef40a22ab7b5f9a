package server

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fabriqs/wedding-pix/logger"
	"github.com/fabriqs/wedding-pix/notify"
	"github.com/fabriqs/wedding-pix/payment"
	"github.com/fabriqs/wedding-pix/store"
)

const (
	SignatureHeader = "X-Webhook-Signature"
	TopicWebhook    = "webhook:pix"

	maxWebhookBody = 1 << 20
)

var errSignatureMismatch = errors.New("webhook signature mismatch")

// Sign returns the hex HMAC-SHA256 of payload, as expected in SignatureHeader.
func Sign(payload []byte, secret string) string {
	return hex.EncodeToString(computeHMACSHA256(payload, []byte(secret)))
}

// VerifySignature checks a hex HMAC-SHA256 signature of the raw payload.
func VerifySignature(payload []byte, signature, secret string) error {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return errors.New("webhook secret is required")
	}
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	if signature == "" {
		return errors.New("webhook signature is missing")
	}

	decoded, err := hex.DecodeString(signature)
	if err != nil {
		return errSignatureMismatch
	}
	if !hmac.Equal(decoded, computeHMACSHA256(payload, []byte(secret))) {
		return errSignatureMismatch
	}
	return nil
}

func computeHMACSHA256(payload, secret []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return mac.Sum(nil)
}

type webhookPayload struct {
	Event string `json:"event"`
	Type  string `json:"type"`
	Data  struct {
		ID        string  `json:"id"`
		PaymentID string  `json:"payment_id"`
		Status    string  `json:"status"`
		Amount    float64 `json:"amount"`
		Customer  struct {
			Name  string `json:"name"`
			Email string `json:"email"`
		} `json:"customer"`
	} `json:"data"`
}

// WebhookJob is an accepted webhook waiting to be verified against the
// provider.
type WebhookJob struct {
	Event      string
	PaymentID  string
	Status     string
	Amount     int64
	Payer      string
	PayerEmail string
	Payload    []byte
	ReceivedAt time.Time
}

// @Summary Receive a PIX provider webhook
// @Tags webhooks
// @Accept json
// @Produce json
// @Param X-Webhook-Signature header string true "hex HMAC-SHA256 of the body"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /webhooks/pix [post]
func (s *Server) receiveWebhook(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": "unreadable body"})
	}

	if err := s.verifyWebhook(body, c.Request().Header.Get(SignatureHeader)); err != nil {
		webhooksReceived.WithLabelValues("rejected").Inc()
		logger.Warn("Webhook rejected", map[string]interface{}{
			"ip":    c.RealIP(),
			"error": err.Error(),
		})
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": "invalid signature"})
	}

	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		webhooksReceived.WithLabelValues("invalid").Inc()
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": "invalid event payload"})
	}
	id := strings.TrimSpace(p.Data.ID)
	if id == "" {
		id = strings.TrimSpace(p.Data.PaymentID)
	}
	if id == "" {
		webhooksReceived.WithLabelValues("invalid").Inc()
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": "invalid event payload (missing data.id)"})
	}

	event := p.Event
	if event == "" {
		event = p.Type
	}
	job := WebhookJob{
		Event:      event,
		PaymentID:  id,
		Status:     p.Data.Status,
		Amount:     int64(math.Round(p.Data.Amount)),
		Payer:      p.Data.Customer.Name,
		PayerEmail: p.Data.Customer.Email,
		Payload:    body,
		ReceivedAt: time.Now().UTC(),
	}

	webhooksReceived.WithLabelValues("accepted").Inc()
	s.bus.Publish(TopicWebhook, job)
	return c.JSON(http.StatusOK, map[string]interface{}{"ok": true, "received": true})
}

func (s *Server) verifyWebhook(body []byte, signature string) error {
	if s.cfg.Webhook.Secret == "" {
		if s.cfg.IsDevelopment() {
			return nil
		}
		return errors.New("webhook secret not configured")
	}
	return VerifySignature(body, signature, s.cfg.Webhook.Secret)
}

// WebhookProcessor re-checks webhook claims with the provider, records them and
// announces confirmed gifts. Each payment is announced at most once.
type WebhookProcessor struct {
	upstream Upstream
	events   *store.EventLog
	mailer   notify.Mailer
	timeout  time.Duration
}

func NewWebhookProcessor(upstream Upstream, events *store.EventLog, mailer notify.Mailer) *WebhookProcessor {
	return &WebhookProcessor{
		upstream: upstream,
		events:   events,
		mailer:   mailer,
		timeout:  15 * time.Second,
	}
}

func (p *WebhookProcessor) Process(job WebhookJob) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	fields := map[string]interface{}{
		"payment_id": job.PaymentID,
		"event":      job.Event,
		"claimed":    job.Status,
	}

	ev := store.WebhookEvent{
		PaymentID:  job.PaymentID,
		Event:      job.Event,
		Status:     payment.ParseStatus(job.Status).String(),
		Amount:     job.Amount,
		Payload:    string(job.Payload),
		ReceivedAt: job.ReceivedAt,
	}

	qr, err := p.upstream.Check(ctx, job.PaymentID)
	if err != nil {
		logger.Error(err, "Could not verify webhook payment", fields)
	} else {
		ev.Verified = true
		ev.Status = payment.ParseStatus(qr.Status).String()
		if qr.Amount > 0 {
			ev.Amount = qr.Amount
		}
	}

	announced := p.alreadyConfirmed(ctx, job.PaymentID)
	if p.events != nil {
		if err := p.events.Record(ctx, &ev); err != nil {
			logger.Error(err, "Failed to record webhook event", fields)
		}
	}

	if !ev.Verified {
		webhooksProcessed.WithLabelValues("unverified").Inc()
		return
	}
	webhooksProcessed.WithLabelValues(ev.Status).Inc()
	if ev.Status != payment.StatusPaid.String() || announced {
		return
	}

	giftsConfirmed.Inc()
	giftAmount.Add(float64(ev.Amount) / 100)
	logger.Info("Gift payment confirmed by webhook", map[string]interface{}{
		"payment_id": job.PaymentID,
		"amount":     ev.Amount,
	})
	err = p.mailer.GiftReceived(ctx, notify.Gift{
		PaymentID:  job.PaymentID,
		Amount:     ev.Amount,
		Payer:      job.Payer,
		PayerEmail: job.PayerEmail,
		ReceivedAt: job.ReceivedAt,
	})
	if err != nil {
		logger.Error(err, "Failed to send gift notification", fields)
	}
}

func (p *WebhookProcessor) alreadyConfirmed(ctx context.Context, paymentID string) bool {
	if p.events == nil {
		return false
	}
	events, err := p.events.ByPayment(ctx, paymentID)
	if err != nil {
		logger.Error(err, "Failed to load webhook history", map[string]interface{}{"payment_id": paymentID})
		return false
	}
	for _, ev := range events {
		if ev.Verified && ev.Status == payment.StatusPaid.String() {
			return true
		}
	}
	return false
}
