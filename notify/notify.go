// Package notify tells the couple about gifts paid through the registry.
package notify

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/fabriqs/wedding-pix/config"
	"github.com/fabriqs/wedding-pix/locale"
	"github.com/fabriqs/wedding-pix/logger"
)

// Gift is one confirmed payment.
type Gift struct {
	PaymentID  string
	Amount     int64
	Payer      string
	PayerEmail string
	ReceivedAt time.Time
}

type Mailer interface {
	GiftReceived(ctx context.Context, gift Gift) error
}

// New returns a SendGrid mailer when an API key and a recipient are configured,
// and a mailer that only logs otherwise.
func New(cfg config.MailConfig, tr *locale.Translator, lang string) Mailer {
	if cfg.SendGridAPIKey == "" || cfg.NotifyTo == "" {
		return LogMailer{}
	}
	return NewSendGridMailer(cfg, tr, lang)
}

type SendGridMailer struct {
	client *sendgrid.Client
	from   *mail.Email
	to     *mail.Email
	tr     *locale.Translator
	lang   string
}

type Option func(*SendGridMailer)

// WithHost points the mailer at another SendGrid compatible API host.
func WithHost(host, apiKey string) Option {
	return func(m *SendGridMailer) {
		request := sendgrid.GetRequest(apiKey, "/v3/mail/send", host)
		request.Method = "POST"
		m.client = &sendgrid.Client{Request: request}
	}
}

func NewSendGridMailer(cfg config.MailConfig, tr *locale.Translator, lang string, opts ...Option) *SendGridMailer {
	m := &SendGridMailer{
		client: sendgrid.NewSendClient(cfg.SendGridAPIKey),
		from:   mail.NewEmail(cfg.FromName, cfg.From),
		to:     mail.NewEmail("", cfg.NotifyTo),
		tr:     tr,
		lang:   lang,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *SendGridMailer) GiftReceived(ctx context.Context, gift Gift) error {
	subject, body := compose(m.tr, m.lang, gift)
	message := mail.NewSingleEmail(m.from, subject, m.to, body, "<p>"+html.EscapeString(body)+"</p>")
	if gift.PayerEmail != "" {
		message.SetReplyTo(mail.NewEmail(gift.Payer, gift.PayerEmail))
	}

	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("send gift notification: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("send gift notification: sendgrid returned status %d: %s", resp.StatusCode, resp.Body)
	}

	logger.Info("Gift notification sent", map[string]interface{}{
		"payment_id": gift.PaymentID,
		"amount":     gift.Amount,
	})
	return nil
}

func compose(tr *locale.Translator, lang string, gift Gift) (string, string) {
	subject := tr.T(lang, "GiftReceivedSubject", nil)
	body := tr.T(lang, "GiftReceivedBody", map[string]interface{}{
		"Amount":    locale.FormatBRL(gift.Amount, lang),
		"PaymentID": gift.PaymentID,
	})
	return subject, body
}

// LogMailer records the notification in the log instead of sending it.
type LogMailer struct{}

func (LogMailer) GiftReceived(_ context.Context, gift Gift) error {
	logger.Info("Gift received (mail disabled)", map[string]interface{}{
		"payment_id": gift.PaymentID,
		"amount":     gift.Amount,
		"payer":      gift.Payer,
	})
	return nil
}
