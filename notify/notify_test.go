package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabriqs/wedding-pix/config"
	"github.com/fabriqs/wedding-pix/locale"
)

func mailConfig() config.MailConfig {
	return config.MailConfig{
		SendGridAPIKey: "SG.test",
		From:           "noreply@casamento.example",
		FromName:       "Lista de Presentes",
		NotifyTo:       "noivos@casamento.example",
	}
}

func TestSendGridMailer(t *testing.T) {
	payerEmail := gofakeit.Email()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		assert.Equal(t, "Bearer SG.test", r.Header.Get("Authorization"))

		var body struct {
			Subject          string `json:"subject"`
			Personalizations []struct {
				To []struct {
					Email string `json:"email"`
				} `json:"to"`
			} `json:"personalizations"`
			ReplyTo struct {
				Email string `json:"email"`
			} `json:"reply_to"`
			Content []struct {
				Type  string `json:"type"`
				Value string `json:"value"`
			} `json:"content"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "New gift received!", body.Subject)
		if assert.Len(t, body.Personalizations, 1) && assert.Len(t, body.Personalizations[0].To, 1) {
			assert.Equal(t, "noivos@casamento.example", body.Personalizations[0].To[0].Email)
		}
		assert.Equal(t, payerEmail, body.ReplyTo.Email)
		if assert.NotEmpty(t, body.Content) {
			assert.Contains(t, body.Content[0].Value, "pix_char_42")
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	cfg := mailConfig()
	m := NewSendGridMailer(cfg, locale.MustNew(), "en", WithHost(srv.URL, cfg.SendGridAPIKey))
	err := m.GiftReceived(context.Background(), Gift{
		PaymentID:  "pix_char_42",
		Amount:     49990,
		Payer:      gofakeit.Name(),
		PayerEmail: payerEmail,
	})
	require.NoError(t, err)
}

func TestSendGridMailerRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer srv.Close()

	cfg := mailConfig()
	m := NewSendGridMailer(cfg, locale.MustNew(), "pt-BR", WithHost(srv.URL, cfg.SendGridAPIKey))
	err := m.GiftReceived(context.Background(), Gift{PaymentID: "p1", Amount: 100})
	assert.Error(t, err)
}

func TestNewFallsBackToLogMailer(t *testing.T) {
	cfg := mailConfig()
	cfg.NotifyTo = ""
	m := New(cfg, locale.MustNew(), "pt-BR")
	assert.IsType(t, LogMailer{}, m)
	assert.NoError(t, m.GiftReceived(context.Background(), Gift{PaymentID: "p1"}))

	assert.IsType(t, &SendGridMailer{}, New(mailConfig(), locale.MustNew(), "pt-BR"))
}

func TestCompose(t *testing.T) {
	subject, body := compose(locale.MustNew(), "pt-BR", Gift{PaymentID: "p9", Amount: 22990})
	assert.NotEmpty(t, subject)
	assert.Contains(t, body, "p9")
	assert.Contains(t, body, "229")
}
