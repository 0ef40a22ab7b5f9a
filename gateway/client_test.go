package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabriqs/wedding-pix/payment"
)

func newRequest() *payment.IntentRequest {
	return &payment.IntentRequest{
		AmountCents:   9900,
		Description:   "Compra de 1 item(ns)",
		ExpirySeconds: 60,
		Customer: payment.Customer{
			Name:  gofakeit.Name(),
			Email: gofakeit.Email(),
			Phone: gofakeit.Phone(),
			TaxID: "123.456.789-09",
		},
	}
}

func jsonHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func TestCreateIntentUnwrapsEnvelope(t *testing.T) {
	var received createBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, createPath, r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		jsonHandler(http.StatusOK, `{"data":{"id":"p1","brCode":"000201PIX","brCodeBase64":"data:image/png;base64,AAA","status":"PENDING","expiresAt":"2030-01-01T10:00:00Z","amount":9900}}`)(w, r)
	}))
	defer srv.Close()

	req := newRequest()
	intent, err := New(srv.URL).CreateIntent(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, int64(9900), received.AmountCents)
	assert.Equal(t, req.Customer.Email, received.Customer.Email)

	assert.Equal(t, "p1", intent.ID)
	assert.Equal(t, "000201PIX", intent.Code)
	assert.Equal(t, "data:image/png;base64,AAA", intent.ImageData)
	assert.Equal(t, payment.StatusPending, intent.Status)
	assert.Equal(t, int64(9900), intent.Amount)
	assert.Equal(t, time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC), intent.ExpiresAt.UTC())
}

func TestCreateIntentAcceptsFlatLegacyFields(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(http.StatusOK,
		`{"id":"p2","pixCopiaECola":"000201LEGACY","qrCodeBase64":"iVBORw0KGgo","status":"pending"}`))
	defer srv.Close()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	intent, err := New(srv.URL, WithClock(func() time.Time { return now })).
		CreateIntent(context.Background(), newRequest())
	require.NoError(t, err)

	assert.Equal(t, "000201LEGACY", intent.Code)
	assert.Equal(t, "iVBORw0KGgo", intent.ImageData)
	assert.Equal(t, int64(9900), intent.Amount, "amount falls back to the request")
	assert.Equal(t, now.Add(60*time.Second), intent.ExpiresAt, "expiry falls back to the requested window")
}

func TestCreateIntentValidatesBeforeNetwork(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	client := New(srv.URL)

	req := newRequest()
	req.AmountCents = 0
	_, err := client.CreateIntent(context.Background(), req)
	var verr *payment.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "amountCents")

	req = newRequest()
	req.Customer.Email = ""
	_, err = client.CreateIntent(context.Background(), req)
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "customer.email")

	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestCreateIntentReportsGatewayError(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(http.StatusBadGateway, `{"error":{"message":"provider unavailable"}}`))
	defer srv.Close()

	_, err := New(srv.URL).CreateIntent(context.Background(), newRequest())
	var gerr *payment.GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, http.StatusBadGateway, gerr.StatusCode)
	assert.Equal(t, "provider unavailable", gerr.Message)
	assert.True(t, payment.IsRetryable(err))
}

func TestCreateIntentRejectsResponseWithoutID(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(http.StatusOK, `{"data":{"brCode":"x"}}`))
	defer srv.Close()

	_, err := New(srv.URL).CreateIntent(context.Background(), newRequest())
	assert.Error(t, err)
}

func TestCheckStatusNormalisesStatus(t *testing.T) {
	cases := map[string]payment.Status{
		"PAID":    payment.StatusPaid,
		"Pending": payment.StatusPending,
		"FAILED":  payment.StatusFailed,
		"EXPIRED": payment.StatusExpired,
	}
	for raw, want := range cases {
		t.Run(raw, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "p1", r.URL.Query().Get("id"))
				jsonHandler(http.StatusOK, `{"id":"p1","status":"`+raw+`","amount":1500,"updatedAt":"2024-05-01T12:00:00Z"}`)(w, r)
			}))
			defer srv.Close()

			result, err := New(srv.URL).CheckStatus(context.Background(), "p1")
			require.NoError(t, err)
			assert.Equal(t, want, result.Status)
			require.NotNil(t, result.Amount)
			assert.Equal(t, int64(1500), *result.Amount)
			require.NotNil(t, result.UpdatedAt)
			assert.Nil(t, result.ExpiresAt)
		})
	}
}

func TestCheckStatusFillsMissingID(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(http.StatusOK, `{"data":{"status":"PENDING"}}`))
	defer srv.Close()

	result, err := New(srv.URL).CheckStatus(context.Background(), "p9")
	require.NoError(t, err)
	assert.Equal(t, "p9", result.ID)
}

func TestCheckStatusGatewayError(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(http.StatusNotFound, `{"error":"payment not found"}`))
	defer srv.Close()

	_, err := New(srv.URL).CheckStatus(context.Background(), "missing")
	var gerr *payment.GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, http.StatusNotFound, gerr.StatusCode)
	assert.Equal(t, "payment not found", gerr.Message)
	assert.False(t, payment.IsRetryable(err))
}

func TestCheckStatusNetworkError(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(http.StatusOK, `{}`))
	url := srv.URL
	srv.Close()

	_, err := New(url, WithTimeout(time.Second)).CheckStatus(context.Background(), "p1")
	var nerr *payment.NetworkError
	require.ErrorAs(t, err, &nerr)
	assert.True(t, payment.IsRetryable(err))
}

func TestCheckStatusHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := New(srv.URL).CheckStatus(ctx, "p1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestCancel(t *testing.T) {
	t.Run("paid is refused", func(t *testing.T) {
		srv := httptest.NewServer(jsonHandler(http.StatusBadRequest,
			`{"id":"p1","status":"paid","cancelled":false,"cancellable":false,"message":"cannot cancel paid transaction"}`))
		defer srv.Close()

		result, err := New(srv.URL).Cancel(context.Background(), "p1")
		require.NoError(t, err)
		assert.False(t, result.Cancelled)
		assert.False(t, result.Cancellable)
		assert.Equal(t, payment.StatusPaid, result.Status)
		assert.Equal(t, payment.MessageCancelPaid, result.Message)
	})

	t.Run("failed is already resolved", func(t *testing.T) {
		srv := httptest.NewServer(jsonHandler(http.StatusOK,
			`{"id":"p1","status":"failed","cancelled":true,"message":"transaction already failed"}`))
		defer srv.Close()

		result, err := New(srv.URL).Cancel(context.Background(), "p1")
		require.NoError(t, err)
		assert.True(t, result.Cancelled)
		assert.Equal(t, payment.StatusFailed, result.Status)
	})

	t.Run("status only is decided locally", func(t *testing.T) {
		srv := httptest.NewServer(jsonHandler(http.StatusOK, `{"data":{"id":"p1","status":"PENDING"}}`))
		defer srv.Close()

		result, err := New(srv.URL).Cancel(context.Background(), "p1")
		require.NoError(t, err)
		assert.True(t, result.Cancelled)
		assert.Equal(t, payment.StatusCancelled, result.Status)
		assert.Equal(t, payment.MessageCancelPending, result.Message)
	})

	t.Run("server failure stays retryable", func(t *testing.T) {
		srv := httptest.NewServer(jsonHandler(http.StatusInternalServerError,
			`{"error":"upstream timeout","cancellable":true}`))
		defer srv.Close()

		_, err := New(srv.URL).Cancel(context.Background(), "p1")
		var gerr *payment.GatewayError
		require.ErrorAs(t, err, &gerr)
		assert.True(t, gerr.Cancellable)
		assert.Equal(t, "upstream timeout", gerr.Message)
		assert.True(t, payment.IsRetryable(err))
	})

	t.Run("empty id", func(t *testing.T) {
		_, err := New("http://127.0.0.1:1").Cancel(context.Background(), " ")
		var verr *payment.ValidationError
		assert.ErrorAs(t, err, &verr)
	})
}

func TestSimulatePayment(t *testing.T) {
	var body cancelBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, simulatePath, r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		jsonHandler(http.StatusOK, `{"data":{"id":"p1","status":"PAID"}}`)(w, r)
	}))
	defer srv.Close()

	require.NoError(t, New(srv.URL).SimulatePayment(context.Background(), "p1"))
	assert.Equal(t, "p1", body.ID)
}

func TestUnwrap(t *testing.T) {
	assert.JSONEq(t, `{"id":"a"}`, string(unwrap([]byte(`{"data":{"id":"a"}}`))))
	assert.JSONEq(t, `{"id":"a","data":null}`, string(unwrap([]byte(`{"id":"a","data":null}`))))
	assert.JSONEq(t, `{"data":[1,2]}`, string(unwrap([]byte(`{"data":[1,2]}`))))
	assert.Equal(t, "not json", string(unwrap([]byte("not json"))))
}
