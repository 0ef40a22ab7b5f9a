package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/fabriqs/wedding-pix/payment"
)

const (
	createPath   = "/payments/create"
	statusPath   = "/payments/status"
	cancelPath   = "/payments/cancel"
	simulatePath = "/payments/simulate"

	defaultTimeout = 10 * time.Second
)

// Client talks to the payment backend endpoint set. It keeps no state between
// calls and never retries.
type Client struct {
	http *resty.Client
	now  func() time.Time
}

type Option func(*Client)

func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.http.SetTimeout(timeout)
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(defaultTimeout).
			SetHeader("Accept", "application/json").
			SetHeader("User-Agent", "wedding-pix/gateway"),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ payment.Provider = (*Client)(nil)

type createBody struct {
	AmountCents   int64             `json:"amountCents"`
	Description   string            `json:"description,omitempty"`
	ExpirySeconds int               `json:"expirySeconds,omitempty"`
	Customer      payment.Customer  `json:"customer"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

func (c *Client) CreateIntent(ctx context.Context, request *payment.IntentRequest) (*payment.Intent, error) {
	if err := payment.Validate(request); err != nil {
		return nil, err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(createBody{
			AmountCents:   request.AmountCents,
			Description:   request.Description,
			ExpirySeconds: request.ExpirySeconds,
			Customer:      request.Customer,
			Metadata:      request.Metadata,
		}).
		Post(createPath)
	if err != nil {
		return nil, &payment.NetworkError{Op: "create payment", Err: err}
	}
	if !resp.IsSuccess() {
		return nil, gatewayError(resp)
	}

	intent, err := decodeIntent(resp.Body())
	if err != nil {
		return nil, err
	}
	if intent.Amount == 0 {
		intent.Amount = request.AmountCents
	}
	if intent.ExpiresAt.IsZero() && request.ExpirySeconds > 0 {
		intent.ExpiresAt = c.now().Add(time.Duration(request.ExpirySeconds) * time.Second)
	}
	return intent, nil
}

func (c *Client) CheckStatus(ctx context.Context, id string) (*payment.StatusResult, error) {
	if strings.TrimSpace(id) == "" {
		return nil, &payment.ValidationError{Fields: map[string]string{"id": "is required"}}
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("id", id).
		Get(statusPath)
	if err != nil {
		return nil, &payment.NetworkError{Op: "check payment status", Err: err}
	}
	if !resp.IsSuccess() {
		return nil, gatewayError(resp)
	}

	result, err := decodeStatus(resp.Body())
	if err != nil {
		return nil, err
	}
	if result.ID == "" {
		result.ID = id
	}
	return result, nil
}

type cancelBody struct {
	ID string `json:"id"`
}

type cancelResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Cancelled   *bool  `json:"cancelled"`
	Cancellable *bool  `json:"cancellable"`
	Message     string `json:"message"`
	Error       string `json:"error"`
}

func (c *Client) Cancel(ctx context.Context, id string) (*payment.CancelResult, error) {
	if strings.TrimSpace(id) == "" {
		return nil, &payment.ValidationError{Fields: map[string]string{"id": "is required"}}
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(cancelBody{ID: id}).
		Post(cancelPath)
	if err != nil {
		return nil, &payment.NetworkError{Op: "cancel payment", Err: err}
	}

	if resp.StatusCode() >= http.StatusInternalServerError {
		gerr := gatewayError(resp)
		var body cancelResponse
		_ = json.Unmarshal(resp.Body(), &body)
		// a server-side failure never settles the cancel, so it stays retryable
		// unless the backend explicitly says otherwise
		gerr.Cancellable = body.Cancellable == nil || *body.Cancellable
		return nil, gerr
	}

	var body cancelResponse
	if err := json.Unmarshal(unwrap(resp.Body()), &body); err != nil {
		if resp.IsSuccess() {
			return nil, fmt.Errorf("decode cancel response: %w", err)
		}
		return nil, gatewayError(resp)
	}

	message := firstNonEmpty(body.Message, body.Error)
	status := payment.ParseStatus(body.Status)

	// Refusals are answered with 4xx and an explicit cancelled flag.
	if body.Cancelled != nil {
		result := &payment.CancelResult{
			ID:        firstNonEmpty(body.ID, id),
			Cancelled: *body.Cancelled,
			Status:    status,
			Message:   message,
		}
		if body.Cancellable != nil {
			result.Cancellable = *body.Cancellable
		}
		return result, nil
	}

	if !resp.IsSuccess() {
		return nil, gatewayError(resp)
	}

	// The backend only reported the remote status: decide locally.
	result := payment.DecideCancel(id, status)
	return &result, nil
}

// SimulatePayment asks a development backend to mark the payment as paid.
func (c *Client) SimulatePayment(ctx context.Context, id string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(cancelBody{ID: id}).
		Post(simulatePath)
	if err != nil {
		return &payment.NetworkError{Op: "simulate payment", Err: err}
	}
	if !resp.IsSuccess() {
		return gatewayError(resp)
	}
	return nil
}

func gatewayError(resp *resty.Response) *payment.GatewayError {
	return &payment.GatewayError{
		StatusCode: resp.StatusCode(),
		Message:    errorMessage(resp.Body()),
	}
}

func errorMessage(body []byte) string {
	var payload struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return strings.TrimSpace(string(body))
	}

	if len(payload.Error) > 0 && string(payload.Error) != "null" {
		var text string
		if err := json.Unmarshal(payload.Error, &text); err == nil && text != "" {
			return text
		}
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(payload.Error, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
	}
	return payload.Message
}

var errEmptyResponse = errors.New("payment gateway returned an empty response")

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
