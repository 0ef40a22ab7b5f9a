// Package abacate is a client for the AbacatePay PIX QR code API, the provider
// behind the payment backend.
package abacate

import (
	"context"
	"encoding/json"
	"strings"
	"time"
	"unicode"

	"github.com/go-resty/resty/v2"

	"github.com/fabriqs/wedding-pix/payment"
)

const (
	DefaultBaseURL       = "https://api.abacatepay.com"
	DefaultExpirySeconds = 3500

	createPath   = "/v1/pixQrCode/create"
	checkPath    = "/v1/pixQrCode/check"
	simulatePath = "/v1/pixQrCode/simulate-payment"
)

type Client struct {
	http *resty.Client
	now  func() time.Time
}

type Option func(*Client)

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.http.SetTimeout(timeout)
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

func New(baseURL, apiKey string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(10*time.Second).
			SetAuthToken(apiKey).
			SetHeader("Accept", "application/json"),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ payment.Provider = (*Client)(nil)

type customer struct {
	Name      string `json:"name,omitempty"`
	Cellphone string `json:"cellphone,omitempty"`
	Email     string `json:"email"`
	TaxID     string `json:"taxId,omitempty"`
}

type createRequest struct {
	Amount      int64             `json:"amount"`
	ExpiresIn   int               `json:"expiresIn"`
	Description string            `json:"description,omitempty"`
	Customer    customer          `json:"customer"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// QRCode is a PIX charge as returned by the provider.
type QRCode struct {
	ID           string    `json:"id"`
	Amount       int64     `json:"amount"`
	Status       string    `json:"status"`
	DevMode      bool      `json:"devMode"`
	BrCode       string    `json:"brCode"`
	BrCodeBase64 string    `json:"brCodeBase64"`
	PlatformFee  int64     `json:"platformFee"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

type envelope struct {
	Data  *QRCode         `json:"data"`
	Error json.RawMessage `json:"error"`
}

func (e *envelope) message() string {
	if len(e.Error) == 0 || string(e.Error) == "null" {
		return ""
	}
	var text string
	if err := json.Unmarshal(e.Error, &text); err == nil {
		return text
	}
	var nested struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(e.Error, &nested); err == nil && nested.Message != "" {
		return nested.Message
	}
	return string(e.Error)
}

// digits keeps only the numeric characters of phone numbers and tax ids, the
// only form the provider accepts.
func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

func (c *Client) do(ctx context.Context, op string, req *resty.Request, method, path string) (*QRCode, error) {
	var out envelope
	resp, err := req.
		SetContext(ctx).
		SetResult(&out).
		SetError(&out).
		Execute(method, path)
	if err != nil {
		return nil, &payment.NetworkError{Op: op, Err: err}
	}

	msg := out.message()
	if !resp.IsSuccess() || msg != "" {
		return nil, &payment.GatewayError{StatusCode: resp.StatusCode(), Message: msg}
	}
	if out.Data == nil {
		return nil, &payment.GatewayError{StatusCode: resp.StatusCode(), Message: "empty response from provider"}
	}
	return out.Data, nil
}

// Create issues a new PIX QR code.
func (c *Client) Create(ctx context.Context, request *payment.IntentRequest) (*QRCode, error) {
	if err := payment.Validate(request); err != nil {
		return nil, err
	}
	expiry := request.ExpirySeconds
	if expiry <= 0 {
		expiry = DefaultExpirySeconds
	}

	body := createRequest{
		Amount:      request.AmountCents,
		ExpiresIn:   expiry,
		Description: request.Description,
		Customer: customer{
			Name:      request.Customer.Name,
			Cellphone: digits(request.Customer.Phone),
			Email:     request.Customer.Email,
			TaxID:     digits(request.Customer.TaxID),
		},
		Metadata: request.Metadata,
	}
	return c.do(ctx, "create pix qr code", c.http.R().SetBody(body), resty.MethodPost, createPath)
}

// Check fetches the current state of a QR code.
func (c *Client) Check(ctx context.Context, id string) (*QRCode, error) {
	if strings.TrimSpace(id) == "" {
		return nil, &payment.ValidationError{Fields: map[string]string{"id": "is required"}}
	}
	qr, err := c.do(ctx, "check pix qr code", c.http.R().SetQueryParam("id", id), resty.MethodGet, checkPath)
	if err != nil {
		return nil, err
	}
	if qr.ID == "" {
		qr.ID = id
	}
	return qr, nil
}

// SimulatePayment marks a development-mode QR code as paid.
func (c *Client) SimulatePayment(ctx context.Context, id string) (*QRCode, error) {
	if strings.TrimSpace(id) == "" {
		return nil, &payment.ValidationError{Fields: map[string]string{"id": "is required"}}
	}
	req := c.http.R().
		SetQueryParam("id", id).
		SetBody(map[string]interface{}{"metadata": map[string]string{}})
	return c.do(ctx, "simulate pix payment", req, resty.MethodPost, simulatePath)
}

func (c *Client) CreateIntent(ctx context.Context, request *payment.IntentRequest) (*payment.Intent, error) {
	qr, err := c.Create(ctx, request)
	if err != nil {
		return nil, err
	}
	intent := qr.Intent()
	if intent.Amount == 0 {
		intent.Amount = request.AmountCents
	}
	if intent.ExpiresAt.IsZero() {
		expiry := request.ExpirySeconds
		if expiry <= 0 {
			expiry = DefaultExpirySeconds
		}
		intent.ExpiresAt = c.now().Add(time.Duration(expiry) * time.Second)
	}
	return &intent, nil
}

func (c *Client) CheckStatus(ctx context.Context, id string) (*payment.StatusResult, error) {
	qr, err := c.Check(ctx, id)
	if err != nil {
		return nil, err
	}
	return qr.StatusResult(), nil
}

// Cancel never reaches the provider: the live status decides whether the
// charge may be abandoned locally.
func (c *Client) Cancel(ctx context.Context, id string) (*payment.CancelResult, error) {
	qr, err := c.Check(ctx, id)
	if err != nil {
		return nil, err
	}
	result := payment.DecideCancel(id, payment.ParseStatus(qr.Status))
	return &result, nil
}

func (q *QRCode) Intent() payment.Intent {
	return payment.Intent{
		ID:        q.ID,
		Amount:    q.Amount,
		Code:      q.BrCode,
		ImageData: q.BrCodeBase64,
		ExpiresAt: q.ExpiresAt,
		Status:    payment.ParseStatus(q.Status),
	}
}

func (q *QRCode) StatusResult() *payment.StatusResult {
	result := &payment.StatusResult{
		ID:     q.ID,
		Status: payment.ParseStatus(q.Status),
	}
	if q.Amount > 0 {
		amount := q.Amount
		result.Amount = &amount
	}
	if !q.CreatedAt.IsZero() {
		ts := q.CreatedAt
		result.CreatedAt = &ts
	}
	if !q.UpdatedAt.IsZero() {
		ts := q.UpdatedAt
		result.UpdatedAt = &ts
	}
	if !q.ExpiresAt.IsZero() {
		ts := q.ExpiresAt
		result.ExpiresAt = &ts
	}
	return result
}
