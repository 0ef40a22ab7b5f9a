package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jinzhu/copier"
	"github.com/labstack/echo/v4"

	"github.com/fabriqs/wedding-pix/abacate"
	"github.com/fabriqs/wedding-pix/logger"
	"github.com/fabriqs/wedding-pix/payment"
)

type createPaymentRequest struct {
	AmountCents   int64             `json:"amountCents"`
	Amount        int64             `json:"amount"`
	Description   string            `json:"description"`
	ExpirySeconds int               `json:"expirySeconds"`
	ExpiresIn     int               `json:"expiresIn"`
	Customer      payment.Customer  `json:"customer"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// intentRequest accepts the older amount/expiresIn names as well.
func (r createPaymentRequest) intentRequest(cfg paymentDefaults) *payment.IntentRequest {
	amount := r.AmountCents
	if amount == 0 {
		amount = r.Amount
	}
	expiry := r.ExpirySeconds
	if expiry == 0 {
		expiry = r.ExpiresIn
	}
	if expiry == 0 {
		expiry = cfg.expirySeconds
	}
	description := strings.TrimSpace(r.Description)
	if description == "" {
		description = cfg.description
	}
	return &payment.IntentRequest{
		AmountCents:   amount,
		Description:   description,
		ExpirySeconds: expiry,
		Customer:      r.Customer,
		Metadata:      r.Metadata,
	}
}

type paymentDefaults struct {
	expirySeconds int
	description   string
}

func (s *Server) paymentDefaults() paymentDefaults {
	d := paymentDefaults{
		expirySeconds: s.cfg.Payment.ExpirySeconds,
		description:   s.cfg.Payment.Description,
	}
	if d.expirySeconds <= 0 {
		d.expirySeconds = abacate.DefaultExpirySeconds
	}
	if d.description == "" {
		d.description = "Compra"
	}
	return d
}

type paymentDTO struct {
	ID           string     `json:"id"`
	Amount       int64      `json:"amount"`
	Status       string     `json:"status"`
	DevMode      bool       `json:"devMode"`
	BrCode       string     `json:"brCode"`
	BrCodeBase64 string     `json:"brCodeBase64"`
	Expires      *time.Time `json:"expiresAt,omitempty"`
	Created      *time.Time `json:"createdAt,omitempty"`
	Updated      *time.Time `json:"updatedAt,omitempty"`
}

func newPaymentDTO(qr *abacate.QRCode) (paymentDTO, error) {
	var dto paymentDTO
	if err := copier.Copy(&dto, qr); err != nil {
		return dto, err
	}
	dto.Status = payment.ParseStatus(qr.Status).String()
	dto.Expires = optionalTime(qr.ExpiresAt)
	dto.Created = optionalTime(qr.CreatedAt)
	dto.Updated = optionalTime(qr.UpdatedAt)
	return dto, nil
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

type paymentIDRequest struct {
	ID string `json:"id" validate:"required"`
}

type cancelResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Cancelled   bool   `json:"cancelled"`
	Cancellable bool   `json:"cancellable"`
	Message     string `json:"message,omitempty"`
	Error       string `json:"error,omitempty"`
}

// @Summary Create a PIX payment
// @Tags payments
// @Accept json
// @Produce json
// @Param request body createPaymentRequest true "Payment request"
// @Success 200 {object} map[string]paymentDTO
// @Failure 400 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /payments/create [post]
func (s *Server) createPayment(c echo.Context) error {
	var req createPaymentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": "invalid request body"})
	}

	intent := req.intentRequest(s.paymentDefaults())
	if err := c.Validate(intent); err != nil {
		return validationFailure(c, err)
	}

	qr, err := s.upstream.Create(c.Request().Context(), intent)
	if err != nil {
		return upstreamFailure(c, err, "Failed to create PIX payment")
	}
	if qr.ExpiresAt.IsZero() {
		qr.ExpiresAt = time.Now().UTC().Add(time.Duration(intent.ExpirySeconds) * time.Second)
	}
	dto, err := newPaymentDTO(qr)
	if err != nil {
		return upstreamFailure(c, err, "Failed to map PIX payment")
	}

	paymentsCreated.Inc()
	logger.Info("PIX payment created", map[string]interface{}{
		"payment_id": qr.ID,
		"amount":     intent.AmountCents,
		"dev_mode":   qr.DevMode,
	})
	return c.JSON(http.StatusOK, map[string]interface{}{"data": dto})
}

// @Summary Check a PIX payment
// @Tags payments
// @Produce json
// @Param id query string true "Payment id"
// @Success 200 {object} paymentDTO
// @Failure 400 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /payments/status [get]
func (s *Server) paymentStatus(c echo.Context) error {
	id := strings.TrimSpace(c.QueryParam("id"))
	if id == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": "missing id"})
	}

	qr, err := s.upstream.Check(c.Request().Context(), id)
	if err != nil {
		logger.Error(err, "Failed to check PIX payment", map[string]interface{}{"payment_id": id})
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{"ok": false, "error": err.Error()})
	}
	dto, err := newPaymentDTO(qr)
	if err != nil {
		return upstreamFailure(c, err, "Failed to map PIX payment")
	}
	return c.JSON(http.StatusOK, dto)
}

// @Summary Cancel a PIX payment
// @Description Paid payments are refused, failed ones count as cancelled and pending
// @Description ones are cancelled locally without voiding the charge.
// @Tags payments
// @Accept json
// @Produce json
// @Param request body paymentIDRequest true "Payment id"
// @Success 200 {object} cancelResponse
// @Failure 400 {object} cancelResponse
// @Failure 500 {object} map[string]interface{}
// @Router /payments/cancel [post]
func (s *Server) cancelPayment(c echo.Context) error {
	var req paymentIDRequest
	if err := c.Bind(&req); err != nil || c.Validate(&req) != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": "missing payment id"})
	}

	qr, err := s.upstream.Check(c.Request().Context(), req.ID)
	if err != nil {
		logger.Error(err, "Failed to check PIX payment before cancel", map[string]interface{}{"payment_id": req.ID})
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"ok":          false,
			"error":       err.Error(),
			"cancellable": true,
		})
	}

	result := payment.DecideCancel(req.ID, payment.ParseStatus(qr.Status))
	resp := cancelResponse{
		ID:          result.ID,
		Status:      result.Status.String(),
		Cancelled:   result.Cancelled,
		Cancellable: result.Cancellable,
		Message:     result.Message,
	}
	cancelOutcomes.WithLabelValues(result.Status.String()).Inc()
	logger.Info("PIX payment cancel decided", map[string]interface{}{
		"payment_id": req.ID,
		"remote":     qr.Status,
		"cancelled":  result.Cancelled,
	})

	if !result.Cancelled {
		resp.Error = result.Message
		return c.JSON(http.StatusBadRequest, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

// @Summary Simulate a PIX payment (development only)
// @Tags payments
// @Accept json
// @Produce json
// @Param request body paymentIDRequest true "Payment id"
// @Success 200 {object} map[string]paymentDTO
// @Router /payments/simulate [post]
func (s *Server) simulatePayment(c echo.Context) error {
	var req paymentIDRequest
	if err := c.Bind(&req); err != nil || c.Validate(&req) != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": "missing payment id"})
	}

	qr, err := s.upstream.SimulatePayment(c.Request().Context(), req.ID)
	if err != nil {
		return upstreamFailure(c, err, "Failed to simulate PIX payment")
	}
	dto, err := newPaymentDTO(qr)
	if err != nil {
		return upstreamFailure(c, err, "Failed to map PIX payment")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": dto})
}

func validationFailure(c echo.Context, err error) error {
	var verr *payment.ValidationError
	if errors.As(err, &verr) {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":  verr.Error(),
			"fields": verr.Fields,
		})
	}
	return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
}

// upstreamFailure answers 400 for requests the provider rejected and 500 for
// everything else.
func upstreamFailure(c echo.Context, err error, msg string) error {
	var verr *payment.ValidationError
	if errors.As(err, &verr) {
		return validationFailure(c, err)
	}

	var gerr *payment.GatewayError
	if errors.As(err, &gerr) && gerr.StatusCode >= 400 && gerr.StatusCode < 500 {
		logger.Warn(msg, map[string]interface{}{"status": gerr.StatusCode, "error": gerr.Message})
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": gerr.Message})
	}

	logger.Error(err, msg, map[string]interface{}{"path": c.Path()})
	return c.JSON(http.StatusInternalServerError, map[string]interface{}{"ok": false, "error": err.Error()})
}
