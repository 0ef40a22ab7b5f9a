package server

import (
	"net/http"
	"time"

	"github.com/jinzhu/copier"
	"github.com/labstack/echo/v4"

	"github.com/fabriqs/wedding-pix/logger"
	"github.com/fabriqs/wedding-pix/store"
)

type eventDTO struct {
	ID        string `json:"id"`
	PaymentID string `json:"paymentId"`
	Event     string `json:"event"`
	Status    string `json:"status"`
	Verified  bool   `json:"verified"`
	Amount    int64  `json:"amount"`
	Received  string `json:"receivedAt"`
}

func newEventDTOs(events []store.WebhookEvent) ([]eventDTO, error) {
	dtos := make([]eventDTO, 0, len(events))
	if err := copier.Copy(&dtos, &events); err != nil {
		return nil, err
	}
	for i := range dtos {
		dtos[i].Received = events[i].ReceivedAt.UTC().Format(time.RFC3339)
	}
	return dtos, nil
}

// @Summary List received webhooks
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Router /admin/events [get]
func (s *Server) listEvents(c echo.Context) error {
	if s.events == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{"error": "event log not configured"})
	}

	limit, offset := 20, 0
	err := echo.QueryParamsBinder(c).
		Int("limit", &limit).
		Int("offset", &offset).
		BindError()
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": "invalid pagination"})
	}

	events, total, err := s.events.List(c.Request().Context(), limit, offset)
	if err != nil {
		logger.Error(err, "Failed to list webhook events", nil)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{"error": "Failed to list events"})
	}
	dtos, err := newEventDTOs(events)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{"error": "Failed to list events"})
	}

	if claims := adminClaims(c); claims != nil {
		logger.Debug("Admin listed webhook events", map[string]interface{}{"subject": claims.Subject})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"events": dtos,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// @Summary Webhooks received for one payment
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Param paymentId path string true "Payment id"
// @Success 200 {object} map[string]interface{}
// @Router /admin/events/{paymentId} [get]
func (s *Server) paymentEvents(c echo.Context) error {
	if s.events == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{"error": "event log not configured"})
	}

	events, err := s.events.ByPayment(c.Request().Context(), c.Param("paymentId"))
	if err != nil {
		logger.Error(err, "Failed to load payment events", map[string]interface{}{"payment_id": c.Param("paymentId")})
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{"error": "Failed to list events"})
	}
	dtos, err := newEventDTOs(events)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{"error": "Failed to list events"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"events": dtos})
}
