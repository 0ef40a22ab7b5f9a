// Package server is the payment backend: it fronts the PIX provider for the
// checkout client and receives the provider's webhooks.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/asaskevich/EventBus"
	sentryecho "github.com/getsentry/sentry-go/echo"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/fabriqs/wedding-pix/abacate"
	"github.com/fabriqs/wedding-pix/auth"
	"github.com/fabriqs/wedding-pix/config"
	_ "github.com/fabriqs/wedding-pix/docs"
	"github.com/fabriqs/wedding-pix/logger"
	"github.com/fabriqs/wedding-pix/notify"
	"github.com/fabriqs/wedding-pix/payment"
	"github.com/fabriqs/wedding-pix/store"
)

// Upstream is the PIX provider as seen by the backend.
type Upstream interface {
	Create(ctx context.Context, request *payment.IntentRequest) (*abacate.QRCode, error)
	Check(ctx context.Context, id string) (*abacate.QRCode, error)
	SimulatePayment(ctx context.Context, id string) (*abacate.QRCode, error)
}

type Deps struct {
	Upstream Upstream
	Events   *store.EventLog
	Mailer   notify.Mailer
	Tokens   *auth.Tokens
	Bus      EventBus.Bus
}

type Server struct {
	cfg      *config.Config
	echo     *echo.Echo
	upstream Upstream
	events   *store.EventLog
	tokens   *auth.Tokens
	bus      EventBus.Bus
	webhooks *WebhookProcessor
}

func New(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.Bus == nil {
		deps.Bus = EventBus.New()
	}
	if deps.Mailer == nil {
		deps.Mailer = notify.LogMailer{}
	}
	if deps.Tokens == nil {
		deps.Tokens = auth.NewTokens(cfg.Admin.JWTSecret, auth.DefaultTTL)
	}

	s := &Server{
		cfg:      cfg,
		echo:     echo.New(),
		upstream: deps.Upstream,
		events:   deps.Events,
		tokens:   deps.Tokens,
		bus:      deps.Bus,
		webhooks: NewWebhookProcessor(deps.Upstream, deps.Events, deps.Mailer),
	}
	if err := s.bus.SubscribeAsync(TopicWebhook, s.webhooks.Process, true); err != nil {
		return nil, err
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Validator = requestValidator{}
	s.middleware()
	s.routes()
	return s, nil
}

func (s *Server) middleware() {
	e := s.echo
	e.Use(middleware.Recover())
	if s.cfg.Sentry.DSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{Repanic: true}))
	}
	e.Use(requestMetrics())
	e.Use(middleware.RequestID())
	e.Use(logger.EchoLogger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: s.cfg.Server.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization, SignatureHeader},
	}))
	e.Use(middleware.BodyLimit("1M"))
}

func (s *Server) routes() {
	e := s.echo
	e.GET("/health", s.health)

	payments := e.Group("/payments")
	payments.POST("/create", s.createPayment)
	payments.GET("/status", s.paymentStatus)
	payments.POST("/cancel", s.cancelPayment)
	if s.cfg.IsDevelopment() {
		payments.POST("/simulate", s.simulatePayment)
	}

	e.POST("/webhooks/pix", s.receiveWebhook)

	if s.cfg.Server.EnableMetrics {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}
	if s.cfg.Server.EnableSwagger {
		e.GET("/swagger/*", echoSwagger.WrapHandler)
	}

	if s.tokens.Enabled() {
		admin := e.Group("/admin", echojwt.WithConfig(echojwt.Config{
			ParseTokenFunc: func(_ echo.Context, raw string) (interface{}, error) {
				return s.tokens.Parse(raw)
			},
			ErrorHandler: func(_ echo.Context, err error) error {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing admin token")
			},
		}))
		admin.GET("/events", s.listEvents)
		admin.GET("/events/:paymentId", s.paymentEvents)
	} else {
		logger.Warn("Admin endpoints disabled: no JWT secret configured", nil)
	}
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start() error {
	addr := ":" + s.cfg.Server.Port
	logger.Info("Payment backend listening", map[string]interface{}{
		"addr":        addr,
		"environment": s.cfg.Environment,
	})
	return s.echo.Start(addr)
}

// Shutdown stops accepting requests and waits for queued webhooks.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.echo.Shutdown(ctx)
	s.bus.WaitAsync()
	_ = s.bus.Unsubscribe(TopicWebhook, s.webhooks.Process)
	return err
}

// Wait blocks until every queued webhook has been processed.
func (s *Server) Wait() {
	s.bus.WaitAsync()
}

// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"environment": s.cfg.Environment,
		"time":        time.Now().UTC(),
	})
}

type requestValidator struct{}

func (requestValidator) Validate(i interface{}) error {
	return payment.ValidateStruct(i)
}

// adminClaims returns the claims set by the JWT middleware.
func adminClaims(c echo.Context) *auth.Claims {
	claims, _ := c.Get("user").(*auth.Claims)
	return claims
}
