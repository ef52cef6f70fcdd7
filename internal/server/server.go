package server

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/Kalpla-elearning/kalpla-sub005/internal/apperr"
	"github.com/Kalpla-elearning/kalpla-sub005/internal/handler"
	"github.com/Kalpla-elearning/kalpla-sub005/internal/middleware"
	"github.com/Kalpla-elearning/kalpla-sub005/internal/service"
)

type Server struct {
	echo            *echo.Echo
	jwtSecret       string
	orderHandler    *handler.OrderHandler
	paymentHandler  *handler.PaymentHandler
	referralHandler *handler.ReferralHandler
}

func NewServer(
	jwtSecret string,
	orderService service.OrderService,
	paymentService service.PaymentService,
	referralService service.ReferralService,
) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())

	e.HTTPErrorHandler = errorHandler

	s := &Server{
		echo:            e,
		jwtSecret:       jwtSecret,
		orderHandler:    handler.NewOrderHandler(orderService),
		paymentHandler:  handler.NewPaymentHandler(paymentService),
		referralHandler: handler.NewReferralHandler(referralService),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	// gateway callbacks carry their own signature, no user auth
	api.POST("/webhooks/razorpay", s.paymentHandler.RazorpayWebhook)
	api.POST("/payments/confirm", s.paymentHandler.Confirm)

	authed := api.Group("", middleware.AuthMiddleware(s.jwtSecret))

	authed.POST("/orders", s.orderHandler.CreateOrder)
	authed.GET("/orders", s.orderHandler.GetUserOrders)
	authed.GET("/orders/:id", s.orderHandler.GetOrder)

	authed.POST("/payments/checkout", s.paymentHandler.Checkout)
	authed.POST("/payments/:id/refund", s.paymentHandler.Refund)

	authed.POST("/referrals", s.referralHandler.CreateReferral)
	authed.GET("/referrals", s.referralHandler.GetUserReferrals)
	authed.GET("/referrals/validate", s.referralHandler.ValidateCode)
}

// errorHandler maps classified errors to a machine-readable 4xx/5xx
// body. Anything unclassified is logged with full context and surfaced
// as a bare 500.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	if httpErr, ok := err.(*echo.HTTPError); ok {
		_ = c.JSON(httpErr.Code, map[string]interface{}{
			"error": map[string]interface{}{
				"kind":    "HTTP",
				"message": httpErr.Message,
			},
		})
		return
	}

	if kind, ok := apperr.KindOf(err); ok {
		var appErr *apperr.Error
		message := err.Error()
		if errors.As(err, &appErr) {
			message = appErr.Message
		}
		_ = c.JSON(apperr.HTTPStatus(kind), map[string]interface{}{
			"error": map[string]interface{}{
				"kind":    kind,
				"message": message,
			},
		})
		return
	}

	log.Printf("internal error on %s %s: %v", c.Request().Method, c.Request().URL.Path, err)
	_ = c.JSON(http.StatusInternalServerError, map[string]interface{}{
		"error": map[string]interface{}{
			"kind":    "INTERNAL",
			"message": "internal server error",
		},
	})
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown() error {
	return s.echo.Close()
}
