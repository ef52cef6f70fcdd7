package handler

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Kalpla-elearning/kalpla-sub005/internal/apperr"
	"github.com/Kalpla-elearning/kalpla-sub005/internal/dto"
	"github.com/Kalpla-elearning/kalpla-sub005/internal/middleware"
	"github.com/Kalpla-elearning/kalpla-sub005/internal/service"
)

type PaymentHandler struct {
	paymentService service.PaymentService
}

func NewPaymentHandler(paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
	}
}

func (h *PaymentHandler) Checkout(c echo.Context) error {
	ctx := c.Request().Context()

	identity, err := middleware.IdentityFrom(c)
	if err != nil {
		return err
	}

	var req dto.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return apperr.New(apperr.KindValidation, "invalid request body")
	}
	if req.OrderID == "" {
		return apperr.New(apperr.KindValidation, "order_id is required")
	}

	result, err := h.paymentService.Checkout(ctx, identity, &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

func (h *PaymentHandler) Confirm(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.ConfirmPaymentRequest
	if err := c.Bind(&req); err != nil {
		return apperr.New(apperr.KindValidation, "invalid request body")
	}
	if req.GatewayOrderID == "" || req.GatewayPaymentID == "" {
		return apperr.New(apperr.KindValidation, "razorpay order and payment ids are required")
	}

	payment, err := h.paymentService.Confirm(ctx, &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, payment)
}

func (h *PaymentHandler) Refund(c echo.Context) error {
	ctx := c.Request().Context()

	identity, err := middleware.IdentityFrom(c)
	if err != nil {
		return err
	}

	var req dto.RefundRequest
	if err := c.Bind(&req); err != nil {
		return apperr.New(apperr.KindValidation, "invalid request body")
	}

	payment, err := h.paymentService.RefundPayment(ctx, identity, c.Param("id"), &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, payment)
}

func (h *PaymentHandler) RazorpayWebhook(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.NoContent(http.StatusBadRequest)
	}

	if err := h.paymentService.HandleWebhook(ctx, c.Request().Header, body); err != nil {
		return err
	}

	return c.NoContent(http.StatusOK)
}
