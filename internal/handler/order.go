package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Kalpla-elearning/kalpla-sub005/internal/apperr"
	"github.com/Kalpla-elearning/kalpla-sub005/internal/dto"
	"github.com/Kalpla-elearning/kalpla-sub005/internal/middleware"
	"github.com/Kalpla-elearning/kalpla-sub005/internal/service"
)

type OrderHandler struct {
	orderService service.OrderService
}

func NewOrderHandler(orderService service.OrderService) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
	}
}

func (h *OrderHandler) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()

	identity, err := middleware.IdentityFrom(c)
	if err != nil {
		return err
	}

	var req dto.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return apperr.New(apperr.KindValidation, "invalid request body")
	}

	order, err := h.orderService.CreateOrder(ctx, identity, &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, order)
}

func (h *OrderHandler) GetUserOrders(c echo.Context) error {
	ctx := c.Request().Context()

	identity, err := middleware.IdentityFrom(c)
	if err != nil {
		return err
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))

	result, err := h.orderService.GetUserOrders(ctx, identity, page, pageSize)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()

	identity, err := middleware.IdentityFrom(c)
	if err != nil {
		return err
	}

	result, err := h.orderService.GetOrder(ctx, identity, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}
