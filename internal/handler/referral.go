package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Kalpla-elearning/kalpla-sub005/internal/apperr"
	"github.com/Kalpla-elearning/kalpla-sub005/internal/dto"
	"github.com/Kalpla-elearning/kalpla-sub005/internal/middleware"
	"github.com/Kalpla-elearning/kalpla-sub005/internal/service"
)

type ReferralHandler struct {
	referralService service.ReferralService
}

func NewReferralHandler(referralService service.ReferralService) *ReferralHandler {
	return &ReferralHandler{
		referralService: referralService,
	}
}

func (h *ReferralHandler) CreateReferral(c echo.Context) error {
	ctx := c.Request().Context()

	identity, err := middleware.IdentityFrom(c)
	if err != nil {
		return err
	}

	var req dto.CreateReferralRequest
	if err := c.Bind(&req); err != nil {
		return apperr.New(apperr.KindValidation, "invalid request body")
	}

	referral, err := h.referralService.CreateReferral(ctx, identity.UserID, req.ReferredUserID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, referral)
}

func (h *ReferralHandler) ValidateCode(c echo.Context) error {
	ctx := c.Request().Context()

	identity, err := middleware.IdentityFrom(c)
	if err != nil {
		return err
	}

	code := c.QueryParam("code")
	if code == "" {
		return apperr.New(apperr.KindValidation, "code is required")
	}

	result, err := h.referralService.ValidateReferralCode(ctx, code, identity.UserID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

func (h *ReferralHandler) GetUserReferrals(c echo.Context) error {
	ctx := c.Request().Context()

	identity, err := middleware.IdentityFrom(c)
	if err != nil {
		return err
	}

	referrals, err := h.referralService.GetUserReferrals(ctx, identity)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, referrals)
}
