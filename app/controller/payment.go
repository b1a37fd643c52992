package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/factory"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/mapper"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/service"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/types"
)

type PaymentController struct {
	registrationService *service.RegistrationService
	logger              logrus.FieldLogger
}

func NewPaymentController(registrationService *service.RegistrationService) *PaymentController {
	return &PaymentController{
		registrationService: registrationService,
		logger:              factory.NewModuleLogger("payments-controller"),
	}
}

func (c *PaymentController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *PaymentController) GetPayment(ctx echo.Context) error {
	req, err := types.NewExternalReferenceRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.registrationService.GetPayment(ctx.Request().Context(), req.ExternalReference)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPaymentNotFound):
			return c.writeError(ctx, http.StatusNotFound, "payment not found")
		case errors.Is(err, service.ErrInvalidRequest):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Get payment failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.PaymentEnvelopeResponse{Payment: mapper.PaymentToResponse(item)})
}

func (c *PaymentController) ConfirmRegistration(ctx echo.Context) error {
	req, err := types.NewExternalReferenceRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.registrationService.ConfirmRegistration(ctx.Request().Context(), req.ExternalReference)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPaymentNotFound):
			return c.writeError(ctx, http.StatusNotFound, "payment not found")
		case errors.Is(err, service.ErrInvalidRequest):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrRemoteSyncFailed):
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Confirm registration failed")
			return ctx.JSON(http.StatusBadGateway, confirmResponse(result, err.Error()))
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Confirm registration failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	if !result.Confirmed {
		return ctx.JSON(http.StatusConflict, confirmResponse(result, "payment status is "+result.Payment.Status))
	}
	return ctx.JSON(http.StatusOK, confirmResponse(result, "Registration confirmed"))
}

func confirmResponse(result *service.ConfirmResult, message string) *types.ConfirmRegistrationResponse {
	resp := &types.ConfirmRegistrationResponse{Message: message}
	if result == nil {
		return resp
	}
	resp.Payment = mapper.PaymentToResponse(result.Payment)
	resp.Confirmed = result.Confirmed
	resp.PaymentsUpdated = result.Sync.Payments
	resp.RegistrationsUpdated = result.Sync.Registrations
	return resp
}

func (c *PaymentController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
