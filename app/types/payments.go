package types

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"
)

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type Payment struct {
	ID                uint64 `json:"id"`
	Reference         string `json:"reference"`
	ExternalReference string `json:"external_reference,omitempty"`
	Amount            string `json:"amount"`
	AmountCents       int64  `json:"amount_cents"`
	PayerName         string `json:"payer_name,omitempty"`
	PayerDocument     string `json:"payer_document,omitempty"`
	Status            string `json:"status"`
	StatusDetail      string `json:"status_detail,omitempty"`
	Kind              string `json:"kind"`
	Origin            string `json:"origin"`
	PaymentURL        string `json:"payment_url,omitempty"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at,omitempty"`
}

type PaymentEnvelopeResponse struct {
	Payment *Payment `json:"payment"`
}

type ConfirmRegistrationResponse struct {
	Payment              *Payment `json:"payment"`
	Confirmed            bool     `json:"confirmed"`
	PaymentsUpdated      bool     `json:"payments_updated"`
	RegistrationsUpdated bool     `json:"registrations_updated"`
	Message              string   `json:"message"`
}

type ExternalReferenceRequest struct {
	ExternalReference string
}

func NewExternalReferenceRequestFromContext(ctx echo.Context) (*ExternalReferenceRequest, error) {
	return &ExternalReferenceRequest{
		ExternalReference: strings.TrimSpace(ctx.Param("external_reference")),
	}, nil
}

func (r *ExternalReferenceRequest) Validate() error {
	if r.ExternalReference == "" {
		return errors.New("external_reference is required")
	}
	if len(r.ExternalReference) > 128 {
		return errors.New("external_reference must be at most 128 characters")
	}
	return nil
}
