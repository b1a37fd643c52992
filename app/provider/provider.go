package provider

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrPaymentNotFound  = errors.New("payment not found at provider")
	ErrInvalidReference = errors.New("invalid provider reference")
)

// StatusReport is a provider response decoded into the fields the
// reconciler consumes.
type StatusReport struct {
	Reference         string
	ExternalReference string
	RawStatus         string
	StatusDetail      string
	// Amount is in the unit the provider reports it.
	Amount      decimal.Decimal
	PaidAt      string
	CreatedAt   string
	Description string

	// Remote store tags.
	PaymentMethod string
	ProviderTag   string
	PaymentKind   string

	Attributes map[string]string
}

type Provider interface {
	Code() string
	FetchStatus(ctx context.Context, reference string) (*StatusReport, error)
	Ping(ctx context.Context) error
}
