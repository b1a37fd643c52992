package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/mperror"
	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/mercadopago/sdk-go/pkg/paymentmethod"
	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/status"
)

const (
	mercadoPagoTag           = "MercadoPago"
	mercadoPagoPaymentMethod = "Credito"
)

type MercadoPagoConfig struct {
	AccessToken string
	HTTPTimeout time.Duration
}

type paymentGetter interface {
	Get(ctx context.Context, id int) (*payment.Response, error)
}

type paymentMethodLister interface {
	List(ctx context.Context) ([]paymentmethod.Response, error)
}

// MercadoPagoProvider reads card payments. Amounts are reported in major units.
type MercadoPagoProvider struct {
	payments paymentGetter
	methods  paymentMethodLister
}

func NewMercadoPagoProvider(cfg MercadoPagoConfig) (*MercadoPagoProvider, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, errors.New("mercadopago access token is not configured")
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	mpCfg, err := config.New(cfg.AccessToken, config.WithHTTPClient(&http.Client{Timeout: timeout}))
	if err != nil {
		return nil, fmt.Errorf("mercadopago config: %w", err)
	}

	return &MercadoPagoProvider{
		payments: payment.NewClient(mpCfg),
		methods:  paymentmethod.NewClient(mpCfg),
	}, nil
}

func (p *MercadoPagoProvider) Code() string {
	return status.ProviderMercadoPago
}

func (p *MercadoPagoProvider) FetchStatus(ctx context.Context, reference string) (*StatusReport, error) {
	id, err := strconv.Atoi(strings.TrimSpace(reference))
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidReference, reference)
	}

	resp, err := p.payments.Get(ctx, id)
	if err != nil {
		var respErr *mperror.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrPaymentNotFound, reference)
		}
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: %s", ErrPaymentNotFound, reference)
	}

	return mercadoPagoReport(reference, resp), nil
}

func mercadoPagoReport(reference string, resp *payment.Response) *StatusReport {
	attributes := map[string]string{}
	if resp.PaymentMethodID != "" {
		attributes["payment_method_id"] = resp.PaymentMethodID
	}
	if resp.PaymentTypeID != "" {
		attributes["payment_type_id"] = resp.PaymentTypeID
	}
	if resp.IssuerID != "" {
		attributes["issuer_id"] = resp.IssuerID
	}
	if resp.Card.FirstSixDigits != "" {
		attributes["card_first_six"] = resp.Card.FirstSixDigits
	}
	if resp.Card.LastFourDigits != "" {
		attributes["card_last_four"] = resp.Card.LastFourDigits
	}

	return &StatusReport{
		Reference:         reference,
		ExternalReference: strings.TrimSpace(resp.ExternalReference),
		RawStatus:         resp.Status,
		StatusDetail:      resp.StatusDetail,
		Amount:            decimal.NewFromFloat(resp.TransactionAmount),
		PaidAt:            formatTime(resp.DateApproved),
		CreatedAt:         formatTime(resp.DateCreated),
		Description:       resp.Description,
		PaymentMethod:     mercadoPagoPaymentMethod,
		ProviderTag:       mercadoPagoTag,
		PaymentKind:       mercadoPagoPaymentMethod,
		Attributes:        attributes,
	}
}

// Ping lists payment methods to validate the access token.
func (p *MercadoPagoProvider) Ping(ctx context.Context) error {
	_, err := p.methods.List(ctx)
	return err
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
