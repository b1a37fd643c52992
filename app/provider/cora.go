package provider

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/httpclient"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/retry"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/status"
)

const DefaultCoraBaseURL = "https://matls-clients.api.cora.com.br/v2"

type CoraConfig struct {
	BaseURL     string
	HTTPTimeout time.Duration
}

type tokenSource interface {
	Token(ctx context.Context) (string, error)
}

type coraInvoice struct {
	ID           string          `json:"id"`
	Code         string          `json:"code"`
	Status       string          `json:"status"`
	StatusDetail string          `json:"status_detail"`
	TotalAmount  json.Number     `json:"total_amount"`
	PaidAt       string          `json:"paid_at"`
	CreatedAt    string          `json:"created_at"`
	PixQRCode    json.RawMessage `json:"pix_qr_code"`
	PaymentTerms struct {
		DueDate string `json:"due_date"`
	} `json:"payment_terms"`
	Services []struct {
		Name string `json:"name"`
	} `json:"services"`
}

// CoraProvider reads PIX and boleto invoices. Amounts are reported in cents.
type CoraProvider struct {
	baseURL string
	client  *httpclient.Client
	tokens  tokenSource
}

// NewCoraProvider expects base to carry the client certificate.
func NewCoraProvider(cfg CoraConfig, base *http.Client, tokens tokenSource) *CoraProvider {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultCoraBaseURL
	}
	return &CoraProvider{
		baseURL: baseURL,
		client:  httpclient.NewWithHTTPClient(httpclient.Config{Timeout: cfg.HTTPTimeout, Retry: retry.Policy{MaxRetries: 0}}, base),
		tokens:  tokens,
	}
}

func (p *CoraProvider) Code() string {
	return status.ProviderCora
}

func (p *CoraProvider) FetchStatus(ctx context.Context, reference string) (*StatusReport, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, ErrInvalidReference
	}

	accessToken, err := p.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("cora token: %w", err)
	}

	header := http.Header{}
	header.Set("Accept", "application/json")
	header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.client.Do(ctx, &httpclient.Request{
		Method: http.MethodGet,
		URL:    p.baseURL + "/invoices/" + url.PathEscape(reference),
		Header: header,
	})
	if err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrPaymentNotFound, reference)
		}
		return nil, err
	}

	var invoice coraInvoice
	if err := json.Unmarshal(resp.Body, &invoice); err != nil {
		return nil, fmt.Errorf("decode cora invoice: %w", err)
	}

	return invoice.report(reference), nil
}

func (inv *coraInvoice) report(reference string) *StatusReport {
	amount := decimal.Zero
	if inv.TotalAmount != "" {
		if parsed, err := decimal.NewFromString(inv.TotalAmount.String()); err == nil {
			amount = parsed
		}
	}

	description := ""
	if len(inv.Services) > 0 {
		description = inv.Services[0].Name
	}

	attributes := map[string]string{}
	if inv.PaymentTerms.DueDate != "" {
		attributes["due_date"] = inv.PaymentTerms.DueDate
	}
	if len(inv.PixQRCode) > 0 && string(inv.PixQRCode) != "null" {
		attributes["pix_qr_code"] = "present"
	}

	return &StatusReport{
		Reference:         reference,
		ExternalReference: strings.TrimSpace(inv.Code),
		RawStatus:         inv.Status,
		StatusDetail:      inv.StatusDetail,
		Amount:            amount,
		PaidAt:            inv.PaidAt,
		CreatedAt:         inv.CreatedAt,
		Description:       description,
		PaymentMethod:     "PIX",
		Attributes:        attributes,
	}
}

// Ping checks that a token can be obtained.
func (p *CoraProvider) Ping(ctx context.Context) error {
	_, err := p.tokens.Token(ctx)
	return err
}

// NewMTLSClient returns an HTTP client presenting the given certificate.
// Empty paths yield a plain client.
func NewMTLSClient(certFile, keyFile string, timeout time.Duration) (*http.Client, error) {
	if strings.TrimSpace(certFile) == "" && strings.TrimSpace(keyFile) == "" {
		return &http.Client{Timeout: timeout}, nil
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load client certificate: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	return &http.Client{Timeout: timeout, Transport: transport}, nil
}
