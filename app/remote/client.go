package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/factory"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/httpclient"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/metrics"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/retry"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/status"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	TablePayments      = "payments"
	TableRegistrations = "registrations"
)

var (
	ErrNotConfigured       = errors.New("remote store url or api key is not configured")
	ErrUnreachable         = errors.New("remote store is unreachable")
	ErrMissingRegistration = errors.New("registration id is required")
	errEmptyRepresentation = errors.New("remote store returned no data")
)

type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
	Retry   retry.Policy
}

// Update carries the status change pushed to the remote store.
type Update struct {
	RegistrationID string
	Status         status.Canonical
	ProviderRef    string
	// PricePaid is copied as reported by the provider.
	PricePaid     decimal.Decimal
	PaymentMethod string
	ProviderTag   string
	PaymentKind   string
}

type Outcome string

const (
	OutcomeComplete Outcome = "complete"
	OutcomePartial  Outcome = "partial"
	OutcomeFailed   Outcome = "failed"
)

type SyncResult struct {
	Payments      bool
	Registrations bool
	Err           error
}

func (r SyncResult) Outcome() Outcome {
	switch {
	case r.Payments && r.Registrations:
		return OutcomeComplete
	case r.Payments || r.Registrations:
		return OutcomePartial
	default:
		return OutcomeFailed
	}
}

type prober interface {
	Probe(ctx context.Context, host string) bool
}

// Client patches the payments and registrations tables of a PostgREST store.
type Client struct {
	cfg    Config
	http   *httpclient.Client
	ping   *httpclient.Client
	prober prober
	logger logrus.FieldLogger

	mu    sync.Mutex
	ready bool
}

func NewClient(cfg Config, p prober) *Client {
	cfg.URL = strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	return &Client{
		cfg:    cfg,
		http:   httpclient.New(httpclient.Config{Timeout: cfg.Timeout, Retry: cfg.Retry}),
		ping:   httpclient.New(httpclient.Config{Timeout: cfg.Timeout, Retry: retry.Policy{MaxRetries: 0}}),
		prober: p,
		logger: factory.NewModuleLogger("remote-store"),
	}
}

func (c *Client) configured() bool {
	return c.cfg.URL != "" && strings.TrimSpace(c.cfg.APIKey) != ""
}

// TestConnection re-establishes the session unconditionally.
func (c *Client) TestConnection(ctx context.Context) error {
	c.dropSession()
	return c.ensureSession(ctx)
}

func (c *Client) ensureSession(ctx context.Context) error {
	if !c.configured() {
		return ErrNotConfigured
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ready {
		return nil
	}

	if c.prober != nil && !c.prober.Probe(ctx, c.cfg.URL) {
		return ErrUnreachable
	}

	_, err := c.ping.Do(ctx, &httpclient.Request{
		Method: http.MethodGet,
		URL:    c.cfg.URL + "/rest/v1/",
		Header: c.headers(),
	})
	if err != nil {
		var statusErr *httpclient.StatusError
		if !errors.As(err, &statusErr) || (statusErr.StatusCode != http.StatusUnauthorized && statusErr.StatusCode != http.StatusForbidden) {
			return fmt.Errorf("%w: %v", ErrUnreachable, err)
		}
	}

	c.ready = true
	return nil
}

func (c *Client) dropSession() {
	c.mu.Lock()
	c.ready = false
	c.mu.Unlock()
}

// UpdatePaymentAndRegistration applies both table updates. Neither step
// depends on the outcome of the other.
func (c *Client) UpdatePaymentAndRegistration(ctx context.Context, upd Update) SyncResult {
	logger := c.logger.WithFields(logrus.Fields{
		"registration_id": upd.RegistrationID,
		"status":          upd.Status,
		"provider_ref":    upd.ProviderRef,
	})

	if strings.TrimSpace(upd.RegistrationID) == "" {
		logger.Error("remote update skipped: registration id is empty")
		return SyncResult{Err: ErrMissingRegistration}
	}
	if !c.configured() {
		logger.Error("remote update skipped: remote store is not configured")
		return SyncResult{Err: ErrNotConfigured}
	}
	if err := c.ensureSession(ctx); err != nil {
		logger.WithError(err).Error("remote update skipped: session could not be established")
		return SyncResult{Err: err}
	}

	var result SyncResult
	if err := c.patch(ctx, TablePayments, "registration_id", upd.RegistrationID, paymentPatch(upd)); err != nil {
		logger.WithError(err).WithField("table", TablePayments).Error("remote update failed")
		result.Err = err
	} else {
		result.Payments = true
	}

	if err := c.patch(ctx, TableRegistrations, "id", upd.RegistrationID, registrationPatch(upd)); err != nil {
		logger.WithError(err).WithField("table", TableRegistrations).Error("remote update failed")
		if result.Err == nil {
			result.Err = err
		}
	} else {
		result.Registrations = true
	}

	entry := logger.WithFields(logrus.Fields{
		"payments_updated":      result.Payments,
		"registrations_updated": result.Registrations,
	})
	switch result.Outcome() {
	case OutcomeComplete:
		entry.Info("remote store updated")
	case OutcomePartial:
		entry.Warn("remote store partially updated")
	default:
		entry.Error("remote store update failed")
	}

	return result
}

func (c *Client) patch(ctx context.Context, table, column, value string, body map[string]interface{}) (err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "remote.patch", trace.WithAttributes(
		attribute.String("remote.table", table),
	))
	defer func() {
		metrics.RemoteUpdates.WithLabelValues(table, metrics.Result(err == nil)).Inc()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := c.ensureSession(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	header := c.headers()
	header.Set("Content-Type", "application/json")
	header.Set("Prefer", "return=representation")

	_, err = c.http.DoWithCheck(ctx, &httpclient.Request{
		Method: http.MethodPatch,
		URL:    fmt.Sprintf("%s/rest/v1/%s?%s=eq.%s", c.cfg.URL, table, column, url.QueryEscape(value)),
		Header: header,
		Body:   payload,
	}, requireRepresentation)
	if err != nil {
		c.dropSession()
		return err
	}
	return nil
}

func (c *Client) headers() http.Header {
	header := http.Header{}
	header.Set("apikey", c.cfg.APIKey)
	header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	header.Set("Accept", "application/json")
	return header
}

func requireRepresentation(resp *httpclient.Response) error {
	body := bytes.TrimSpace(resp.Body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return errEmptyRepresentation
	}
	return nil
}

func paymentPatch(upd Update) map[string]interface{} {
	body := map[string]interface{}{
		"status":       string(upd.Status),
		"provider_ref": upd.ProviderRef,
	}
	if upd.ProviderTag != "" {
		body["payment_provider"] = upd.ProviderTag
	}
	if upd.PaymentKind != "" {
		body["tipo"] = upd.PaymentKind
	}
	return body
}

func registrationPatch(upd Update) map[string]interface{} {
	if upd.Status != status.Approved {
		return map[string]interface{}{
			"payment_status": string(upd.Status),
		}
	}
	return map[string]interface{}{
		"status":         string(status.Approved),
		"payment_status": string(status.Approved),
		"price_paid":     json.Number(upd.PricePaid.String()),
		"payment_method": upd.PaymentMethod,
	}
}
