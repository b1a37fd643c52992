package cmd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vibast-solutions/ms-go-payment-reconciler/app/controller"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/entity"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/remote"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/service"
)

type serveLookup struct{}

func (serveLookup) FindLatestByExternalReference(context.Context, string) (*entity.Payment, error) {
	return &entity.Payment{Reference: "R1", Status: "pending"}, nil
}

type serveRemote struct{}

func (serveRemote) UpdatePaymentAndRegistration(context.Context, remote.Update) remote.SyncResult {
	return remote.SyncResult{}
}

func newTestServer(apiKey string) http.Handler {
	ctrl := controller.NewPaymentController(service.NewRegistrationService(serveLookup{}, serveRemote{}))
	return setupHTTPServer(ctrl, apiKey)
}

func TestHealthDoesNotRequireRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer("secret").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer("").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestPaymentRoutesRequireRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer("").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/payments/EXT1", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestPaymentRoutesRequireAPIKeyWhenConfigured(t *testing.T) {
	handler := newTestServer("secret")

	req := httptest.NewRequest(http.MethodGet, "/payments/EXT1", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/payments/EXT1", nil)
	req.Header.Set("X-Request-ID", "req-1")
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with key, got %d body=%s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") != "req-1" {
		t.Fatal("expected request id echoed")
	}
}
