package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/entity"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/remote"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/service"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/types"
)

type controllerPaymentRepo struct {
	findFn func(ctx context.Context, externalReference string) (*entity.Payment, error)
}

func (r *controllerPaymentRepo) FindLatestByExternalReference(ctx context.Context, externalReference string) (*entity.Payment, error) {
	if r.findFn != nil {
		return r.findFn(ctx, externalReference)
	}
	return nil, nil
}

type controllerRemote struct {
	result  remote.SyncResult
	updates []remote.Update
}

func (r *controllerRemote) UpdatePaymentAndRegistration(_ context.Context, upd remote.Update) remote.SyncResult {
	r.updates = append(r.updates, upd)
	return r.result
}

func newControllerForTest(repo *controllerPaymentRepo, remoteClient *controllerRemote) *PaymentController {
	return NewPaymentController(service.NewRegistrationService(repo, remoteClient))
}

func newContext(method, path, externalReference string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set(echo.HeaderXRequestID, "req-1")
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("external_reference")
	ctx.SetParamValues(externalReference)
	return ctx, rec
}

func approvedPayment() *entity.Payment {
	ext := "EXT1"
	return &entity.Payment{
		ID:                7,
		Reference:         "R1",
		ExternalReference: &ext,
		AmountCents:       5000,
		Status:            "approved",
		Kind:              entity.KindPix,
		Origin:            "cora",
		CreatedAt:         time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestHealth(t *testing.T) {
	ctrl := newControllerForTest(&controllerPaymentRepo{}, &controllerRemote{})
	ctx, rec := newContext(http.MethodGet, "/health", "")

	if err := ctrl.Health(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestGetPaymentSuccess(t *testing.T) {
	repo := &controllerPaymentRepo{findFn: func(_ context.Context, externalReference string) (*entity.Payment, error) {
		if externalReference != "EXT1" {
			t.Errorf("unexpected external reference: %s", externalReference)
		}
		return approvedPayment(), nil
	}}
	ctrl := newControllerForTest(repo, &controllerRemote{})
	ctx, rec := newContext(http.MethodGet, "/payments/EXT1", "EXT1")

	_ = ctrl.GetPayment(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	var payload types.PaymentEnvelopeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload.Payment == nil || payload.Payment.Reference != "R1" || payload.Payment.Amount != "50.00" {
		t.Fatalf("unexpected payment payload: %+v", payload.Payment)
	}
	if payload.Payment.CreatedAt != "2026-01-01T09:00:00Z" || payload.Payment.UpdatedAt != "" {
		t.Fatalf("unexpected timestamps: %+v", payload.Payment)
	}
}

func TestGetPaymentNotFound(t *testing.T) {
	ctrl := newControllerForTest(&controllerPaymentRepo{}, &controllerRemote{})
	ctx, rec := newContext(http.MethodGet, "/payments/EXT9", "EXT9")

	_ = ctrl.GetPayment(ctx)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetPaymentRepositoryError(t *testing.T) {
	repo := &controllerPaymentRepo{findFn: func(context.Context, string) (*entity.Payment, error) {
		return nil, errors.New("db down")
	}}
	ctrl := newControllerForTest(repo, &controllerRemote{})
	ctx, rec := newContext(http.MethodGet, "/payments/EXT1", "EXT1")

	_ = ctrl.GetPayment(ctx)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestGetPaymentMissingReference(t *testing.T) {
	ctrl := newControllerForTest(&controllerPaymentRepo{}, &controllerRemote{})
	ctx, rec := newContext(http.MethodGet, "/payments/", " ")

	_ = ctrl.GetPayment(ctx)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestConfirmRegistrationSuccess(t *testing.T) {
	repo := &controllerPaymentRepo{findFn: func(context.Context, string) (*entity.Payment, error) {
		return approvedPayment(), nil
	}}
	remoteClient := &controllerRemote{result: remote.SyncResult{Payments: true, Registrations: true}}
	ctrl := newControllerForTest(repo, remoteClient)
	ctx, rec := newContext(http.MethodPost, "/payments/EXT1/confirm", "EXT1")

	_ = ctrl.ConfirmRegistration(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	var payload types.ConfirmRegistrationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if !payload.Confirmed || !payload.PaymentsUpdated || !payload.RegistrationsUpdated {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if len(remoteClient.updates) != 1 || remoteClient.updates[0].RegistrationID != "EXT1" {
		t.Fatalf("unexpected remote updates: %+v", remoteClient.updates)
	}
}

func TestConfirmRegistrationPendingPayment(t *testing.T) {
	repo := &controllerPaymentRepo{findFn: func(context.Context, string) (*entity.Payment, error) {
		item := approvedPayment()
		item.Status = "pending"
		return item, nil
	}}
	remoteClient := &controllerRemote{}
	ctrl := newControllerForTest(repo, remoteClient)
	ctx, rec := newContext(http.MethodPost, "/payments/EXT1/confirm", "EXT1")

	_ = ctrl.ConfirmRegistration(ctx)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if len(remoteClient.updates) != 0 {
		t.Fatal("expected no remote update")
	}
}

func TestConfirmRegistrationRemoteFailure(t *testing.T) {
	repo := &controllerPaymentRepo{findFn: func(context.Context, string) (*entity.Payment, error) {
		return approvedPayment(), nil
	}}
	remoteClient := &controllerRemote{result: remote.SyncResult{Registrations: true, Err: errors.New("payments patch failed")}}
	ctrl := newControllerForTest(repo, remoteClient)
	ctx, rec := newContext(http.MethodPost, "/payments/EXT1/confirm", "EXT1")

	_ = ctrl.ConfirmRegistration(ctx)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}

	var payload types.ConfirmRegistrationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload.Confirmed || payload.PaymentsUpdated || !payload.RegistrationsUpdated {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}
