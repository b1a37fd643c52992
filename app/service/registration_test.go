package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/entity"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/remote"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/status"
)

type fakePaymentLookup struct {
	items map[string]*entity.Payment
	err   error
}

func (f *fakePaymentLookup) FindLatestByExternalReference(_ context.Context, externalReference string) (*entity.Payment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.items[externalReference], nil
}

func TestGetPayment(t *testing.T) {
	lookup := &fakePaymentLookup{items: map[string]*entity.Payment{
		"EXT1": {Reference: "R1", Status: "pending"},
	}}
	svc := NewRegistrationService(lookup, &fakeRemote{})

	item, err := svc.GetPayment(context.Background(), " EXT1 ")
	if err != nil || item.Reference != "R1" {
		t.Fatalf("unexpected result: %+v err=%v", item, err)
	}
	if _, err := svc.GetPayment(context.Background(), "EXT2"); !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
	if _, err := svc.GetPayment(context.Background(), " "); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestConfirmRegistrationPushesApprovedPayment(t *testing.T) {
	lookup := &fakePaymentLookup{items: map[string]*entity.Payment{
		"EXT1": {Reference: "123", Status: "approved", AmountCents: 11490, Origin: status.ProviderMercadoPago, Kind: entity.KindCard},
	}}
	remoteClient := &fakeRemote{}
	svc := NewRegistrationService(lookup, remoteClient)

	result, err := svc.ConfirmRegistration(context.Background(), "EXT1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !result.Confirmed || len(remoteClient.updates) != 1 {
		t.Fatalf("expected confirmation, got %+v", result)
	}
	upd := remoteClient.updates[0]
	if upd.RegistrationID != "EXT1" || upd.ProviderRef != "123" || upd.Status != status.Approved {
		t.Fatalf("unexpected update: %+v", upd)
	}
	if !upd.PricePaid.Equal(decimal.RequireFromString("114.90")) {
		t.Fatalf("unexpected price paid: %s", upd.PricePaid)
	}
	if upd.PaymentMethod != "Credito" || upd.ProviderTag != "MercadoPago" || upd.PaymentKind != "Credito" {
		t.Fatalf("unexpected tags: %+v", upd)
	}
}

func TestConfirmRegistrationReportsPendingPayment(t *testing.T) {
	lookup := &fakePaymentLookup{items: map[string]*entity.Payment{
		"EXT1": {Reference: "R1", Status: "pending", Origin: status.ProviderCora},
	}}
	remoteClient := &fakeRemote{}
	svc := NewRegistrationService(lookup, remoteClient)

	result, err := svc.ConfirmRegistration(context.Background(), "EXT1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Confirmed || len(remoteClient.updates) != 0 {
		t.Fatalf("expected no remote update for pending payment, got %+v", result)
	}
}

func TestConfirmRegistrationRemoteFailure(t *testing.T) {
	lookup := &fakePaymentLookup{items: map[string]*entity.Payment{
		"EXT1": {Reference: "R1", Status: "approved", AmountCents: 5000, Origin: status.ProviderCora},
	}}
	remoteClient := &fakeRemote{resultFn: func(remote.Update) remote.SyncResult {
		return remote.SyncResult{Err: remote.ErrUnreachable}
	}}
	svc := NewRegistrationService(lookup, remoteClient)

	result, err := svc.ConfirmRegistration(context.Background(), "EXT1")
	if !errors.Is(err, ErrRemoteSyncFailed) {
		t.Fatalf("expected ErrRemoteSyncFailed, got %v", err)
	}
	if result == nil || result.Confirmed {
		t.Fatalf("unexpected result: %+v", result)
	}
	if remoteClient.updates[0].PaymentMethod != "PIX" {
		t.Fatalf("expected PIX payment method, got %+v", remoteClient.updates[0])
	}
}
