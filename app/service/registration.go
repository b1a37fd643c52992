package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/entity"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/factory"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/remote"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/status"
)

type paymentLookup interface {
	FindLatestByExternalReference(ctx context.Context, externalReference string) (*entity.Payment, error)
}

type registrationSyncer interface {
	UpdatePaymentAndRegistration(ctx context.Context, upd remote.Update) remote.SyncResult
}

type ConfirmResult struct {
	Payment   *entity.Payment
	Confirmed bool
	Sync      remote.SyncResult
}

// RegistrationService serves manual lookups and confirmations keyed by the
// external reference.
type RegistrationService struct {
	payments paymentLookup
	remote   registrationSyncer
	logger   logrus.FieldLogger
}

func NewRegistrationService(payments paymentLookup, remoteClient registrationSyncer) *RegistrationService {
	return &RegistrationService{
		payments: payments,
		remote:   remoteClient,
		logger:   factory.NewModuleLogger("registration-service"),
	}
}

func (s *RegistrationService) GetPayment(ctx context.Context, externalReference string) (*entity.Payment, error) {
	externalReference = strings.TrimSpace(externalReference)
	if externalReference == "" {
		return nil, ErrInvalidRequest
	}

	item, err := s.payments.FindLatestByExternalReference(ctx, externalReference)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrPaymentNotFound
	}
	return item, nil
}

// ConfirmRegistration pushes an approved local payment to the remote store.
// Payments in any other status are returned unconfirmed.
func (s *RegistrationService) ConfirmRegistration(ctx context.Context, externalReference string) (*ConfirmResult, error) {
	item, err := s.GetPayment(ctx, externalReference)
	if err != nil {
		return nil, err
	}

	result := &ConfirmResult{Payment: item}
	if status.Canonical(item.Status) != status.Approved {
		return result, nil
	}

	upd := remote.Update{
		RegistrationID: strings.TrimSpace(externalReference),
		Status:         status.Approved,
		ProviderRef:    item.Reference,
		PricePaid:      decimal.New(item.AmountCents, -2),
	}
	switch item.Origin {
	case status.ProviderMercadoPago:
		upd.PaymentMethod = "Credito"
		upd.ProviderTag = "MercadoPago"
		upd.PaymentKind = "Credito"
	default:
		upd.PaymentMethod = "PIX"
	}

	result.Sync = s.remote.UpdatePaymentAndRegistration(ctx, upd)
	if result.Sync.Outcome() != remote.OutcomeComplete {
		s.logger.WithError(result.Sync.Err).WithField("external_reference", upd.RegistrationID).Error("manual confirmation failed")
		return result, fmt.Errorf("%w: %v", ErrRemoteSyncFailed, result.Sync.Err)
	}

	result.Confirmed = true
	return result, nil
}
