package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/factory"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/status"
)

type LedgerOutcome string

const (
	LedgerUpdated         LedgerOutcome = "updated"
	LedgerAlreadyApproved LedgerOutcome = "already_approved"
	LedgerNotFound        LedgerOutcome = "not_found"
	LedgerFailed          LedgerOutcome = "failed"
)

type ledgerRepository interface {
	ApplyStatus(ctx context.Context, reference, status, statusDetail string, now time.Time) (int64, error)
	HasApproved(ctx context.Context, reference string) (bool, error)
}

// LedgerUpdater writes normalized statuses to the local ledger.
type LedgerUpdater struct {
	repo   ledgerRepository
	now    func() time.Time
	logger logrus.FieldLogger
}

func NewLedgerUpdater(repo ledgerRepository) *LedgerUpdater {
	return &LedgerUpdater{
		repo:   repo,
		now:    time.Now,
		logger: factory.NewModuleLogger("ledger-updater"),
	}
}

// Apply never treats a missing row as an error. Callers keep going with the
// provider data they already hold.
func (u *LedgerUpdater) Apply(ctx context.Context, reference string, st status.Canonical, statusDetail string) (LedgerOutcome, error) {
	logger := u.logger.WithFields(logrus.Fields{
		"reference": reference,
		"status":    st,
	})

	affected, err := u.repo.ApplyStatus(ctx, reference, string(st), statusDetail, u.now().UTC())
	if err != nil {
		logger.WithError(err).Error("ledger update failed")
		return LedgerFailed, err
	}
	if affected > 0 {
		logger.WithField("rows", affected).Info("ledger updated")
		return LedgerUpdated, nil
	}

	approved, err := u.repo.HasApproved(ctx, reference)
	if err != nil {
		logger.WithError(err).Error("ledger lookup failed")
		return LedgerFailed, err
	}
	if approved {
		logger.Info("payment already approved locally, status kept")
		return LedgerAlreadyApproved, nil
	}

	logger.Warn("payment not found in local ledger")
	return LedgerNotFound, nil
}
