package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/entity"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/factory"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/httpclient"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/metrics"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/provider"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/remote"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/repository"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/retry"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/status"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/telemetry"
	"github.com/vibast-solutions/ms-go-payment-reconciler/config"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type SweepState string

const (
	SweepCompleted SweepState = "completed"
	SweepAborted   SweepState = "aborted"
	SweepCancelled SweepState = "cancelled"
)

const (
	StageFetch  = "fetch"
	StageLedger = "ledger"
	StageRemote = "remote"
	StagePanic  = "panic"
)

// RemoteSkipped marks items without a registration id.
const RemoteSkipped remote.Outcome = "skipped"

type candidateRepository interface {
	ListCandidates(ctx context.Context, filter repository.CandidateFilter) ([]entity.Candidate, error)
}

type remoteSyncer interface {
	TestConnection(ctx context.Context) error
	UpdatePaymentAndRegistration(ctx context.Context, upd remote.Update) remote.SyncResult
}

type networkProber interface {
	Probe(ctx context.Context, host string) bool
}

// SweepPolicy holds the per-provider candidate selection and lookup schedule.
type SweepPolicy struct {
	Kinds            []string
	ExcludedStatuses []string
	Window           time.Duration
	BatchSize        int32
	Retry            retry.Policy
	ItemDelay        time.Duration
}

func CoraPolicy(cfg config.ReconcileConfig) SweepPolicy {
	return SweepPolicy{
		Kinds: []string{entity.KindPix, entity.KindBoleto},
		// Rows written before normalization may still carry the raw PAID.
		ExcludedStatuses: []string{"PAID", string(status.Approved), string(status.Rejected), string(status.Cancelled), string(status.Refunded)},
		Window:           cfg.CoraWindow,
		BatchSize:        cfg.BatchSize,
		Retry:            retry.Policy{MaxRetries: cfg.MaxRetries, Factor: cfg.CoraBackoffFactor, Unit: time.Second},
		ItemDelay:        cfg.ItemDelay,
	}
}

func MercadoPagoPolicy(cfg config.ReconcileConfig) SweepPolicy {
	return SweepPolicy{
		Kinds:            []string{entity.KindCard},
		ExcludedStatuses: []string{string(status.Approved), string(status.Rejected), string(status.Cancelled), string(status.Refunded)},
		Window:           cfg.MercadoPagoWindow,
		BatchSize:        cfg.BatchSize,
		Retry:            retry.Policy{MaxRetries: cfg.MaxRetries, Factor: cfg.MercadoPagoBackoffFactor, Unit: time.Second},
		ItemDelay:        cfg.ItemDelay,
	}
}

type ItemResult struct {
	Reference      string
	RegistrationID string
	Fetched        bool
	Status         status.Canonical
	Ledger         LedgerOutcome
	Remote         remote.Outcome
	Stage          string
	Err            error
}

func (r ItemResult) Outcome() string {
	switch {
	case r.Stage == StagePanic:
		return "panic"
	case !r.Fetched:
		return "fetch_failed"
	case r.Remote == remote.OutcomeComplete:
		return "synced"
	case r.Remote == remote.OutcomePartial:
		return "partial"
	case r.Remote == RemoteSkipped:
		return "remote_skipped"
	default:
		return "remote_failed"
	}
}

type SweepSummary struct {
	ID         string
	Provider   string
	State      SweepState
	StartedAt  time.Time
	FinishedAt time.Time

	Candidates      int
	Fetched         int
	Failed          int
	LocalUpdated    int
	LocalMissing    int
	AlreadyApproved int
	RemoteComplete  int
	RemotePartial   int
	RemoteFailed    int
	RemoteSkipped   int

	Items []ItemResult
}

func (s *SweepSummary) record(item ItemResult) {
	s.Items = append(s.Items, item)
	if item.Err != nil {
		s.Failed++
	}
	if !item.Fetched {
		return
	}
	s.Fetched++

	switch item.Ledger {
	case LedgerUpdated:
		s.LocalUpdated++
	case LedgerNotFound:
		s.LocalMissing++
	case LedgerAlreadyApproved:
		s.AlreadyApproved++
	}

	switch item.Remote {
	case remote.OutcomeComplete:
		s.RemoteComplete++
	case remote.OutcomePartial:
		s.RemotePartial++
	case RemoteSkipped:
		s.RemoteSkipped++
	default:
		s.RemoteFailed++
	}
}

func (s *SweepSummary) fields() logrus.Fields {
	return logrus.Fields{
		"state":            s.State,
		"candidates":       s.Candidates,
		"fetched":          s.Fetched,
		"failed":           s.Failed,
		"local_updated":    s.LocalUpdated,
		"local_missing":    s.LocalMissing,
		"already_approved": s.AlreadyApproved,
		"remote_complete":  s.RemoteComplete,
		"remote_partial":   s.RemotePartial,
		"remote_failed":    s.RemoteFailed,
		"remote_skipped":   s.RemoteSkipped,
		"duration":         s.FinishedAt.Sub(s.StartedAt).String(),
	}
}

type ReconcilerOption func(*Reconciler)

func WithSleep(sleep func(ctx context.Context, d time.Duration) error) ReconcilerOption {
	return func(r *Reconciler) { r.sleep = sleep }
}

func WithNow(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) { r.now = now }
}

// Reconciler runs sweeps for a single provider. Candidates are processed
// sequentially and a failing item never stops the sweep.
type Reconciler struct {
	provider   provider.Provider
	policy     SweepPolicy
	candidates candidateRepository
	ledger     *LedgerUpdater
	remote     remoteSyncer
	prober     networkProber
	remoteHost string
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
	logger     logrus.FieldLogger
}

func NewReconciler(
	p provider.Provider,
	policy SweepPolicy,
	candidates candidateRepository,
	ledger *LedgerUpdater,
	remoteClient remoteSyncer,
	prober networkProber,
	remoteHost string,
	opts ...ReconcilerOption,
) *Reconciler {
	r := &Reconciler{
		provider:   p,
		policy:     policy,
		candidates: candidates,
		ledger:     ledger,
		remote:     remoteClient,
		prober:     prober,
		remoteHost: remoteHost,
		now:        time.Now,
		sleep:      sleepContext,
		logger:     factory.NewModuleLogger("reconciler"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reconciler) Provider() string {
	return r.provider.Code()
}

// Sweep runs one pass over the provider's candidates. An error is returned
// only when the sweep could not run to completion.
func (r *Reconciler) Sweep(ctx context.Context) (summary *SweepSummary, err error) {
	code := r.provider.Code()
	summary = &SweepSummary{
		ID:        uuid.NewString(),
		Provider:  code,
		StartedAt: r.now().UTC(),
	}
	logger := r.logger.WithFields(logrus.Fields{
		"provider": code,
		"sweep_id": summary.ID,
	})

	ctx, span := telemetry.Tracer().Start(ctx, "reconcile.sweep", trace.WithAttributes(
		attribute.String("payment.provider", code),
		attribute.String("sweep.id", summary.ID),
	))
	defer func() {
		if rec := recover(); rec != nil {
			summary.State = SweepAborted
			err = fmt.Errorf("sweep panic: %v", rec)
			logger.WithField("panic", rec).Error("sweep panicked")
		}
		summary.FinishedAt = r.now().UTC()
		metrics.Sweeps.WithLabelValues(code, string(summary.State)).Inc()
		metrics.SweepDuration.WithLabelValues(code).Observe(summary.FinishedAt.Sub(summary.StartedAt).Seconds())
		span.SetAttributes(
			attribute.String("sweep.state", string(summary.State)),
			attribute.Int("sweep.candidates", summary.Candidates),
			attribute.Int("sweep.failed", summary.Failed),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if r.prober != nil && !r.prober.Probe(ctx, r.remoteHost) {
		summary.State = SweepAborted
		logger.Error("connectivity check failed, sweep aborted")
		return summary, ErrNetworkUnavailable
	}

	if r.remote != nil {
		if err := r.remote.TestConnection(ctx); err != nil {
			logger.WithError(err).Warn("remote store check failed, continuing sweep")
		}
	}

	candidates, err := r.candidates.ListCandidates(ctx, repository.CandidateFilter{
		Kinds:            r.policy.Kinds,
		ExcludedStatuses: r.policy.ExcludedStatuses,
		Since:            summary.StartedAt.Add(-r.policy.Window),
		Limit:            r.policy.BatchSize,
	})
	if err != nil {
		summary.State = SweepAborted
		logger.WithError(err).Error("failed to load candidates")
		return summary, fmt.Errorf("list candidates: %w", err)
	}
	summary.Candidates = len(candidates)
	logger.WithField("candidates", len(candidates)).Info("sweep started")

	for i, candidate := range candidates {
		if ctx.Err() != nil {
			summary.State = SweepCancelled
			logger.WithFields(summary.fields()).Warn("sweep cancelled")
			return summary, ctx.Err()
		}

		item := r.reconcileItem(ctx, candidate)
		summary.record(item)
		metrics.Items.WithLabelValues(code, item.Outcome()).Inc()

		if item.Fetched && r.policy.ItemDelay > 0 && i < len(candidates)-1 {
			if err := r.sleep(ctx, r.policy.ItemDelay); err != nil {
				summary.State = SweepCancelled
				logger.WithFields(summary.fields()).Warn("sweep cancelled")
				return summary, err
			}
		}
	}

	summary.State = SweepCompleted
	summary.FinishedAt = r.now().UTC()
	logger.WithFields(summary.fields()).Info("sweep completed")
	return summary, nil
}

func (r *Reconciler) reconcileItem(ctx context.Context, candidate entity.Candidate) (item ItemResult) {
	code := r.provider.Code()
	item = ItemResult{Reference: candidate.Reference}
	logger := r.logger.WithFields(logrus.Fields{
		"provider":  code,
		"reference": candidate.Reference,
	})

	ctx, span := telemetry.Tracer().Start(ctx, "reconcile.item", trace.WithAttributes(
		attribute.String("payment.provider", code),
		attribute.String("payment.reference", candidate.Reference),
	))
	defer func() {
		if rec := recover(); rec != nil {
			item.Stage = StagePanic
			item.Err = fmt.Errorf("panic: %v", rec)
			logger.WithField("panic", rec).Error("payment reconciliation panicked")
		}
		if item.Err != nil {
			span.RecordError(item.Err)
			span.SetStatus(codes.Error, item.Err.Error())
		}
		span.End()
	}()

	report, err := r.fetch(ctx, candidate.Reference, logger)
	if err != nil {
		item.Stage = StageFetch
		item.Err = err
		logger.WithError(err).Error("provider lookup failed")
		return item
	}
	item.Fetched = true

	st := status.Normalize(code, report.RawStatus)
	item.Status = st
	entry := logger.WithFields(logrus.Fields{
		"status":     st,
		"raw_status": report.RawStatus,
		"final":      status.IsFinal(st),
	})
	if !status.IsKnown(st) {
		metrics.UnknownStatuses.WithLabelValues(code).Inc()
		entry.Warn("provider status has no canonical mapping, storing it as received")
	}
	if report.StatusDetail != "" {
		entry = entry.WithField("status_detail", report.StatusDetail)
		if code == status.ProviderMercadoPago {
			entry = entry.WithField("status_description", status.Describe(report.StatusDetail))
		}
	}
	entry = entry.WithFields(reportFields(report))
	entry.Info("provider status fetched")

	item.Ledger, err = r.ledger.Apply(ctx, candidate.Reference, st, report.StatusDetail)
	if err != nil {
		item.Stage = StageLedger
		item.Err = err
	}

	registrationID := strings.TrimSpace(report.ExternalReference)
	if registrationID == "" {
		registrationID = strings.TrimSpace(candidate.ExternalReference)
	}
	item.RegistrationID = registrationID
	if registrationID == "" {
		item.Remote = RemoteSkipped
		logger.Warn("payment has no registration id, remote sync skipped")
		return item
	}

	if r.remote == nil {
		item.Remote = RemoteSkipped
		return item
	}

	result := r.remote.UpdatePaymentAndRegistration(ctx, remote.Update{
		RegistrationID: registrationID,
		Status:         st,
		ProviderRef:    candidate.Reference,
		PricePaid:      report.Amount,
		PaymentMethod:  report.PaymentMethod,
		ProviderTag:    report.ProviderTag,
		PaymentKind:    report.PaymentKind,
	})
	item.Remote = result.Outcome()
	if item.Remote != remote.OutcomeComplete && item.Err == nil {
		item.Stage = StageRemote
		item.Err = fmt.Errorf("%w: %v", ErrRemoteSyncFailed, result.Err)
	}

	return item
}

func (r *Reconciler) fetch(ctx context.Context, reference string, logger logrus.FieldLogger) (*provider.StatusReport, error) {
	var report *provider.StatusReport
	err := retry.Do(ctx, r.policy.Retry, func(ctx context.Context, _ int) error {
		fetched, err := r.provider.FetchStatus(ctx, reference)
		if err != nil {
			if permanentLookupError(err) {
				return retry.Permanent(err)
			}
			return err
		}
		report = fetched
		return nil
	}, func(attempt int, err error, wait time.Duration) {
		logger.WithError(err).WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"wait":    wait.String(),
		}).Warn("provider lookup failed, retrying")
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// reportFields carries the descriptive provider data into the fetch log entry.
func reportFields(report *provider.StatusReport) logrus.Fields {
	fields := logrus.Fields{}
	if report.PaidAt != "" {
		fields["paid_at"] = report.PaidAt
	}
	if report.CreatedAt != "" {
		fields["provider_created_at"] = report.CreatedAt
	}
	if report.Description != "" {
		fields["description"] = report.Description
	}
	for key, value := range report.Attributes {
		fields["attr_"+key] = value
	}
	return fields
}

func permanentLookupError(err error) bool {
	if errors.Is(err, provider.ErrPaymentNotFound) || errors.Is(err, provider.ErrInvalidReference) {
		return true
	}
	var statusErr *httpclient.StatusError
	return errors.As(err, &statusErr) && !httpclient.Retryable(statusErr.StatusCode)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
