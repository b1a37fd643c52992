package service

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/factory"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/provider"
)

type connectivityProber interface {
	CheckInternet(ctx context.Context) error
	CheckDNS(ctx context.Context, host string) error
}

type remoteTester interface {
	TestConnection(ctx context.Context) error
}

type CheckResult struct {
	Name string
	Err  error
}

func (c CheckResult) OK() bool {
	return c.Err == nil
}

type ConnectivityReport struct {
	Checks []CheckResult
}

func (r *ConnectivityReport) OK() bool {
	for _, check := range r.Checks {
		if !check.OK() {
			return false
		}
	}
	return true
}

// ConnectivityService checks every dependency a sweep needs.
type ConnectivityService struct {
	prober     connectivityProber
	remote     remoteTester
	remoteHost string
	providers  *provider.Registry
	logger     logrus.FieldLogger
}

func NewConnectivityService(prober connectivityProber, remote remoteTester, remoteHost string, providers *provider.Registry) *ConnectivityService {
	return &ConnectivityService{
		prober:     prober,
		remote:     remote,
		remoteHost: remoteHost,
		providers:  providers,
		logger:     factory.NewModuleLogger("connectivity"),
	}
}

// Check runs all checks even when an earlier one fails.
func (s *ConnectivityService) Check(ctx context.Context) *ConnectivityReport {
	report := &ConnectivityReport{}
	add := func(name string, err error) {
		report.Checks = append(report.Checks, CheckResult{Name: name, Err: err})
		if err != nil {
			s.logger.WithError(err).WithField("check", name).Error("connectivity check failed")
			return
		}
		s.logger.WithField("check", name).Info("connectivity check passed")
	}

	add("internet", s.prober.CheckInternet(ctx))
	if s.remoteHost != "" {
		add("dns", s.prober.CheckDNS(ctx, s.remoteHost))
	}
	if s.remote != nil {
		add("remote_store", s.remote.TestConnection(ctx))
	}
	if s.providers != nil {
		for _, code := range s.providers.Codes() {
			p, err := s.providers.Get(code)
			if err != nil {
				add("provider:"+code, err)
				continue
			}
			add("provider:"+code, p.Ping(ctx))
		}
	}

	return report
}
