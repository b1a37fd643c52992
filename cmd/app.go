package cmd

import (
	"context"
	"database/sql"
	"sort"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/netprobe"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/provider"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/remote"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/repository"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/retry"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/service"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/status"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/telemetry"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/token"
	"github.com/vibast-solutions/ms-go-payment-reconciler/config"
)

type application struct {
	reconcilers   map[string]*service.Reconciler
	connectivity  *service.ConnectivityService
	registrations *service.RegistrationService
}

func (a *application) reconciler(code string) *service.Reconciler {
	r, ok := a.reconcilers[code]
	if !ok {
		logrus.WithField("provider", code).Fatal("Provider is not configured")
	}
	return r
}

func mustCreateApp() (*config.Config, *application, func()) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	shutdownTracing, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName:  cfg.App.ServiceName,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		Insecure:     cfg.Telemetry.Insecure,
	})
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize tracing")
	}

	dsn, err := repository.LedgerDSN(cfg.Ledger.Driver, cfg.Ledger.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Invalid ledger DSN")
	}

	db, err := sql.Open(cfg.Ledger.Driver, dsn)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.Ledger.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Ledger.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Ledger.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	paymentRepo := repository.NewPaymentRepository(db)
	tokenRepo := repository.NewTokenRepository(db)

	prober := netprobe.New(netprobe.Config{
		Addr:    cfg.Network.ProbeAddr,
		Timeout: cfg.Network.ProbeTimeout,
	})
	remoteClient := remote.NewClient(remote.Config{
		URL:     cfg.Remote.URL,
		APIKey:  cfg.Remote.APIKey,
		Timeout: cfg.Network.Timeout,
		Retry: retry.Policy{
			MaxRetries: cfg.Remote.MaxRetries,
			Factor:     cfg.Remote.BackoffFactor,
			Unit:       time.Second,
		},
	}, prober)
	if cfg.Remote.APIKey == "" {
		logrus.Error("REMOTE_API_KEY is not set, remote store updates are disabled")
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var providers []provider.Provider
	if coraProvider := newCoraProvider(cfg, tokenRepo, redisClient); coraProvider != nil {
		providers = append(providers, coraProvider)
	}
	mpProvider, err := provider.NewMercadoPagoProvider(provider.MercadoPagoConfig{
		AccessToken: cfg.MercadoPago.AccessToken,
		HTTPTimeout: cfg.Network.Timeout,
	})
	if err != nil {
		logrus.WithError(err).Warn("MercadoPago provider disabled")
	} else {
		providers = append(providers, mpProvider)
	}
	registry := provider.NewRegistry(providers...)

	ledger := service.NewLedgerUpdater(paymentRepo)
	policies := map[string]service.SweepPolicy{
		status.ProviderCora:        service.CoraPolicy(cfg.Reconcile),
		status.ProviderMercadoPago: service.MercadoPagoPolicy(cfg.Reconcile),
	}
	reconcilers := map[string]*service.Reconciler{}
	for _, code := range registry.Codes() {
		p, _ := registry.Get(code)
		reconcilers[code] = service.NewReconciler(p, policies[code], paymentRepo, ledger, remoteClient, prober, cfg.Remote.URL)
	}

	app := &application{
		reconcilers:   reconcilers,
		connectivity:  service.NewConnectivityService(prober, remoteClient, cfg.Remote.URL, registry),
		registrations: service.NewRegistrationService(paymentRepo, remoteClient),
	}

	cleanup := func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logrus.WithError(err).Warn("Failed to close redis client")
			}
		}
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logrus.WithError(err).Warn("Failed to flush traces")
		}
	}

	return cfg, app, cleanup
}

func newCoraProvider(cfg *config.Config, store token.Store, redisClient *redis.Client) provider.Provider {
	httpClient, err := provider.NewMTLSClient(cfg.Cora.CertFile, cfg.Cora.KeyFile, cfg.Network.Timeout)
	if err != nil {
		logrus.WithError(err).Warn("Cora provider disabled")
		return nil
	}

	fetcher, err := token.NewClientCredentialsFetcher(token.ClientCredentialsConfig{
		ClientID:     cfg.Cora.ClientID,
		ClientSecret: cfg.Cora.ClientSecret,
		TokenURL:     cfg.Cora.TokenURL,
		HTTPClient:   httpClient,
	})
	if err != nil {
		logrus.WithError(err).Warn("Cora provider disabled")
		return nil
	}

	var opts []token.Option
	if redisClient != nil {
		opts = append(opts, token.WithLocker(token.NewRedisLocker(redisClient)))
	}

	return provider.NewCoraProvider(provider.CoraConfig{
		BaseURL:     cfg.Cora.BaseURL,
		HTTPTimeout: cfg.Network.Timeout,
	}, httpClient, token.NewCache(store, fetcher, opts...))
}

func (a *application) providerCodes() []string {
	codes := make([]string, 0, len(a.reconcilers))
	for code := range a.reconcilers {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
