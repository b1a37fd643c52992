package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App         AppConfig
	HTTP        ServerConfig
	Ledger      LedgerConfig
	Log         LogConfig
	Network     NetworkConfig
	Remote      RemoteConfig
	Cora        CoraConfig
	MercadoPago MercadoPagoConfig
	Redis       RedisConfig
	Telemetry   TelemetryConfig
	Reconcile   ReconcileConfig
	Jobs        JobsConfig
}

type AppConfig struct {
	ServiceName string
	APIKey      string
}

type ServerConfig struct {
	Host string
	Port string
}

type LedgerConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type NetworkConfig struct {
	ProbeAddr    string
	ProbeTimeout time.Duration
	Timeout      time.Duration
}

type RemoteConfig struct {
	URL           string
	APIKey        string
	MaxRetries    int
	BackoffFactor float64
}

type CoraConfig struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	CertFile     string
	KeyFile      string
}

type MercadoPagoConfig struct {
	AccessToken string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type TelemetryConfig struct {
	OTLPEndpoint string
	Insecure     bool
}

type ReconcileConfig struct {
	ItemDelay                time.Duration
	BatchSize                int32
	MaxRetries               int
	CoraBackoffFactor        float64
	MercadoPagoBackoffFactor float64
	CoraWindow               time.Duration
	MercadoPagoWindow        time.Duration
}

type JobsConfig struct {
	CoraInterval        time.Duration
	MercadoPagoInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	ledgerDSN := os.Getenv("LEDGER_DSN")
	if ledgerDSN == "" {
		return nil, errors.New("LEDGER_DSN environment variable is required")
	}

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "payment-reconciler"),
			APIKey:      getEnv("APP_API_KEY", ""),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		Ledger: LedgerConfig{
			Driver:          getEnv("LEDGER_DRIVER", "mysql"),
			DSN:             ledgerDSN,
			MaxOpenConns:    getIntEnv("LEDGER_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("LEDGER_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("LEDGER_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Network: NetworkConfig{
			ProbeAddr:    getEnv("NETWORK_PROBE_ADDR", "8.8.8.8:53"),
			ProbeTimeout: getSecondsEnv("NETWORK_PROBE_TIMEOUT_SECONDS", 5*time.Second),
			Timeout:      getSecondsEnv("NETWORK_TIMEOUT_SECONDS", 30*time.Second),
		},
		Remote: RemoteConfig{
			URL:           getEnv("REMOTE_URL", ""),
			APIKey:        getEnv("REMOTE_API_KEY", ""),
			MaxRetries:    getIntEnv("REMOTE_MAX_RETRIES", 3),
			BackoffFactor: getFloatEnv("REMOTE_BACKOFF_FACTOR", 2),
		},
		Cora: CoraConfig{
			BaseURL:      getEnv("CORA_BASE_URL", "https://matls-clients.api.cora.com.br/v2"),
			TokenURL:     getEnv("CORA_TOKEN_URL", "https://matls-clients.api.cora.com.br/token"),
			ClientID:     getEnv("CORA_CLIENT_ID", ""),
			ClientSecret: getEnv("CORA_CLIENT_SECRET", ""),
			CertFile:     getEnv("CORA_CERT_FILE", ""),
			KeyFile:      getEnv("CORA_KEY_FILE", ""),
		},
		MercadoPago: MercadoPagoConfig{
			AccessToken: getEnv("MERCADOPAGO_ACCESS_TOKEN", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Insecure:     getBoolEnv("OTEL_EXPORTER_OTLP_INSECURE", false),
		},
		Reconcile: ReconcileConfig{
			ItemDelay:                getSecondsEnv("RECONCILE_ITEM_DELAY_SECONDS", 2*time.Second),
			BatchSize:                int32(getIntEnv("RECONCILE_BATCH_SIZE", 100)),
			MaxRetries:               getIntEnv("RECONCILE_MAX_RETRIES", 3),
			CoraBackoffFactor:        getFloatEnv("RECONCILE_CORA_BACKOFF_FACTOR", 1),
			MercadoPagoBackoffFactor: getFloatEnv("RECONCILE_MERCADOPAGO_BACKOFF_FACTOR", 2),
			CoraWindow:               getHoursEnv("RECONCILE_CORA_WINDOW_HOURS", 7*24*time.Hour),
			MercadoPagoWindow:        getHoursEnv("RECONCILE_MERCADOPAGO_WINDOW_HOURS", 6*time.Hour),
		},
		Jobs: JobsConfig{
			CoraInterval:        getMinutesEnv("JOBS_CORA_INTERVAL_MINUTES", 2*time.Minute),
			MercadoPagoInterval: getMinutesEnv("JOBS_MERCADOPAGO_INTERVAL_MINUTES", time.Minute),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getHoursEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if hours, err := strconv.Atoi(value); err == nil {
			return time.Duration(hours) * time.Hour
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
