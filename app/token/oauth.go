package token

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-payment-reconciler/app/entity"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const DefaultLifetime = 1800 * time.Second

type ClientCredentialsConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	// HTTPClient carries the client certificate when the endpoint requires mTLS.
	HTTPClient      *http.Client
	DefaultLifetime time.Duration
}

// ClientCredentialsFetcher performs the OAuth2 client_credentials grant.
type ClientCredentialsFetcher struct {
	cfg        clientcredentials.Config
	httpClient *http.Client
	lifetime   time.Duration
	now        func() time.Time
}

func NewClientCredentialsFetcher(cfg ClientCredentialsConfig) (*ClientCredentialsFetcher, error) {
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.TokenURL) == "" {
		return nil, errors.New("client id and token url are required")
	}
	lifetime := cfg.DefaultLifetime
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &ClientCredentialsFetcher{
		cfg: clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		httpClient: httpClient,
		lifetime:   lifetime,
		now:        time.Now,
	}, nil
}

func (f *ClientCredentialsFetcher) Fetch(ctx context.Context) (*entity.AccessToken, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, f.httpClient)
	tok, err := f.cfg.Token(ctx)
	if err != nil {
		return nil, err
	}

	expiresAt := tok.Expiry
	if expiresAt.IsZero() {
		expiresAt = f.now().Add(f.lifetime)
	}

	return &entity.AccessToken{Value: tok.AccessToken, ExpiresAt: expiresAt.UTC()}, nil
}
