package netprobe

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultAddr    = "8.8.8.8:53"
	DefaultTimeout = 5 * time.Second
)

var ErrNoAddresses = errors.New("host resolved to no addresses")

type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

type Config struct {
	Addr    string
	Timeout time.Duration
}

// Prober checks outbound reachability before the reconciler touches the network.
type Prober struct {
	addr     string
	timeout  time.Duration
	dialer   Dialer
	resolver Resolver
	logger   logrus.FieldLogger
}

func New(cfg Config) *Prober {
	return NewWith(cfg, &net.Dialer{}, net.DefaultResolver)
}

func NewWith(cfg Config, dialer Dialer, resolver Resolver) *Prober {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Prober{
		addr:     cfg.Addr,
		timeout:  cfg.Timeout,
		dialer:   dialer,
		resolver: resolver,
		logger:   logrus.WithField("module", "netprobe"),
	}
}

// CheckInternet opens and closes a TCP connection to the probe address.
func (p *Prober) CheckInternet(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	conn, err := p.dialer.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		return err
	}
	return conn.Close()
}

// CheckDNS resolves host, which may also be given as a URL.
func (p *Prober) CheckDNS(ctx context.Context, host string) error {
	host = Hostname(host)
	if host == "" {
		return errors.New("empty host")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	addrs, err := p.resolver.LookupHost(ctx, host)
	if err != nil {
		return err
	}
	if len(addrs) == 0 {
		return ErrNoAddresses
	}
	return nil
}

// Probe runs the internet check and, when host is set, the DNS check.
func (p *Prober) Probe(ctx context.Context, host string) bool {
	if err := p.CheckInternet(ctx); err != nil {
		p.logger.WithError(err).WithField("addr", p.addr).Error("network connectivity check failed")
		return false
	}
	if strings.TrimSpace(host) == "" {
		return true
	}
	if err := p.CheckDNS(ctx, host); err != nil {
		p.logger.WithError(err).WithField("host", Hostname(host)).Error("dns resolution failed")
		return false
	}
	return true
}

// Hostname extracts the host part of a URL or host:port string.
func Hostname(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.Contains(raw, "://") {
		if parsed, err := url.Parse(raw); err == nil {
			return parsed.Hostname()
		}
	}
	if host, _, err := net.SplitHostPort(raw); err == nil {
		return host
	}
	return strings.TrimSuffix(raw, "/")
}
