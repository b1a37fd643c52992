package netprobe

import (
	"context"
	"errors"
	"net"
	"testing"
)

type probeDialer struct {
	err   error
	addrs []string
}

func (d *probeDialer) DialContext(_ context.Context, _, address string) (net.Conn, error) {
	d.addrs = append(d.addrs, address)
	if d.err != nil {
		return nil, d.err
	}
	client, server := net.Pipe()
	_ = server.Close()
	return client, nil
}

type probeResolver struct {
	addrs []string
	err   error
	hosts []string
}

func (r *probeResolver) LookupHost(_ context.Context, host string) ([]string, error) {
	r.hosts = append(r.hosts, host)
	return r.addrs, r.err
}

func TestProbeSucceeds(t *testing.T) {
	dialer := &probeDialer{}
	resolver := &probeResolver{addrs: []string{"10.0.0.1"}}
	p := NewWith(Config{}, dialer, resolver)

	if !p.Probe(context.Background(), "https://abc.supabase.co") {
		t.Fatal("expected probe to succeed")
	}
	if len(dialer.addrs) != 1 || dialer.addrs[0] != DefaultAddr {
		t.Fatalf("unexpected dial addresses: %v", dialer.addrs)
	}
	if len(resolver.hosts) != 1 || resolver.hosts[0] != "abc.supabase.co" {
		t.Fatalf("unexpected resolved hosts: %v", resolver.hosts)
	}
}

func TestProbeFailsWhenDialFails(t *testing.T) {
	resolver := &probeResolver{addrs: []string{"10.0.0.1"}}
	p := NewWith(Config{Addr: "1.1.1.1:53"}, &probeDialer{err: errors.New("unreachable")}, resolver)

	if p.Probe(context.Background(), "abc.supabase.co") {
		t.Fatal("expected probe to fail")
	}
	if len(resolver.hosts) != 0 {
		t.Fatal("expected dns check to be skipped after dial failure")
	}
}

func TestProbeFailsWhenDNSFails(t *testing.T) {
	p := NewWith(Config{}, &probeDialer{}, &probeResolver{err: errors.New("no such host")})
	if p.Probe(context.Background(), "abc.supabase.co") {
		t.Fatal("expected probe to fail")
	}

	p = NewWith(Config{}, &probeDialer{}, &probeResolver{})
	if err := p.CheckDNS(context.Background(), "abc.supabase.co"); !errors.Is(err, ErrNoAddresses) {
		t.Fatalf("expected ErrNoAddresses, got %v", err)
	}
}

func TestHostname(t *testing.T) {
	cases := map[string]string{
		"https://abc.supabase.co/rest/v1": "abc.supabase.co",
		"abc.supabase.co:443":             "abc.supabase.co",
		"abc.supabase.co":                 "abc.supabase.co",
		"":                                "",
	}
	for raw, expected := range cases {
		if got := Hostname(raw); got != expected {
			t.Fatalf("expected %q for %q, got %q", expected, raw, got)
		}
	}
}
