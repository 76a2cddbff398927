package client

import (
	"context"
	"fmt"
	"net"
	"time"
)

// publicDNS is queried when the system resolver fails.
var publicDNS = []string{
	"1.1.1.1",
	"1.0.0.1",
	"2606:4700:4700::1111",
	"8.8.8.8",
	"8.8.4.4",
	"2001:4860:4860::8888",
	"9.9.9.9",
	"149.112.112.112",
	"208.67.222.222",
	"208.67.220.220",
}

const (
	localLookupTimeout  = time.Second
	publicLookupTimeout = 2 * time.Second
)

type lookupFunc func(ctx context.Context, host string) ([]string, error)

// Resolver looks a host up with the system resolver and, if that fails,
// races the public DNS servers.
type Resolver struct {
	local   lookupFunc
	servers []string
	remote  func(server string) lookupFunc
}

func NewResolver() *Resolver {
	return &Resolver{
		local:   net.DefaultResolver.LookupHost,
		servers: publicDNS,
		remote:  serverLookup,
	}
}

// serverLookup queries one DNS server directly on port 53.
func serverLookup(server string) lookupFunc {
	r := &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, net.JoinHostPort(server, "53"))
		},
	}
	return r.LookupHost
}

// Lookup returns one address for host, preferring IPv4. IP literals are
// returned unchanged.
func (r *Resolver) Lookup(ctx context.Context, host string) (string, error) {
	if net.ParseIP(host) != nil {
		return host, nil
	}

	localCtx, cancel := context.WithTimeout(ctx, localLookupTimeout)
	ips, err := r.local(localCtx, host)
	cancel()
	if err == nil {
		if ip, ok := preferIPv4(ips); ok {
			return ip, nil
		}
	}

	return r.race(ctx, host)
}

func (r *Resolver) race(ctx context.Context, host string) (string, error) {
	if len(r.servers) == 0 {
		return "", fmt.Errorf("resolve %s: no fallback servers", host)
	}

	ctx, cancel := context.WithTimeout(ctx, publicLookupTimeout)
	defer cancel()

	type result struct {
		ip string
		ok bool
	}
	results := make(chan result, len(r.servers))
	for _, server := range r.servers {
		go func(lookup lookupFunc) {
			ips, err := lookup(ctx, host)
			if err != nil {
				results <- result{}
				return
			}
			ip, ok := preferIPv4(ips)
			results <- result{ip: ip, ok: ok}
		}(r.remote(server))
	}

	for range r.servers {
		select {
		case res := <-results:
			if res.ok {
				return res.ip, nil
			}
		case <-ctx.Done():
			return "", fmt.Errorf("resolve %s: %w", host, ctx.Err())
		}
	}
	return "", fmt.Errorf("resolve %s: all %d fallback servers failed", host, len(r.servers))
}

func preferIPv4(ips []string) (string, bool) {
	if len(ips) == 0 {
		return "", false
	}
	for _, ip := range ips {
		if parsed := net.ParseIP(ip); parsed != nil && parsed.To4() != nil {
			return ip, true
		}
	}
	return ips[0], true
}

// DialContext resolves the host part of addr with r and dials the result.
// It fits websocket.Dialer.NetDialContext; TLS still verifies against the
// original host name.
func (r *Resolver) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	ip, err := r.Lookup(ctx, host)
	if err != nil {
		return nil, NewError("resolve server address", err)
	}
	var d net.Dialer
	return d.DialContext(ctx, network, net.JoinHostPort(ip, port))
}
