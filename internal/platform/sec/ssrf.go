// Copyright (c) 2026 MangaTrack. All rights reserved.

package sec

import (
	"context"
	"fmt"
	"net"
	"net/url"
)

// HostResolver resolves a hostname to its IP addresses. It matches the
// signature of [net.Resolver.LookupIP] so the default resolver plugs in
// directly and tests can substitute a fixture.
type HostResolver interface {
	LookupIP(ctx context.Context, network, host string) ([]net.IP, error)
}

// SSRFGuard validates that outbound URLs supplied by users cannot be used
// to reach internal infrastructure.
type SSRFGuard struct {
	resolver HostResolver
}

// NewSSRFGuard builds a guard around the given resolver. A nil resolver
// falls back to [net.DefaultResolver].
func NewSSRFGuard(resolver HostResolver) *SSRFGuard {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &SSRFGuard{resolver: resolver}
}

// CheckURL rejects URLs that are not plain http(s) or whose host resolves
// to a private, loopback, link-local, or otherwise non-public address.
// Every resolved address must be public: a host with one public and one
// private A record is still rejected (DNS-rebinding defense).
func (g *SSRFGuard) CheckURL(ctx context.Context, raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("sec: unparsable URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("sec: scheme %q is not allowed", parsed.Scheme)
	}
	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("sec: URL has no host")
	}

	// Literal IPs skip DNS.
	if ip := net.ParseIP(host); ip != nil {
		if !isPublicIP(ip) {
			return fmt.Errorf("sec: address %s is not publicly routable", ip)
		}
		return nil
	}

	ips, err := g.resolver.LookupIP(ctx, "ip", host)
	if err != nil {
		return fmt.Errorf("sec: host %q did not resolve: %w", host, err)
	}
	if len(ips) == 0 {
		return fmt.Errorf("sec: host %q resolved to no addresses", host)
	}
	for _, ip := range ips {
		if !isPublicIP(ip) {
			return fmt.Errorf("sec: host %q resolves to non-public address %s", host, ip)
		}
	}
	return nil
}

// isPublicIP reports whether ip is routable on the public internet.
func isPublicIP(ip net.IP) bool {
	switch {
	case ip.IsLoopback(),
		ip.IsPrivate(),
		ip.IsLinkLocalUnicast(),
		ip.IsLinkLocalMulticast(),
		ip.IsMulticast(),
		ip.IsUnspecified():
		return false
	}
	return true
}
