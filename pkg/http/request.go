package http

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// IPResolver resolves the client address of a request. Forwarding headers are
// honoured only when the direct peer is a trusted proxy, so a client cannot pick
// its own identity for rate limiting or lockout.
type IPResolver struct {
	trusted []*net.IPNet
}

// NewIPResolver parses the trusted proxy CIDR ranges. An invalid range is an error.
func NewIPResolver(trustedProxies []string) (*IPResolver, error) {
	nets := make([]*net.IPNet, 0, len(trustedProxies))
	for _, cidr := range trustedProxies {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy range %q: %w", cidr, err)
		}
		nets = append(nets, ipNet)
	}
	return &IPResolver{trusted: nets}, nil
}

// ClientIP returns the client address.
//
// Flow:
// 1. If the peer is not a trusted proxy, use RemoteAddr
// 2. Walk X-Forwarded-For from the right, skipping trusted hops
// 3. Fall back to X-Real-IP, then RemoteAddr
func (res *IPResolver) ClientIP(r *http.Request) string {
	remoteIP := remoteAddrIP(r)
	if res == nil || !res.isTrusted(remoteIP) {
		return remoteIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if net.ParseIP(hop) == nil {
				continue
			}
			if !res.isTrusted(hop) {
				return hop
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}

	return remoteIP
}

// KeyFunc adapts ClientIP to the httprate key function signature.
func (res *IPResolver) KeyFunc(r *http.Request) (string, error) {
	return res.ClientIP(r), nil
}

func (res *IPResolver) isTrusted(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, ipNet := range res.trusted {
		if ipNet.Contains(parsed) {
			return true
		}
	}
	return false
}

// remoteAddrIP strips the port from RemoteAddr when present.
func remoteAddrIP(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}
