// Package clientip resolves the caller address behind reverse proxies.
package clientip

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

const unknown = "unknown"

// Resolver reads forwarding headers only when the socket peer is one of the configured proxies.
// A nil Resolver, or one without proxies, always answers with the socket peer.
type Resolver struct {
	headers []string
	proxies []*net.IPNet
}

// NewResolver parses trustedProxies as CIDRs or bare addresses.
func NewResolver(headers, trustedProxies []string) (*Resolver, error) {
	res := &Resolver{headers: headers}
	for _, p := range trustedProxies {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.Contains(p, "/") {
			ip := net.ParseIP(p)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy %q", p)
			}
			bits := 128
			if ip.To4() != nil {
				ip = ip.To4()
				bits = 32
			}
			res.proxies = append(res.proxies, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, network, err := net.ParseCIDR(p)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", p, err)
		}
		res.proxies = append(res.proxies, network)
	}
	return res, nil
}

// Resolve returns the caller address. Headers are consulted in order, and only for requests arriving
// from a trusted proxy. X-Forwarded-For is walked right to left, skipping trusted proxy hops.
func (res *Resolver) Resolve(r *http.Request) string {
	remote := Remote(r)
	if res == nil || remote == unknown || !res.trusted(remote) {
		return remote
	}

	for _, h := range res.headers {
		v := r.Header.Get(h)
		if v == "" {
			continue
		}
		if ip := res.fromHeader(v); ip != "" {
			return ip
		}
	}
	return remote
}

func (res *Resolver) fromHeader(v string) string {
	hops := strings.Split(v, ",")
	for i := len(hops) - 1; i >= 0; i-- {
		ip := parse(hops[i])
		if ip == "" {
			// a garbled hop means nothing to its left can be trusted
			return ""
		}
		if !res.trusted(ip) || i == 0 {
			return ip
		}
	}
	return ""
}

func (res *Resolver) trusted(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, network := range res.proxies {
		if network.Contains(parsed) {
			return true
		}
	}
	return false
}

// Remote returns the socket peer address.
func Remote(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := parse(host); ip != "" {
		return ip
	}
	return unknown
}

func parse(v string) string {
	v = strings.Trim(strings.TrimSpace(v), "[]")
	ip := net.ParseIP(v)
	if ip == nil {
		return ""
	}
	return ip.String()
}
