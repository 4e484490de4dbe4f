package gatekeep

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// KeyExtractor derives a rate limit key (a client identity) from an HTTP
// request.
type KeyExtractor func(*http.Request) (string, error)

// ExtractPeerIP returns a KeyExtractor that uses the connection peer
// address from r.RemoteAddr, with the port stripped. It succeeds whenever
// a connection exists.
func ExtractPeerIP() KeyExtractor {
	return func(r *http.Request) (string, error) {
		ip := peerIP(r)
		if ip == "" {
			return "", fmt.Errorf("%w: empty peer address", ErrKeyExtractionFailed)
		}
		return ip, nil
	}
}

// ExtractSmartIP returns a KeyExtractor that recovers the original client
// address behind reverse proxies.
//
// With a non-empty trustedProxies list (IPs or CIDR blocks), X-Forwarded-For
// is walked right to left and only hops on the list are trusted to report
// the next address inward; the first untrusted address is the client. With
// an empty list the headers are taken at face value: leftmost
// X-Forwarded-For entry, then X-Real-IP, then the RFC 7239 Forwarded
// header.
//
// Absent or malformed headers degrade to the peer address. The extractor
// only fails when no peer address exists at all.
func ExtractSmartIP(trustedProxies []string) (KeyExtractor, error) {
	cidrs, err := parseTrustList(trustedProxies)
	if err != nil {
		return nil, err
	}

	return func(r *http.Request) (string, error) {
		ip := smartIP(r, cidrs)
		if ip == "" {
			return "", fmt.Errorf("%w: empty peer address", ErrKeyExtractionFailed)
		}
		return ip, nil
	}, nil
}

// parseTrustList converts a list of IPs and CIDR blocks into networks.
// Single addresses become /32 or /128.
func parseTrustList(entries []string) ([]*net.IPNet, error) {
	cidrs := make([]*net.IPNet, 0, len(entries))
	for _, e := range entries {
		_, network, err := net.ParseCIDR(e)
		if err != nil {
			ip := net.ParseIP(e)
			if ip == nil {
				return nil, fmt.Errorf("%w: invalid trusted proxy %q", ErrInvalidConfig, e)
			}
			bits := 32
			if ip.To4() == nil {
				bits = 128
			}
			network = &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}
		}
		cidrs = append(cidrs, network)
	}
	return cidrs, nil
}

func trusted(cidrs []*net.IPNet, ip net.IP) bool {
	for _, c := range cidrs {
		if c.Contains(ip) {
			return true
		}
	}
	return false
}

func smartIP(r *http.Request, cidrs []*net.IPNet) string {
	peer := peerIP(r)

	if len(cidrs) > 0 {
		return trustedClientIP(r, cidrs, peer)
	}

	// No trust boundary configured: take forwarding headers at face value.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := xff
		if idx := strings.IndexByte(xff, ','); idx >= 0 {
			first = xff[:idx]
		}
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if ip := net.ParseIP(xri); ip != nil {
			return ip.String()
		}
	}
	if fwd := forwardedFor(r.Header.Get("Forwarded")); fwd != "" {
		return fwd
	}

	return peer
}

// trustedClientIP walks X-Forwarded-For right to left, skipping hops on
// the trust list. The first untrusted address is the original client.
func trustedClientIP(r *http.Request, cidrs []*net.IPNet, peer string) string {
	peerAddr := net.ParseIP(peer)
	if peerAddr == nil || !trusted(cidrs, peerAddr) {
		// The direct peer is not a trusted proxy: its headers mean nothing.
		return peer
	}

	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return peer
	}

	hops := strings.Split(xff, ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		ip := net.ParseIP(hop)
		if ip == nil {
			// Malformed hop: nothing further in the chain can be trusted.
			return peer
		}
		if !trusted(cidrs, ip) {
			return ip.String()
		}
	}

	// Every hop is a trusted proxy; the leftmost entry is the client.
	if ip := net.ParseIP(strings.TrimSpace(hops[0])); ip != nil {
		return ip.String()
	}
	return peer
}

// forwardedFor extracts the client address from the first for= pair of an
// RFC 7239 Forwarded header. Returns "" when absent or malformed.
func forwardedFor(header string) string {
	if header == "" {
		return ""
	}
	// Only the first element (the hop closest to the client) matters here.
	if idx := strings.IndexByte(header, ','); idx >= 0 {
		header = header[:idx]
	}
	for _, pair := range strings.Split(header, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || !strings.EqualFold(k, "for") {
			continue
		}
		v = strings.Trim(v, `"`)
		// Node identifiers may carry a port and IPv6 brackets.
		if host, _, err := net.SplitHostPort(v); err == nil {
			v = host
		}
		v = strings.Trim(v, "[]")
		if ip := net.ParseIP(v); ip != nil {
			return ip.String()
		}
		return ""
	}
	return ""
}

// peerIP extracts the IP from RemoteAddr, handling IPv6 brackets and
// missing ports.
func peerIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr may carry no port in some edge cases.
		host = strings.Trim(r.RemoteAddr, "[]")
	}
	return host
}
