package middleware

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync/atomic"

	"chandabaz/internal/config"
)

// trustedProxies holds the ranges allowed to report the client address
// through forwarding headers. Empty means no proxy is trusted.
var trustedProxies atomic.Pointer[[]netip.Prefix]

// SetTrustedProxies replaces the proxies whose X-Forwarded-For and
// X-Real-IP headers ClientIP believes
func SetTrustedProxies(entries []string) error {
	prefixes := make([]netip.Prefix, 0, len(entries))
	for _, e := range entries {
		p, err := config.ParseProxy(e)
		if err != nil {
			return fmt.Errorf("invalid trusted proxy %q: %w", e, err)
		}
		prefixes = append(prefixes, p)
	}
	trustedProxies.Store(&prefixes)
	return nil
}

func isTrusted(addr netip.Addr) bool {
	prefixes := trustedProxies.Load()
	if prefixes == nil || !addr.IsValid() {
		return false
	}
	addr = addr.Unmap()
	for _, p := range *prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP returns the originating client address. Forwarding headers are
// only read when the connection comes from a trusted proxy; X-Forwarded-For
// is then walked from the right and the first hop that is not itself a
// trusted proxy wins, so a client cannot pick its own address by
// prepending entries.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	remote, err := netip.ParseAddr(host)
	if err != nil || !isTrusted(remote) {
		return host
	}

	if forwarded := r.Header.Values("X-Forwarded-For"); len(forwarded) > 0 {
		hops := strings.Split(strings.Join(forwarded, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				// unparseable hop; everything left of it is unverifiable
				break
			}
			if !isTrusted(hop) || i == 0 {
				return hop.Unmap().String()
			}
		}
	}

	if realIP, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return realIP.Unmap().String()
	}
	return host
}
