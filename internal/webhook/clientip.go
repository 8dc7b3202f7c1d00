package webhook

import (
	"errors"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ErrUnresolvableClient means the client address could not be determined
// from the configured number of trusted proxies.
var ErrUnresolvableClient = errors.New("client address cannot be resolved")

// ResolveClientAddr returns the address of the party that sent the request.
//
// With hops == 0 that is the peer address. Otherwise each trusted proxy has
// appended the address it received the request from to X-Forwarded-For, so
// the client is the entry hops positions from the end. Entries further left
// were written by the client itself and are never used.
func ResolveClientAddr(remoteAddr string, header http.Header, hops int) (netip.Addr, error) {
	if hops < 0 {
		return netip.Addr{}, ErrUnresolvableClient
	}
	if hops == 0 {
		return parseHost(remoteAddr)
	}

	var entries []string
	for _, value := range header.Values(HeaderForwarded) {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				entries = append(entries, part)
			}
		}
	}
	if hops > len(entries) {
		return netip.Addr{}, ErrUnresolvableClient
	}
	return parseHost(entries[len(entries)-hops])
}

// parseHost accepts "ip", "ip:port" and "[ipv6]:port".
func parseHost(s string) (netip.Addr, error) {
	s = strings.TrimSpace(s)
	if addr, err := netip.ParseAddr(s); err == nil {
		return addr.WithZone(""), nil
	}
	host, _, err := net.SplitHostPort(s)
	if err != nil {
		return netip.Addr{}, ErrUnresolvableClient
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, ErrUnresolvableClient
	}
	return addr.WithZone(""), nil
}
