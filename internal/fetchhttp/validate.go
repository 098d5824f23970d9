package fetchhttp

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidateURL rejects URLs that could reach internal infrastructure (SSRF):
// non-http(s) schemes, loopback/link-local/private literal addresses, and
// obviously local hostnames. Hostname DNS resolution is deliberately not
// performed here; it would make validation racy against rebinding anyway.
func ValidateURL(rawURL string) error {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fmt.Errorf("fetchhttp: invalid URL: %w", err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("fetchhttp: unsupported scheme %q", scheme)
	}
	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("fetchhttp: missing host")
	}
	lower := strings.ToLower(host)
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") ||
		strings.HasSuffix(lower, ".local") || strings.HasSuffix(lower, ".internal") {
		return fmt.Errorf("fetchhttp: local host %q blocked", host)
	}
	if ip := net.ParseIP(host); ip != nil && isPrivateIP(ip) {
		return fmt.Errorf("fetchhttp: private address %s blocked", ip)
	}
	return nil
}

func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	for _, cidr := range []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"169.254.0.0/16",
		"fc00::/7",
		"::1/128",
	} {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
