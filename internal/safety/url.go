package safety

import (
	"fmt"
	"net"
	"net/url"

	"github.com/homelab/jarvis/internal/net/ssrf"
)

// URLResult is the outcome of ValidateURL.
type URLResult struct {
	Safe       bool
	ParsedURL  *url.URL
	ResolvedIP string
	Reason     string
}

// ValidateURL parses the URL, requires http(s), and blocks private/
// loopback/link-local/unique-local/null address ranges — checking an IP
// literal directly, or the first DNS answer for a hostname. Resolution
// happens here and again at the caller's actual fetch; no rebinding pinning
// is attempted, which is fine for a LAN-scoped deployment but worth knowing
// if this ever faces the open internet.
func (k *Kernel) ValidateURL(rawURL string) URLResult {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		k.LogSafetyAudit(nopCtx(), "validate_url", false, "malformed URL: "+rawURL)
		return URLResult{Reason: "malformed URL"}
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		reason := fmt.Sprintf("unsupported protocol %q", parsed.Scheme)
		k.LogSafetyAudit(nopCtx(), "validate_url", false, reason)
		return URLResult{Reason: reason}
	}

	host := parsed.Hostname()

	if ip := net.ParseIP(host); ip != nil {
		if ssrf.IsPrivateIPAddress(host) {
			reason := fmt.Sprintf("%s is a private/internal address", host)
			k.LogSafetyAudit(nopCtx(), "validate_url", false, reason)
			return URLResult{Reason: reason}
		}
		return URLResult{Safe: true, ParsedURL: parsed, ResolvedIP: host}
	}

	if ssrf.IsBlockedHostname(host) {
		reason := fmt.Sprintf("%s is a blocked hostname", host)
		k.LogSafetyAudit(nopCtx(), "validate_url", false, reason)
		return URLResult{Reason: reason}
	}

	ips, err := net.LookupIP(host)
	if err != nil || len(ips) == 0 {
		reason := "unable to resolve hostname: " + host
		k.LogSafetyAudit(nopCtx(), "validate_url", false, reason)
		return URLResult{Reason: reason}
	}

	resolved := ips[0].String()
	if ssrf.IsPrivateIPAddress(resolved) {
		reason := fmt.Sprintf("%s resolves to a private/internal address (%s)", host, resolved)
		k.LogSafetyAudit(nopCtx(), "validate_url", false, reason)
		return URLResult{Reason: reason}
	}

	return URLResult{Safe: true, ParsedURL: parsed, ResolvedIP: resolved}
}
