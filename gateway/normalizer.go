package gateway

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/BaSui01/fetchgate/config"
)

// FetchDirective is the normalized outbound request derived from a caller's
// raw URL string. The target URL is always absolute before dispatch.
type FetchDirective struct {
	URL    string
	Method string
	Header http.Header
}

// Normalizer turns a caller-supplied string into a safe, absolute,
// well-specified outbound request. Pure transformation: malformed URLs are
// allowed to proceed and fail later at the transport layer.
type Normalizer struct {
	accept    string
	userAgent string
	rewrites  []config.RewriteRule
}

// NewNormalizer creates a normalizer from fetch configuration.
func NewNormalizer(cfg config.FetchConfig) *Normalizer {
	accept := strings.TrimSpace(cfg.Accept)
	if accept == "" {
		accept = "text/markdown"
	}
	return &Normalizer{
		accept:    accept,
		userAgent: strings.TrimSpace(cfg.UserAgent),
		rewrites:  cfg.Rewrites,
	}
}

// Normalize produces the dispatch-ready directive for a raw URL string.
// Inputs without an HTTP scheme get https:// prepended exactly once; the
// Accept header asserts the caller's preference for a lightweight text
// representation (a request, not a guarantee; the upstream may ignore it).
func (n *Normalizer) Normalize(raw string) FetchDirective {
	target := strings.TrimSpace(raw)
	if !hasHTTPScheme(target) {
		target = "https://" + target
	}
	target = n.rewrite(target)

	header := http.Header{}
	header.Set("Accept", n.accept)
	if n.userAgent != "" {
		header.Set("User-Agent", n.userAgent)
	}

	return FetchDirective{
		URL:    target,
		Method: http.MethodGet,
		Header: header,
	}
}

// rewrite applies the configured host substitution table: ordered rules,
// first match wins. Rules match the parsed host (exact or subdomain), never
// the path, so a mirror rule cannot fire on an unrelated site that merely
// mentions the host in its URL. With an empty table routing stays
// caller-driven: the operation description tells the agent which mirror
// hosts to choose.
func (n *Normalizer) rewrite(target string) string {
	if len(n.rewrites) == 0 {
		return target
	}
	parsed, err := url.Parse(target)
	if err != nil || parsed.Host == "" {
		// malformed URL, let the transport layer report it
		return target
	}
	for _, rule := range n.rewrites {
		if !hostMatches(parsed.Host, rule.Match) {
			continue
		}
		parsed.Host = rule.Host
		return parsed.String()
	}
	return target
}

// hostMatches reports whether host is the match host itself or one of its
// subdomains, case-insensitively. Ports are not part of the comparison.
func hostMatches(host, match string) bool {
	host, _, _ = strings.Cut(host, ":")
	host = strings.ToLower(host)
	match = strings.ToLower(match)
	return host == match || strings.HasSuffix(host, "."+match)
}

// hasHTTPScheme reports whether s already begins with an HTTP scheme token,
// case-insensitively.
func hasHTTPScheme(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
