package gateway

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/BaSui01/fetchgate/config"
)

func newTestNormalizer(rules ...config.RewriteRule) *Normalizer {
	cfg := config.DefaultFetchConfig()
	cfg.Rewrites = rules
	return NewNormalizer(cfg)
}

// TestNormalize_SchemePrepended verifies https:// is prepended exactly once
// when the input lacks an HTTP scheme token.
func TestNormalize_SchemePrepended(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"example.com/page", "https://example.com/page"},
		{"example.com", "https://example.com"},
		{"  example.com/page  ", "https://example.com/page"},
		{"ftp://example.com", "https://ftp://example.com"},
	}

	n := newTestNormalizer()
	for _, tt := range tests {
		d := n.Normalize(tt.input)
		assert.Equal(t, tt.want, d.URL, "input %q", tt.input)
	}
}

// TestNormalize_SchemePreserved verifies inputs already carrying an HTTP
// scheme pass through unchanged.
func TestNormalize_SchemePreserved(t *testing.T) {
	inputs := []string{
		"http://example.com/page",
		"https://example.com/page",
		"HTTPS://example.com",
		"HtTp://example.com",
	}

	n := newTestNormalizer()
	for _, input := range inputs {
		d := n.Normalize(input)
		assert.Equal(t, input, d.URL, "input %q", input)
	}
}

// TestNormalize_Headers verifies the media-type preference and user agent
// are asserted on every directive.
func TestNormalize_Headers(t *testing.T) {
	n := newTestNormalizer()
	d := n.Normalize("example.com")

	assert.Equal(t, "GET", d.Method)
	assert.Equal(t, "text/markdown", d.Header.Get("Accept"))
	assert.Contains(t, d.Header.Get("User-Agent"), "fetchgate")
}

// TestNormalize_AcceptOverride verifies a configured media type replaces
// the default preference.
func TestNormalize_AcceptOverride(t *testing.T) {
	cfg := config.DefaultFetchConfig()
	cfg.Accept = "text/plain"
	d := NewNormalizer(cfg).Normalize("example.com")
	assert.Equal(t, "text/plain", d.Header.Get("Accept"))
}

// TestNormalize_RewriteFirstMatchWins verifies the rewrite table is
// evaluated in order and stops at the first hit.
func TestNormalize_RewriteFirstMatchWins(t *testing.T) {
	n := newTestNormalizer(
		config.RewriteRule{Match: "github.com", Host: "uithub.com"},
		config.RewriteRule{Match: "github.com", Host: "never-reached.example"},
	)

	d := n.Normalize("https://github.com/BaSui01/fetchgate")
	assert.Equal(t, "https://uithub.com/BaSui01/fetchgate", d.URL)
}

// TestNormalize_RewriteMatchesHostOnly verifies a rule fires on the parsed
// host, not on a host name that merely appears in the path or query.
func TestNormalize_RewriteMatchesHostOnly(t *testing.T) {
	n := newTestNormalizer(config.RewriteRule{Match: "github.com", Host: "uithub.com"})

	tests := []struct {
		input string
		want  string
	}{
		{"https://example.com/github.com/x", "https://example.com/github.com/x"},
		{"https://example.com/readme?ref=github.com", "https://example.com/readme?ref=github.com"},
		{"https://github.com.evil.example/x", "https://github.com.evil.example/x"},
		{"https://gist.github.com/someone/abc", "https://uithub.com/someone/abc"},
		{"https://github.com:443/owner/repo", "https://uithub.com/owner/repo"},
	}
	for _, tt := range tests {
		d := n.Normalize(tt.input)
		assert.Equal(t, tt.want, d.URL, "input %q", tt.input)
	}
}

// TestNormalize_RewriteAfterSchemeDefault verifies rules match against the
// normalized absolute URL, not the raw input.
func TestNormalize_RewriteAfterSchemeDefault(t *testing.T) {
	n := newTestNormalizer(config.RewriteRule{Match: "twitter.com", Host: "fxtwitter.com"})

	d := n.Normalize("twitter.com/someone/status/1")
	assert.Equal(t, "https://fxtwitter.com/someone/status/1", d.URL)
}

// TestNormalize_NoRewriteWithoutMatch verifies unmatched URLs pass through.
func TestNormalize_NoRewriteWithoutMatch(t *testing.T) {
	n := newTestNormalizer(config.RewriteRule{Match: "github.com", Host: "uithub.com"})

	d := n.Normalize("https://example.com/readme")
	assert.Equal(t, "https://example.com/readme", d.URL)
}

// TestNormalize_Properties checks normalizer invariants over arbitrary
// inputs: the output always carries an HTTP scheme, normalization is
// idempotent, and scheme-carrying inputs are never re-prefixed.
func TestNormalize_Properties(t *testing.T) {
	n := newTestNormalizer()

	rapid.Check(t, func(t *rapid.T) {
		raw := rapid.StringMatching(`[a-z0-9./:-]{1,40}`).Draw(t, "raw")

		d := n.Normalize(raw)
		require.True(t, hasHTTPScheme(d.URL), "normalized URL %q lacks scheme", d.URL)

		again := n.Normalize(d.URL)
		require.Equal(t, d.URL, again.URL, "normalization not idempotent for %q", raw)

		if hasHTTPScheme(strings.TrimSpace(raw)) {
			require.Equal(t, strings.TrimSpace(raw), d.URL)
		} else {
			require.Equal(t, "https://"+strings.TrimSpace(raw), d.URL)
		}
	})
}
