package launchpad

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// oauthRealm is the realm launchpadlib signs with for every instance.
const oauthRealm = "https://api.launchpad.net/"

// oauthTransport signs each request with an OAuth 1.0 PLAINTEXT
// Authorization header.
type oauthTransport struct {
	base  http.RoundTripper
	creds Credentials
	now   func() time.Time
	nonce func() string
}

func newOAuthTransport(base http.RoundTripper, creds Credentials) *oauthTransport {
	return &oauthTransport{
		base:  base,
		creds: creds,
		now:   time.Now,
		nonce: uuid.NewString,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *oauthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	signed := req.Clone(req.Context())
	signed.Header.Set("Authorization", t.authorization())
	return t.base.RoundTrip(signed)
}

// CloseIdleConnections lets http.Client.CloseIdleConnections reach the base
// transport.
func (t *oauthTransport) CloseIdleConnections() {
	type closeIdler interface{ CloseIdleConnections() }
	if ci, ok := t.base.(closeIdler); ok {
		ci.CloseIdleConnections()
	}
}

func (t *oauthTransport) authorization() string {
	params := []struct{ key, value string }{
		{"oauth_consumer_key", t.creds.ConsumerKey},
		{"oauth_token", t.creds.AccessToken},
		{"oauth_signature_method", "PLAINTEXT"},
		{"oauth_signature", t.creds.signature()},
		{"oauth_timestamp", strconv.FormatInt(t.now().Unix(), 10)},
		{"oauth_nonce", t.nonce()},
		{"oauth_version", "1.0"},
	}

	var b strings.Builder
	fmt.Fprintf(&b, "OAuth realm=%q", oauthRealm)
	for _, p := range params {
		fmt.Fprintf(&b, ", %s=\"%s\"", p.key, percentEncode(p.value))
	}
	return b.String()
}

// percentEncode escapes everything outside the RFC 5849 unreserved set.
func percentEncode(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if ('A' <= c && c <= 'Z') || ('a' <= c && c <= 'z') || ('0' <= c && c <= '9') ||
			c == '-' || c == '.' || c == '_' || c == '~' {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}
