package persist

import (
	"net/url"
	"strings"
)

// Key identifies a stored source document.
type Key struct {
	// URL is the source URL as configured.
	URL string
}

// String generates a deterministic storage key.
// Format: epg:source:<canonical url>
//
// Example:
//
//	epg:source:https://epg.example.com/e.xml.gz?a=1&b=2
func (k Key) String() string {
	return "epg:source:" + Canonical(k.URL)
}

// Meta is the key holding the stored headers.
func (k Key) Meta() string {
	return k.String() + ":meta"
}

// Body is the key holding the stored body.
func (k Key) Body() string {
	return k.String() + ":body"
}

// Canonical normalizes a source URL: lower-cased scheme and host, sorted query,
// no fragment. Unparsable input is returned trimmed.
func Canonical(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	if u.RawQuery != "" {
		// Values.Encode sorts by key.
		u.RawQuery = u.Query().Encode()
	}
	return u.String()
}
