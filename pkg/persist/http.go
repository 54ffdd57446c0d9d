package persist

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// HeaderFetchTime carries the unix-millisecond time the document was fetched.
const HeaderFetchTime = "X-EPG-Fetch-Time"

// SanitizeHeader prepares upstream headers for storage. Vary is removed so one
// entry serves every client, Set-Cookie so no session data is persisted,
// Cache-Control is pinned to ttl, and the fetch time is stamped.
func SanitizeHeader(h http.Header, ttl time.Duration, fetchedAt time.Time) http.Header {
	out := h.Clone()
	if out == nil {
		out = http.Header{}
	}
	out.Del("Vary")
	out.Del("Set-Cookie")
	out.Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(ttl.Seconds())))
	out.Set(HeaderFetchTime, strconv.FormatInt(fetchedAt.UnixMilli(), 10))
	return out
}

// NewTaggedResponse builds a storable response from upstream headers and body.
func NewTaggedResponse(h http.Header, body []byte, ttl time.Duration, fetchedAt time.Time) *TaggedResponse {
	return &TaggedResponse{
		Header: SanitizeHeader(h, ttl, fetchedAt),
		Body:   body,
	}
}

// FetchTime parses the fetch time stamped by SanitizeHeader.
func FetchTime(h http.Header) (time.Time, bool) {
	raw := h.Get(HeaderFetchTime)
	if raw == "" {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}
