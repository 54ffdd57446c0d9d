// Package persist provides the optional persistent tier for raw EPG source
// documents. It survives process restarts, which the memory tier does not.
//
// Two implementations exist: Redis, backed by go-redis, and Nop, which always
// reports itself unavailable so callers never branch on deployment shape.
// The persistent tier is best-effort: its absence or failure never changes a
// query answer, only the provenance reported in status snapshots.
package persist

import (
	"context"
	"errors"
	"net/http"
)

var (
	// ErrMiss indicates the requested source is not stored.
	ErrMiss = errors.New("persistent cache miss")

	// ErrUnavailable indicates no persistent cache is configured.
	ErrUnavailable = errors.New("persistent cache unavailable")
)

// TaggedResponse is a stored upstream response: sanitized headers plus the raw
// (possibly compressed) body.
type TaggedResponse struct {
	Header http.Header
	Body   []byte
}

// Adapter stores and retrieves raw source responses keyed by source URL.
type Adapter interface {
	// Available reports whether the adapter can store anything at all.
	Available() bool

	// Put stores resp for url. Callers run it in the background.
	Put(ctx context.Context, url string, resp *TaggedResponse) error

	// Match returns the stored response for url or ErrMiss.
	Match(ctx context.Context, url string) (*TaggedResponse, error)

	// MatchHeader returns only the stored headers for url or ErrMiss.
	MatchHeader(ctx context.Context, url string) (http.Header, error)
}

// Nop is the adapter used when no persistent cache is configured.
type Nop struct{}

// Available always returns false.
func (Nop) Available() bool { return false }

// Put always returns ErrUnavailable.
func (Nop) Put(context.Context, string, *TaggedResponse) error { return ErrUnavailable }

// Match always returns ErrUnavailable.
func (Nop) Match(context.Context, string) (*TaggedResponse, error) { return nil, ErrUnavailable }

// MatchHeader always returns ErrUnavailable.
func (Nop) MatchHeader(context.Context, string) (http.Header, error) { return nil, ErrUnavailable }
