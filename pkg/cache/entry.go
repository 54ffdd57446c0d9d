package cache

import "time"

// State is the freshness of a source, derived from its record.
type State string

const (
	// StateCold means no usable text and no active error.
	StateCold State = "cold"

	// StateFresh means cached text is within its TTL.
	StateFresh State = "fresh"

	// StateStale means cached text exists but its TTL has passed.
	StateStale State = "stale"

	// StateCooldown means a recent failure suppresses new fetches.
	StateCooldown State = "cooldown"
)

// SourceRecord is the memory-tier bookkeeping for one source URL.
type SourceRecord struct {
	// URL is the source identity.
	URL string

	// CachedText is the last successfully fetched document; valid when HasText.
	CachedText string
	HasText    bool

	// ExpireAt is when CachedText stops being fresh.
	ExpireAt time.Time

	// LastFetchAt is the most recent fetch attempt, success or failure.
	LastFetchAt time.Time

	// LastErrorAt is the most recent failure; zero means no active error.
	LastErrorAt time.Time

	// LastErrorMessage describes the most recent failure.
	LastErrorMessage string
}

// HasError reports whether a failure is recorded.
func (r SourceRecord) HasError() bool {
	return !r.LastErrorAt.IsZero()
}

// InCooldown reports whether the last failure happened less than cooldown ago.
func (r SourceRecord) InCooldown(now time.Time, cooldown time.Duration) bool {
	return r.HasError() && now.Sub(r.LastErrorAt) < cooldown
}

// IsFresh reports whether cached text is present and not yet expired.
func (r SourceRecord) IsFresh(now time.Time) bool {
	return r.HasText && now.Before(r.ExpireAt)
}

// State derives the record state. Cooldown is checked first.
func (r SourceRecord) State(now time.Time, cooldown time.Duration) State {
	switch {
	case r.InCooldown(now, cooldown):
		return StateCooldown
	case r.IsFresh(now):
		return StateFresh
	case r.HasText:
		return StateStale
	default:
		return StateCold
	}
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (r SourceRecord) TTL(now time.Time) time.Duration {
	ttl := r.ExpireAt.Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}
