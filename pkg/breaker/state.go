// Package breaker implements the per-source circuit breaker. A failed fetch
// opens the circuit for the cooldown window; while it is open no upstream
// request is made for that source and cached text (if any) is served instead.
//
// The breaker keeps no state of its own. Open/closed is derived from the
// source record's last error time, so the store stays the single source of
// truth and one atomic record update both records a failure and opens the
// circuit.
package breaker

import "time"

// DefaultCooldown is how long a source stays blocked after a failure.
const DefaultCooldown = 120 * time.Second

// Decision describes the breaker state for one source at one instant.
type Decision struct {
	// Open is true while the source is inside its cooldown window.
	Open bool

	// Remaining is the time left until the circuit closes. Zero when closed.
	Remaining time.Duration

	// LastError is the failure that opened the circuit.
	LastError string
}

// Allowed returns true when a fetch may proceed.
func (d Decision) Allowed() bool {
	return !d.Open
}
