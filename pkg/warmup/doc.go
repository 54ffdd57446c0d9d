// Package warmup prefetches source documents at startup so the first queries
// are served from memory.
//
// Sources are loaded in parallel by a small worker pool. Each load goes
// through the same resilient path as a query, so a failing source opens its
// circuit exactly as a failed query would, and concurrent queries arriving
// during warmup attach to the in-flight fetch instead of starting another.
//
// Example usage:
//
//	w := warmup.New(svc, warmup.DefaultConfig())
//	report := w.Run(ctx, cfg.Sources())
package warmup
