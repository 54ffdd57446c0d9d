// Package cache provides the in-process memory tier for EPG source documents.
//
// The Store keeps one SourceRecord per source URL:
//
// - Cached document text with a TTL-based expiry
// - Last fetch time, last error time and message
// - At most Capacity records, evicted in insertion order (FIFO, not LRU)
// - Documents at or above MaxChars are served once but never cached; the older
//   text, if any, stays
//
// A failure never clears cached text; only a later success overwrites it. This
// is what lets the lookup layer serve stale text when a refresh fails.
//
// # Basic Usage
//
//	store := cache.NewStore(cache.Config{
//		Capacity: 5,
//		MaxChars: 40 * 1024 * 1024,
//		TTL:      time.Hour,
//	}, logger)
//
//	rec, ok := store.Get(sourceURL)
//	switch {
//	case !ok:
//		// Cold - fetch
//	case rec.State(now, cooldown) == cache.StateFresh:
//		// Serve rec.CachedText
//	}
//
//	store.RecordSuccess(sourceURL, text, now)
//	store.RecordFailure(sourceURL, err, now)
//
// # Metrics
//
//   - epg_memory_cache_records - Records currently held
//   - epg_memory_cache_chars{source} - Cached document length
//   - epg_memory_cache_evictions_total - FIFO evictions
//   - epg_memory_cache_oversize_total - Documents too large to cache
//   - epg_memory_cache_failures_total - Recorded fetch failures
package cache
