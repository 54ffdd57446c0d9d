package cache

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultCapacity is the number of source records kept in memory.
const DefaultCapacity = 5

// Config holds memory store configuration.
type Config struct {
	// Capacity is the maximum number of source records (FIFO eviction).
	Capacity int

	// MaxChars is the exclusive upper bound on cached document length.
	MaxChars int

	// TTL is how long a successful fetch stays fresh.
	TTL time.Duration
}

// Store is the process-wide memory tier: one SourceRecord per source URL,
// bounded by Capacity with eviction in insertion order. Every mutation is
// applied under the lock in one step; readers get copies.
type Store struct {
	mu      sync.RWMutex
	records map[string]*SourceRecord
	order   []string
	config  Config
	logger  zerolog.Logger
}

// NewStore creates a memory store.
func NewStore(cfg Config, logger zerolog.Logger) *Store {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	return &Store{
		records: make(map[string]*SourceRecord),
		config:  cfg,
		logger:  logger,
	}
}

// Get returns a copy of the record for url.
func (s *Store) Get(url string) (SourceRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[url]
	if !ok {
		return SourceRecord{}, false
	}
	return *rec, true
}

// RecordSuccess stores text for url, clears any error and extends the expiry.
// Text at or above MaxChars is not kept: the previous text and its expiry stay
// as they were so a later failure can still fall back on them. It reports
// whether text was cached.
func (s *Store) RecordSuccess(url, text string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.recordLocked(url)
	rec.LastFetchAt = now
	rec.LastErrorAt = time.Time{}
	rec.LastErrorMessage = ""

	if s.config.MaxChars > 0 && len(text) >= s.config.MaxChars {
		CacheOversize.Inc()
		s.logger.Warn().
			Str("source", url).
			Int("chars", len(text)).
			Int("max_chars", s.config.MaxChars).
			Msg("Document too large for memory cache")
		return false
	}

	rec.CachedText = text
	rec.HasText = true
	rec.ExpireAt = now.Add(s.config.TTL)
	CacheChars.WithLabelValues(url).Set(float64(len(text)))

	s.logger.Info().
		Str("source", url).
		Int("chars", len(text)).
		Dur("ttl", s.config.TTL).
		Msg("Memory cache updated")
	return true
}

// RecordFailure records a failed fetch for url. Cached text is left untouched
// so it can still be served. It returns the updated record.
func (s *Store) RecordFailure(url string, err error, now time.Time) SourceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.recordLocked(url)
	rec.LastFetchAt = now
	rec.LastErrorAt = now
	rec.LastErrorMessage = err.Error()
	CacheFailures.Inc()

	return *rec
}

// recordLocked returns the record for url, inserting it (and evicting the
// earliest inserted record when full) if needed. Caller holds s.mu.
func (s *Store) recordLocked(url string) *SourceRecord {
	if rec, ok := s.records[url]; ok {
		return rec
	}

	for len(s.order) >= s.config.Capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.records, oldest)
		CacheChars.DeleteLabelValues(oldest)
		CacheEvictions.Inc()
		s.logger.Debug().Str("source", oldest).Msg("Evicted source record")
	}

	rec := &SourceRecord{URL: url}
	s.records[url] = rec
	s.order = append(s.order, url)
	CacheRecords.Set(float64(len(s.records)))
	return rec
}

// Len returns the number of records held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Keys returns source URLs in insertion order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, len(s.order))
	copy(keys, s.order)
	return keys
}

// Config returns the store configuration.
func (s *Store) Config() Config {
	return s.config
}
