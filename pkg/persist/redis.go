package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// storedMeta is the JSON document kept under Key.Meta.
type storedMeta struct {
	Header   http.Header `json:"header"`
	StoredAt time.Time   `json:"stored_at"`
	Size     int         `json:"size"`
}

// Redis stores source documents in Redis. Headers and body live under separate
// keys so status checks never transfer the body. Both expire after ttl.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedis creates a Redis-backed adapter.
func NewRedis(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *Redis {
	if client == nil {
		panic("redis client cannot be nil")
	}
	return &Redis{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// DialRedis parses a redis:// URL, connects and pings.
func DialRedis(ctx context.Context, rawURL string, ttl time.Duration, logger zerolog.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedis(client, ttl, logger), nil
}

// Available always returns true.
func (r *Redis) Available() bool {
	return true
}

// Put stores resp under url, replacing any previous entry.
func (r *Redis) Put(ctx context.Context, url string, resp *TaggedResponse) error {
	if resp == nil {
		return fmt.Errorf("tagged response cannot be nil")
	}
	key := Key{URL: url}

	meta, err := json.Marshal(storedMeta{
		Header:   resp.Header,
		StoredAt: time.Now(),
		Size:     len(resp.Body),
	})
	if err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("marshal meta: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key.Body(), resp.Body, r.ttl)
		pipe.Set(ctx, key.Meta(), meta, r.ttl)
		return nil
	})
	if err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	CacheStoredBytes.Add(float64(len(resp.Body)))
	r.logger.Debug().
		Str("source", url).
		Int("bytes", len(resp.Body)).
		Dur("ttl", r.ttl).
		Msg("Stored source in persistent cache")
	return nil
}

// Match returns headers and body stored for url.
func (r *Redis) Match(ctx context.Context, url string) (*TaggedResponse, error) {
	key := Key{URL: url}

	var metaCmd, bodyCmd *redis.StringCmd
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		metaCmd = pipe.Get(ctx, key.Meta())
		bodyCmd = pipe.Get(ctx, key.Body())
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		CacheErrors.WithLabelValues("match").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	header, err := decodeMeta(metaCmd)
	if err != nil {
		return nil, r.miss("match", err)
	}
	body, err := bodyCmd.Bytes()
	if err != nil {
		return nil, r.miss("match", err)
	}

	CacheHits.WithLabelValues("match").Inc()
	return &TaggedResponse{Header: header, Body: body}, nil
}

// MatchHeader returns only the headers stored for url.
func (r *Redis) MatchHeader(ctx context.Context, url string) (http.Header, error) {
	header, err := decodeMeta(r.client.Get(ctx, Key{URL: url}.Meta()))
	if err != nil {
		return nil, r.miss("header", err)
	}
	CacheHits.WithLabelValues("header").Inc()
	return header, nil
}

// Ping checks the connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) miss(op string, err error) error {
	if errors.Is(err, redis.Nil) {
		CacheMisses.Inc()
		return ErrMiss
	}
	CacheErrors.WithLabelValues(op).Inc()
	return err
}

func decodeMeta(cmd *redis.StringCmd) (http.Header, error) {
	data, err := cmd.Bytes()
	if err != nil {
		return nil, err
	}
	var meta storedMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode meta: %w", err)
	}
	return meta.Header, nil
}
