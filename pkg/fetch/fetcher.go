// Package fetch retrieves raw EPG source documents over HTTP with a bounded
// timeout and size, consulting the persistent tier first and feeding it in
// the background after a network success.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"

	"github.com/wumian8998/epg-proxy-newl/pkg/clock"
	"github.com/wumian8998/epg-proxy-newl/pkg/persist"
)

// DefaultUserAgent is sent with every upstream request.
const DefaultUserAgent = "epg-proxy/1.0"

// Origin tells where a Source body came from.
type Origin string

const (
	// OriginNetwork means the body streams from the upstream server.
	OriginNetwork Origin = "network"

	// OriginPersistent means the body was served from the persistent tier.
	OriginPersistent Origin = "persistent"
)

// Config holds the fetcher configuration.
type Config struct {
	// Timeout bounds the whole fetch, headers and body. Zero disables it.
	Timeout time.Duration

	// MaxSize caps the body in bytes, declared or streamed. Zero disables it.
	MaxSize int64

	// TTL is the lifetime given to persisted copies.
	TTL time.Duration

	// Retries is the number of extra attempts for transient failures.
	Retries int

	// UserAgent header value.
	UserAgent string
}

// Source is an open source document. Callers must close Body.
type Source struct {
	URL        string
	Body       io.ReadCloser
	Compressed bool
	Header     http.Header
	Origin     Origin
}

// Fetcher performs bounded source fetches.
type Fetcher struct {
	httpClient *http.Client
	adapter    persist.Adapter
	clock      clock.Clock
	config     Config
	logger     zerolog.Logger
	puts       sync.WaitGroup
}

// New creates a fetcher. A nil adapter disables the persistent tier.
func New(cfg Config, adapter persist.Adapter, clk clock.Clock, logger zerolog.Logger) *Fetcher {
	if adapter == nil {
		adapter = persist.Nop{}
	}
	if clk == nil {
		clk = clock.New()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	return &Fetcher{
		httpClient: &http.Client{},
		adapter:    adapter,
		clock:      clk,
		config:     cfg,
		logger:     logger,
	}
}

// Fetch opens the document at rawURL. A persistent-tier hit is served without
// touching the network. Otherwise the upstream is requested once (plus any
// configured retries); the returned body keeps enforcing the timeout and size
// cap while it is read, and a fully read body is persisted in the background.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Source, error) {
	fetchCtx, cancel := f.withTimeout(ctx)

	if src, ok := f.matchPersistent(fetchCtx, rawURL); ok {
		cancel()
		return src, nil
	}

	start := time.Now()
	var resp *http.Response
	err := retryWithBackoff(fetchCtx, DefaultRetryConfig(f.config.Retries), f.logger.With().Str("source", rawURL).Logger(), func() error {
		var err error
		resp, err = f.do(fetchCtx, rawURL)
		return err
	})
	FetchDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		cancel()
		FetchRequests.WithLabelValues(string(OriginNetwork), "error").Inc()
		FetchErrors.WithLabelValues(string(KindOf(err))).Inc()
		f.logger.Error().
			Err(err).
			Str("source", rawURL).
			Dur("elapsed", time.Since(start)).
			Msg("Source fetch failed")
		return nil, err
	}

	FetchRequests.WithLabelValues(string(OriginNetwork), "ok").Inc()
	f.logger.Info().
		Str("source", rawURL).
		Int64("content_length", resp.ContentLength).
		Dur("elapsed", time.Since(start)).
		Msg("Source response received")

	body := &sourceBody{
		rc:     resp.Body,
		ctx:    fetchCtx,
		cancel: cancel,
		url:    rawURL,
		max:    f.config.MaxSize,
	}
	if f.adapter.Available() {
		header := resp.Header.Clone()
		fetchedAt := f.clock.Now()
		body.copy = &bytes.Buffer{}
		body.onComplete = func(data []byte) {
			f.persist(rawURL, header, data, fetchedAt)
		}
	}

	return &Source{
		URL:        rawURL,
		Body:       body,
		Compressed: IsCompressed(rawURL, resp.Header),
		Header:     resp.Header,
		Origin:     OriginNetwork,
	}, nil
}

// FetchText fetches rawURL and returns the document text, decompressing it
// when the source is gzip. MaxSize applies to the decompressed text as well.
func (f *Fetcher) FetchText(ctx context.Context, rawURL string) (string, error) {
	src, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return "", err
	}
	defer src.Body.Close()

	r, closeFn, err := Decompressed(src)
	if err != nil {
		return "", err
	}
	defer closeFn()

	limit := f.config.MaxSize
	if limit > 0 {
		r = io.LimitReader(r, limit+1)
	}
	data, err := io.ReadAll(r)
	if err == nil && limit > 0 && int64(len(data)) > limit {
		err = &Error{Kind: KindTooLarge, URL: rawURL, Err: fmt.Errorf("decompressed body exceeds %d bytes", limit)}
	}
	if err != nil {
		err = asFetchError(rawURL, err, src.Compressed)
		FetchErrors.WithLabelValues(string(KindOf(err))).Inc()
		f.logger.Error().Err(err).Str("source", rawURL).Msg("Source body read failed")
		return "", err
	}
	return string(data), nil
}

// Decompressed returns a reader over the plain document of src. The returned
// close function releases the decompressor; it does not close src.Body.
func Decompressed(src *Source) (io.Reader, func(), error) {
	if !src.Compressed {
		return src.Body, func() {}, nil
	}
	zr, err := gzip.NewReader(src.Body)
	if err != nil {
		return nil, nil, asFetchError(src.URL, err, true)
	}
	return zr, func() { zr.Close() }, nil
}

// Wait blocks until background persistent-cache writes have finished.
func (f *Fetcher) Wait() {
	f.puts.Wait()
}

// Adapter returns the persistent tier used by the fetcher.
func (f *Fetcher) Adapter() persist.Adapter {
	return f.adapter
}

// IsCompressed reports whether a source is gzip, judged from the URL suffix
// or the Content-Type. Bytes are never sniffed.
func IsCompressed(rawURL string, h http.Header) bool {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		path = u.Path
	}
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		return true
	}
	ct := strings.ToLower(h.Get("Content-Type"))
	return strings.Contains(ct, "application/gzip") || strings.Contains(ct, "application/x-gzip")
}

func (f *Fetcher) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.config.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, f.config.Timeout)
}

func (f *Fetcher) matchPersistent(ctx context.Context, rawURL string) (*Source, bool) {
	if !f.adapter.Available() {
		return nil, false
	}
	hit, err := f.adapter.Match(ctx, rawURL)
	if err != nil {
		if !errors.Is(err, persist.ErrMiss) {
			f.logger.Warn().Err(err).Str("source", rawURL).Msg("Persistent cache lookup failed")
		}
		return nil, false
	}

	FetchRequests.WithLabelValues(string(OriginPersistent), "ok").Inc()
	f.logger.Debug().
		Str("source", rawURL).
		Int("bytes", len(hit.Body)).
		Msg("Serving source from persistent cache")
	return &Source{
		URL:        rawURL,
		Body:       io.NopCloser(bytes.NewReader(hit.Body)),
		Compressed: IsCompressed(rawURL, hit.Header),
		Header:     hit.Header,
		Origin:     OriginPersistent,
	}, true
}

func (f *Fetcher) do(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, URL: rawURL, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, transportError(ctx, rawURL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &Error{Kind: KindUpstreamStatus, StatusCode: resp.StatusCode, URL: rawURL}
	}

	if f.config.MaxSize > 0 && resp.ContentLength > f.config.MaxSize {
		resp.Body.Close()
		return nil, &Error{
			Kind: KindTooLarge,
			URL:  rawURL,
			Err:  fmt.Errorf("declared %d bytes, limit %d", resp.ContentLength, f.config.MaxSize),
		}
	}
	return resp, nil
}

func (f *Fetcher) persist(rawURL string, header http.Header, data []byte, fetchedAt time.Time) {
	f.puts.Add(1)
	go func() {
		defer f.puts.Done()

		timeout := f.config.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		resp := persist.NewTaggedResponse(header, data, f.config.TTL, fetchedAt)
		if err := f.adapter.Put(ctx, rawURL, resp); err != nil {
			PersistPuts.WithLabelValues("failed").Inc()
			f.logger.Warn().Err(err).Str("source", rawURL).Msg("Persistent cache write failed")
			return
		}
		PersistPuts.WithLabelValues("stored").Inc()
	}()
}

func transportError(ctx context.Context, rawURL string, err error) error {
	var fe *Error
	if errors.As(err, &fe) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, URL: rawURL, Err: err}
	}
	return &Error{Kind: KindNetwork, URL: rawURL, Err: err}
}

func asFetchError(rawURL string, err error, compressed bool) error {
	var fe *Error
	if errors.As(err, &fe) {
		return err
	}
	if compressed {
		return &Error{Kind: KindDecode, URL: rawURL, Err: err}
	}
	return &Error{Kind: KindNetwork, URL: rawURL, Err: err}
}

// sourceBody wraps a network body. It enforces the size cap while streaming,
// maps read failures to fetch errors, keeps a copy for the persistent tier
// and releases the request context on Close.
type sourceBody struct {
	rc     io.ReadCloser
	ctx    context.Context
	cancel context.CancelFunc
	url    string
	max    int64
	n      int64

	copy       *bytes.Buffer
	onComplete func([]byte)
	done       bool
	err        error
}

func (b *sourceBody) Read(p []byte) (int, error) {
	if b.err != nil {
		return 0, b.err
	}
	if b.done {
		return 0, io.EOF
	}

	n, err := b.rc.Read(p)
	b.n += int64(n)
	if b.max > 0 && b.n > b.max {
		b.copy = nil
		b.err = &Error{Kind: KindTooLarge, URL: b.url, Err: fmt.Errorf("body exceeds %d bytes", b.max)}
		return 0, b.err
	}
	if n > 0 {
		FetchBytes.Add(float64(n))
		if b.copy != nil {
			b.copy.Write(p[:n])
		}
	}

	switch {
	case err == io.EOF:
		b.done = true
		if b.copy != nil && b.onComplete != nil {
			b.onComplete(b.copy.Bytes())
		}
		b.copy = nil
	case err != nil:
		b.copy = nil
		b.err = transportError(b.ctx, b.url, err)
		return n, b.err
	}
	return n, err
}

func (b *sourceBody) Close() error {
	b.cancel()
	if b.copy != nil {
		// Caller stopped early; a partial document is never persisted.
		PersistPuts.WithLabelValues("aborted").Inc()
		b.copy = nil
	}
	return b.rc.Close()
}
