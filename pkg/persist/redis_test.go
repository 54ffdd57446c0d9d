package persist

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniredis(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedis(client, ttl, zerolog.Nop()), mr
}

func TestRedis_PutMatch(t *testing.T) {
	store, mr := setupMiniredis(t, time.Hour)
	ctx := context.Background()
	src := "https://epg.example.com/e.xml"

	resp := NewTaggedResponse(http.Header{"Content-Type": []string{"application/xml"}}, []byte("<tv/>"), time.Hour, time.UnixMilli(1705300000000))
	require.NoError(t, store.Put(ctx, src, resp))

	got, err := store.Match(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, "<tv/>", string(got.Body))
	assert.Equal(t, "application/xml", got.Header.Get("Content-Type"))

	ts, ok := FetchTime(got.Header)
	require.True(t, ok)
	assert.Equal(t, int64(1705300000000), ts.UnixMilli())

	key := Key{URL: src}
	assert.True(t, mr.Exists(key.Body()), "body key should be written")
	assert.True(t, mr.Exists(key.Meta()), "meta key should be written")
	assert.Equal(t, time.Hour, mr.TTL(key.Body()))
}

func TestRedis_MatchHeader(t *testing.T) {
	store, _ := setupMiniredis(t, time.Hour)
	ctx := context.Background()
	src := "https://epg.example.com/e.xml"

	require.NoError(t, store.Put(ctx, src, NewTaggedResponse(nil, []byte("doc"), time.Hour, time.UnixMilli(99))))

	h, err := store.MatchHeader(ctx, src)
	require.NoError(t, err)
	ts, ok := FetchTime(h)
	require.True(t, ok)
	assert.Equal(t, int64(99), ts.UnixMilli())
}

func TestRedis_Miss(t *testing.T) {
	store, _ := setupMiniredis(t, time.Hour)
	ctx := context.Background()

	_, err := store.Match(ctx, "https://missing.example.com/e.xml")
	assert.ErrorIs(t, err, ErrMiss)
	_, err = store.MatchHeader(ctx, "https://missing.example.com/e.xml")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedis_Expiry(t *testing.T) {
	store, mr := setupMiniredis(t, time.Minute)
	ctx := context.Background()
	src := "https://epg.example.com/e.xml"

	require.NoError(t, store.Put(ctx, src, NewTaggedResponse(nil, []byte("doc"), time.Minute, time.Now())))
	mr.FastForward(2 * time.Minute)

	_, err := store.Match(ctx, src)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedis_CanonicalURLs(t *testing.T) {
	store, _ := setupMiniredis(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "https://EPG.example.com/e.xml?b=2&a=1", NewTaggedResponse(nil, []byte("doc"), time.Hour, time.Now())))
	_, err := store.Match(ctx, "https://epg.example.com/e.xml?a=1&b=2")
	assert.NoError(t, err, "equivalent URL should match")
}

func TestRedis_PutNil(t *testing.T) {
	store, _ := setupMiniredis(t, time.Hour)
	assert.Error(t, store.Put(context.Background(), "https://epg.example.com/e.xml", nil))
}

func TestRedis_ServerDown(t *testing.T) {
	store, mr := setupMiniredis(t, time.Hour)
	mr.Close()

	_, err := store.Match(context.Background(), "https://epg.example.com/e.xml")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss, "a dead server is not a miss")
	assert.Error(t, store.Ping(context.Background()))
}

func TestNewRedis_NilClient(t *testing.T) {
	assert.Panics(t, func() { NewRedis(nil, time.Hour, zerolog.Nop()) })
}

func TestDialRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := DialRedis(context.Background(), "redis://"+mr.Addr()+"/0", time.Hour, zerolog.Nop())
	require.NoError(t, err)
	defer store.Close()
	assert.True(t, store.Available())

	_, err = DialRedis(context.Background(), "://bad", time.Hour, zerolog.Nop())
	assert.Error(t, err, "malformed URLs are rejected")
}

func TestNop(t *testing.T) {
	var a Adapter = Nop{}
	ctx := context.Background()

	assert.False(t, a.Available())
	assert.ErrorIs(t, a.Put(ctx, "u", &TaggedResponse{}), ErrUnavailable)
	_, err := a.Match(ctx, "u")
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = a.MatchHeader(ctx, "u")
	assert.ErrorIs(t, err, ErrUnavailable)
}
