//go:build integration

package persist

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client
func setupRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "start Redis container")

	endpoint, err := redisContainer.Endpoint(ctx, "")
	require.NoError(t, err, "Redis endpoint")

	client := redis.NewClient(&redis.Options{
		Addr: endpoint,
	})

	require.NoError(t, client.Ping(ctx).Err(), "connect to Redis")

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestRedis_Integration_RoundTrip(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	store := NewRedis(client, 2*time.Second, logger)
	ctx := context.Background()
	src := "https://epg.example.com/e.xml.gz"

	upstream := http.Header{}
	upstream.Set("Content-Type", "application/gzip")
	upstream.Set("Vary", "Accept-Encoding")
	require.NoError(t, store.Put(ctx, src, NewTaggedResponse(upstream, []byte{0x1f, 0x8b, 0x08}, 2*time.Second, time.Now())))

	got, err := store.Match(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1f, 0x8b, 0x08}, got.Body, "binary body not preserved")
	assert.Empty(t, got.Header.Get("Vary"), "Vary should not be persisted")

	time.Sleep(3 * time.Second)

	_, err = store.MatchHeader(ctx, src)
	assert.ErrorIs(t, err, ErrMiss)
}
