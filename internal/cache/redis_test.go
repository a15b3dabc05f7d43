package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/joseph-ayodele/docextract/internal/llm"
)

func TestRedisArtifactStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}
	ctx := context.Background()

	container, err := tcredis.Run(ctx,
		"redis:7.4-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate redis container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	store, err := NewRedisArtifactStore(ctx, RedisConfig{Addr: host + ":" + port.Port(), TTL: time.Minute}, nil)
	require.NoError(t, err)
	defer store.Close()

	var _ llm.ArtifactStore = store

	_, err = store.GetArtifact(ctx, "doc-1")
	assert.ErrorIs(t, err, llm.ErrArtifactMiss)

	require.NoError(t, store.PutArtifact(ctx, "doc-1", "vs_abc"))
	ref, err := store.GetArtifact(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "vs_abc", ref)

	ttl, err := store.client.TTL(ctx, store.key("doc-1")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestNewRedisArtifactStoreUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewRedisArtifactStore(ctx, RedisConfig{Addr: "127.0.0.1:1"}, nil)
	assert.Error(t, err)
}
