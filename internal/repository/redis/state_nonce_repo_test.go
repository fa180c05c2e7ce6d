package redis

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unreachableClient(t *testing.T) redis.UniversalClient {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNewStateNonceRepo_RequiresClient(t *testing.T) {
	_, err := NewStateNonceRepo(nil)
	assert.Error(t, err)
}

func TestStateNonceRepo_RejectsEmptyNonce(t *testing.T) {
	repo, err := NewStateNonceRepo(unreachableClient(t))
	require.NoError(t, err)

	ok, err := repo.Consume(context.Background(), "", time.Minute)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestStateNonceRepo_SurfacesStoreErrors(t *testing.T) {
	repo, err := NewStateNonceRepo(unreachableClient(t))
	require.NoError(t, err)

	ok, err := repo.Consume(context.Background(), "nonce-1", time.Minute)
	assert.Error(t, err)
	assert.False(t, ok, "an unreachable store must never report a fresh nonce")
}
