package redisclient

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimAndReleaseIdempotencyKey(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("Integration test - set TEST_REDIS_ADDR")
	}

	client, err := NewClient(addr, "", 0)
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	key := "test:idempotency:" + uuid.New().String()

	existing, err := client.ClaimIdempotencyKey(ctx, key, "order-1", time.Minute)
	require.NoError(t, err)
	assert.Empty(t, existing)

	existing, err = client.ClaimIdempotencyKey(ctx, key, "order-2", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "order-1", existing)

	require.NoError(t, client.ReleaseIdempotencyKey(ctx, key))

	existing, err = client.ClaimIdempotencyKey(ctx, key, "order-3", 0)
	require.NoError(t, err)
	assert.Empty(t, existing)
	require.NoError(t, client.ReleaseIdempotencyKey(ctx, key))
}
