package cache

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectRejectsBadURL(t *testing.T) {
	_, err := Connect(context.Background(), "redis://localhost:6379/not-a-db")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse redis url")
}

func TestDeleteWithoutKeysIsNoop(t *testing.T) {
	c := NewRedisCache(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}))
	defer c.Close()
	assert.NoError(t, c.Delete(context.Background()))
}
