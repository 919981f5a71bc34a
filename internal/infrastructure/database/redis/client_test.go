package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/DataMention-Intelligence/internal/config"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

func newMiniredisClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewClient(config.RedisConfig{Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestNewClient_Success(t *testing.T) {
	client, _ := newMiniredisClient(t)
	assert.NoError(t, client.Ping(context.Background()))
	assert.NotNil(t, client.Underlying())
}

func TestNewClient_ConnectionFailed(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	client, err := NewClient(config.RedisConfig{Addr: addr}, nil)
	assert.Nil(t, client)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeCacheError))
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	client, _ := newMiniredisClient(t)
	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	assert.Nil(t, client.Underlying())
	assert.ErrorIs(t, client.Ping(context.Background()), ErrClientClosed)
}
