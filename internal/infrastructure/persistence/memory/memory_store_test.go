package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/marketguard/internal/domain/service"
)

func TestStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewStore(time.Minute)

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	require.NoError(t, s.Delete(ctx, "k"))
	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_ValuesAreCopied(t *testing.T) {
	ctx := context.Background()
	s := NewStore(time.Minute)

	in := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", in, 0))
	in[0] = 'x'

	v, _, _ := s.Get(ctx, "k")
	assert.Equal(t, "abc", string(v))
}

func TestStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewStore(time.Minute)

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 50*time.Millisecond))
	time.Sleep(80 * time.Millisecond)

	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_DeletePattern(t *testing.T) {
	ctx := context.Background()
	s := NewStore(time.Minute)

	for _, k := range []string{"cache:vwap:1", "cache:vwap:2", "cache:stock_info:1"} {
		require.NoError(t, s.Set(ctx, k, []byte("v"), time.Minute))
	}

	n, err := s.DeletePattern(ctx, "cache:vwap:*")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 1, s.Len())

	_, err = s.DeletePattern(ctx, "[")
	assert.Error(t, err)
}

func TestStore_Capabilities(t *testing.T) {
	caps := service.ResolveCapabilities(NewStore(time.Minute))
	assert.True(t, caps.CanDeletePattern())
	assert.False(t, caps.CanReportStats())
}
