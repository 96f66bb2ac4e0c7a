package monitoring

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/turtacn/marketguard/pkg/errors"
)

func TestRegistry(t *testing.T) {
	mr, store := newTestStore(t)
	yf := NewAPICallMonitor(store, MonitorOptions{APIName: "yfinance"}, nil, nil, nil)
	fh := NewAPICallMonitor(store, MonitorOptions{APIName: "finnhub"}, nil, nil, nil)
	reg := NewRegistry(yf, fh)
	ctx := context.Background()

	assert.Equal(t, []string{"finnhub", "yfinance"}, reg.Names())

	yf.RecordCall(ctx, true)
	fh.RecordCall(ctx, false, WithResponseCode(429))
	fh.RecordCall(ctx, true)

	all := reg.AllStats(ctx)
	require.Len(t, all, 2)
	assert.Equal(t, int64(1), all["yfinance"].TotalCalls)
	assert.Equal(t, int64(2), all["finnhub"].TotalCalls)
	assert.Equal(t, int64(1), all["finnhub"].RateLimitedCalls)

	snap, err := reg.Stats(ctx, "finnhub")
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.TotalCalls)

	require.NoError(t, reg.Reset(ctx, "yfinance"))
	assert.False(t, mr.Exists("api_monitor:yfinance:calls"))
	assert.True(t, mr.Exists("api_monitor:finnhub:calls"))

	require.NoError(t, reg.ResetAll(ctx))
	assert.False(t, mr.Exists("api_monitor:finnhub:calls"))
}

func TestRegistry_UnknownAPI(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Stats(context.Background(), "alpha_vantage")
	assert.True(t, apperrors.IsNotFoundError(err))

	err = reg.Reset(context.Background(), "alpha_vantage")
	assert.True(t, apperrors.IsNotFoundError(err))

	_, ok := reg.Get("alpha_vantage")
	assert.False(t, ok)
	assert.Empty(t, reg.AllStats(context.Background()))
}
