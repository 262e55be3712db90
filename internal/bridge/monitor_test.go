package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/hale-labs/hale-oracle/internal/lib"
	"github.com/hale-labs/hale-oracle/internal/repositories/mappings"
	"github.com/stretchr/testify/require"
)

func TestMonitorStartStop(t *testing.T) {
	r := NewRelayer(mappings.NewMemoryStore(), nil, &settlerMock{}, time.Hour, "", &lib.LoggerMock{})
	m := NewMonitor(context.Background(), r, &lib.LoggerMock{})

	require.NoError(t, m.Start())
	require.True(t, m.IsRunning())
	require.ErrorIs(t, m.Start(), lib.ErrTaskRunning)

	require.Eventually(t, func() bool { return r.Status(context.Background()).Ticks >= 1 }, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.Stop(ctx))
	require.False(t, m.IsRunning())
	require.False(t, r.Status(context.Background()).MonitorRunning)

	require.NoError(t, m.Start())
	require.NoError(t, m.Stop(ctx))
}

func TestMonitorStartAfterShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRelayer(mappings.NewMemoryStore(), nil, &settlerMock{}, time.Hour, "", &lib.LoggerMock{})
	m := NewMonitor(ctx, r, &lib.LoggerMock{})
	cancel()

	require.ErrorIs(t, m.Start(), context.Canceled)
}
