package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestScheduler_RunsJobImmediatelyAndRepeatedly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := NewScheduler(ctx)
	require.NoError(t, err)

	var runs atomic.Int32
	require.NoError(t, s.Every("count", 20*time.Millisecond, func(ctx context.Context) {
		if ctx.Err() == nil {
			runs.Add(1)
		}
	}))
	s.Start()
	defer func() { require.NoError(t, s.Shutdown()) }()

	require.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
}
