package governor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/livia-chatops/livia/internal/config"
	"github.com/stretchr/testify/require"
)

func testPools() map[string]config.GovernorPoolConfig {
	return map[string]config.GovernorPoolConfig{
		"llm": {
			MaxConcurrent: 2, RequestsPerMinute: 1000, RequestsPerHour: 10000,
			RetryAttempts: 3, MinWaitSeconds: 0.01, MaxWaitSeconds: 0.02,
		},
	}
}

func TestExecute_SucceedsWithoutRetry(t *testing.T) {
	g := New(testPools())
	calls := 0
	err := g.Execute(context.Background(), "llm", nil, func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	stats, ok := g.Stats("llm")
	require.True(t, ok)
	require.EqualValues(t, 1, stats.SuccessfulRequests)
}

func TestExecute_RetriesTransientErrors(t *testing.T) {
	g := New(testPools())
	calls := 0
	transientErr := errors.New("rate limited")
	err := g.Execute(context.Background(), "llm", func(err error) bool { return true }, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return transientErr
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestExecute_StopsOnNonTransientError(t *testing.T) {
	g := New(testPools())
	calls := 0
	permanentErr := errors.New("bad request")
	err := g.Execute(context.Background(), "llm", func(error) bool { return false }, func(ctx context.Context) error {
		calls++
		return permanentErr
	})
	require.ErrorIs(t, err, permanentErr)
	require.Equal(t, 1, calls)
}

func TestExecute_UnknownPool(t *testing.T) {
	g := New(testPools())
	err := g.Execute(context.Background(), "nonexistent", nil, func(context.Context) error { return nil })
	require.Error(t, err)
}

func TestExecute_RespectsMaxConcurrent(t *testing.T) {
	g := New(testPools())
	var active, maxActive int64
	done := make(chan struct{})

	for i := 0; i < 4; i++ {
		go func() {
			g.Execute(context.Background(), "llm", nil, func(ctx context.Context) error {
				n := atomic.AddInt64(&active, 1)
				for {
					m := atomic.LoadInt64(&maxActive)
					if n <= m || atomic.CompareAndSwapInt64(&maxActive, m, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt64(&active, -1)
				return nil
			})
			done <- struct{}{}
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}
	require.LessOrEqual(t, atomic.LoadInt64(&maxActive), int64(2))
}
