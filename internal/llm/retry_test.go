package llm

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphpipe/graphpipe/internal/domain"
	"github.com/graphpipe/graphpipe/internal/observability"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: 4 * time.Millisecond}
}

func TestRetryRecoversFromTransientFailure(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(), observability.Nop(), func() error {
		calls++
		if calls < 3 {
			return domain.TransportError("api returned 503", statusError{http.StatusServiceUnavailable})
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnNonTransportError(t *testing.T) {
	calls := 0
	parseErr := domain.ParseError("bad output", "raw text")
	err := Retry(context.Background(), fastRetryConfig(), observability.Nop(), func() error {
		calls++
		return parseErr
	})

	assert.ErrorIs(t, err, parseErr)
	assert.Equal(t, 1, calls, "parse failures must not be retried")
}

func TestRetryStopsOnNonTransientStatus(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(), observability.Nop(), func() error {
		calls++
		return domain.TransportError("api returned 401", statusError{http.StatusUnauthorized})
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(), observability.Nop(), func() error {
		calls++
		return domain.TransportError("connection refused", nil)
	})

	require.Error(t, err)
	assert.True(t, domain.IsTransport(err))
	assert.Equal(t, 4, calls, "initial attempt plus MaxRetries")
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, fastRetryConfig(), observability.Nop(), func() error {
		calls++
		cancel()
		return domain.TransportError("connection refused", nil)
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestCalculateBackoffCaps(t *testing.T) {
	config := RetryConfig{InitialBackoff: time.Second, MaxBackoff: 5 * time.Second}
	assert.Equal(t, time.Second, calculateBackoff(0, config))
	assert.Equal(t, 2*time.Second, calculateBackoff(1, config))
	assert.Equal(t, 4*time.Second, calculateBackoff(2, config))
	assert.Equal(t, 5*time.Second, calculateBackoff(3, config))
}
