package llm

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/graphpipe/graphpipe/internal/domain"
	"github.com/graphpipe/graphpipe/internal/observability"
)

const (
	defaultMaxRetries     = 3
	defaultInitialBackoff = 1 * time.Second
	defaultMaxBackoff     = 30 * time.Second
)

// RetryConfig holds retry configuration.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     defaultMaxRetries,
		InitialBackoff: defaultInitialBackoff,
		MaxBackoff:     defaultMaxBackoff,
	}
}

// shouldRetry determines if an error is worth retrying. Only transport
// errors qualify, and only those carrying a transient HTTP status (or no
// status at all, i.e. a network-level failure). A parse or validation
// failure will not get better by resending the same request.
func shouldRetry(err error) bool {
	if !domain.IsTransport(err) {
		return false
	}
	switch StatusCode(err) {
	case 0: // network error, no response
		return true
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// calculateBackoff computes the exponential backoff for the given attempt,
// capped at MaxBackoff.
func calculateBackoff(attempt int, config RetryConfig) time.Duration {
	backoff := float64(config.InitialBackoff) * math.Pow(2, float64(attempt))
	if backoff > float64(config.MaxBackoff) {
		backoff = float64(config.MaxBackoff)
	}
	return time.Duration(backoff)
}

// Retry runs op with bounded exponential backoff on transient transport
// failures. The terminal error is returned unchanged.
func Retry(ctx context.Context, config RetryConfig, logger *observability.Logger, op func() error) error {
	var lastErr error

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return domain.TransportError("retry aborted", ctx.Err())
		default:
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !shouldRetry(lastErr) {
			return lastErr
		}
		if attempt == config.MaxRetries {
			break
		}

		backoff := calculateBackoff(attempt, config)
		logger.Warn().
			Err(lastErr).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Msg("transient failure, retrying")

		select {
		case <-ctx.Done():
			return domain.TransportError("retry aborted", ctx.Err())
		case <-time.After(backoff):
		}
	}

	return lastErr
}
