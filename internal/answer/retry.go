package answer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
)

// RetryConfig configures the retry behavior for LLM calls.
type RetryConfig struct {
	MaxRetries      int           // Maximum number of retry attempts
	InitialInterval time.Duration // Initial backoff interval
	MaxInterval     time.Duration // Maximum backoff interval
}

// DefaultRetryConfig returns sensible defaults for LLM API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// retryablePatterns groups error substrings by category.
// Matched case-insensitively against err.Error().
//
// NOTE: This uses string matching because Genkit and LLM provider SDKs
// do not expose typed/sentinel errors for transient failures.
// Re-evaluate if Genkit adds structured error types in a future version.
var retryablePatterns = [][]string{
	{"rate limit", "quota exceeded", "429"},      // rate limiting
	{"500", "502", "503", "504", "unavailable"},  // transient server errors
	{"connection reset", "timeout", "temporary"}, // network errors
}

// retryableError reports whether err is transient and should trigger a retry.
func retryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	for _, group := range retryablePatterns {
		if containsAny(errStr, group...) {
			return true
		}
	}
	return false
}

// containsAny checks if s contains any of the substrings (case-insensitive).
func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// generateWithRetry runs the generate function with exponential backoff.
// Each attempt goes through the rate limiter, including the first.
func (c *Composer) generateWithRetry(
	ctx context.Context,
	generate func(ctx context.Context) (*ai.ModelResponse, error),
) (*ai.ModelResponse, error) {
	var lastErr error
	delay := c.retryConfig.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= c.retryConfig.MaxRetries; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		resp, err := generate(ctx)
		if err == nil {
			c.logger.Debug("generate succeeded",
				"attempts", attempt+1,
				"elapsed", time.Since(start),
			)
			return resp, nil
		}

		lastErr = err

		// Non-retryable error - fail immediately
		if !retryableError(err) {
			return nil, fmt.Errorf("generate: %w", err)
		}

		// Last attempt - don't sleep
		if attempt == c.retryConfig.MaxRetries {
			break
		}

		c.logger.Debug("retrying after error",
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, c.retryConfig.MaxInterval)
		}
	}

	return nil, fmt.Errorf("generate after %d retries (elapsed: %v): %w",
		c.retryConfig.MaxRetries, time.Since(start), lastErr)
}
