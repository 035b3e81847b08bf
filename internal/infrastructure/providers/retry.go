package providers

import (
	"bytes"
	"context"
	"io"
	"math/rand"
	"net/http"
	"time"

	"go.uber.org/zap"
	"inferxgate.backend/pkg/logger"
)

const (
	defaultMaxAttempts = 3
	retryBaseDelay     = 200 * time.Millisecond
	retryMaxDelay      = 5 * time.Second
)

// isRetryableStatus reports whether an upstream status warrants another try
func isRetryableStatus(status int) bool {
	return status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests ||
		status >= 500
}

func backoffDelay(attempt int) time.Duration {
	delay := retryBaseDelay << attempt
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(delay / 2)))
	return delay/2 + jitter
}

// sendWithRetry posts the body, retrying transient failures. Connection
// errors and retryable statuses get up to maxAttempts tries with backoff;
// terminal statuses return the response to the caller untouched.
func sendWithRetry(ctx context.Context, client *http.Client, build func() (*http.Request, error), body []byte, maxAttempts int) (*http.Response, error) {
	if maxAttempts < 1 {
		maxAttempts = defaultMaxAttempts
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoffDelay(attempt - 1)):
			}
		}

		req, err := build()
		if err != nil {
			return nil, err
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
		req.ContentLength = int64(len(body))

		resp, err := client.Do(req.WithContext(ctx))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			logger.Warn(ctx, "upstream request failed, retrying",
				zap.String("host", req.URL.Host), zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}

		if isRetryableStatus(resp.StatusCode) && attempt < maxAttempts-1 {
			resp.Body.Close()
			logger.Warn(ctx, "upstream returned retryable status",
				zap.String("host", req.URL.Host), zap.Int("status", resp.StatusCode), zap.Int("attempt", attempt+1))
			continue
		}

		return resp, nil
	}

	return nil, lastErr
}
