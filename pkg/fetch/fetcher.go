package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/webgrab/pkg/config"
	"github.com/Sriram-PR/webgrab/pkg/utils"
)

// Fetcher sends requests through an http.Client, retrying connection-level failures
// (DNS, dial, TLS, reset before a response) up to the per-scheme limit from config.
// Any HTTP response, whatever its status, ends the loop: application-level failures are never retried.
type Fetcher struct {
	client  *http.Client
	cfg     *config.AppConfig
	limiter *RateLimiter // nil when cfg.DelayPerHost is zero
	log     *logrus.Entry
}

// NewFetcher creates a new Fetcher instance
func NewFetcher(client *http.Client, cfg *config.AppConfig, log *logrus.Entry) *Fetcher {
	f := &Fetcher{
		client: client,
		cfg:    cfg,
		log:    log,
	}
	if cfg.DelayPerHost > 0 {
		f.limiter = NewRateLimiter(cfg.DelayPerHost, log)
	}
	return f
}

// FetchWithRetry performs req bound to ctx.
// A 2xx/3xx response is returned as-is and the caller must close its body.
// A status of 400 or above is returned as a *StatusError with the body already closed.
func (f *Fetcher) FetchWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error

	reqLog := f.log.WithField("url", req.URL.String())

	maxRetries := f.cfg.RetriesFor(req.URL.Scheme)
	initialRetryDelay := f.cfg.InitialRetryDelay
	maxRetryDelay := f.cfg.MaxRetryDelay

	// Try up to maxRetries+1 times (initial attempt + retries)
	for attempt := 0; attempt <= maxRetries; attempt++ {

		// --- Context Check ---
		select {
		case <-ctx.Done():
			reqLog.Warnf("Context cancelled before attempt %d: %v", attempt, ctx.Err())
			if lastErr != nil {
				return nil, fmt.Errorf("context cancelled (%v) during retry backoff after error: %w", ctx.Err(), lastErr)
			}
			return nil, fmt.Errorf("context cancelled before first attempt: %w", ctx.Err())
		default:
		}

		// --- Exponential Backoff Delay ---
		if attempt > 0 {
			finalDelay := backoffDelay(attempt, initialRetryDelay, maxRetryDelay)

			reqLog.WithFields(logrus.Fields{"attempt": attempt, "max_retries": maxRetries, "delay": finalDelay}).Warn("Retrying request...")

			select {
			case <-time.After(finalDelay):
			case <-ctx.Done():
				reqLog.Warnf("Context cancelled during retry sleep: %v", ctx.Err())
				return nil, fmt.Errorf("context cancelled (%v) during retry delay after error: %w", ctx.Err(), lastErr)
			}
		}

		// --- Per-Host Politeness Delay ---
		if f.limiter != nil {
			if err := f.limiter.ApplyDelay(ctx, req.URL.Host, 0); err != nil {
				return nil, err
			}
		}

		// --- Perform HTTP Request ---
		reqLog.WithField("attempt", attempt).Debug("fetching")
		resp, err := f.client.Do(req.Clone(ctx))
		if f.limiter != nil {
			f.limiter.UpdateLastRequestTime(req.URL.Host)
		}

		// --- Handle Network-Level Errors ---
		if err != nil {
			if resp != nil {
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
			}
			// Context cancellation/timeout during the call is final
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				reqLog.Warnf("Context cancelled/timed out during HTTP request execution: %v", err)
				return nil, err
			}
			reqLog.WithFields(logrus.Fields{
				"attempt":    attempt,
				"error_type": utils.CategorizeError(err),
			}).Warnf("Network error: %v", err)
			lastErr = err
			continue
		}

		// --- Handle HTTP Status Codes ---
		resLog := reqLog.WithFields(logrus.Fields{"status_code": resp.StatusCode, "attempt": attempt})
		if resp.StatusCode >= 400 {
			statusErr := newStatusError(resp)
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			resLog.Debugf("HTTP error status: %s", resp.Status)
			return nil, statusErr
		}

		resLog.Debug("Successfully fetched")
		return resp, nil
	}

	// --- All Retries Failed ---
	reqLog.Errorf("All %d fetch attempts failed. Last error: %v", maxRetries+1, lastErr)
	return nil, fmt.Errorf("%w: %w", utils.ErrRetryFailed, lastErr)
}

// backoffDelay computes initial * 2^(attempt-1), capped at maxDelay, with +/- 10% jitter
func backoffDelay(attempt int, initialDelay, maxDelay time.Duration) time.Duration {
	backoff := float64(initialDelay) * math.Pow(2, float64(attempt-1))
	delay := time.Duration(backoff)
	if delay <= 0 || delay > maxDelay {
		delay = maxDelay
	}

	var jitter time.Duration
	if delay >= 5 {
		jitter = time.Duration(rand.Int63n(int64(delay)/5)) - (delay / 10) // delay/5 wide, centered at 0
	}
	finalDelay := delay + jitter
	if finalDelay < 0 {
		finalDelay = 0
	}
	return finalDelay
}
