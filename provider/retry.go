package provider

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"syscall"
	"time"

	"github.com/lib/pq"
	"gopkg.in/matryer/try.v1"
)

// ErrUnreachable is returned once a call has failed with transient errors
// on every allowed attempt. The pipeline treats it as fatal.
var ErrUnreachable = errors.New("provider unreachable")

// RetryPolicy bounds how a failing call is retried
type RetryPolicy struct {
	MaxAttempts  int
	Interval     time.Duration
	BackoffCoeff int
}

// DefaultRetryPolicy is five attempts starting at 500ms, doubling
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 5, Interval: 500 * time.Millisecond, BackoffCoeff: 2}

// retryInterval is the wait before retry number retryCount (0 based)
func retryInterval(interval time.Duration, backoffCoeff, retryCount int) time.Duration {
	coeff := math.Pow(float64(backoffCoeff), float64(retryCount))
	intervalMilliSec := float64(interval.Milliseconds())
	return time.Duration(intervalMilliSec*coeff) * time.Millisecond
}

// IsTransient reports whether err is worth retrying: timeouts, dropped
// or refused connections, and Postgres connection-class SQLSTATEs.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "57P01", "57P02", "57P03", "53300":
			return true
		}
		return pqErr.Code.Class() == "08"
	}
	return false
}

// do runs fn under the client's rate limit, per-call timeout and retry
// policy. fn receives a context carrying the call deadline.
func (c *Client) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	maxAttempts := c.retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	attempts := 0
	err := try.Do(func(attempt int) (bool, error) {
		attempts = attempt
		if err := c.limiter.Wait(ctx); err != nil {
			return false, err
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err := fn(callCtx)
		cancel()
		if err == nil {
			return false, nil
		}
		lastErr = err

		// The caller gave up, or the failure will not go away by itself
		if ctx.Err() != nil || !IsTransient(err) {
			return false, err
		}
		if attempt >= maxAttempts {
			return false, err
		}

		wait := retryInterval(c.retry.Interval, c.retry.BackoffCoeff, attempt-1)
		c.log.Warnw("⚠️ Provider call failed, retrying",
			"op", op, "attempt", attempt, "wait", wait, "error", err)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return false, ctx.Err()
		}
		return true, err
	})
	if err == nil {
		return nil
	}

	if try.IsMaxRetries(err) || (IsTransient(lastErr) && ctx.Err() == nil) {
		return fmt.Errorf("%w: %s failed after %d attempts: %v", ErrUnreachable, op, attempts, lastErr)
	}
	return fmt.Errorf("%s: %w", op, err)
}
