package util

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"syscall"
	"time"
)

// RetryConfig bounds RetryWithBackoff. The wait doubles after each failed
// attempt up to MaxWait.
type RetryConfig struct {
	MaxAttempts int // including the first
	InitialWait time.Duration
	MaxWait     time.Duration
}

// DefaultRetryConfig suits local disks
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{MaxAttempts: 3, InitialWait: 100 * time.Millisecond, MaxWait: 5 * time.Second}
}

// NASRetryConfig waits longer, for file operations on network shares
func NASRetryConfig() *RetryConfig {
	return &RetryConfig{MaxAttempts: 3, InitialWait: 200 * time.Millisecond, MaxWait: 10 * time.Second}
}

// Errors that network shares and busy disks recover from
var transientErrnos = map[syscall.Errno]bool{
	syscall.EAGAIN:       true,
	syscall.ETIMEDOUT:    true,
	syscall.ECONNRESET:   true,
	syscall.ECONNABORTED: true,
	syscall.ECONNREFUSED: true,
	syscall.ENETDOWN:     true,
	syscall.ENETUNREACH:  true,
	syscall.EHOSTDOWN:    true,
	syscall.EHOSTUNREACH: true,
	syscall.EIO:          true,
}

// Messages of the same failures when no errno survives the wrapping
var transientMessages = []string{
	"timeout",
	"timed out",
	"connection reset",
	"connection refused",
	"connection aborted",
	"broken pipe",
	"no route to host",
	"network is unreachable",
	"network is down",
	"host is down",
	"temporary failure",
	"resource temporarily unavailable",
	"i/o error",
	"too many open files",
}

// IsRetryableError reports whether err looks transient. Errnos are found
// through any wrapping, including *os.PathError and *os.LinkError.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var errno syscall.Errno
	if errors.As(err, &errno) && transientErrnos[errno] {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range transientMessages {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// RetryWithBackoff runs operation until it succeeds, fails with an error
// IsRetryableError rejects, or runs out of attempts. The wait between
// attempts ends early when ctx is done.
func RetryWithBackoff[T any](ctx context.Context, cfg *RetryConfig, logger *Logger, operation func() (T, error), operationName string) (T, error) {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}
	logger = OrDefault(logger)

	wait := cfg.InitialWait
	for attempt := 1; ; attempt++ {
		result, err := operation()
		switch {
		case err == nil:
			if attempt > 1 {
				logger.Debugf("%s succeeded on attempt %d", operationName, attempt)
			}
			return result, nil
		case !IsRetryableError(err):
			return result, err
		case attempt >= cfg.MaxAttempts:
			logger.Warnf("%s failed after %d attempts: %v", operationName, attempt, err)
			return result, fmt.Errorf("max retries exceeded (%d attempts): %w", attempt, err)
		}

		logger.Debugf("%s failed (attempt %d/%d), retrying in %v: %v", operationName, attempt, cfg.MaxAttempts, wait, err)
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(wait):
		}
		wait = min(wait*2, cfg.MaxWait)
	}
}

// Retry is RetryWithBackoff for operations without a result
func Retry(ctx context.Context, cfg *RetryConfig, logger *Logger, operation func() error, operationName string) error {
	_, err := RetryWithBackoff(ctx, cfg, logger, func() (struct{}, error) {
		return struct{}{}, operation()
	}, operationName)
	return err
}
