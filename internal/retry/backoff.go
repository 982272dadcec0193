package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/chatlings/internal/logging"
)

// RetryConfig configures retry behavior with exponential backoff
type RetryConfig struct {
	MaxRetries int           `json:"max_retries" koanf:"max_retries"` // retries after the first attempt; 0 disables retrying
	BaseDelay  time.Duration `json:"base_delay" koanf:"base_delay"`
	MaxDelay   time.Duration `json:"max_delay" koanf:"max_delay"`
	Multiplier float64       `json:"multiplier" koanf:"multiplier"`
	Jitter     bool          `json:"jitter" koanf:"jitter"` // up to +/-10%
	LogRetries bool          `json:"log_retries" koanf:"log_retries"`

	// Retryable decides whether an error is worth another attempt.
	// Nil means IsRetryableError.
	Retryable func(error) bool `json:"-" koanf:"-"`
}

// RetryResult contains information about the retry operation
type RetryResult struct {
	Attempts      int           `json:"attempts"`
	TotalDuration time.Duration `json:"total_duration"`
	LastError     error         `json:"-"`
	Success       bool          `json:"success"`
	RetryReasons  []string      `json:"retry_reasons"`
}

// NoRetryConfig runs the operation exactly once
func NoRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 0, Multiplier: 1}
}

// DefaultRetryConfig returns a retry configuration with sensible defaults
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
		LogRetries: true,
	}
}

// ProviderRetryConfig is tuned for slow text-generation calls
func ProviderRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 2,
		BaseDelay:  2 * time.Second,
		MaxDelay:   60 * time.Second,
		Multiplier: 2.5,
		Jitter:     true,
		LogRetries: true,
	}
}

// Preset names accepted by Preset
const (
	PresetNone     = "none"
	PresetDefault  = "default"
	PresetProvider = "provider"
)

// Preset returns a named retry configuration
func Preset(name string) (RetryConfig, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case PresetNone:
		return NoRetryConfig(), nil
	case PresetDefault:
		return DefaultRetryConfig(), nil
	case PresetProvider:
		return ProviderRetryConfig(), nil
	}
	return RetryConfig{}, fmt.Errorf("unknown retry preset %q (want %s, %s or %s)", name, PresetNone, PresetDefault, PresetProvider)
}

// Do runs operation until it succeeds, the error is not retryable, retries
// are exhausted or ctx is done. The logger may be nil.
func Do(ctx context.Context, config RetryConfig, operation func(ctx context.Context) error, logger *logging.RunLogger) RetryResult {
	startTime := time.Now()
	retryable := config.Retryable
	if retryable == nil {
		retryable = IsRetryableError
	}

	result := RetryResult{RetryReasons: make([]string, 0)}

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		result.Attempts = attempt + 1

		err := operation(ctx)
		if err == nil {
			result.Success = true
			result.LastError = nil
			result.TotalDuration = time.Since(startTime)
			if config.LogRetries && attempt > 0 {
				logger.Log("Operation succeeded after %d retries (total duration: %v)", attempt, result.TotalDuration)
			}
			return result
		}

		result.LastError = err
		result.RetryReasons = append(result.RetryReasons, err.Error())

		if attempt >= config.MaxRetries || !retryable(err) {
			result.TotalDuration = time.Since(startTime)
			if config.LogRetries {
				logger.Log("Operation failed after %d attempts (total duration: %v): %v", result.Attempts, result.TotalDuration, err)
			}
			return result
		}

		delay := calculateDelay(config, attempt)
		if config.LogRetries {
			logger.Log("Operation failed (attempt %d/%d): %v; retrying in %v", attempt+1, config.MaxRetries+1, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			result.LastError = ctx.Err()
			result.TotalDuration = time.Since(startTime)
			return result
		case <-timer.C:
		}
	}

	result.TotalDuration = time.Since(startTime)
	return result
}

// calculateDelay is baseDelay * multiplier^attempt, capped at MaxDelay
func calculateDelay(config RetryConfig, attempt int) time.Duration {
	delay := float64(config.BaseDelay) * math.Pow(config.Multiplier, float64(attempt))

	if config.MaxDelay > 0 && delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}

	if config.Jitter {
		jitterRange := delay * 0.1
		delay += (rand.Float64() - 0.5) * 2 * jitterRange
		if delay < 0 {
			delay = float64(config.BaseDelay)
		}
	}

	return time.Duration(delay)
}

var retryableErrors = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"temporary failure",
	"service unavailable",
	"too many requests",
	"rate limit",
	"overloaded",
	"429",
	"500",
	"502",
	"503",
	"504",
	"no such host",
	"broken pipe",
	"context deadline exceeded",
}

// IsRetryableError matches transient network and provider failures
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range retryableErrors {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
