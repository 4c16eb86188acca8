package httpclient

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryConfig holds the retry behavior configuration.
// Use DefaultRetryConfig() and modify as needed.
//
// Retries use exponential backoff with jitter. Imageboard APIs ask clients
// to go slow, so the defaults start at one second and back off quickly.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts. The initial
	// request is not counted. Zero disables retries.
	// Default: 2
	MaxRetries uint

	// InitialInterval is the wait before the first retry.
	// Default: 1s
	InitialInterval time.Duration

	// MaxInterval caps a single backoff interval.
	// Default: 10s
	MaxInterval time.Duration

	// MaxElapsedTime is the total budget of the retry sequence.
	// Zero means only MaxRetries applies.
	// Default: 30s
	MaxElapsedTime time.Duration

	// Multiplier grows each interval.
	// Default: 2.0
	Multiplier float64

	// JitterFactor randomizes each interval by ±JitterFactor.
	// Default: 0.5
	JitterFactor float64
}

// Default values for RetryConfig.
const (
	DefaultMaxRetries      = 2
	DefaultInitialInterval = 1 * time.Second
	DefaultMaxInterval     = 10 * time.Second
	DefaultMaxElapsedTime  = 30 * time.Second
	DefaultMultiplier      = 2.0
	DefaultJitterFactor    = 0.5
)

// DefaultRetryConfig returns the default policy: two retries at 1s then 2s
// (±50%), within a 30s budget.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      DefaultMaxRetries,
		InitialInterval: DefaultInitialInterval,
		MaxInterval:     DefaultMaxInterval,
		MaxElapsedTime:  DefaultMaxElapsedTime,
		Multiplier:      DefaultMultiplier,
		JitterFactor:    DefaultJitterFactor,
	}
}

// AggressiveRetryConfig returns a policy for reads the user is actively
// waiting on, such as refreshing an open thread on a flaky link.
//
// Configuration:
//   - 4 retries (500ms -> 1s -> 2s -> 4s)
//   - 1 minute total budget
func AggressiveRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      4,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     15 * time.Second,
		MaxElapsedTime:  time.Minute,
		Multiplier:      2.0,
		JitterFactor:    0.5,
	}
}

// NoRetryConfig disables retries. Use it for non-idempotent calls such as
// posting a reply.
func NoRetryConfig() RetryConfig {
	return RetryConfig{}
}

// IsEnabled returns true if retries are enabled.
func (c RetryConfig) IsEnabled() bool {
	return c.MaxRetries > 0
}

// ExponentialBackOffFromConfig builds a backoff.ExponentialBackOff from c.
func ExponentialBackOffFromConfig(c RetryConfig) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if c.InitialInterval > 0 {
		b.InitialInterval = c.InitialInterval
	}
	if c.MaxInterval > 0 {
		b.MaxInterval = c.MaxInterval
	}
	if c.Multiplier > 0 {
		b.Multiplier = c.Multiplier
	}
	if c.JitterFactor >= 0 {
		b.RandomizationFactor = c.JitterFactor
	}
	b.Reset()
	return b
}
