package poller

import "time"

// DefaultInterval is the delay between two status fetches
const DefaultInterval = 2 * time.Second

// Strategy decides how long to wait before the next fetch.
// failures is the number of consecutive failed fetches so far.
type Strategy interface {
	Next(failures int) time.Duration
}

// FixedInterval waits the same duration regardless of failures
type FixedInterval struct {
	Interval time.Duration
}

// Next returns the fixed interval
func (s *FixedInterval) Next(int) time.Duration {
	if s.Interval <= 0 {
		return DefaultInterval
	}
	return s.Interval
}

// ExponentialBackoff stretches the interval while fetches keep failing
// and falls back to InitialDelay after a success.
type ExponentialBackoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// Next calculates the delay using exponential backoff
func (s *ExponentialBackoff) Next(failures int) time.Duration {
	delay := float64(s.InitialDelay)
	for i := 0; i < failures; i++ {
		delay *= s.Multiplier
		if s.MaxDelay > 0 && delay > float64(s.MaxDelay) {
			return s.MaxDelay
		}
	}

	if s.MaxDelay > 0 && delay > float64(s.MaxDelay) {
		return s.MaxDelay
	}
	return time.Duration(delay)
}
