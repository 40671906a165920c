package bulk

import "time"

// Config holds polling and cancellation timing for bulk jobs.
type Config struct {
	// PollIntervalSeconds is the delay between two status polls.
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds" default:"5"`
	// CancelSettleSeconds is how long to wait after a cancel request before the slot is released.
	CancelSettleSeconds int `mapstructure:"cancel_settle_seconds" default:"3"`
	// MaxPollErrors is the number of consecutive failed polls tolerated before giving up.
	MaxPollErrors int `mapstructure:"max_poll_errors" default:"10"`
}

// PollInterval returns the poll interval, defaulting to 5s.
func (c Config) PollInterval() time.Duration {
	if c.PollIntervalSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// CancelSettle returns the cancel settle delay, defaulting to 3s.
func (c Config) CancelSettle() time.Duration {
	if c.CancelSettleSeconds <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.CancelSettleSeconds) * time.Second
}

// PollErrorBudget returns the consecutive error budget, defaulting to 10.
func (c Config) PollErrorBudget() int {
	if c.MaxPollErrors <= 0 {
		return 10
	}
	return c.MaxPollErrors
}
