package reactor

import (
	"errors"
	"fmt"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

const (
	// DefaultMaxEvents is the default size of the batch fetched per wait.
	DefaultMaxEvents = 1024
	// DefaultPollInterval bounds a single wait when Run has no deadline.
	DefaultPollInterval = time.Second
)

var defaultStaleRates = map[time.Duration]int{
	time.Second: 1,
	time.Minute: 10,
}

type options struct {
	logger       *logiface.Logger[logiface.Event]
	maxEvents    int
	pollInterval time.Duration
	staleLimiter *catrate.Limiter
}

// Option configures a Reactor.
type Option interface {
	apply(*options) error
}

type optionFunc func(*options) error

func (f optionFunc) apply(opts *options) error {
	return f(opts)
}

// WithLogger sets the logger. A nil logger (the default) disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return optionFunc(func(opts *options) error {
		opts.logger = logger
		return nil
	})
}

// WithMaxEvents sets the maximum number of ready events fetched per wait.
func WithMaxEvents(n int) Option {
	return optionFunc(func(opts *options) error {
		if n <= 0 {
			return errors.New("reactor: max events must be positive")
		}
		opts.maxEvents = n
		return nil
	})
}

// WithPollInterval bounds how long a single wait may block, which is also
// how often Run notices a cancelled context when no deadline is set.
func WithPollInterval(d time.Duration) Option {
	return optionFunc(func(opts *options) error {
		if d <= 0 {
			return errors.New("reactor: poll interval must be positive")
		}
		opts.pollInterval = d
		return nil
	})
}

// WithStaleWarnRate configures how often, per handle, a notification for an
// unregistered handle is logged at warning level. Suppressed ones are logged
// at debug. An empty rates map removes the limit. See catrate.NewLimiter for
// the rules rates must follow.
func WithStaleWarnRate(rates map[time.Duration]int) Option {
	return optionFunc(func(opts *options) (err error) {
		if len(rates) == 0 {
			opts.staleLimiter = nil
			return nil
		}
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("reactor: stale warn rate: %v", r)
			}
		}()
		opts.staleLimiter = catrate.NewLimiter(rates)
		return nil
	})
}

func resolveOptions(opts []Option) (*options, error) {
	cfg := &options{
		maxEvents:    DefaultMaxEvents,
		pollInterval: DefaultPollInterval,
	}
	if err := WithStaleWarnRate(defaultStaleRates).apply(cfg); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
