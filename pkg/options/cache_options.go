package options

import (
	"errors"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*CacheOptions)(nil)

// CacheOptions controls the pod status cache refresh cadence.
type CacheOptions struct {
	// ListInterval is the period of the full pod list refresh.
	ListInterval time.Duration `json:"list-interval" mapstructure:"list-interval"`

	// WatchInterval is the detail refresh period of a watched pod.
	WatchInterval time.Duration `json:"watch-interval" mapstructure:"watch-interval"`

	// WatchLimit caps how long a pod is watched after a wake-up.
	WatchLimit time.Duration `json:"watch-limit" mapstructure:"watch-limit"`
}

// NewCacheOptions creates CacheOptions with default values.
func NewCacheOptions() *CacheOptions {
	return &CacheOptions{
		ListInterval:  10 * time.Second,
		WatchInterval: 5 * time.Second,
		WatchLimit:    10 * time.Minute,
	}
}

// Validate checks the intervals.
func (o *CacheOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errs := []error{}

	if o.ListInterval < time.Second {
		errs = append(errs, errors.New("--cache.list-interval must be at least 1s"))
	}
	if o.WatchInterval < time.Second {
		errs = append(errs, errors.New("--cache.watch-interval must be at least 1s"))
	}
	if o.WatchLimit <= 0 {
		errs = append(errs, errors.New("--cache.watch-limit must be positive"))
	}

	return errs
}

// AddFlags adds flags for CacheOptions to the specified FlagSet.
func (o *CacheOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.DurationVar(&o.ListInterval, "cache.list-interval", o.ListInterval, "Refresh period of the pod list.")
	fs.DurationVar(&o.WatchInterval, "cache.watch-interval", o.WatchInterval, "Refresh period of a watched pod's detail.")
	fs.DurationVar(&o.WatchLimit, "cache.watch-limit", o.WatchLimit, "Maximum time a pod stays watched after a wake-up.")
}
