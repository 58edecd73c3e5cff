package options

import (
	"errors"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*SessionOptions)(nil)

// SessionOptions configures bot naming and session exit behavior.
type SessionOptions struct {
	// BotPrefix marks pods that back conferencing bots.
	BotPrefix string `json:"bot-prefix" mapstructure:"bot-prefix"`

	// NavigationDelay separates an awaited shutdown from the navigation back to the selection view.
	NavigationDelay time.Duration `json:"navigation-delay" mapstructure:"navigation-delay"`

	// SelectionPath is where a session view is sent after exit.
	SelectionPath string `json:"selection-path" mapstructure:"selection-path"`

	// ShutdownTimeout bounds the best-effort stop issued for an unload signal.
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
}

// NewSessionOptions creates SessionOptions with default values.
func NewSessionOptions() *SessionOptions {
	return &SessionOptions{
		BotPrefix:       "livekit_",
		NavigationDelay: time.Second,
		SelectionPath:   "/",
		ShutdownTimeout: 30 * time.Second,
	}
}

// Validate checks the prefix and delays.
func (o *SessionOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errs := []error{}

	if o.BotPrefix == "" {
		errs = append(errs, errors.New("--session.bot-prefix must not be empty"))
	}
	if o.NavigationDelay < 0 {
		errs = append(errs, errors.New("--session.navigation-delay must not be negative"))
	}
	if o.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("--session.shutdown-timeout must be positive"))
	}

	return errs
}

// AddFlags adds flags for SessionOptions to the specified FlagSet.
func (o *SessionOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.BotPrefix, "session.bot-prefix", o.BotPrefix, "Name prefix of pods that back conferencing bots.")
	fs.DurationVar(&o.NavigationDelay, "session.navigation-delay", o.NavigationDelay, "Delay between an awaited shutdown and navigation back to the selection view.")
	fs.StringVar(&o.SelectionPath, "session.selection-path", o.SelectionPath, "Path of the bot selection view.")
	fs.DurationVar(&o.ShutdownTimeout, "session.shutdown-timeout", o.ShutdownTimeout, "Timeout of the best-effort stop issued on page unload.")
}
