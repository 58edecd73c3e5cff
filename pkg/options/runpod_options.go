package options

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*RunPodOptions)(nil)

// RunPodOptions configures the client for the external pod-control API.
type RunPodOptions struct {
	// BaseURL of the REST API, without a trailing slash.
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey is the bearer credential. Falls back to RUNPOD_API_KEY.
	// A missing key is not a startup error: every call fails with a configuration error instead.
	APIKey string `json:"api-key" mapstructure:"api-key"`

	// Timeout is the transport level timeout for a single call.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// ComputeType narrows list calls (e.g. GPU or CPU). Empty lists every pod.
	ComputeType string `json:"compute-type" mapstructure:"compute-type"`
}

// NewRunPodOptions creates RunPodOptions with default values.
func NewRunPodOptions() *RunPodOptions {
	return &RunPodOptions{
		BaseURL: "https://rest.runpod.io/v1",
		Timeout: 30 * time.Second,
	}
}

// Complete fills the credential from the environment when unset.
func (o *RunPodOptions) Complete() {
	o.APIKey = envOr(o.APIKey, "RUNPOD_API_KEY")
}

// Validate checks the base URL and timeout.
func (o *RunPodOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errs := []error{}

	u, err := url.Parse(o.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("--runpod.base-url %q is not an absolute URL", o.BaseURL))
	}

	if o.Timeout <= 0 {
		errs = append(errs, errors.New("--runpod.timeout must be positive"))
	}

	return errs
}

// AddFlags adds flags for RunPodOptions to the specified FlagSet.
func (o *RunPodOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.BaseURL, "runpod.base-url", o.BaseURL, "Base URL of the RunPod REST API.")
	fs.StringVar(&o.APIKey, "runpod.api-key", o.APIKey, "RunPod API key (defaults to $RUNPOD_API_KEY).")
	fs.DurationVar(&o.Timeout, "runpod.timeout", o.Timeout, "Timeout for a single RunPod API call.")
	fs.StringVar(&o.ComputeType, "runpod.compute-type", o.ComputeType, "Only list pods of this compute type (GPU or CPU).")
}
