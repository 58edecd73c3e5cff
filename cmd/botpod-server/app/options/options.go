package options

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/botpod/internal/botpod"
	"github.com/autopeer-io/botpod/pkg/app"
	"github.com/autopeer-io/botpod/pkg/log"
	"github.com/autopeer-io/botpod/pkg/options"
)

type ServerOptions struct {
	HttpOptions    *options.HttpOptions    `json:"http" mapstructure:"http"`
	RunPodOptions  *options.RunPodOptions  `json:"runpod" mapstructure:"runpod"`
	CacheOptions   *options.CacheOptions   `json:"cache" mapstructure:"cache"`
	MqttOptions    *options.MqttOptions    `json:"mqtt" mapstructure:"mqtt"`
	RedisOptions   *options.RedisOptions   `json:"redis" mapstructure:"redis"`
	AuthOptions    *options.AuthOptions    `json:"auth" mapstructure:"auth"`
	SessionOptions *options.SessionOptions `json:"session" mapstructure:"session"`
	Log            *log.Options            `json:"log" mapstructure:"log"`
}

var _ app.NamedFlagSetOptions = (*ServerOptions)(nil)

func NewServerOptions() *ServerOptions {
	o := &ServerOptions{
		HttpOptions:    options.NewHttpOptions(),
		RunPodOptions:  options.NewRunPodOptions(),
		CacheOptions:   options.NewCacheOptions(),
		MqttOptions:    options.NewMqttOptions(),
		RedisOptions:   options.NewRedisOptions(),
		AuthOptions:    options.NewAuthOptions(),
		SessionOptions: options.NewSessionOptions(),
		Log:            log.NewOptions(),
	}

	return o
}

func (o *ServerOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.HttpOptions.AddFlags(fss.FlagSet("http"))
	o.RunPodOptions.AddFlags(fss.FlagSet("runpod"))
	o.CacheOptions.AddFlags(fss.FlagSet("cache"))
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.RedisOptions.AddFlags(fss.FlagSet("redis"))
	o.AuthOptions.AddFlags(fss.FlagSet("auth"))
	o.SessionOptions.AddFlags(fss.FlagSet("session"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

// Complete pulls secrets that were not set by flag or config from the environment.
func (o *ServerOptions) Complete() error {
	o.RunPodOptions.Complete()
	o.AuthOptions.Complete()
	return nil
}

func (o *ServerOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.HttpOptions.Validate()...)
	errs = append(errs, o.RunPodOptions.Validate()...)
	errs = append(errs, o.CacheOptions.Validate()...)
	errs = append(errs, o.MqttOptions.Validate()...)
	errs = append(errs, o.RedisOptions.Validate()...)
	errs = append(errs, o.AuthOptions.Validate()...)
	errs = append(errs, o.SessionOptions.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}

func (o *ServerOptions) Config() (*botpod.Config, error) {
	return &botpod.Config{
		HttpOptions:    o.HttpOptions,
		RunPodOptions:  o.RunPodOptions,
		CacheOptions:   o.CacheOptions,
		MqttOptions:    o.MqttOptions,
		RedisOptions:   o.RedisOptions,
		AuthOptions:    o.AuthOptions,
		SessionOptions: o.SessionOptions,
	}, nil
}
