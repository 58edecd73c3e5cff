package options

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
)

var _ IOptions = (*RedisOptions)(nil)

// RedisOptions configures the optional Redis backend shared by replicas.
// An empty Addr keeps the pod snapshot and the intent ledger in memory.
type RedisOptions struct {
	Addr     string `json:"addr" mapstructure:"addr"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	DB       int    `json:"db" mapstructure:"db"`

	// KeyPrefix namespaces every key written by botpod.
	KeyPrefix string `json:"key-prefix" mapstructure:"key-prefix"`

	// SnapshotTTL is how long a persisted pod list stays usable.
	SnapshotTTL time.Duration `json:"snapshot-ttl" mapstructure:"snapshot-ttl"`

	// IntentTTL bounds a pending intent key so a crashed replica cannot pin it.
	IntentTTL time.Duration `json:"intent-ttl" mapstructure:"intent-ttl"`
}

// NewRedisOptions creates RedisOptions with default values.
func NewRedisOptions() *RedisOptions {
	return &RedisOptions{
		KeyPrefix:   "botpod",
		SnapshotTTL: 10 * time.Minute,
		IntentTTL:   2 * time.Minute,
	}
}

// Enabled reports whether a Redis address is configured.
func (o *RedisOptions) Enabled() bool {
	return o != nil && o.Addr != ""
}

// Validate checks the address and TTLs when Redis is enabled.
func (o *RedisOptions) Validate() []error {
	if !o.Enabled() {
		return nil
	}

	errs := []error{}

	if err := ValidateAddress(o.Addr); err != nil {
		errs = append(errs, err)
	}
	if o.SnapshotTTL <= 0 || o.IntentTTL <= 0 {
		errs = append(errs, errors.New("--redis.snapshot-ttl and --redis.intent-ttl must be positive"))
	}

	return errs
}

// AddFlags adds flags for RedisOptions to the specified FlagSet.
func (o *RedisOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Addr, "redis.addr", o.Addr, "Redis address (host:port). Empty keeps state in memory.")
	fs.StringVar(&o.Username, "redis.username", o.Username, "Redis ACL username.")
	fs.StringVar(&o.Password, "redis.password", o.Password, "Redis password.")
	fs.IntVar(&o.DB, "redis.db", o.DB, "Redis database number.")
	fs.StringVar(&o.KeyPrefix, "redis.key-prefix", o.KeyPrefix, "Prefix of every key written to Redis.")
	fs.DurationVar(&o.SnapshotTTL, "redis.snapshot-ttl", o.SnapshotTTL, "Lifetime of the persisted pod list.")
	fs.DurationVar(&o.IntentTTL, "redis.intent-ttl", o.IntentTTL, "Upper bound of a pending intent key.")
}

// NewClient builds a go-redis client from the options.
func (o *RedisOptions) NewClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     o.Addr,
		Username: o.Username,
		Password: o.Password,
		DB:       o.DB,
	})
}
