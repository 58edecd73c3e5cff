package botpod

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/autopeer-io/botpod/pkg/log"
	"github.com/autopeer-io/botpod/pkg/mqtt"
	"github.com/autopeer-io/botpod/pkg/options"
)

func InitializeMQTTClient(opts *options.MqttOptions) (mqtt.Client, error) {
	cfg := opts.ToClientConfig()

	if cfg.ClientID == "" {
		hostname, _ := os.Hostname()
		cfg.ClientID = fmt.Sprintf("botpod-%s", hostname)
	}

	mqttclient, err := mqtt.NewClient(cfg)
	if err != nil {
		log.Error(err, "failed to new mqtt client")
		return nil, err
	}

	return mqttclient, nil
}

// InitializeRedisClient connects to Redis and fails fast when it is unreachable.
func InitializeRedisClient(opts *options.RedisOptions) (*redis.Client, error) {
	client := opts.NewClient()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		log.Error(err, "failed to connect to redis", "addr", opts.Addr)
		return nil, err
	}

	return client, nil
}
