package botpod

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/botpod/pkg/options"
)

func newTestConfig() *Config {
	httpOpts := options.NewHttpOptions()
	httpOpts.Addr = "127.0.0.1:0"

	return &Config{
		HttpOptions:    httpOpts,
		RunPodOptions:  options.NewRunPodOptions(),
		CacheOptions:   options.NewCacheOptions(),
		MqttOptions:    options.NewMqttOptions(),
		RedisOptions:   options.NewRedisOptions(),
		AuthOptions:    options.NewAuthOptions(),
		SessionOptions: options.NewSessionOptions(),
	}
}

func TestServerRunsWithoutOptionalBackends(t *testing.T) {
	srv, err := newTestConfig().NewBotpodServer()
	require.NoError(t, err)
	assert.Nil(t, srv.redis)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestUnreachableRedisFailsFast(t *testing.T) {
	cfg := newTestConfig()
	cfg.RedisOptions.Addr = "127.0.0.1:1"

	_, err := cfg.NewBotpodServer()
	assert.ErrorContains(t, err, "failed to init redis")
}

func TestInvalidBrokerFailsFast(t *testing.T) {
	cfg := newTestConfig()
	cfg.MqttOptions.Broker = "://bad"

	_, err := cfg.NewBotpodServer()
	assert.ErrorContains(t, err, "failed to init mqtt client")
}
