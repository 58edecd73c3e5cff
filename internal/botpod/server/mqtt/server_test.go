package mqtt

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/botpod/internal/pkg/metrics"
	pkgmqtt "github.com/autopeer-io/botpod/pkg/mqtt"
)

type fakeClient struct {
	startErr     error
	awaitErr     error
	disconnected atomic.Bool
}

func (c *fakeClient) Start(context.Context) error               { return c.startErr }
func (c *fakeClient) Disconnect(context.Context)                { c.disconnected.Store(true) }
func (c *fakeClient) AwaitConnection(context.Context) error     { return c.awaitErr }
func (c *fakeClient) IsConnected() bool                         { return true }
func (c *fakeClient) Unsubscribe(context.Context, string) error { return nil }

func (c *fakeClient) Publish(context.Context, string, int, bool, []byte) error {
	return nil
}

func (c *fakeClient) Subscribe(context.Context, string, int, pkgmqtt.MessageHandler) error {
	return nil
}

func TestServerConnectsAndDisconnectsOnStop(t *testing.T) {
	client := &fakeClient{}
	srv := NewServer(client)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.MQTTConnectivityStatus) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.True(t, client.disconnected.Load())
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.MQTTConnectivityStatus))
}

func TestServerStartError(t *testing.T) {
	srv := NewServer(&fakeClient{startErr: errors.New("bad broker url")})
	assert.EqualError(t, srv.Start(context.Background()), "bad broker url")
}

func TestServerAwaitErrorIsReturned(t *testing.T) {
	client := &fakeClient{awaitErr: errors.New("connect refused")}
	err := NewServer(client).Start(context.Background())
	assert.EqualError(t, err, "connect refused")
	assert.True(t, client.disconnected.Load())
}
