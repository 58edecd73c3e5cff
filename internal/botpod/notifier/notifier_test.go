package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/botpod/internal/botpod/core/model"
	pkgmqtt "github.com/autopeer-io/botpod/pkg/mqtt"
	"github.com/autopeer-io/botpod/pkg/mqtt/topic"
)

type published struct {
	topic   string
	payload []byte
}

type fakeClient struct {
	mu           sync.Mutex
	published    []published
	handlers     map[string]pkgmqtt.MessageHandler
	subscribes   int
	subscribeErr error
	unsubscribed []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{handlers: make(map[string]pkgmqtt.MessageHandler)}
}

func (c *fakeClient) Start(context.Context) error           { return nil }
func (c *fakeClient) Disconnect(context.Context)            {}
func (c *fakeClient) AwaitConnection(context.Context) error { return nil }
func (c *fakeClient) IsConnected() bool                     { return true }

func (c *fakeClient) Publish(_ context.Context, t string, _ int, _ bool, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, published{topic: t, payload: payload})
	return nil
}

func (c *fakeClient) Subscribe(_ context.Context, t string, _ int, h pkgmqtt.MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribes++
	if c.subscribeErr != nil {
		return c.subscribeErr
	}
	c.handlers[t] = h
	return nil
}

func (c *fakeClient) Unsubscribe(_ context.Context, t string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, t)
	c.unsubscribed = append(c.unsubscribed, t)
	return nil
}

// deliver hands payload to every handler whose filter matches t.
func (c *fakeClient) deliver(t string, payload []byte) {
	c.mu.Lock()
	var matched []pkgmqtt.MessageHandler
	for filter, h := range c.handlers {
		if filterMatches(filter, t) {
			matched = append(matched, h)
		}
	}
	c.mu.Unlock()

	for _, h := range matched {
		h(context.Background(), t, payload)
	}
}

func (c *fakeClient) subscriptions() (int, []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	filters := make([]string, 0, len(c.handlers))
	for f := range c.handlers {
		filters = append(filters, f)
	}
	return c.subscribes, filters
}

func filterMatches(filter, t string) bool {
	fp, tp := strings.Split(filter, "/"), strings.Split(t, "/")
	if len(fp) != len(tp) {
		return false
	}
	for i := range fp {
		if fp[i] != topic.Wildcard && fp[i] != tp[i] {
			return false
		}
	}
	return true
}

func TestMQTTNotifierPublishesIntent(t *testing.T) {
	client := newFakeClient()
	n := NewMQTTNotifier(client, topic.NewTopicBuilder("botpod/v1"))

	err := n.Notify(context.Background(), &model.Intent{PodID: "p1", Kind: model.IntentWakeUp, Outcome: "dispatched"})
	require.NoError(t, err)

	require.Len(t, client.published, 1)
	assert.Equal(t, "botpod/v1/pod/intent/p1", client.published[0].topic)

	var got model.Intent
	require.NoError(t, json.Unmarshal(client.published[0].payload, &got))
	assert.Equal(t, model.IntentWakeUp, got.Kind)
	assert.Equal(t, "dispatched", got.Outcome)
}

func TestEventSourceHoldsOneWildcardSubscription(t *testing.T) {
	client := newFakeClient()
	topics := topic.NewTopicBuilder("botpod/v1")
	src := NewMQTTEventSource(client, topics)

	var fired atomic.Int32
	release1, err := src.SubscribeDisconnect(context.Background(), "p1", func() { fired.Add(1) })
	require.NoError(t, err)
	release2, err := src.SubscribeDisconnect(context.Background(), "p1", func() { fired.Add(1) })
	require.NoError(t, err)
	release3, err := src.SubscribeDisconnect(context.Background(), "p2", func() {})
	require.NoError(t, err)
	defer release3()

	assert.Equal(t, 2, src.Subscribed("p1"))
	subscribes, filters := client.subscriptions()
	assert.Equal(t, 1, subscribes)
	assert.Equal(t, []string{"botpod/v1/session/disconnected/+"}, filters)

	client.deliver(topics.SessionDisconnected("p1"), []byte(`{"room":"r1"}`))
	require.Eventually(t, func() bool { return fired.Load() == 2 }, time.Second, 5*time.Millisecond)

	release1()
	release1()
	assert.Equal(t, 1, src.Subscribed("p1"))

	release2()
	assert.Equal(t, 0, src.Subscribed("p1"))
	assert.Empty(t, client.unsubscribed)
}

func TestEventSourceReleaseThenResubscribeKeepsDelivery(t *testing.T) {
	client := newFakeClient()
	topics := topic.NewTopicBuilder("botpod/v1")
	src := NewMQTTEventSource(client, topics)

	release, err := src.SubscribeDisconnect(context.Background(), "p1", func() {})
	require.NoError(t, err)
	release()

	var fired atomic.Int32
	release, err = src.SubscribeDisconnect(context.Background(), "p1", func() { fired.Add(1) })
	require.NoError(t, err)
	defer release()

	client.deliver(topics.SessionDisconnected("p1"), nil)
	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, client.unsubscribed)
}

func TestEventSourceRetriesFailedSubscribe(t *testing.T) {
	client := newFakeClient()
	client.subscribeErr = errors.New("client not started")
	topics := topic.NewTopicBuilder("botpod/v1")
	src := NewMQTTEventSource(client, topics)

	release1, err := src.SubscribeDisconnect(context.Background(), "p1", func() {})
	require.NoError(t, err)
	defer release1()

	client.mu.Lock()
	client.subscribeErr = nil
	client.mu.Unlock()

	release2, err := src.SubscribeDisconnect(context.Background(), "p2", func() {})
	require.NoError(t, err)
	defer release2()

	subscribes, filters := client.subscriptions()
	assert.Equal(t, 2, subscribes)
	assert.Len(t, filters, 1)
}

func TestEventSourceIgnoresOtherPods(t *testing.T) {
	client := newFakeClient()
	topics := topic.NewTopicBuilder("botpod/v1")
	src := NewMQTTEventSource(client, topics)

	var fired atomic.Int32
	release, err := src.SubscribeDisconnect(context.Background(), "p1", func() { fired.Add(1) })
	require.NoError(t, err)
	defer release()

	client.deliver(topics.SessionDisconnected("p2"), nil)
	assert.Never(t, func() bool { return fired.Load() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}
