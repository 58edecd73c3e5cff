// Package notifier connects the lifecycle to the MQTT broker: outgoing intents
// and incoming session-disconnected events.
package notifier

import (
	"context"
	"encoding/json"

	"github.com/autopeer-io/botpod/internal/botpod/core"
	"github.com/autopeer-io/botpod/internal/botpod/core/model"
	pkgmqtt "github.com/autopeer-io/botpod/pkg/mqtt"
	"github.com/autopeer-io/botpod/pkg/mqtt/topic"
)

var _ core.Notifier = (*MQTTNotifier)(nil)

// MQTTNotifier publishes lifecycle intents to {root}/pod/intent/{podID}.
type MQTTNotifier struct {
	client pkgmqtt.Client
	topics *topic.TopicBuilder
}

// NewMQTTNotifier publishes through client. The client's connection is owned
// by the MQTT server.
func NewMQTTNotifier(client pkgmqtt.Client, topics *topic.TopicBuilder) *MQTTNotifier {
	return &MQTTNotifier{client: client, topics: topics}
}

func (n *MQTTNotifier) Notify(ctx context.Context, intent *model.Intent) error {
	payload, err := json.Marshal(intent)
	if err != nil {
		return err
	}

	return n.client.Publish(ctx, n.topics.PodIntent(intent.PodID), 1, false, payload)
}
