package notifier

import (
	"context"
	"sync"

	"github.com/autopeer-io/botpod/internal/botpod/core"
	"github.com/autopeer-io/botpod/internal/pkg/mqtt/adapter"
	"github.com/autopeer-io/botpod/pkg/log"
	pkgmqtt "github.com/autopeer-io/botpod/pkg/mqtt"
	"github.com/autopeer-io/botpod/pkg/mqtt/topic"
)

var _ core.EventSource = (*MQTTEventSource)(nil)

// DisconnectEvent is the payload published by the conferencing side when a
// room bound to a pod disconnects. Every field is optional.
type DisconnectEvent struct {
	PodID  string `json:"podId,omitempty"`
	Room   string `json:"room,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// MQTTEventSource holds one subscription on {root}/session/disconnected/+ and
// dispatches each event to the handlers registered for the pod in the topic.
// Handlers come and go with sessions; the broker subscription stays.
type MQTTEventSource struct {
	client pkgmqtt.Client
	topics *topic.TopicBuilder
	logger log.Logger

	subMu      sync.Mutex
	subscribed bool

	mu     sync.Mutex
	pods   map[string]map[uint64]func()
	nextID uint64
}

func NewMQTTEventSource(client pkgmqtt.Client, topics *topic.TopicBuilder) *MQTTEventSource {
	return &MQTTEventSource{
		client: client,
		topics: topics,
		logger: log.WithName("events"),
		pods:   make(map[string]map[uint64]func()),
	}
}

// SubscribeDisconnect registers fn for disconnects of podID. The first call
// subscribes to the wildcard filter. A failed SUBSCRIBE is only logged and is
// retried by the next call.
func (s *MQTTEventSource) SubscribeDisconnect(ctx context.Context, podID string, fn func()) (func(), error) {
	s.mu.Lock()
	handlers, ok := s.pods[podID]
	if !ok {
		handlers = make(map[uint64]func())
		s.pods[podID] = handlers
	}
	id := s.nextID
	s.nextID++
	handlers[id] = fn
	s.mu.Unlock()

	s.ensureSubscribed(ctx)

	var once sync.Once
	return func() {
		once.Do(func() { s.release(podID, id) })
	}, nil
}

// Subscribed reports how many handlers are registered for podID.
func (s *MQTTEventSource) Subscribed(podID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pods[podID])
}

func (s *MQTTEventSource) ensureSubscribed(ctx context.Context) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.subscribed {
		return
	}

	t := s.topics.SessionDisconnectedWildcard()
	if err := s.client.Subscribe(ctx, t, 1, adapter.JSONHandler(s.handleDisconnect)); err != nil {
		s.logger.Warn("Disconnect subscription not confirmed yet", "topic", t, "error", err.Error())
		return
	}
	s.subscribed = true
}

func (s *MQTTEventSource) release(podID string, id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	handlers := s.pods[podID]
	delete(handlers, id)
	if len(handlers) == 0 {
		delete(s.pods, podID)
	}
}

func (s *MQTTEventSource) handleDisconnect(ctx context.Context, t string, ev *DisconnectEvent) error {
	podID := s.topics.PodIDFrom(t)
	if podID == "" || podID == topic.Wildcard {
		podID = ev.PodID
	}

	s.mu.Lock()
	fns := make([]func(), 0, len(s.pods[podID]))
	for _, fn := range s.pods[podID] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	if len(fns) == 0 {
		s.logger.Debug("Disconnect for a pod without open sessions", "podID", podID, "room", ev.Room)
		return nil
	}
	s.logger.Info("Session disconnected", "podID", podID, "room", ev.Room, "reason", ev.Reason, "sessions", len(fns))

	// Handlers wait for a gateway call; the client's router must not.
	for _, fn := range fns {
		go fn()
	}
	return nil
}
