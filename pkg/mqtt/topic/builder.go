package topic

import (
	"fmt"
)

// Topic segments shared with the conferencing side. Changing them breaks existing publishers.
const (
	// SuffixSessionDisconnected carries room-disconnected events for a pod-backed session.
	// Structure: {root}/session/disconnected/{podID}
	SuffixSessionDisconnected = "session/disconnected"

	// SuffixPodIntent carries lifecycle intents issued by botpod.
	// Structure: {root}/pod/intent/{podID}
	SuffixPodIntent = "pod/intent"
)

// TopicBuilder constructs topic strings under a fixed root namespace.
type TopicBuilder struct {
	// root is the base namespace for all topics (e.g., "botpod/v1").
	root string
}

// NewTopicBuilder creates a new instance of TopicBuilder with the specified root namespace.
func NewTopicBuilder(root string) *TopicBuilder {
	return &TopicBuilder{root: root}
}

// SessionDisconnected returns the topic on which the room of podID reports a disconnect.
func (b *TopicBuilder) SessionDisconnected(podID string) string {
	return b.build(SuffixSessionDisconnected, podID)
}

// SessionDisconnectedWildcard matches disconnect events of every pod.
func (b *TopicBuilder) SessionDisconnectedWildcard() string {
	return b.build(SuffixSessionDisconnected, Wildcard)
}

// PodIntent returns the topic on which lifecycle intents for podID are published.
func (b *TopicBuilder) PodIntent(podID string) string {
	return b.build(SuffixPodIntent, podID)
}

// PodIDFrom extracts the trailing pod id of a topic built by this builder.
func (b *TopicBuilder) PodIDFrom(topic string) string {
	for i := len(topic) - 1; i >= 0; i-- {
		if topic[i] == '/' {
			return topic[i+1:]
		}
	}
	return topic
}

// build constructs {root}/{suffix}/{identifier}.
func (b *TopicBuilder) build(suffix, id string) string {
	return fmt.Sprintf("%s/%s/%s", b.root, suffix, id)
}
