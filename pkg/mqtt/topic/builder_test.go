package topic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopicBuilder(t *testing.T) {
	b := NewTopicBuilder("botpod/v1")

	assert.Equal(t, "botpod/v1/session/disconnected/p1", b.SessionDisconnected("p1"))
	assert.Equal(t, "botpod/v1/session/disconnected/+", b.SessionDisconnectedWildcard())
	assert.Equal(t, "botpod/v1/pod/intent/p1", b.PodIntent("p1"))
	assert.Equal(t, "p1", b.PodIDFrom(b.PodIntent("p1")))
	assert.Equal(t, "p2", b.PodIDFrom(b.SessionDisconnected("p2")))
	assert.Equal(t, Wildcard, b.PodIDFrom(b.SessionDisconnectedWildcard()))
}
