package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/botpod/internal/botpod/core/model"
)

type fakeReader struct {
	updates chan []model.Pod
}

func (f *fakeReader) Pods(context.Context) ([]model.Pod, error) { return nil, nil }
func (f *fakeReader) Lookup(string) (model.Pod, bool, bool)     { return model.Pod{}, false, false }
func (f *fakeReader) Invalidate(...string)                      {}
func (f *fakeReader) Watch(string) func()                       { return func() {} }
func (f *fakeReader) Subscribe() (<-chan []model.Pod, func())   { return f.updates, func() {} }

func names(pods []model.Pod) any {
	out := make([]string, 0, len(pods))
	for _, p := range pods {
		out = append(out, p.Name)
	}
	return out
}

func receive(t *testing.T, conn *Connection) Message {
	t.Helper()
	select {
	case data, ok := <-conn.Send:
		require.True(t, ok, "connection closed")
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return Message{}
	}
}

func TestHubBroadcastsBots(t *testing.T) {
	hub := NewHub(&fakeReader{}, names)

	early := &Connection{Send: make(chan []byte, 4)}
	hub.Register(early)

	hub.BroadcastBots([]model.Pod{{Name: "livekit_alpha"}})

	msg := receive(t, early)
	assert.Equal(t, MsgBots, msg.Type)
	assert.JSONEq(t, `["livekit_alpha"]`, string(msg.Payload))

	// A late client gets the latest list on connect.
	late := &Connection{Send: make(chan []byte, 4)}
	hub.Register(late)
	assert.Equal(t, MsgBots, receive(t, late).Type)

	feed, sessions := hub.Clients()
	assert.Equal(t, 2, feed)
	assert.Equal(t, 0, sessions)
}

func TestHubNavigatesOnlyThatSession(t *testing.T) {
	hub := NewHub(&fakeReader{}, names)

	a := &Connection{SessionID: "s1", Send: make(chan []byte, 4)}
	b := &Connection{SessionID: "s2", Send: make(chan []byte, 4)}
	hub.Register(a)
	hub.Register(b)

	hub.Navigate("s1", "/")

	msg := receive(t, a)
	assert.Equal(t, MsgNavigate, msg.Type)
	assert.JSONEq(t, `{"target":"/"}`, string(msg.Payload))
	assert.Empty(t, b.Send)

	hub.Unregister(a)
	_, ok := <-a.Send
	assert.False(t, ok)

	// Unregistering twice must not close the channel again.
	hub.Unregister(a)
}

func TestHubFullBufferDropsMessage(t *testing.T) {
	hub := NewHub(&fakeReader{}, names)

	conn := &Connection{SessionID: "s1", Send: make(chan []byte, 1)}
	hub.Register(conn)

	hub.Navigate("s1", "/a")
	hub.Navigate("s1", "/b")

	var nav NavigatePayload
	require.NoError(t, json.Unmarshal(receive(t, conn).Payload, &nav))
	assert.Equal(t, "/a", nav.Target)
	assert.Empty(t, conn.Send)
}

func TestHubStartForwardsUpdatesAndClosesOnStop(t *testing.T) {
	reader := &fakeReader{updates: make(chan []model.Pod, 1)}
	hub := NewHub(reader, names)

	conn := &Connection{Send: make(chan []byte, 4)}
	hub.Register(conn)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Start(ctx) }()

	reader.updates <- []model.Pod{{Name: "livekit_beta"}}
	msg := receive(t, conn)
	assert.JSONEq(t, `["livekit_beta"]`, string(msg.Payload))

	cancel()
	require.NoError(t, <-done)

	_, ok := <-conn.Send
	assert.False(t, ok)
}
