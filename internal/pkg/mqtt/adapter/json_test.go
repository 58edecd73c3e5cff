package adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type event struct {
	Room string `json:"room"`
}

func TestDecode(t *testing.T) {
	msg, err := Decode[event]([]byte(`{"room":"r1"}`))
	require.NoError(t, err)
	assert.Equal(t, "r1", msg.Room)

	msg, err = Decode[event](nil)
	require.NoError(t, err)
	assert.Equal(t, event{}, *msg)

	_, err = Decode[event]([]byte("{"))
	assert.Error(t, err)
}

func TestJSONHandler(t *testing.T) {
	var got []string
	h := JSONHandler(func(_ context.Context, topic string, msg *event) error {
		got = append(got, topic+":"+msg.Room)
		return nil
	})

	h(context.Background(), "a/b", []byte(`{"room":"r1"}`))
	h(context.Background(), "a/b", []byte("not json"))
	h(context.Background(), "a/c", nil)

	assert.Equal(t, []string{"a/b:r1", "a/c:"}, got)
}
