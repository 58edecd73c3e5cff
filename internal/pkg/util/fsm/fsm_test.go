package fsm

import (
	"context"
	"errors"
	"testing"

	"github.com/looplab/fsm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type phase string

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, Names(phase("a"), phase("b")))
	assert.Empty(t, Names[phase]())
}

func TestWrapEventSurfacesError(t *testing.T) {
	boom := errors.New("boom")
	f := fsm.NewFSM("idle",
		fsm.Events{{Name: "go", Src: []string{"idle"}, Dst: "busy"}},
		fsm.Callbacks{
			"enter_busy": WrapEvent(func(context.Context, *fsm.Event) error { return boom }),
		},
	)

	err := f.Event(context.Background(), "go")
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "busy", f.Current())
}
