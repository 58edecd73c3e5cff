package lifecycle

import (
	"context"

	"github.com/looplab/fsm"

	"github.com/autopeer-io/botpod/internal/botpod/core"
	"github.com/autopeer-io/botpod/internal/botpod/core/model"
	fsmutil "github.com/autopeer-io/botpod/internal/pkg/util/fsm"
)

const (
	// EventWakeUp asks the gateway to start a stopped pod.
	EventWakeUp = "wake_up"
	// EventShutdown asks the gateway to stop a pod that is starting or ready.
	EventShutdown = "shutdown"
)

// PodMachine runs one intent against a pod.
//
// The machine is built from the derived state of the pod for every intent and
// thrown away afterwards. Pod state is never stored here, only re-derived from
// the latest cache snapshot. Event args are the pod id and whether the
// snapshot the state was derived from is fresh.
type PodMachine struct {
	*fsm.FSM

	gw  core.Gateway
	ack *model.Ack
}

// NewPodMachine creates a machine positioned at state.
func NewPodMachine(state model.State, gw core.Gateway) *PodMachine {
	m := &PodMachine{gw: gw}

	events := fsm.Events{
		{Name: EventWakeUp, Src: fsmutil.Names(model.StateStopped), Dst: string(model.StateStarting)},
		{
			Name: EventShutdown,
			Src:  fsmutil.Names(model.StateStopped, model.StateStarting, model.StateReady),
			Dst:  string(model.StateStopping),
		},
	}

	callbacks := fsm.Callbacks{
		// Guards
		"before_" + EventShutdown: fsmutil.WrapEvent(m.GuardShutdownRequired),

		// Gateway calls
		"enter_" + string(model.StateStarting): fsmutil.WrapEvent(m.ActionEnterStarting),
		"enter_" + string(model.StateStopping): fsmutil.WrapEvent(m.ActionEnterStopping),
	}

	m.FSM = fsm.NewFSM(string(state), events, callbacks)
	return m
}

// Ack returns the acknowledgment of the gateway call, if one was made.
func (m *PodMachine) Ack() *model.Ack {
	return m.ack
}

// GuardShutdownRequired cancels a shutdown of a pod that a fresh snapshot
// shows stopped. A stale stopped snapshot may predate a start that just went
// out, so the stop is sent anyway.
func (m *PodMachine) GuardShutdownRequired(ctx context.Context, e *fsm.Event) error {
	_, fresh := eventArgs(e)
	if e.Src == string(model.StateStopped) && fresh {
		e.Cancel(fsm.NoTransitionError{})
	}
	return nil
}

// ActionEnterStarting sends the start call.
func (m *PodMachine) ActionEnterStarting(ctx context.Context, e *fsm.Event) error {
	podID, _ := eventArgs(e)
	ack, err := m.gw.Start(ctx, podID)
	if err != nil {
		return err
	}
	m.ack = ack
	return nil
}

// ActionEnterStopping sends the stop call.
func (m *PodMachine) ActionEnterStopping(ctx context.Context, e *fsm.Event) error {
	podID, _ := eventArgs(e)
	ack, err := m.gw.Stop(ctx, podID)
	if err != nil {
		return err
	}
	m.ack = ack
	return nil
}

func eventArgs(e *fsm.Event) (string, bool) {
	var (
		podID string
		fresh bool
	)
	if len(e.Args) > 0 {
		podID, _ = e.Args[0].(string)
	}
	if len(e.Args) > 1 {
		fresh, _ = e.Args[1].(bool)
	}
	return podID, fresh
}
