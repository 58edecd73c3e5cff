package model

// State is the lifecycle state of a pod as derived by the orchestrator.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateReady    State = "ready"
	StateStopping State = "stopping"
)

// IntentKind is the kind of a lifecycle intent.
type IntentKind string

const (
	IntentWakeUp   IntentKind = "wake_up"
	IntentShutdown IntentKind = "shutdown"
)

// Pending reports which intent kinds are in flight for one pod.
type Pending struct {
	WakeUp   bool `json:"wakeUp"`
	Shutdown bool `json:"shutdown"`
}

// Derive computes the state of a pod from its latest snapshot and in-flight intents.
// An in-flight shutdown wins over any observed status. An in-flight wake-up on a pod
// still observed stopped is reported as starting.
func Derive(p Pod, pending Pending) State {
	if pending.Shutdown {
		return StateStopping
	}

	switch {
	case IsStopped(p.DesiredStatus):
		if pending.WakeUp {
			return StateStarting
		}
		return StateStopped
	case Ready(p):
		return StateReady
	default:
		return StateStarting
	}
}

// Intent is a lifecycle request published to observers.
type Intent struct {
	PodID   string     `json:"podId"`
	Kind    IntentKind `json:"kind"`
	Outcome string     `json:"outcome"`
	Error   string     `json:"error,omitempty"`
}
