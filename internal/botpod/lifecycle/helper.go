package lifecycle

import (
	"errors"

	"github.com/looplab/fsm"
)

// isFsmRealError checks if an error from the FSM is a real failure or a
// normal flow control signal. InvalidEventError means the pod is not in a
// state the intent applies to, which is a no-op as well.
func isFsmRealError(err error) bool {
	if err == nil {
		return false
	}

	var noTransition fsm.NoTransitionError
	var canceled fsm.CanceledError
	var invalid fsm.InvalidEventError

	if errors.As(err, &noTransition) || errors.As(err, &canceled) || errors.As(err, &invalid) {
		return false
	}

	return true
}
