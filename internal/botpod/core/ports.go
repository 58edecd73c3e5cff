package core

import (
	"context"

	"github.com/autopeer-io/botpod/internal/botpod/core/model"
)

// ListOptions narrows a pod listing.
type ListOptions struct {
	// ComputeType is forwarded verbatim as a query constraint.
	ComputeType string
}

// GetOptions selects optional sections of a pod detail.
type GetOptions struct {
	IncludeMachine       bool
	IncludeNetworkVolume bool
	IncludeSavingsPlans  bool
}

// Gateway is the remote pod-control API. Implementations hold no state and never retry.
type Gateway interface {
	List(ctx context.Context, opts ListOptions) ([]model.Pod, error)
	Get(ctx context.Context, id string, opts GetOptions) (*model.Pod, error)
	Create(ctx context.Context, req *model.CreatePodRequest) (*model.Pod, error)
	Start(ctx context.Context, id string) (*model.Ack, error)
	Stop(ctx context.Context, id string) (*model.Ack, error)
}

// PodReader is the view of the pod status cache used by the orchestrator.
type PodReader interface {
	// Pods returns the last known pod list without waiting on a refresh.
	Pods(ctx context.Context) ([]model.Pod, error)

	// Lookup returns the last known snapshot of id. fresh is false while a
	// mutation-triggered refresh of that pod is still outstanding.
	Lookup(id string) (pod model.Pod, fresh bool, ok bool)

	// Invalidate marks the given pods and the list stale and refreshes them now.
	Invalidate(ids ...string)

	// Watch refreshes the detail of id on the short cadence until release is called.
	Watch(id string) (release func())

	// Subscribe delivers every refreshed list until cancel is called.
	Subscribe() (updates <-chan []model.Pod, cancel func())
}

// SnapshotStore persists the last known pod list outside the process.
type SnapshotStore interface {
	Save(ctx context.Context, pods []model.Pod) error
	Load(ctx context.Context) ([]model.Pod, error)
}

// IntentLedger records in-flight intents, at most one per pod id and kind.
type IntentLedger interface {
	// Acquire marks an intent pending. It returns false when one is already pending.
	Acquire(ctx context.Context, podID string, kind model.IntentKind) (bool, error)

	// Release clears the pending mark.
	Release(ctx context.Context, podID string, kind model.IntentKind)

	// Pending reports whether an intent of kind is in flight for podID.
	Pending(ctx context.Context, podID string, kind model.IntentKind) bool
}

// EventSource delivers session-disconnected events for a pod.
type EventSource interface {
	// SubscribeDisconnect calls fn when the room bound to podID reports a disconnect.
	// The returned release func must be called on every exit path and is safe to call twice.
	SubscribeDisconnect(ctx context.Context, podID string, fn func()) (release func(), err error)
}

// Notifier publishes lifecycle intents to observers.
type Notifier interface {
	Notify(ctx context.Context, intent *model.Intent) error
}

// Navigator sends a session view back to a target location.
type Navigator interface {
	Navigate(sessionID, target string)
}
