// Package lifecycle turns wake-up and shutdown intents into gateway calls.
package lifecycle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/autopeer-io/botpod/internal/botpod/core"
	"github.com/autopeer-io/botpod/internal/botpod/core/model"
	"github.com/autopeer-io/botpod/internal/pkg/metrics"
	"github.com/autopeer-io/botpod/pkg/log"
)

// Outcome tells the caller what an intent resulted in.
type Outcome string

const (
	// OutcomeDispatched means the gateway call was made and succeeded.
	OutcomeDispatched Outcome = "dispatched"
	// OutcomeCoalesced means an intent of the same kind was already in flight.
	OutcomeCoalesced Outcome = "coalesced"
	// OutcomeNoop means the pod is already where the intent would take it.
	OutcomeNoop Outcome = "noop"
	// OutcomeFailed means the gateway call failed. The intent can be retried.
	OutcomeFailed Outcome = "failed"
)

// Config holds the orchestrator collaborators and limits.
type Config struct {
	Gateway  core.Gateway
	Cache    core.PodReader
	Ledger   core.IntentLedger
	Notifier core.Notifier

	// WatchLimit caps how long a woken pod is watched before giving up on readiness.
	WatchLimit time.Duration
	// BestEffortTimeout bounds a fire-and-forget shutdown.
	BestEffortTimeout time.Duration
}

// Orchestrator is the only component that sends start and stop calls.
//
// At most one intent per pod and kind is in flight. A wake-up and a shutdown
// of the same pod are not serialized against each other.
type Orchestrator struct {
	gw       core.Gateway
	cache    core.PodReader
	ledger   core.IntentLedger
	notifier core.Notifier

	watchLimit        time.Duration
	bestEffortTimeout time.Duration

	logger log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	watches map[string]*settleWatch
	wg      sync.WaitGroup
}

type settleWatch struct {
	cancel context.CancelFunc
}

// New creates an orchestrator. A nil Ledger or Notifier gets the in-memory
// ledger or no notifications.
func New(cfg Config) *Orchestrator {
	if cfg.Ledger == nil {
		cfg.Ledger = NewMemoryLedger()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = core.NopNotifier{}
	}
	if cfg.WatchLimit <= 0 {
		cfg.WatchLimit = 10 * time.Minute
	}
	if cfg.BestEffortTimeout <= 0 {
		cfg.BestEffortTimeout = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		gw:                cfg.Gateway,
		cache:             cfg.Cache,
		ledger:            cfg.Ledger,
		notifier:          cfg.Notifier,
		watchLimit:        cfg.WatchLimit,
		bestEffortTimeout: cfg.BestEffortTimeout,
		logger:            log.WithName("lifecycle"),
		ctx:               ctx,
		cancel:            cancel,
		watches:           make(map[string]*settleWatch),
	}
}

// WakeUp starts a stopped pod. Gateway errors are returned unchanged.
func (o *Orchestrator) WakeUp(ctx context.Context, podID string) (Outcome, error) {
	return o.run(ctx, podID, model.IntentWakeUp, EventWakeUp)
}

// Shutdown stops a starting or ready pod. Stopping a pod that is already
// stopped succeeds with OutcomeNoop.
func (o *Orchestrator) Shutdown(ctx context.Context, podID string) (Outcome, error) {
	return o.run(ctx, podID, model.IntentShutdown, EventShutdown)
}

// ShutdownBestEffort sends a shutdown without waiting and without reporting
// the result. Failures are logged at debug level only.
func (o *Orchestrator) ShutdownBestEffort(podID string) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()

		ctx, cancel := context.WithTimeout(o.ctx, o.bestEffortTimeout)
		defer cancel()

		if _, err := o.Shutdown(ctx, podID); err != nil {
			o.logger.Debug("Best-effort shutdown failed", "podID", podID, "error", err.Error())
		}
	}()
}

// State derives the current state of podID from the cache and pending intents.
// A pod the cache has never seen is reported stopped.
func (o *Orchestrator) State(podID string) model.State {
	pod, _, _ := o.cache.Lookup(podID)
	return model.Derive(pod, o.pendingFor(podID))
}

// Pending reports whether an intent of kind is in flight for podID.
func (o *Orchestrator) Pending(podID string, kind model.IntentKind) bool {
	return o.ledger.Pending(o.ctx, podID, kind)
}

// PendingFor returns both pending flags of podID.
func (o *Orchestrator) PendingFor(podID string) model.Pending {
	return o.pendingFor(podID)
}

// Close stops every settle watch and waits for best-effort shutdowns.
func (o *Orchestrator) Close() {
	o.cancel()
	o.wg.Wait()
}

func (o *Orchestrator) pendingFor(podID string) model.Pending {
	return model.Pending{
		WakeUp:   o.Pending(podID, model.IntentWakeUp),
		Shutdown: o.Pending(podID, model.IntentShutdown),
	}
}

func (o *Orchestrator) run(ctx context.Context, podID string, kind model.IntentKind, event string) (Outcome, error) {
	logger := o.logger.WithValues("podID", podID, "intent", kind)

	if podID == "" {
		return OutcomeFailed, errors.Join(core.ErrInvalidRequest, errors.New("pod id is required"))
	}

	acquired, err := o.ledger.Acquire(ctx, podID, kind)
	if err != nil {
		o.record(podID, kind, OutcomeFailed, err)
		return OutcomeFailed, err
	}
	if !acquired {
		logger.Debug("Intent already in flight, coalescing")
		o.record(podID, kind, OutcomeCoalesced, nil)
		return OutcomeCoalesced, nil
	}
	defer o.ledger.Release(ctx, podID, kind)

	pod, fresh, known := o.cache.Lookup(podID)
	if !known {
		pod = model.Pod{ID: podID}
	}

	pending := model.Pending{}
	switch kind {
	case model.IntentWakeUp:
		pending.Shutdown = o.Pending(podID, model.IntentShutdown)
	case model.IntentShutdown:
		pending.WakeUp = o.Pending(podID, model.IntentWakeUp)
	}
	state := model.Derive(pod, pending)

	m := NewPodMachine(state, o.gw)
	err = m.Event(ctx, event, podID, fresh && known)
	if isFsmRealError(err) && kind == model.IntentShutdown && known && model.IsStopped(pod.DesiredStatus) && core.IsUpstream(err) {
		// Stop is idempotent for callers: rejecting a stop of a stopped pod is not a failure.
		logger.Info("Stop rejected for a pod last seen stopped, treating as done", "reason", err.Error())
		o.cache.Invalidate(podID)
		o.record(podID, kind, OutcomeNoop, nil)
		return OutcomeNoop, nil
	}
	if isFsmRealError(err) {
		logger.Error(err, "Intent failed", "state", state)
		o.record(podID, kind, OutcomeFailed, err)
		return OutcomeFailed, err
	}
	if err != nil {
		logger.Debug("Intent does not apply, nothing to do", "state", state, "reason", err.Error())
		o.record(podID, kind, OutcomeNoop, nil)
		return OutcomeNoop, nil
	}

	logger.Info("Intent dispatched", "from", state, "to", m.Current())
	o.cache.Invalidate(podID)

	switch kind {
	case model.IntentWakeUp:
		o.watchUntilSettled(podID)
	case model.IntentShutdown:
		o.stopWatching(podID)
	}

	o.record(podID, kind, OutcomeDispatched, nil)
	return OutcomeDispatched, nil
}

// watchUntilSettled keeps the pod on the short refresh cadence until a fresh
// snapshot shows it ready or stopped, a shutdown is dispatched, or the watch
// limit passes.
func (o *Orchestrator) watchUntilSettled(podID string) {
	ctx, cancel := context.WithTimeout(o.ctx, o.watchLimit)
	w := &settleWatch{cancel: cancel}

	o.mu.Lock()
	if prev, ok := o.watches[podID]; ok {
		prev.cancel()
	}
	o.watches[podID] = w
	o.mu.Unlock()

	release := o.cache.Watch(podID)
	updates, unsubscribe := o.cache.Subscribe()

	go func() {
		defer func() {
			unsubscribe()
			release()
			cancel()

			o.mu.Lock()
			if o.watches[podID] == w {
				delete(o.watches, podID)
			}
			o.mu.Unlock()
		}()

		for {
			select {
			case <-ctx.Done():
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					o.logger.Warn("Pod did not become ready within the watch limit", "podID", podID, "limit", o.watchLimit)
				}
				return
			case _, ok := <-updates:
				if !ok {
					return
				}
				pod, fresh, known := o.cache.Lookup(podID)
				if !known || !fresh {
					continue
				}
				switch {
				case model.Ready(pod):
					o.logger.Info("Pod is ready", "podID", podID)
					return
				case model.IsStopped(pod.DesiredStatus):
					o.logger.Warn("Pod stopped before becoming ready", "podID", podID, "status", pod.DesiredStatus)
					return
				}
			}
		}
	}()
}

func (o *Orchestrator) stopWatching(podID string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if w, ok := o.watches[podID]; ok {
		w.cancel()
	}
}

// Watching reports whether podID is watched until settled.
func (o *Orchestrator) Watching(podID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.watches[podID]
	return ok
}

func (o *Orchestrator) record(podID string, kind model.IntentKind, outcome Outcome, err error) {
	metrics.Intents.WithLabelValues(string(kind), string(outcome)).Inc()

	intent := &model.Intent{PodID: podID, Kind: kind, Outcome: string(outcome)}
	if err != nil {
		intent.Error = err.Error()
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := o.notifier.Notify(o.ctx, intent); err != nil {
			o.logger.Debug("Failed to publish intent", "podID", podID, "error", err.Error())
		}
	}()
}
