// Package session ties conferencing sessions to the pods they keep running.
package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/autopeer-io/botpod/internal/botpod/core"
	"github.com/autopeer-io/botpod/internal/botpod/core/model"
	"github.com/autopeer-io/botpod/internal/botpod/lifecycle"
	"github.com/autopeer-io/botpod/internal/botpod/registry"
	"github.com/autopeer-io/botpod/internal/pkg/metrics"
	"github.com/autopeer-io/botpod/pkg/log"
	"github.com/autopeer-io/botpod/pkg/options"
)

// retention is how long an exited session stays readable.
const retention = 5 * time.Minute

// Orchestrator is the part of the lifecycle orchestrator a session needs.
type Orchestrator interface {
	Shutdown(ctx context.Context, podID string) (lifecycle.Outcome, error)
	ShutdownBestEffort(podID string)
}

var _ Orchestrator = (*lifecycle.Orchestrator)(nil)

// Binding identifies the pod a new session is bound to. Both ids may be empty
// for a session that is not pod-backed.
type Binding struct {
	PodID   string `json:"podId,omitempty"`
	BotName string `json:"botName,omitempty"`
	Room    string `json:"room,omitempty"`
}

// Coordinator makes sure a pod-backed session issues at most one shutdown,
// whichever exit signal arrives first.
type Coordinator struct {
	orch     Orchestrator
	pods     core.PodReader
	registry *registry.Registry
	events   core.EventSource
	nav      core.Navigator

	navigationDelay time.Duration
	selectionPath   string

	logger log.Logger

	mu       sync.RWMutex
	sessions map[string]*entry
	timers   map[*time.Timer]struct{}
	closed   bool
}

type entry struct {
	mu      sync.Mutex
	session model.Session
	exited  atomic.Bool
	release func()
}

// hold keeps release until the session exits. A session that exited while
// subscribing gives it back at once.
func (e *entry) hold(release func()) {
	e.mu.Lock()
	if !e.exited.Load() {
		e.release = release
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()
	release()
}

// unsubscribe runs the held release at most once.
func (e *entry) unsubscribe() {
	e.mu.Lock()
	release := e.release
	e.release = func() {}
	e.mu.Unlock()
	release()
}

// New creates a coordinator. A nil events or nav is replaced by a no-op.
func New(orch Orchestrator, pods core.PodReader, reg *registry.Registry, events core.EventSource, nav core.Navigator, opts *options.SessionOptions) *Coordinator {
	if events == nil {
		events = core.NopEventSource{}
	}
	if nav == nil {
		nav = core.NopNavigator{}
	}
	return &Coordinator{
		orch:            orch,
		pods:            pods,
		registry:        reg,
		events:          events,
		nav:             nav,
		navigationDelay: opts.NavigationDelay,
		selectionPath:   opts.SelectionPath,
		logger:          log.WithName("session"),
		sessions:        make(map[string]*entry),
		timers:          make(map[*time.Timer]struct{}),
	}
}

// Open starts a session. A bot name is resolved to its pod through the cache.
// For pod-backed sessions a disconnect subscription is held until the session exits.
func (c *Coordinator) Open(ctx context.Context, b Binding) (*model.Session, error) {
	if b.PodID == "" && b.BotName != "" {
		pods, err := c.pods.Pods(ctx)
		if err != nil {
			return nil, err
		}
		pod, err := c.registry.Resolve(pods, b.BotName)
		if err != nil {
			return nil, err
		}
		b.PodID = pod.ID
	}
	if b.BotName == "" && b.PodID != "" {
		if pod, _, ok := c.pods.Lookup(b.PodID); ok {
			b.BotName = c.registry.DisplayName(pod.Name)
		}
	}

	e := &entry{
		session: model.Session{
			ID:       uuid.NewString(),
			PodID:    b.PodID,
			BotName:  c.registry.DisplayName(b.BotName),
			Room:     b.Room,
			OpenedAt: time.Now().UTC(),
		},
		release: func() {},
	}
	id := e.session.ID

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errors.New("session coordinator is closed")
	}
	c.sessions[id] = e
	c.mu.Unlock()

	metrics.OpenSessions.Inc()
	c.logger.Info("Session opened", "sessionID", id, "podID", b.PodID, "room", b.Room)

	// A disconnect delivered while subscribing must already find the entry.
	if e.session.PodBacked() {
		release, err := c.events.SubscribeDisconnect(ctx, b.PodID, func() {
			if err := c.NotifyExit(context.Background(), id, model.ExitDisconnected); err != nil {
				c.logger.Debug("Disconnect event for a closed session", "sessionID", id, "error", err.Error())
			}
		})
		if err != nil {
			// Disconnects still arrive over HTTP without the subscription.
			c.logger.Warn("Could not subscribe to disconnect events", "sessionID", id, "podID", b.PodID, "error", err.Error())
		} else {
			e.hold(release)
		}
	}

	s := e.snapshot()
	return &s, nil
}

// Get returns a session that is open or exited recently.
func (c *Coordinator) Get(id string) (*model.Session, error) {
	e, ok := c.lookup(id)
	if !ok {
		return nil, &core.NotFoundError{Kind: "session", Key: id}
	}
	s := e.snapshot()
	return &s, nil
}

// List returns all known sessions, oldest first.
func (c *Coordinator) List() []model.Session {
	c.mu.RLock()
	out := make([]model.Session, 0, len(c.sessions))
	for _, e := range c.sessions {
		out = append(out, e.snapshot())
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.Before(out[j].OpenedAt) })
	return out
}

// NotifyExit ends a session. Only the first call for a session acts, later
// ones return nil without side effects.
//
// A disconnected or manual exit waits for the shutdown and then, after the
// navigation delay, sends the view back to the selection path. Shutdown errors
// are logged and never stop that navigation. An unload exit only fires a
// best-effort shutdown.
func (c *Coordinator) NotifyExit(ctx context.Context, id string, reason model.ExitReason) error {
	if !reason.Valid() {
		return errors.Join(core.ErrInvalidRequest, errors.New("unknown exit reason "+string(reason)))
	}

	e, ok := c.lookup(id)
	if !ok {
		return &core.NotFoundError{Kind: "session", Key: id}
	}
	if !e.exited.CompareAndSwap(false, true) {
		c.logger.Debug("Session already exited", "sessionID", id, "reason", reason)
		return nil
	}

	now := time.Now().UTC()
	e.mu.Lock()
	e.session.ExitedAt = &now
	e.session.ExitCause = reason
	podID := e.session.PodID
	e.mu.Unlock()

	e.unsubscribe()
	metrics.OpenSessions.Dec()
	metrics.SessionExits.WithLabelValues(string(reason)).Inc()
	c.logger.Info("Session exited", "sessionID", id, "podID", podID, "reason", reason)

	c.after(retention, func() { c.forget(id) })

	if reason == model.ExitUnload {
		if podID != "" {
			c.orch.ShutdownBestEffort(podID)
		}
		return nil
	}

	if podID != "" {
		outcome, err := c.orch.Shutdown(ctx, podID)
		if err != nil {
			c.logger.Error(err, "Shutdown on session exit failed, navigating anyway", "sessionID", id, "podID", podID)
		} else {
			c.logger.Debug("Shutdown on session exit", "sessionID", id, "podID", podID, "outcome", outcome)
		}
	}

	c.after(c.navigationDelay, func() {
		c.nav.Navigate(id, c.selectionPath)
	})
	return nil
}

// Unload handles a page-unload beacon and returns the pod it applies to.
//
// Open sessions bound to that pod exit with the unload reason. When none is
// open and none exited already, a best-effort shutdown is still sent so a
// beacon from a view this process never saw does not strand the pod.
func (c *Coordinator) Unload(ctx context.Context, p UnloadPayload) (string, error) {
	if p.SessionID != "" {
		e, ok := c.lookup(p.SessionID)
		if !ok {
			return "", &core.NotFoundError{Kind: "session", Key: p.SessionID}
		}
		return e.podID(), c.NotifyExit(ctx, p.SessionID, model.ExitUnload)
	}

	podID := p.PodID
	if podID == "" {
		if p.BotName == "" {
			return "", errors.Join(core.ErrInvalidRequest, errors.New("bot name is required"))
		}
		pods, err := c.pods.Pods(ctx)
		if err != nil {
			return "", err
		}
		pod, err := c.registry.Resolve(pods, p.BotName)
		if err != nil {
			return "", err
		}
		podID = pod.ID
	}

	var open, exited []string
	c.mu.RLock()
	for id, e := range c.sessions {
		if e.podID() != podID {
			continue
		}
		if e.exited.Load() {
			exited = append(exited, id)
		} else {
			open = append(open, id)
		}
	}
	c.mu.RUnlock()

	switch {
	case len(open) > 0:
		for _, id := range open {
			if err := c.NotifyExit(ctx, id, model.ExitUnload); err != nil {
				c.logger.Debug("Unload of session failed", "sessionID", id, "error", err.Error())
			}
		}
	case len(exited) > 0:
		c.logger.Debug("Unload beacon after session exit, nothing to do", "podID", podID)
	default:
		c.orch.ShutdownBestEffort(podID)
	}
	return podID, nil
}

// Close releases every subscription and stops pending navigations.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	sessions := c.sessions
	c.sessions = make(map[string]*entry)
	for t := range c.timers {
		t.Stop()
	}
	c.timers = make(map[*time.Timer]struct{})
	c.mu.Unlock()

	for _, e := range sessions {
		if e.exited.CompareAndSwap(false, true) {
			metrics.OpenSessions.Dec()
		}
		e.unsubscribe()
	}
}

func (c *Coordinator) lookup(id string) (*entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.sessions[id]
	return e, ok
}

func (c *Coordinator) forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, id)
}

// after runs fn once d has passed unless the coordinator is closed first.
func (c *Coordinator) after(d time.Duration, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	var t *time.Timer
	t = time.AfterFunc(d, func() {
		c.mu.Lock()
		delete(c.timers, t)
		c.mu.Unlock()
		fn()
	})
	c.timers[t] = struct{}{}
}

func (e *entry) snapshot() model.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

func (e *entry) podID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.PodID
}
