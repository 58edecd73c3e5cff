// Package cache keeps a periodically refreshed, invalidatable view of pod state.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/autopeer-io/botpod/internal/botpod/core"
	"github.com/autopeer-io/botpod/internal/botpod/core/model"
	"github.com/autopeer-io/botpod/internal/pkg/metrics"
	"github.com/autopeer-io/botpod/pkg/log"
	"github.com/autopeer-io/botpod/pkg/options"
)

const listKey = "list"

// Source is the part of the gateway the cache reads from.
type Source interface {
	List(ctx context.Context, opts core.ListOptions) ([]model.Pod, error)
	Get(ctx context.Context, id string, opts core.GetOptions) (*model.Pod, error)
}

var _ core.PodReader = (*Cache)(nil)

// Cache serves the last known pod list and pod details.
//
// Reads never wait on a refresh once a value exists. Refresh errors are kept
// and only returned to readers that have nothing else to serve. Every fetch
// records the invalidation generation it started in, so a response that was
// already in flight when a mutation happened can neither overwrite newer data
// nor mark an invalidated pod fresh.
type Cache struct {
	src      Source
	store    core.SnapshotStore
	listOpts core.ListOptions

	listInterval  time.Duration
	watchInterval time.Duration

	cron   *cron.Cron
	group  singleflight.Group
	logger log.Logger

	mu          sync.RWMutex
	ctx         context.Context
	gen         uint64
	listGen     uint64
	loaded      bool
	listErr     error
	refreshedAt time.Time
	order       []string
	byID        map[string]entry
	stale       map[string]uint64
	listStale   uint64
	watches     map[string]*watch
	subs        map[uint64]chan []model.Pod
	nextSub     uint64
}

type entry struct {
	pod model.Pod
	gen uint64
}

type watch struct {
	refs  int
	entry cron.EntryID
}

// New creates a cache over src. store may be nil.
func New(src Source, opts *options.CacheOptions, listOpts core.ListOptions, store core.SnapshotStore) *Cache {
	return &Cache{
		src:           src,
		store:         store,
		listOpts:      listOpts,
		listInterval:  opts.ListInterval,
		watchInterval: opts.WatchInterval,
		cron:          cron.New(),
		logger:        log.WithName("cache"),
		ctx:           context.Background(),
		byID:          make(map[string]entry),
		stale:         make(map[string]uint64),
		watches:       make(map[string]*watch),
		subs:          make(map[uint64]chan []model.Pod),
	}
}

// Start schedules the periodic list refresh and blocks until ctx is done.
func (c *Cache) Start(ctx context.Context) error {
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()

	c.restore(ctx)

	c.cron.Schedule(cron.Every(c.listInterval), cron.FuncJob(func() {
		_ = c.refreshList(ctx)
	}))
	c.cron.Start()
	c.logger.Info("Pod status cache started", "listInterval", c.listInterval, "watchInterval", c.watchInterval)

	go func() { _ = c.refreshList(ctx) }()

	<-ctx.Done()

	<-c.cron.Stop().Done()
	c.logger.Info("Pod status cache stopped")
	return nil
}

// Pods returns the last known pod list. Only a cache that has never loaded a
// list fetches synchronously; its error is returned if that fetch fails.
func (c *Cache) Pods(ctx context.Context) ([]model.Pod, error) {
	if pods, ok := c.snapshot(); ok {
		return pods, nil
	}

	if err := c.refreshList(ctx); err != nil {
		if pods, ok := c.snapshot(); ok {
			return pods, nil
		}
		return nil, err
	}

	pods, _ := c.snapshot()
	return pods, nil
}

// Pod returns the last known snapshot of id, fetching it only when unknown.
func (c *Cache) Pod(ctx context.Context, id string) (model.Pod, error) {
	if pod, _, ok := c.Lookup(id); ok {
		return pod, nil
	}

	if err := c.refreshPod(ctx, id); err != nil {
		return model.Pod{}, err
	}

	pod, _, ok := c.Lookup(id)
	if !ok {
		return model.Pod{}, &core.NotFoundError{Kind: "pod", Key: id}
	}
	return pod, nil
}

// Lookup returns the last known snapshot of id without any I/O.
func (c *Cache) Lookup(id string) (model.Pod, bool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.byID[id]
	if !ok {
		return model.Pod{}, false, false
	}
	_, stale := c.stale[id]
	return e.pod, !stale, true
}

// Invalidate marks the list and ids stale and refreshes them immediately
// instead of waiting for the next tick.
func (c *Cache) Invalidate(ids ...string) {
	c.mu.Lock()
	c.gen++
	c.listStale = c.gen
	for _, id := range ids {
		c.stale[id] = c.gen
	}
	ctx := c.ctx
	c.mu.Unlock()

	c.group.Forget(listKey)
	go func() { _ = c.refreshList(ctx) }()

	for _, id := range ids {
		c.group.Forget(podKey(id))
		go func(id string) { _ = c.refreshPod(ctx, id) }(id)
	}
}

// Watch refreshes the detail of id on the watch cadence until every returned
// release func has been called. Each release func is idempotent.
func (c *Cache) Watch(id string) func() {
	c.mu.Lock()
	w, ok := c.watches[id]
	if !ok {
		ctx := c.ctx
		w = &watch{}
		w.entry = c.cron.Schedule(cron.Every(c.watchInterval), cron.FuncJob(func() {
			_ = c.refreshPod(ctx, id)
		}))
		c.watches[id] = w
		metrics.WatchedPods.Inc()
		c.logger.Debug("Watching pod", "podID", id)
	}
	w.refs++
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { c.unwatch(id) })
	}
}

func (c *Cache) unwatch(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.watches[id]
	if !ok {
		return
	}
	w.refs--
	if w.refs > 0 {
		return
	}

	c.cron.Remove(w.entry)
	delete(c.watches, id)
	metrics.WatchedPods.Dec()
	c.logger.Debug("Stopped watching pod", "podID", id)
}

// Watched returns the number of pods currently watched.
func (c *Cache) Watched() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.watches)
}

// Subscribe delivers every refreshed pod list. A slow subscriber only ever
// sees the latest list.
func (c *Cache) Subscribe() (<-chan []model.Pod, func()) {
	ch := make(chan []model.Pod, 1)

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			close(ch)
			c.mu.Unlock()
		})
	}
}

// LastError returns the error of the most recent failed list refresh, if the
// refresh after it has not succeeded yet.
func (c *Cache) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.listErr
}

// RefreshedAt returns when the list was last replaced.
func (c *Cache) RefreshedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshedAt
}

func (c *Cache) snapshot() ([]model.Pod, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.loaded {
		return nil, false
	}
	return c.listLocked(), true
}

func (c *Cache) listLocked() []model.Pod {
	pods := make([]model.Pod, 0, len(c.order))
	for _, id := range c.order {
		pods = append(pods, c.byID[id].pod)
	}
	return pods
}

func (c *Cache) generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

func (c *Cache) refreshList(ctx context.Context) error {
	_, err, _ := c.group.Do(listKey, func() (any, error) {
		startGen := c.generation()

		pods, err := c.src.List(ctx, c.listOpts)
		if err != nil {
			metrics.CacheRefreshes.WithLabelValues("list", "error").Inc()
			c.mu.Lock()
			c.listErr = err
			c.mu.Unlock()
			c.logger.Warn("Pod list refresh failed, serving last known value", "error", err.Error())
			return nil, err
		}

		metrics.CacheRefreshes.WithLabelValues("list", "ok").Inc()
		if c.applyList(pods, startGen) {
			c.persist(ctx, pods)
			c.publish()
		}
		return nil, nil
	})
	return err
}

func (c *Cache) refreshPod(ctx context.Context, id string) error {
	_, err, _ := c.group.Do(podKey(id), func() (any, error) {
		startGen := c.generation()

		pod, err := c.src.Get(ctx, id, core.GetOptions{})
		if err != nil {
			metrics.CacheRefreshes.WithLabelValues("detail", "error").Inc()
			c.logger.Debug("Pod detail refresh failed", "podID", id, "error", err.Error())
			return nil, err
		}

		metrics.CacheRefreshes.WithLabelValues("detail", "ok").Inc()
		if c.applyPod(*pod, startGen) {
			c.publish()
		}
		return nil, nil
	})
	return err
}

// applyList replaces the list with a result fetched in generation startGen.
// It reports false when a newer list was already applied.
func (c *Cache) applyList(pods []model.Pod, startGen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded && startGen < c.listGen {
		return false
	}

	byID := make(map[string]entry, len(pods))
	order := make([]string, 0, len(pods))
	for _, p := range pods {
		if old, ok := c.byID[p.ID]; ok && old.gen > startGen {
			byID[p.ID] = old
		} else {
			byID[p.ID] = entry{pod: p, gen: startGen}
		}
		order = append(order, p.ID)
	}
	// Watched pods outside the list filter keep their detail.
	for id := range c.watches {
		if _, listed := byID[id]; !listed {
			if old, ok := c.byID[id]; ok {
				byID[id] = old
			}
		}
	}

	c.byID = byID
	c.order = order
	c.listGen = startGen
	c.loaded = true
	c.listErr = nil
	c.refreshedAt = time.Now()

	if c.listStale <= startGen {
		c.listStale = 0
	}
	for id, g := range c.stale {
		if g <= startGen {
			delete(c.stale, id)
		}
	}
	return true
}

// applyPod stores a detail fetched in generation startGen.
func (c *Cache) applyPod(pod model.Pod, startGen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.byID[pod.ID]; ok && old.gen > startGen {
		return false
	}
	c.byID[pod.ID] = entry{pod: pod, gen: startGen}

	if g, ok := c.stale[pod.ID]; ok && g <= startGen {
		delete(c.stale, pod.ID)
	}
	return true
}

func (c *Cache) publish() {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.subs) == 0 || !c.loaded {
		return
	}

	for _, ch := range c.subs {
		pods := c.listLocked()
		select {
		case ch <- pods:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- pods:
			default:
			}
		}
	}
}

// restore seeds an empty cache from the snapshot store.
func (c *Cache) restore(ctx context.Context) {
	if c.store == nil {
		return
	}

	pods, err := c.store.Load(ctx)
	if err != nil {
		c.logger.Warn("Could not restore pod snapshot", "error", err.Error())
		return
	}
	if pods == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return
	}

	// A restored pod stays stale until a live list or detail replaces it.
	c.gen++
	c.byID = make(map[string]entry, len(pods))
	c.order = make([]string, 0, len(pods))
	for _, p := range pods {
		c.byID[p.ID] = entry{pod: p}
		c.order = append(c.order, p.ID)
		c.stale[p.ID] = c.gen
	}
	c.listStale = c.gen
	c.loaded = true
	c.logger.Info("Restored pod snapshot", "pods", len(pods))
}

func (c *Cache) persist(ctx context.Context, pods []model.Pod) {
	if c.store == nil {
		return
	}
	if err := c.store.Save(ctx, pods); err != nil {
		c.logger.Warn("Could not persist pod snapshot", "error", err.Error())
	}
}

func podKey(id string) string {
	return "pod:" + id
}
