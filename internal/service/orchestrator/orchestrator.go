package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/traystore/internal/config"
	"github.com/mamadbah2/traystore/internal/domain/models"
	"github.com/mamadbah2/traystore/internal/service/registry"
)

var (
	// ErrClosed is returned once the orchestrator has been shut down.
	ErrClosed = errors.New("orchestrator closed")
	// ErrViewExists is returned when a view name is already in use.
	ErrViewExists = fmt.Errorf("%w: view already exists", models.ErrInvariant)
)

// Projections is the registry surface the orchestrator drives.
type Projections interface {
	Begin(key models.QueryKey) registry.Ticket
	Fetch(ctx context.Context, key models.QueryKey) (models.TrayPage, error)
	Apply(ticket registry.Ticket, page models.TrayPage, err error) bool
	Invalidate(key models.QueryKey)
	Snapshot(key models.QueryKey) (registry.Projection, bool)
}

// tracker is the per-key polling state. inflight and pending are guarded by
// the orchestrator mutex.
type tracker struct {
	key       models.QueryKey
	watchers  int
	inflight  bool
	pending   bool
	stopped   bool
	stop      chan struct{}
	listeners map[*View]struct{}
}

// Orchestrator keeps watched query keys fresh with one poller per key, at
// most one fetch in flight per key and one follow-up queued behind it.
type Orchestrator struct {
	projections Projections
	interval    time.Duration
	debounce    time.Duration
	logger      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	trackers map[string]*tracker
	views    map[string]*View
}

// New builds an orchestrator. Call Close to stop every poller.
func New(projections Projections, cfg config.SyncConfig, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		projections: projections,
		interval:    cfg.PollInterval,
		debounce:    cfg.Debounce,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		trackers:    make(map[string]*tracker),
		views:       make(map[string]*View),
	}
}

// Watch starts tracking key: an immediate fetch followed by a fixed-interval
// poll. Watching an already tracked key only adds a watcher.
func (o *Orchestrator) Watch(key models.QueryKey) error {
	return o.watch(key, nil)
}

// Unwatch drops one watcher. The last one tears the poller down and
// invalidates the key so late results are discarded.
func (o *Orchestrator) Unwatch(key models.QueryKey) {
	o.unwatch(key, nil)
}

func (o *Orchestrator) watch(key models.QueryKey, view *View) error {
	if err := key.Validate(); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrClosed
	}

	id := key.String()
	t, ok := o.trackers[id]
	if !ok {
		t = &tracker{
			key:       key,
			stop:      make(chan struct{}),
			listeners: make(map[*View]struct{}),
		}
		o.trackers[id] = t
		o.wg.Add(1)
		go o.poll(t)
		o.logger.Debug("watching query", zap.String("key", id))
	}
	t.watchers++
	if view != nil {
		t.listeners[view] = struct{}{}
	}

	if !ok {
		o.triggerLocked(t)
	}
	return nil
}

func (o *Orchestrator) unwatch(key models.QueryKey, view *View) {
	o.mu.Lock()
	id := key.String()
	t, ok := o.trackers[id]
	if !ok {
		o.mu.Unlock()
		return
	}
	if view != nil {
		delete(t.listeners, view)
	}
	t.watchers--
	if t.watchers > 0 {
		o.mu.Unlock()
		return
	}

	t.stopped = true
	t.pending = false
	close(t.stop)
	delete(o.trackers, id)
	// Invalidate before a new watcher of the same key can call Begin.
	o.projections.Invalidate(key)
	o.mu.Unlock()

	o.logger.Debug("stopped watching query", zap.String("key", id))
}

// Refresh requests an immediate fetch of a watched key. It reports false when
// the key is not watched.
func (o *Orchestrator) Refresh(key models.QueryKey) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	t, ok := o.trackers[key.String()]
	if !ok {
		return false
	}
	o.triggerLocked(t)
	return true
}

// Nudge refreshes every watched key that covers the tray, after a commit
// changed it.
func (o *Orchestrator) Nudge(trayID string) {
	o.mu.Lock()
	candidates := make([]*tracker, 0, len(o.trackers))
	for _, t := range o.trackers {
		candidates = append(candidates, t)
	}
	o.mu.Unlock()

	for _, t := range candidates {
		if !o.covers(t.key, trayID) {
			continue
		}
		o.mu.Lock()
		if !t.stopped {
			o.triggerLocked(t)
		}
		o.mu.Unlock()
	}
}

func (o *Orchestrator) covers(key models.QueryKey, trayID string) bool {
	if k, ok := key.(models.TrayKey); ok && k.TrayID == trayID {
		return true
	}
	projection, ok := o.projections.Snapshot(key)
	if !ok {
		return false
	}
	for _, tray := range projection.Page.Trays {
		if tray.ID == trayID {
			return true
		}
	}
	return false
}

// Watching reports whether key currently has a poller.
func (o *Orchestrator) Watching(key models.QueryKey) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.trackers[key.String()]
	return ok
}

// triggerLocked starts a fetch or, when one is already running, queues a
// single follow-up. Callers hold o.mu.
func (o *Orchestrator) triggerLocked(t *tracker) {
	if o.closed || t.stopped {
		return
	}
	if t.inflight {
		t.pending = true
		return
	}
	t.inflight = true
	o.wg.Add(1)
	go o.run(t)
}

func (o *Orchestrator) run(t *tracker) {
	defer o.wg.Done()

	for {
		o.mu.Lock()
		if t.stopped || o.closed {
			t.inflight = false
			o.mu.Unlock()
			return
		}
		// Begin under o.mu so it cannot follow the Invalidate in unwatch.
		ticket := o.projections.Begin(t.key)
		o.mu.Unlock()

		page, err := o.projections.Fetch(o.ctx, t.key)
		applied := o.projections.Apply(ticket, page, err)

		o.mu.Lock()
		if applied && !t.stopped {
			for view := range t.listeners {
				view.notify()
			}
		}
		if t.pending && !t.stopped && !o.closed {
			t.pending = false
			o.mu.Unlock()
			continue
		}
		t.inflight = false
		o.mu.Unlock()
		return
	}
}

func (o *Orchestrator) poll(t *tracker) {
	defer o.wg.Done()

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-o.ctx.Done():
			return
		case <-ticker.C:
			o.mu.Lock()
			o.triggerLocked(t)
			o.mu.Unlock()
		}
	}
}

// OpenView registers a named view with no query yet.
func (o *Orchestrator) OpenView(name string) (*View, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: view name", models.ErrInvalidID)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil, ErrClosed
	}
	if _, ok := o.views[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrViewExists, name)
	}

	v := &View{
		name:    name,
		o:       o,
		updates: make(chan struct{}, 1),
	}
	o.views[name] = v
	return v, nil
}

// View returns an open view by name.
func (o *Orchestrator) View(name string) (*View, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	v, ok := o.views[name]
	return v, ok
}

// Close tears down every view and poller and waits for in-flight fetches.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	views := make([]*View, 0, len(o.views))
	for _, v := range o.views {
		views = append(views, v)
	}
	o.mu.Unlock()

	for _, v := range views {
		v.Close()
	}

	o.mu.Lock()
	o.closed = true
	for id, t := range o.trackers {
		t.stopped = true
		close(t.stop)
		delete(o.trackers, id)
	}
	o.mu.Unlock()

	o.cancel()
	o.wg.Wait()
}
