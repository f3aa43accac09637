package orchestrator

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/traystore/internal/domain/models"
	"github.com/mamadbah2/traystore/internal/service/registry"
)

// View is one open query surface, a search box or a dialog. It owns the
// debounce timer and watches at most one key at a time.
type View struct {
	name    string
	o       *Orchestrator
	updates chan struct{}

	mu     sync.Mutex
	key    models.QueryKey
	timer  *time.Timer
	closed bool
}

// Name is the view's registration name.
func (v *View) Name() string {
	return v.name
}

// Updates signals after each applied fetch of the current key. Signals
// coalesce; readers should take a Snapshot when woken.
func (v *View) Updates() <-chan struct{} {
	return v.updates
}

// SetQuery switches the view to key once input has been quiet for the
// debounce period. Rapid calls collapse into the last one.
func (v *View) SetQuery(key models.QueryKey) error {
	if err := key.Validate(); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return ErrClosed
	}
	if v.timer != nil {
		v.timer.Stop()
	}
	v.timer = time.AfterFunc(v.o.debounce, func() { v.switchTo(key) })
	return nil
}

// switchTo tears down the old key's poller before starting the new one.
func (v *View) switchTo(key models.QueryKey) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return
	}
	if v.key != nil && v.key.String() == key.String() {
		v.o.Refresh(key)
		return
	}

	if v.key != nil {
		v.o.unwatch(v.key, v)
		v.key = nil
	}
	if err := v.o.watch(key, v); err != nil {
		v.o.logger.Warn("view could not watch query",
			zap.String("view", v.name),
			zap.String("key", key.String()),
			zap.Error(err))
		return
	}
	v.key = key
}

// Key returns the query currently being watched, or nil.
func (v *View) Key() models.QueryKey {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.key
}

// Refresh forces an immediate fetch of the current key.
func (v *View) Refresh() bool {
	key := v.Key()
	if key == nil {
		return false
	}
	return v.o.Refresh(key)
}

// Snapshot returns the current key's projection. ok is false until the first
// fetch for the key has been applied.
func (v *View) Snapshot() (models.QueryKey, registry.Projection, bool) {
	key := v.Key()
	if key == nil {
		return nil, registry.Projection{}, false
	}
	projection, ok := v.o.projections.Snapshot(key)
	return key, projection, ok
}

// Close stops the debounce timer and the view's watch.
func (v *View) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	if v.timer != nil {
		v.timer.Stop()
	}
	if v.key != nil {
		v.o.unwatch(v.key, v)
		v.key = nil
	}
	v.mu.Unlock()

	v.o.mu.Lock()
	delete(v.o.views, v.name)
	v.o.mu.Unlock()
}

func (v *View) notify() {
	select {
	case v.updates <- struct{}{}:
	default:
	}
}
