package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/traystore/internal/domain/models"
)

// TraySource fetches trays from the Ledger Store.
type TraySource interface {
	FetchTrays(ctx context.Context, filter models.TrayFilter) (models.TrayPage, error)
}

// Ticket identifies one fetch started against a key. Apply only accepts a
// ticket whose generation is still current and that is newer than the last
// applied one for the key.
type Ticket struct {
	Key        models.QueryKey
	Generation uint64
	Seq        uint64
}

// Projection is the best-known state for one key. Complete is false when the
// page filled its row limit, so trays at its end may be missing lines.
type Projection struct {
	Page      models.TrayPage
	Err       error
	Loaded    bool
	Complete  bool
	UpdatedAt time.Time
}

type entry struct {
	kind       models.QueryKind
	generation uint64
	appliedSeq uint64
	projection Projection
}

type fetchFunc func(ctx context.Context, key models.QueryKey) (models.TrayPage, error)

// Registry holds per-key tray projections built from Ledger Store responses.
type Registry struct {
	source   TraySource
	pageSize int
	handlers map[models.QueryKind]fetchFunc
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.RWMutex
	seq     uint64
	entries map[string]*entry
}

// NewRegistry wires a registry over the given source. pageSize is the fixed
// page size used for every query.
func NewRegistry(source TraySource, pageSize int, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pageSize <= 0 {
		pageSize = 10
	}

	r := &Registry{
		source:   source,
		pageSize: pageSize,
		logger:   logger,
		now:      time.Now,
		entries:  make(map[string]*entry),
	}
	r.handlers = map[models.QueryKind]fetchFunc{
		models.QueryKindTray:       r.fetchByTray,
		models.QueryKindMaterial:   r.fetchByMaterial,
		models.QueryKindUnfiltered: r.fetchUnfiltered,
	}
	return r
}

// PageSize is the fixed page size of every query.
func (r *Registry) PageSize() int {
	return r.pageSize
}

// QueryByTray returns the trays with the given id at the location. Not found
// is an empty list, not an error.
func (r *Registry) QueryByTray(ctx context.Context, trayID string, location models.Location) ([]models.Tray, error) {
	page, err := r.Refresh(ctx, models.TrayKey{TrayID: trayID, Location: location})
	return page.Trays, err
}

// QueryByMaterial returns the trays holding the material at the location.
func (r *Registry) QueryByMaterial(ctx context.Context, materialID string, location models.Location) ([]models.Tray, error) {
	page, err := r.Refresh(ctx, models.MaterialKey{MaterialID: materialID, Location: location})
	return page.Trays, err
}

// QueryUnfiltered returns one page of the full listing and the total count,
// which is 0 when the ledger does not report one.
func (r *Registry) QueryUnfiltered(ctx context.Context, filters models.UnfilteredFilters, offset int) ([]models.Tray, int, error) {
	page, err := r.Refresh(ctx, models.UnfilteredKey{Filters: filters, Offset: offset})
	if err != nil {
		return nil, 0, err
	}
	if !page.TotalKnown {
		return page.Trays, 0, nil
	}
	return page.Trays, page.Total, nil
}

// Refresh fetches the key and replaces its projection with the outcome.
func (r *Registry) Refresh(ctx context.Context, key models.QueryKey) (models.TrayPage, error) {
	if err := key.Validate(); err != nil {
		return models.TrayPage{}, err
	}

	ticket := r.Begin(key)
	page, err := r.Fetch(ctx, key)
	r.Apply(ticket, page, err)

	switch {
	case err == nil:
		return page, nil
	case errors.Is(err, models.ErrNotFound):
		return emptyPage(), nil
	default:
		return models.TrayPage{}, err
	}
}

// Begin registers the start of a fetch for key.
func (r *Registry) Begin(key models.QueryKey) Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entryLocked(key)
	r.seq++
	return Ticket{Key: key, Generation: e.generation, Seq: r.seq}
}

// Generation returns the current generation of key.
func (r *Registry) Generation(key models.QueryKey) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entryLocked(key).generation
}

// Fetch runs the handler for the key's kind without touching any projection.
func (r *Registry) Fetch(ctx context.Context, key models.QueryKey) (models.TrayPage, error) {
	handler, ok := r.handlers[key.Kind()]
	if !ok {
		return models.TrayPage{}, fmt.Errorf("%w: no handler for query kind %q", models.ErrValidation, key.Kind())
	}
	return handler(ctx, key)
}

// Apply replaces the projection for the ticket's key in full. Not found
// becomes an empty projection; any other failure clears the projection and
// records the error. Returns false when the ticket is stale and the outcome
// was discarded.
func (r *Registry) Apply(ticket Ticket, page models.TrayPage, fetchErr error) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := ticket.Key.String()
	e, ok := r.entries[id]
	if !ok || e.generation != ticket.Generation || ticket.Seq <= e.appliedSeq {
		r.logger.Debug("discarding stale tray result",
			zap.String("key", id),
			zap.Uint64("generation", ticket.Generation),
			zap.Uint64("seq", ticket.Seq))
		return false
	}

	e.appliedSeq = ticket.Seq
	projection := Projection{Loaded: true, UpdatedAt: r.now()}

	switch {
	case fetchErr == nil:
		projection.Page = page
		projection.Complete = page.Last(r.pageSize)
		if projection.Page.Trays == nil {
			projection.Page.Trays = []models.Tray{}
		}
		r.warnNegative(id, page)
	case errors.Is(fetchErr, models.ErrNotFound):
		projection.Page = emptyPage()
		projection.Complete = true
	default:
		projection.Page = emptyPage()
		projection.Err = fetchErr
		r.logger.Warn("tray query failed, projection cleared", zap.String("key", id), zap.Error(fetchErr))
	}

	e.projection = projection
	return true
}

// Invalidate drops the projection for key and bumps its generation so that
// results of fetches already in flight are discarded.
func (r *Registry) Invalidate(key models.QueryKey) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	r.entries[key.String()] = &entry{kind: key.Kind(), generation: r.seq}
}

// Forget removes the key entirely. In-flight results for it are discarded.
func (r *Registry) Forget(key models.QueryKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key.String())
}

// Snapshot returns the current projection for key.
func (r *Registry) Snapshot(key models.QueryKey) (Projection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[key.String()]
	if !ok || !e.projection.Loaded {
		return Projection{}, false
	}
	return cloneProjection(e.projection), true
}

// LastKnownQuantity returns the most recently observed available quantity of
// a material on a tray. Only complete tray-keyed projections that list the
// material count: material-keyed pages carry a single material, and a full
// page may have cut the tray's remaining lines off.
func (r *Registry) LastKnownQuantity(trayID, materialID string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		quantity int
		found    bool
		seenAt   time.Time
	)
	for _, e := range r.entries {
		if e.kind != models.QueryKindTray || !e.projection.Loaded || !e.projection.Complete || e.projection.Err != nil {
			continue
		}
		for _, tray := range e.projection.Page.Trays {
			if tray.ID != trayID || !tray.HasMaterial(materialID) {
				continue
			}
			if !found || e.projection.UpdatedAt.After(seenAt) {
				quantity = tray.Quantity(materialID)
				seenAt = e.projection.UpdatedAt
				found = true
			}
		}
	}
	return quantity, found
}

func (r *Registry) entryLocked(key models.QueryKey) *entry {
	id := key.String()
	e, ok := r.entries[id]
	if !ok {
		r.seq++
		e = &entry{kind: key.Kind(), generation: r.seq}
		r.entries[id] = e
	}
	return e
}

func (r *Registry) fetchByTray(ctx context.Context, key models.QueryKey) (models.TrayPage, error) {
	k := key.(models.TrayKey)
	page, err := r.source.FetchTrays(ctx, k.Filter(r.pageSize))
	if err != nil {
		return models.TrayPage{}, err
	}
	return filterPage(page, func(t models.Tray) bool {
		return t.ID == k.TrayID && matchesLocation(t, k.Location)
	}), nil
}

func (r *Registry) fetchByMaterial(ctx context.Context, key models.QueryKey) (models.TrayPage, error) {
	k := key.(models.MaterialKey)
	page, err := r.source.FetchTrays(ctx, k.Filter(r.pageSize))
	if err != nil {
		return models.TrayPage{}, err
	}
	return filterPage(page, func(t models.Tray) bool {
		return t.HasMaterial(k.MaterialID) && matchesLocation(t, k.Location)
	}), nil
}

func (r *Registry) fetchUnfiltered(ctx context.Context, key models.QueryKey) (models.TrayPage, error) {
	k := key.(models.UnfilteredKey)
	return r.source.FetchTrays(ctx, k.Filter(r.pageSize))
}

func (r *Registry) warnNegative(id string, page models.TrayPage) {
	for _, tray := range page.Trays {
		for _, item := range tray.Contents {
			if item.Quantity < 0 {
				r.logger.Warn("ledger reports negative available quantity",
					zap.String("key", id),
					zap.String("tray_id", tray.ID),
					zap.String("material_id", item.MaterialID),
					zap.Int("quantity", item.Quantity))
			}
		}
	}
}

func matchesLocation(t models.Tray, location models.Location) bool {
	return location == models.LocationAny || t.Location == models.LocationAny || t.Location == location
}

func filterPage(page models.TrayPage, keep func(models.Tray) bool) models.TrayPage {
	out := make([]models.Tray, 0, len(page.Trays))
	for _, tray := range page.Trays {
		if keep(tray) {
			out = append(out, tray)
		}
	}
	page.Trays = out
	return page
}

func emptyPage() models.TrayPage {
	return models.TrayPage{Trays: []models.Tray{}}
}

func cloneProjection(p Projection) Projection {
	trays := make([]models.Tray, len(p.Page.Trays))
	for i, tray := range p.Page.Trays {
		tray.Contents = append([]models.TrayItem(nil), tray.Contents...)
		trays[i] = tray
	}
	p.Page.Trays = trays
	return p
}
