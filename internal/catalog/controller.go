// Package catalog merges the remote catalog with locally edited products and
// drives the add, edit, search and delete flows over the merged list.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/drstein77/productcatalog/internal/models"
	"github.com/drstein77/productcatalog/internal/remote"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SearchQuietPeriod is how long search input must settle before a search runs.
const SearchQuietPeriod = 500 * time.Millisecond

var (
	ErrNotFound   = errors.New("catalog: product not found")
	ErrNotEditing = errors.New("catalog: no product is being edited")
	// ErrNotStored is returned by Update for products that exist only remotely.
	ErrNotStored = errors.New("catalog: product is not stored locally")
)

// Remote is the read-only product source.
type Remote interface {
	ListAll(context.Context) ([]models.Product, error)
	Search(ctx context.Context, query string) ([]models.Product, error)
	GetByID(ctx context.Context, id int64) (models.Product, error)
}

// Store is the local edit store.
type Store interface {
	List(context.Context) ([]models.Product, error)
	Get(ctx context.Context, id int64) (models.Product, bool, error)
	Add(context.Context, models.Product) error
	Update(context.Context, models.Product) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

type Log interface {
	Info(string, ...zap.Field)
	Warn(string, ...zap.Field)
	Error(string, ...zap.Field)
}

// Confirmer asks the user to confirm deleting the product with the given id.
type Confirmer func(id int64) bool

// Confirmed is a Confirmer for surfaces where the request itself is the confirmation.
func Confirmed(int64) bool { return true }

type Phase int

const (
	PhaseLoading Phase = iota
	PhaseLoaded
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseLoaded:
		return "loaded"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Controller owns the merged product list of one page load.
type Controller struct {
	remote Remote
	store  Store
	log    Log
	now    func() time.Time
	reload bool

	mu        sync.Mutex
	phase     Phase
	products  []models.Product
	query     string
	editingID *int64
}

type Option func(*Controller)

// WithoutReload stops Add, Update and Delete from reloading the list after
// they write, for callers that render a fresh page afterwards.
func WithoutReload() Option {
	return func(c *Controller) {
		c.reload = false
	}
}

func NewController(remote Remote, store Store, log Log, opts ...Option) *Controller {
	c := &Controller{
		remote:   remote,
		store:    store,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		reload:   true,
		phase:    PhaseLoading,
		products: []models.Product{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Phase reports the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Products returns a copy of the merged list.
func (c *Controller) Products() []models.Product {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Product(nil), c.products...)
}

// Query returns the search query the current list was built for.
func (c *Controller) Query() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

// EditingID returns the id of the product being edited.
func (c *Controller) EditingID() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.editingID == nil {
		return 0, false
	}
	return *c.editingID, true
}

// Refresh reloads local then remote products and renders local first.
// Remote failures are logged and leave the previous list in place; only
// local store failures are returned.
func (c *Controller) Refresh(ctx context.Context) error {
	prev := c.enterLoading()

	local, err := c.store.List(ctx)
	if err != nil {
		c.restorePhase(prev)
		return err
	}

	fetched, err := c.remote.ListAll(ctx)
	if err != nil {
		c.log.Error("Error fetching products", zap.Error(err))
		c.restorePhase(prev)
		return nil
	}

	c.loaded("", merge(local, fetched))
	return nil
}

// Search filters local products by title, category or brand and merges them
// with the remote search results. It never changes stored state.
func (c *Controller) Search(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return c.Refresh(ctx)
	}
	prev := c.enterLoading()

	var local, fetched []models.Product
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		all, err := c.store.List(gctx)
		if err != nil {
			return &storeError{err: err}
		}
		local = filter(all, query)
		return nil
	})
	g.Go(func() error {
		var err error
		fetched, err = c.remote.Search(gctx, query)
		return err
	})

	if err := g.Wait(); err != nil {
		c.restorePhase(prev)
		var se *storeError
		if errors.As(err, &se) {
			return se.err
		}
		c.log.Error("Search error", zap.String("query", query), zap.Error(err))
		return nil
	}

	c.loaded(query, merge(local, fetched))
	return nil
}

// Add validates in, stores it as a new local product and reloads the catalog.
func (c *Controller) Add(ctx context.Context, in ProductInput) (models.Product, error) {
	if err := in.Validate(); err != nil {
		return models.Product{}, err
	}

	local, err := c.store.List(ctx)
	if err != nil {
		return models.Product{}, err
	}
	taken := make(map[int64]struct{}, len(local))
	for _, p := range append(local, c.Products()...) {
		taken[p.ID] = struct{}{}
	}
	id := NewID(func(id int64) bool {
		_, ok := taken[id]
		return ok
	})

	p := in.product(id, c.now())
	if err := c.store.Add(ctx, p); err != nil {
		return models.Product{}, err
	}
	c.log.Info("Product added", zap.Int64("id", p.ID), zap.String("title", p.Title))

	return p, c.reloadAfterWrite(ctx)
}

// BeginEdit marks id as being edited and returns the product to fill the form
// with, looking in the loaded list, then the local store, then the remote catalog.
func (c *Controller) BeginEdit(ctx context.Context, id int64) (models.Product, error) {
	p, ok := c.findLoaded(id)
	if !ok {
		var err error
		p, ok, err = c.store.Get(ctx, id)
		if err != nil {
			return models.Product{}, err
		}
	}
	if !ok {
		var err error
		p, err = c.remote.GetByID(ctx, id)
		if errors.Is(err, remote.ErrNotFound) {
			return models.Product{}, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		if err != nil {
			return models.Product{}, err
		}
	}

	c.mu.Lock()
	c.editingID = &id
	c.mu.Unlock()
	return p, nil
}

// CancelEdit leaves edit mode.
func (c *Controller) CancelEdit() {
	c.mu.Lock()
	c.editingID = nil
	c.mu.Unlock()
}

// Submit updates the product being edited, or adds a new one when not editing.
func (c *Controller) Submit(ctx context.Context, in ProductInput) (models.Product, error) {
	if _, editing := c.EditingID(); editing {
		return c.Update(ctx, in)
	}
	return c.Add(ctx, in)
}

// Update replaces the stored product being edited, keeping its id.
// Products that exist only in the remote catalog are not changed and
// ErrNotStored is returned.
func (c *Controller) Update(ctx context.Context, in ProductInput) (models.Product, error) {
	id, editing := c.EditingID()
	if !editing {
		return models.Product{}, ErrNotEditing
	}
	if err := in.Validate(); err != nil {
		return models.Product{}, err
	}

	now := c.now()
	p := in.product(id, now)
	if stored, ok, err := c.store.Get(ctx, id); err != nil {
		return models.Product{}, err
	} else if ok && !stored.Meta.CreatedAt.IsZero() {
		p.Meta.CreatedAt = stored.Meta.CreatedAt
	}

	found, err := c.store.Update(ctx, p)
	if err != nil {
		return models.Product{}, err
	}
	c.CancelEdit()
	if !found {
		c.log.Warn("Product is not stored locally, update ignored", zap.Int64("id", id))
		return models.Product{}, fmt.Errorf("%w: %d", ErrNotStored, id)
	}
	c.log.Info("Product updated", zap.Int64("id", id))

	return p, c.reloadAfterWrite(ctx)
}

// Delete removes id from the local store after confirm agrees. It reports
// whether a local product was removed. Remote products are untouched and
// come back on the next refresh.
func (c *Controller) Delete(ctx context.Context, id int64, confirm Confirmer) (bool, error) {
	if confirm != nil && !confirm(id) {
		return false, nil
	}

	removed, err := c.store.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if removed {
		c.log.Info("Product deleted", zap.Int64("id", id))
	} else {
		c.log.Warn("Product is not stored locally, nothing deleted", zap.Int64("id", id))
	}

	return removed, c.reloadAfterWrite(ctx)
}

func (c *Controller) reloadAfterWrite(ctx context.Context) error {
	if !c.reload {
		return nil
	}
	return c.Refresh(ctx)
}

func (c *Controller) enterLoading() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.phase
	c.phase = PhaseLoading
	return prev
}

func (c *Controller) restorePhase(p Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
}

func (c *Controller) loaded(query string, products []models.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.phase = PhaseLoaded
	c.query = query
	c.products = products
}

func (c *Controller) findLoaded(id int64) (models.Product, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.products {
		if p.ID == id {
			return p, true
		}
	}
	return models.Product{}, false
}

type storeError struct {
	err error
}

func (e *storeError) Error() string { return e.err.Error() }
func (e *storeError) Unwrap() error { return e.err }

func merge(local, fetched []models.Product) []models.Product {
	out := make([]models.Product, 0, len(local)+len(fetched))
	out = append(out, local...)
	return append(out, fetched...)
}

func filter(products []models.Product, query string) []models.Product {
	q := strings.ToLower(query)
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Title), q) ||
			strings.Contains(strings.ToLower(p.Category), q) ||
			strings.Contains(strings.ToLower(p.Brand), q) {
			out = append(out, p)
		}
	}
	return out
}
