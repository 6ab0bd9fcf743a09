package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/drstein77/productcatalog/internal/models"
	"github.com/drstein77/productcatalog/internal/remote"
	"go.uber.org/zap"
)

var ErrMissingID = errors.New("catalog: missing product id")

// DetailController resolves the product shown on the detail page.
type DetailController struct {
	rawID  string
	store  Store
	remote Remote
	log    Log
}

// NewDetailController reads the id query parameter.
func NewDetailController(query url.Values, store Store, remote Remote, log Log) *DetailController {
	return &DetailController{
		rawID:  strings.TrimSpace(query.Get("id")),
		store:  store,
		remote: remote,
		log:    log,
	}
}

// HasID reports whether the page was requested with an id.
func (d *DetailController) HasID() bool {
	return d.rawID != ""
}

// Resolve looks the product up in the local store first and falls back to
// the remote catalog. Failures are logged and returned.
func (d *DetailController) Resolve(ctx context.Context) (models.Product, error) {
	if !d.HasID() {
		return models.Product{}, ErrMissingID
	}
	p, err := d.resolve(ctx)
	if err != nil {
		d.log.Error("Error fetching product details", zap.String("id", d.rawID), zap.Error(err))
		return models.Product{}, err
	}
	return p, nil
}

func (d *DetailController) resolve(ctx context.Context) (models.Product, error) {
	id, err := strconv.ParseInt(d.rawID, 10, 64)
	if err != nil {
		return models.Product{}, fmt.Errorf("%w: %q", ErrNotFound, d.rawID)
	}

	p, ok, err := d.store.Get(ctx, id)
	if err != nil {
		return models.Product{}, err
	}
	if ok {
		return p, nil
	}

	p, err = d.remote.GetByID(ctx, id)
	if errors.Is(err, remote.ErrNotFound) {
		return models.Product{}, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return p, err
}
