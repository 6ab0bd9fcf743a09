package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/drstein77/productcatalog/internal/models"
	"go.uber.org/zap"
)

// ProductsKey is the key holding the serialized list of local products.
const ProductsKey = "customProducts"

// ErrNoChange is returned by an update function to leave the stored value,
// or its absence, untouched. Keepers treat it as success.
var ErrNoChange = errors.New("storage: no change")

type Log interface {
	Info(string, ...zap.Field)
}

// Keeper persists one string value per key. Update must run fn and store its
// result atomically with respect to other calls on the same key, and write
// nothing when fn returns ErrNoChange.
type Keeper interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Update(ctx context.Context, key string, fn func(current string, ok bool) (string, error)) error
	Ping(context.Context) bool
	Close() bool
}

// Store is the local edit store: an ordered list of user created or edited
// products kept under ProductsKey. Newest additions come first.
type Store struct {
	keeper Keeper
	log    Log
}

// NewStore creates a new Store on top of keeper
func NewStore(keeper Keeper, log Log) *Store {
	return &Store{
		keeper: keeper,
		log:    log,
	}
}

// List returns the stored products in order. A missing or empty record is an empty list.
func (s *Store) List(ctx context.Context) ([]models.Product, error) {
	raw, ok, err := s.keeper.Get(ctx, ProductsKey)
	if err != nil {
		return nil, fmt.Errorf("read local products: %w", err)
	}
	if !ok {
		return []models.Product{}, nil
	}
	return Unmarshal(raw)
}

// Get finds a stored product by id.
func (s *Store) Get(ctx context.Context, id int64) (models.Product, bool, error) {
	products, err := s.List(ctx)
	if err != nil {
		return models.Product{}, false, err
	}
	for _, p := range products {
		if p.ID == id {
			return p, true, nil
		}
	}
	return models.Product{}, false, nil
}

// Add prepends p to the stored list.
func (s *Store) Add(ctx context.Context, p models.Product) error {
	err := s.mutate(ctx, func(products []models.Product) ([]models.Product, bool) {
		return append([]models.Product{p}, products...), true
	})
	if err != nil {
		return err
	}
	s.log.Info("local product added", zap.Int64("id", p.ID))
	return nil
}

// Update replaces the stored product with the same id. It reports false and
// writes nothing when no such product is stored.
func (s *Store) Update(ctx context.Context, p models.Product) (bool, error) {
	var found bool
	err := s.mutate(ctx, func(products []models.Product) ([]models.Product, bool) {
		for i := range products {
			if products[i].ID == p.ID {
				products[i] = p
				found = true
				return products, true
			}
		}
		return products, false
	})
	if err != nil {
		return false, err
	}
	if found {
		s.log.Info("local product updated", zap.Int64("id", p.ID))
	}
	return found, nil
}

// Delete removes the stored product with the given id. Deleting an absent id is a no-op.
func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	var found bool
	err := s.mutate(ctx, func(products []models.Product) ([]models.Product, bool) {
		for i := range products {
			if products[i].ID == id {
				found = true
				return append(products[:i], products[i+1:]...), true
			}
		}
		return products, false
	})
	if err != nil {
		return false, err
	}
	if found {
		s.log.Info("local product deleted", zap.Int64("id", id))
	}
	return found, nil
}

// Replace overwrites the whole stored list.
func (s *Store) Replace(ctx context.Context, products []models.Product) error {
	err := s.mutate(ctx, func([]models.Product) ([]models.Product, bool) {
		return products, true
	})
	if err != nil {
		return err
	}
	s.log.Info("local products replaced", zap.Int("count", len(products)))
	return nil
}

// Ping reports whether the underlying keeper is reachable.
func (s *Store) Ping(ctx context.Context) bool {
	return s.keeper.Ping(ctx)
}

// mutate runs fn over the decoded list inside the keeper's atomic update.
// fn reports whether the list changed; unchanged lists are not rewritten.
func (s *Store) mutate(ctx context.Context, fn func([]models.Product) ([]models.Product, bool)) error {
	err := s.keeper.Update(ctx, ProductsKey, func(current string, ok bool) (string, error) {
		products := []models.Product{}
		if ok {
			var err error
			if products, err = Unmarshal(current); err != nil {
				return "", err
			}
		}
		next, changed := fn(products)
		if !changed {
			return "", ErrNoChange
		}
		return Marshal(next)
	})
	if err != nil && !errors.Is(err, ErrNoChange) {
		return fmt.Errorf("write local products: %w", err)
	}
	return nil
}

// Marshal encodes products in the stored record format.
func Marshal(products []models.Product) (string, error) {
	if products == nil {
		products = []models.Product{}
	}
	b, err := json.Marshal(products)
	if err != nil {
		return "", fmt.Errorf("encode products: %w", err)
	}
	return string(b), nil
}

// Unmarshal decodes a stored record. Blank content and null decode to an empty list.
func Unmarshal(raw string) ([]models.Product, error) {
	if strings.TrimSpace(raw) == "" {
		return []models.Product{}, nil
	}
	var products []models.Product
	if err := json.Unmarshal([]byte(raw), &products); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	if products == nil {
		products = []models.Product{}
	}
	return products, nil
}
