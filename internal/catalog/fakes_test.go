package catalog

import (
	"context"
	"sync"

	"github.com/drstein77/productcatalog/internal/logger"
	"github.com/drstein77/productcatalog/internal/models"
	"github.com/drstein77/productcatalog/internal/remote"
	"github.com/drstein77/productcatalog/internal/storage"
)

type fakeRemote struct {
	mu       sync.Mutex
	products []models.Product
	search   map[string][]models.Product
	err      error
	calls    map[string]int
}

func newFakeRemote(products ...models.Product) *fakeRemote {
	return &fakeRemote{products: products, search: map[string][]models.Product{}, calls: map[string]int{}}
}

func (f *fakeRemote) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
}

func (f *fakeRemote) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeRemote) ListAll(context.Context) ([]models.Product, error) {
	f.record("list")
	if f.err != nil {
		return nil, f.err
	}
	return append([]models.Product(nil), f.products...), nil
}

func (f *fakeRemote) Search(_ context.Context, q string) ([]models.Product, error) {
	f.record("search")
	if f.err != nil {
		return nil, f.err
	}
	return f.search[q], nil
}

func (f *fakeRemote) GetByID(_ context.Context, id int64) (models.Product, error) {
	f.record("get")
	if f.err != nil {
		return models.Product{}, f.err
	}
	for _, p := range f.products {
		if p.ID == id {
			return p, nil
		}
	}
	return models.Product{}, remote.ErrNotFound
}

func newStore(products ...models.Product) (*storage.Store, *storage.MemoryKeeper) {
	k := storage.NewMemoryKeeper()
	if len(products) > 0 {
		raw, err := storage.Marshal(products)
		if err != nil {
			panic(err)
		}
		k.Set(storage.ProductsKey, raw)
	}
	return storage.NewStore(k, logger.Logger{}), k
}

func validInput() ProductInput {
	return ProductInput{
		Title:       "Desk Lamp",
		Description: "Warm light",
		Category:    "home",
		Price:       24.5,
		Stock:       3,
		ImageURL:    "https://example.com/lamp.png",
	}
}

func titles(products []models.Product) []string {
	out := make([]string, 0, len(products))
	for _, p := range products {
		out = append(out, p.Title)
	}
	return out
}
