package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/drstein77/productcatalog/internal/logger"
	"github.com/drstein77/productcatalog/internal/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() (*Store, *MemoryKeeper) {
	k := NewMemoryKeeper()
	return NewStore(k, logger.Logger{}), k
}

func product(id int64, title string) models.Product {
	return models.Product{ID: id, Title: title, Price: 1, Stock: 1}
}

func ids(products []models.Product) []int64 {
	out := make([]int64, 0, len(products))
	for _, p := range products {
		out = append(out, p.ID)
	}
	return out
}

func TestListAbsentKeyIsEmpty(t *testing.T) {
	s, _ := newTestStore()

	products, err := s.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, products)
	assert.Empty(t, products)
}

func TestListBlankOrNullRecordIsEmpty(t *testing.T) {
	for _, raw := range []string{"", "   ", "null", "[]"} {
		s, k := newTestStore()
		k.Set(ProductsKey, raw)

		products, err := s.List(context.Background())
		require.NoError(t, err, raw)
		assert.Empty(t, products, raw)
	}
}

func TestListCorruptRecordFails(t *testing.T) {
	s, k := newTestStore()
	k.Set(ProductsKey, "{not json")

	_, err := s.List(context.Background())
	require.Error(t, err)
}

func TestAddPrepends(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	require.NoError(t, s.Add(ctx, product(1, "first")))
	require.NoError(t, s.Add(ctx, product(2, "second")))
	require.NoError(t, s.Add(ctx, product(3, "third")))

	products, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 2, 1}, ids(products))
}

func TestSequenceReflectsNetEffect(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	require.NoError(t, s.Add(ctx, product(1, "pen")))
	require.NoError(t, s.Add(ctx, product(2, "mug")))
	require.NoError(t, s.Add(ctx, product(3, "lamp")))

	found, err := s.Update(ctx, product(2, "blue mug"))
	require.NoError(t, err)
	assert.True(t, found)

	found, err = s.Update(ctx, product(2, "red mug"))
	require.NoError(t, err)
	assert.True(t, found)

	found, err = s.Delete(ctx, 1)
	require.NoError(t, err)
	assert.True(t, found)

	require.NoError(t, s.Add(ctx, product(4, "desk")))

	products, err := s.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{4, 3, 2}, ids(products))
	assert.Equal(t, "red mug", products[2].Title)
}

func TestUpdateAbsentIsNoop(t *testing.T) {
	ctx := context.Background()
	s, k := newTestStore()
	require.NoError(t, s.Add(ctx, product(1, "pen")))
	before, _, _ := k.Get(ctx, ProductsKey)

	found, err := s.Update(ctx, product(99, "ghost"))
	require.NoError(t, err)
	assert.False(t, found)

	after, _, _ := k.Get(ctx, ProductsKey)
	assert.Equal(t, before, after)
}

func TestNoopMutationsLeaveAbsentKeyAbsent(t *testing.T) {
	ctx := context.Background()
	s, k := newTestStore()

	found, err := s.Update(ctx, product(99, "ghost"))
	require.NoError(t, err)
	assert.False(t, found)

	removed, err := s.Delete(ctx, 99)
	require.NoError(t, err)
	assert.False(t, removed)

	_, ok, err := k.Get(ctx, ProductsKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteRemovesExactlyOne(t *testing.T) {
	ctx := context.Background()
	s, k := newTestStore()
	raw, err := Marshal([]models.Product{product(7, "a"), product(7, "b"), product(8, "c")})
	require.NoError(t, err)
	k.Set(ProductsKey, raw)

	_, err = s.Delete(ctx, 7)
	require.NoError(t, err)

	products, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "b", products[0].Title)
}

func TestDeleteTwiceEqualsOnce(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()
	require.NoError(t, s.Add(ctx, product(1, "pen")))
	require.NoError(t, s.Add(ctx, product(2, "mug")))

	found, err := s.Delete(ctx, 1)
	require.NoError(t, err)
	assert.True(t, found)
	once, err := s.List(ctx)
	require.NoError(t, err)

	found, err = s.Delete(ctx, 1)
	require.NoError(t, err)
	assert.False(t, found)
	twice, err := s.List(ctx)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()
	require.NoError(t, s.Add(ctx, product(5, "pen")))

	p, ok, err := s.Get(ctx, 5)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "pen", p.Title)

	_, ok, err = s.Get(ctx, 6)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReplace(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()
	require.NoError(t, s.Add(ctx, product(1, "pen")))

	require.NoError(t, s.Replace(ctx, []models.Product{product(9, "x"), product(8, "y")}))

	products, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{9, 8}, ids(products))
}

func TestRoundTripPreservesProducts(t *testing.T) {
	full := models.Product{ID: 42, Title: "Lamp", Description: "warm light", Category: "home", Price: 19.99, Stock: 3, Thumbnail: "https://example.com/lamp.png"}
	models.ApplySampleDetails(&full)
	full.Meta.CreatedAt = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	full.Meta.UpdatedAt = full.Meta.CreatedAt

	in := []models.Product{full, product(1, "pen")}
	raw, err := Marshal(in)
	require.NoError(t, err)

	out, err := Unmarshal(raw)
	require.NoError(t, err)
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	again, err := Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, raw, again)
}

type failingKeeper struct{ *MemoryKeeper }

func (f *failingKeeper) Update(context.Context, string, func(string, bool) (string, error)) error {
	return errors.New("disk full")
}

func TestWriteFailurePropagates(t *testing.T) {
	s := NewStore(&failingKeeper{MemoryKeeper: NewMemoryKeeper()}, logger.Logger{})

	err := s.Add(context.Background(), product(1, "pen"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}
