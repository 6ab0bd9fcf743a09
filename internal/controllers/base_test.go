package controllers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/drstein77/productcatalog/internal/catalog"
	"github.com/drstein77/productcatalog/internal/compress"
	"github.com/drstein77/productcatalog/internal/logger"
	"github.com/drstein77/productcatalog/internal/models"
	"github.com/drstein77/productcatalog/internal/remote"
	"github.com/drstein77/productcatalog/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	router    http.Handler
	store     *storage.Store
	remoteHit *atomic.Int32
	fail      *atomic.Bool
}

// newTestEnv wires the routes to an in-memory store and a stub remote catalog
// that serves "Remote Mug" (id 2) for listing and id lookups.
func newTestEnv(t *testing.T, local ...models.Product) *testEnv {
	t.Helper()
	env := &testEnv{remoteHit: &atomic.Int32{}, fail: &atomic.Bool{}}

	mug := models.Product{ID: 2, Title: "Remote Mug", Category: "kitchen", Price: 9.5, Stock: 10}
	mux := http.NewServeMux()
	mux.HandleFunc("/products", func(w http.ResponseWriter, r *http.Request) {
		env.remoteHit.Add(1)
		if env.fail.Load() {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(models.ProductsResponse{Products: []models.Product{mug}})
	})
	mux.HandleFunc("/products/search", func(w http.ResponseWriter, r *http.Request) {
		env.remoteHit.Add(1)
		var products []models.Product
		if strings.Contains(strings.ToLower(mug.Title), strings.ToLower(r.URL.Query().Get("q"))) {
			products = append(products, mug)
		}
		json.NewEncoder(w).Encode(models.ProductsResponse{Products: products})
	})
	mux.HandleFunc("/products/2", func(w http.ResponseWriter, r *http.Request) {
		env.remoteHit.Add(1)
		json.NewEncoder(w).Encode(mug)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	keeper := storage.NewMemoryKeeper()
	if len(local) > 0 {
		raw, err := storage.Marshal(local)
		require.NoError(t, err)
		keeper.Set(storage.ProductsKey, raw)
	}
	env.store = storage.NewStore(keeper, logger.Logger{})
	client := remote.NewClient(remote.WithBaseURL(srv.URL+"/products"), remote.WithHTTPClient(srv.Client()))
	env.router = NewBaseController(env.store, client, logger.Logger{}).Route()
	return env
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func parseHTML(t *testing.T, body []byte) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	require.NoError(t, err)
	return doc
}

func cardTitles(doc *goquery.Document) []string {
	var out []string
	doc.Find("#product-container .product-card h3").Each(func(_ int, s *goquery.Selection) {
		out = append(out, s.Text())
	})
	return out
}

func postForm(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func validForm() url.Values {
	return url.Values{
		"title":       {"Desk Lamp"},
		"description": {"Warm light"},
		"category":    {"home"},
		"price":       {"24.50"},
		"stock":       {"3"},
		"imageUrl":    {"https://example.com/lamp.png"},
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIndexListsLocalBeforeRemote(t *testing.T) {
	env := newTestEnv(t, models.Product{ID: 1, Title: "Local Pen"})

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Local Pen", "Remote Mug"}, cardTitles(parseHTML(t, rec.Body.Bytes())))
}

func TestIndexRemoteDownShowsPlaceholder(t *testing.T) {
	env := newTestEnv(t, models.Product{ID: 1, Title: "Local Pen"})
	env.fail.Store(true)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	doc := parseHTML(t, rec.Body.Bytes())
	assert.Equal(t, "Loading...", strings.TrimSpace(doc.Find("#product-container").Text()))
}

func TestSearchWithoutMatchesShowsEmptyState(t *testing.T) {
	env := newTestEnv(t, models.Product{ID: 1, Title: "Local Pen"})

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/?q=zzz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	doc := parseHTML(t, rec.Body.Bytes())
	assert.Equal(t, "No products found", strings.TrimSpace(doc.Find("#product-container").Text()))
	value, _ := doc.Find("#search-bar").Attr("value")
	assert.Equal(t, "zzz", value)
}

func TestSearchMergesLocalFirst(t *testing.T) {
	env := newTestEnv(t, models.Product{ID: 1, Title: "Mug Warmer"}, models.Product{ID: 3, Title: "Pen"})

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/?q=mug", nil))

	assert.Equal(t, []string{"Mug Warmer", "Remote Mug"}, cardTitles(parseHTML(t, rec.Body.Bytes())))
}

func TestDetailWithoutIDRedirects(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/product", nil))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestDetailLocalSkipsRemote(t *testing.T) {
	env := newTestEnv(t, models.Product{ID: 1000001, Title: "Local Pen", Price: 2})

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/product?id=1000001", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	doc := parseHTML(t, rec.Body.Bytes())
	assert.Equal(t, "Local Pen", doc.Find("#product-details .product-title").Text())
	assert.Equal(t, int32(0), env.remoteHit.Load())
}

func TestDetailRemoteAndNotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/product?id=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "$9.50", parseHTML(t, rec.Body.Bytes()).Find(".product-detail-price").Text())

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/product?id=404", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	doc := parseHTML(t, rec.Body.Bytes())
	assert.Empty(t, strings.TrimSpace(doc.Find("#product-details").Text()))
}

func TestAddRejectsZeroPrice(t *testing.T) {
	env := newTestEnv(t)
	form := validForm()
	form.Set("price", "0")

	rec := env.do(t, postForm("/products", form))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	doc := parseHTML(t, rec.Body.Bytes())
	assert.Equal(t, catalog.AlertInvalidInput, doc.Find(".alert").Text())
	title, _ := doc.Find("#title").Attr("value")
	assert.Equal(t, "Desk Lamp", title)

	local, err := env.store.List(t.Context())
	require.NoError(t, err)
	assert.Empty(t, local)
}

func TestAddThenListShowsNewProductFirst(t *testing.T) {
	env := newTestEnv(t, models.Product{ID: 1, Title: "Local Pen"})

	rec := env.do(t, postForm("/products", validForm()))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/?notice=added", rec.Header().Get("Location"))

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/?notice=added", nil))
	doc := parseHTML(t, rec.Body.Bytes())
	assert.Equal(t, []string{"Desk Lamp", "Local Pen", "Remote Mug"}, cardTitles(doc))
	assert.Equal(t, "Product added successfully!", doc.Find(".notice").Text())
}

func TestEditFlow(t *testing.T) {
	env := newTestEnv(t, models.Product{ID: 1, Title: "Local Pen", Description: "ink", Category: "office", Price: 2, Stock: 5, Thumbnail: "https://example.com/pen.png"})

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/products/1/edit", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	doc := parseHTML(t, rec.Body.Bytes())
	assert.Equal(t, "Update", doc.Find("#submit-btn").Text())
	action, _ := doc.Find("#product-form").Attr("action")
	assert.Equal(t, "/products/1", action)

	form := validForm()
	form.Set("title", "Gel Pen")
	rec = env.do(t, postForm("/products/1", form))
	require.Equal(t, http.StatusSeeOther, rec.Code)

	p, ok, err := env.store.Get(t.Context(), 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Gel Pen", p.Title)
	assert.Equal(t, "Essence", p.Brand)
}

func TestEditInvalidKeepsUpdateMode(t *testing.T) {
	env := newTestEnv(t, models.Product{ID: 1, Title: "Local Pen"})
	form := validForm()
	form.Set("stock", "0")

	rec := env.do(t, postForm("/products/1", form))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Update", parseHTML(t, rec.Body.Bytes()).Find("#submit-btn").Text())
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	env := newTestEnv(t, models.Product{ID: 1, Title: "Local Pen"})

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/products/1/delete", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Are you sure you want to delete this product?")

	rec = env.do(t, postForm("/products/1/delete", url.Values{}))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/products/1/delete", rec.Header().Get("Location"))
	local, _ := env.store.List(t.Context())
	assert.Len(t, local, 1)

	rec = env.do(t, postForm("/products/1/delete", url.Values{"confirm": {"yes"}}))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/?notice=deleted", rec.Header().Get("Location"))
	local, _ = env.store.List(t.Context())
	assert.Empty(t, local)
}

func TestInvalidProductID(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/products/abc/edit", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIProducts(t *testing.T) {
	env := newTestEnv(t, models.Product{ID: 1, Title: "Local Pen"})

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v0/products", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var products []models.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &products))
	require.Len(t, products, 2)
	assert.Equal(t, "Local Pen", products[0].Title)

	body := `{"title":"Lamp","description":"d","category":"home","price":0,"stock":1,"imageUrl":"https://example.com/l.png"}`
	rec = env.do(t, httptest.NewRequest(http.MethodPost, "/api/v0/products", strings.NewReader(body)))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"price"`)

	body = strings.Replace(body, `"price":0`, `"price":5`, 1)
	rec = env.do(t, httptest.NewRequest(http.MethodPost, "/api/v0/products", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)
	var created models.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.GreaterOrEqual(t, created.ID, catalog.MinLocalID)

	path := "/api/v0/products/" + strconv.FormatInt(created.ID, 10)
	rec = env.do(t, httptest.NewRequest(http.MethodPut, path, strings.NewReader(strings.Replace(body, "Lamp", "Big Lamp", 1))))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Big Lamp")

	rec = env.do(t, httptest.NewRequest(http.MethodDelete, path, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, httptest.NewRequest(http.MethodDelete, path, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPIListRemoteDown(t *testing.T) {
	env := newTestEnv(t)
	env.fail.Store(true)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v0/products", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestExportImportRoundTrip(t *testing.T) {
	env := newTestEnv(t, models.Product{ID: 1, Title: "Local Pen"}, models.Product{ID: 3, Title: "Local Cup"})

	for _, typ := range []string{"zip", "tar"} {
		rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v0/products/export?archiveType="+typ, nil))
		require.Equal(t, http.StatusOK, rec.Code, typ)
		archive := rec.Body.Bytes()

		var rc io.ReadCloser
		var err error
		if typ == "zip" {
			assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
			rc, err = compress.NewZipReader(io.NopCloser(bytes.NewReader(archive)))
		} else {
			assert.Equal(t, "application/x-tar", rec.Header().Get("Content-Type"))
			rc, err = compress.NewTarReader(io.NopCloser(bytes.NewReader(archive)))
		}
		require.NoError(t, err)
		raw, err := io.ReadAll(rc)
		require.NoError(t, err)
		products, err := storage.Unmarshal(string(raw))
		require.NoError(t, err)
		assert.Len(t, products, 2)

		require.NoError(t, env.store.Replace(t.Context(), nil))
		req := httptest.NewRequest(http.MethodPost, "/api/v0/products/import?archiveType="+typ, bytes.NewReader(archive))
		req.Header.Set("Content-Encoding", typ)
		rec = env.do(t, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"imported":2}`, rec.Body.String())

		local, err := env.store.List(t.Context())
		require.NoError(t, err)
		require.Len(t, local, 2)
		assert.Equal(t, "Local Pen", local[0].Title)
	}
}

func TestImportTakesArchiveTypeFromContentEncoding(t *testing.T) {
	env := newTestEnv(t, models.Product{ID: 1, Title: "Local Pen"})

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v0/products/export?archiveType=tar", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	archive := rec.Body.Bytes()
	require.NoError(t, env.store.Replace(t.Context(), nil))

	req := httptest.NewRequest(http.MethodPost, "/api/v0/products/import", bytes.NewReader(archive))
	req.Header.Set("Content-Encoding", "tar")
	rec = env.do(t, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"imported":1}`, rec.Body.String())
	local, err := env.store.List(t.Context())
	require.NoError(t, err)
	require.Len(t, local, 1)
	assert.Equal(t, "Local Pen", local[0].Title)
}

func TestEditRemoteOnlyProductReportsNothingStored(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, postForm("/products/2", validForm()))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/?notice=local", rec.Header().Get("Location"))

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/?notice=local", nil))
	assert.Equal(t, notices["local"], parseHTML(t, rec.Body.Bytes()).Find(".notice").Text())

	body := `{"title":"Lamp","description":"d","category":"home","price":5,"stock":1,"imageUrl":"https://example.com/l.png"}`
	rec = env.do(t, httptest.NewRequest(http.MethodPut, "/api/v0/products/2", strings.NewReader(body)))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	local, err := env.store.List(t.Context())
	require.NoError(t, err)
	assert.Empty(t, local)
}

func TestWritesDoNotFetchRemoteCatalog(t *testing.T) {
	env := newTestEnv(t, models.Product{ID: 1, Title: "Local Pen"})

	rec := env.do(t, postForm("/products", validForm()))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	rec = env.do(t, postForm("/products/1", validForm()))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	rec = env.do(t, postForm("/products/1/delete", url.Values{"confirm": {"yes"}}))
	require.Equal(t, http.StatusSeeOther, rec.Code)

	body := `{"title":"Lamp","description":"d","category":"home","price":5,"stock":1,"imageUrl":"https://example.com/l.png"}`
	rec = env.do(t, httptest.NewRequest(http.MethodPost, "/api/v0/products", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)

	assert.Equal(t, int32(0), env.remoteHit.Load())
}
