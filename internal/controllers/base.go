package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/drstein77/productcatalog/internal/catalog"
	"github.com/drstein77/productcatalog/internal/middleware"
	"github.com/drstein77/productcatalog/internal/models"
	"github.com/drstein77/productcatalog/internal/remote"
	"github.com/drstein77/productcatalog/internal/view"
	"github.com/go-chi/chi"
	"go.uber.org/zap"
)

// Store is the local edit store as seen by the HTTP surface.
type Store interface {
	catalog.Store
	Replace(context.Context, []models.Product) error
	Ping(context.Context) bool
}

type Log interface {
	Info(string, ...zap.Field)
	Warn(string, ...zap.Field)
	Error(string, ...zap.Field)
}

// Notices shown after a successful mutation, keyed by the notice query value.
var notices = map[string]string{
	"added":   "Product added successfully!",
	"updated": "Product updated successfully!",
	"deleted": "Product deleted successfully!",
	"local":   "Only locally stored products can be edited; nothing was changed.",
}

// BaseController struct for handling requests
type BaseController struct {
	store  Store
	remote catalog.Remote
	log    Log
}

// NewBaseController creates a new BaseController instance
func NewBaseController(store Store, remote catalog.Remote, log Log) *BaseController {
	return &BaseController{
		store:  store,
		remote: remote,
		log:    log,
	}
}

// Route sets up the routes for the BaseController
func (h *BaseController) Route() *chi.Mux {
	r := chi.NewRouter()

	r.Get("/healthz", h.healthz)
	r.Get("/ping", h.ping)

	r.Get("/", h.index)
	r.Get("/product", h.detail)
	r.Get("/products/new", h.newForm)
	r.Post("/products", h.create)
	r.Get("/products/{id}/edit", h.editForm)
	r.Post("/products/{id}", h.update)
	r.Get("/products/{id}/delete", h.confirmDelete)
	r.Post("/products/{id}/delete", h.delete)

	r.Route("/api/v0/products", func(r chi.Router) {
		r.Get("/", h.apiList)
		r.Post("/", h.apiCreate)
		r.Group(func(r chi.Router) {
			r.Use(middleware.ArchiveTypeMiddleware)
			r.Get("/export", h.apiExport)
			r.Post("/import", h.apiImport)
		})
		r.Get("/{id}", h.apiGet)
		r.Put("/{id}", h.apiUpdate)
		r.Delete("/{id}", h.apiDelete)
	})

	return r
}

func (h *BaseController) newController() *catalog.Controller {
	return catalog.NewController(h.remote, h.store, h.log)
}

// writer returns a controller for requests that write and then redirect or
// answer without the merged list.
func (h *BaseController) writer() *catalog.Controller {
	return catalog.NewController(h.remote, h.store, h.log, catalog.WithoutReload())
}

func (h *BaseController) healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (h *BaseController) ping(w http.ResponseWriter, r *http.Request) {
	if !h.store.Ping(r.Context()) {
		http.Error(w, "store unavailable", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// load runs the loading phase, or a search when query is not empty.
func load(ctx context.Context, c *catalog.Controller, query string) error {
	if query != "" {
		return c.Search(ctx, query)
	}
	return c.Refresh(ctx)
}

func (h *BaseController) index(w http.ResponseWriter, r *http.Request) {
	c := h.newController()
	query := r.URL.Query().Get("q")
	if err := load(r.Context(), c, query); err != nil {
		h.fail(w, "Failed to read local products", err)
		return
	}

	content := view.Loading()
	if c.Phase() == catalog.PhaseLoaded {
		var err error
		if content, err = view.ProductList(c.Products()); err != nil {
			h.fail(w, "Failed to render products", err)
			return
		}
	}

	h.render(w, http.StatusOK, func() error {
		return view.IndexPage(w, view.IndexData{
			Page:    view.Page{Notice: notices[r.URL.Query().Get("notice")]},
			Query:   query,
			Content: content,
		})
	})
}

func (h *BaseController) detail(w http.ResponseWriter, r *http.Request) {
	d := catalog.NewDetailController(r.URL.Query(), h.store, h.remote, h.log)
	if !d.HasID() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	data := view.DetailData{}
	status := http.StatusOK
	p, err := d.Resolve(r.Context())
	switch {
	case err == nil:
		content, err := view.ProductDetail(p)
		if err != nil {
			h.fail(w, "Failed to render product", err)
			return
		}
		data.Product = &p
		data.Content = content
	case isNotFound(err):
		status = http.StatusNotFound
	default:
		status = http.StatusBadGateway
	}

	h.render(w, status, func() error { return view.DetailPage(w, data) })
}

func (h *BaseController) newForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, func() error {
		return view.FormPage(w, view.FormData{Action: "/products"})
	})
}

func (h *BaseController) create(w http.ResponseWriter, r *http.Request) {
	c := h.writer()
	h.submit(w, r, c, "/products", "added")
}

func (h *BaseController) editForm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	c := h.newController()
	p, err := c.BeginEdit(r.Context(), id)
	if err != nil {
		h.fail(w, "Failed to load product", err)
		return
	}

	h.render(w, http.StatusOK, func() error {
		return view.FormPage(w, view.FormData{
			Action:  fmt.Sprintf("/products/%d", id),
			Editing: true,
			Input:   catalog.FromProduct(p),
		})
	})
}

func (h *BaseController) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	c := h.writer()
	if _, err := c.BeginEdit(r.Context(), id); err != nil {
		h.fail(w, "Failed to load product", err)
		return
	}
	h.submit(w, r, c, fmt.Sprintf("/products/%d", id), "updated")
}

// submit handles the product form for both add and edit mode.
func (h *BaseController) submit(w http.ResponseWriter, r *http.Request, c *catalog.Controller, action, notice string) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}
	_, editing := c.EditingID()

	in, err := catalog.ParseForm(r.PostForm.Get)
	if err == nil {
		_, err = c.Submit(r.Context(), in)
	}

	var verr *catalog.ValidationError
	if errors.As(err, &verr) {
		h.render(w, http.StatusUnprocessableEntity, func() error {
			return view.FormPage(w, view.FormData{
				Page:    view.Page{Alert: catalog.AlertInvalidInput},
				Action:  action,
				Editing: editing,
				Input:   in,
			})
		})
		return
	}
	if errors.Is(err, catalog.ErrNotStored) {
		notice = "local"
		err = nil
	}
	if err != nil {
		h.fail(w, "Failed to save product", err)
		return
	}

	http.Redirect(w, r, "/?notice="+url.QueryEscape(notice), http.StatusSeeOther)
}

func (h *BaseController) confirmDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	p, found, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "Failed to read local products", err)
		return
	}
	if !found {
		// remote only products can be "deleted" too; nothing local will change
		p = models.Product{ID: id, Title: fmt.Sprintf("Product %d", id)}
	}

	h.render(w, http.StatusOK, func() error {
		return view.ConfirmDeletePage(w, view.ConfirmData{Product: p})
	})
}

func (h *BaseController) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	confirmed := func(int64) bool { return r.PostForm.Get("confirm") == "yes" }
	c := h.writer()
	if _, err := c.Delete(r.Context(), id, confirmed); err != nil {
		h.fail(w, "Failed to delete product", err)
		return
	}
	if !confirmed(id) {
		http.Redirect(w, r, fmt.Sprintf("/products/%d/delete", id), http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, "/?notice=deleted", http.StatusSeeOther)
}

func (h *BaseController) productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid product id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (h *BaseController) render(w http.ResponseWriter, status int, fn func() error) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := fn(); err != nil {
		h.log.Error("Failed to render page", zap.Error(err))
	}
}

func (h *BaseController) fail(w http.ResponseWriter, msg string, err error) {
	if isNotFound(err) {
		http.Error(w, "Product not found", http.StatusNotFound)
		return
	}
	h.log.Error(msg, zap.Error(err))
	http.Error(w, fmt.Sprintf("%s: %v", msg, err), http.StatusInternalServerError)
}

func isNotFound(err error) bool {
	return errors.Is(err, catalog.ErrNotFound) || errors.Is(err, remote.ErrNotFound)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
