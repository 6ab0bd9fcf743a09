package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/drstein77/productcatalog/internal/catalog"
	"github.com/drstein77/productcatalog/internal/middleware"
	"github.com/drstein77/productcatalog/internal/storage"
	"go.uber.org/zap"
)

// exportFileName is the record's file name inside export archives.
const exportFileName = "products.json"

type errorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

func (h *BaseController) apiList(w http.ResponseWriter, r *http.Request) {
	c := h.newController()
	if err := load(r.Context(), c, r.URL.Query().Get("q")); err != nil {
		h.apiFail(w, err)
		return
	}
	if c.Phase() != catalog.PhaseLoaded {
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "remote catalog unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, c.Products())
}

func (h *BaseController) apiGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	query := url.Values{"id": {strconv.FormatInt(id, 10)}}
	p, err := catalog.NewDetailController(query, h.store, h.remote, h.log).Resolve(r.Context())
	if err != nil {
		h.apiFail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *BaseController) apiCreate(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeInput(w, r)
	if !ok {
		return
	}
	p, err := h.writer().Add(r.Context(), in)
	if err != nil {
		h.apiFail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *BaseController) apiUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	in, ok := decodeInput(w, r)
	if !ok {
		return
	}

	c := h.writer()
	if _, err := c.BeginEdit(r.Context(), id); err != nil {
		h.apiFail(w, err)
		return
	}
	p, err := c.Update(r.Context(), in)
	if err != nil {
		h.apiFail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *BaseController) apiDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	removed, err := h.writer().Delete(r.Context(), id, catalog.Confirmed)
	if err != nil {
		h.apiFail(w, err)
		return
	}
	if !removed {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "product is not stored locally"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// apiExport streams the local record inside a zip or tar archive.
func (h *BaseController) apiExport(w http.ResponseWriter, r *http.Request) {
	products, err := h.store.List(r.Context())
	if err != nil {
		h.apiFail(w, err)
		return
	}
	raw, err := storage.Marshal(products)
	if err != nil {
		h.apiFail(w, err)
		return
	}

	archiveType := middleware.ArchiveTypeFromContext(r.Context())
	w.Header().Set("Content-Type", middleware.ArchiveContentType(archiveType))
	w.Header().Set("Content-Disposition", `attachment; filename="products.`+archiveType+`"`)

	aw, err := middleware.NewArchiveWriter(w, archiveType, exportFileName)
	if err != nil {
		h.apiFail(w, err)
		return
	}
	if _, err := io.WriteString(aw, raw); err != nil {
		h.log.Error("Failed to write export", zap.Error(err))
		return
	}
	if err := aw.Close(); err != nil {
		h.log.Error("Failed to finish export archive", zap.Error(err))
	}
}

// apiImport replaces the local record with the one inside the uploaded archive.
func (h *BaseController) apiImport(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	products, err := storage.Unmarshal(string(raw))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := h.store.Replace(r.Context(), products); err != nil {
		h.apiFail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"imported": len(products)})
}

func decodeInput(w http.ResponseWriter, r *http.Request) (catalog.ProductInput, bool) {
	var in catalog.ProductInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return in, false
	}
	return in, true
}

func (h *BaseController) apiFail(w http.ResponseWriter, err error) {
	var verr *catalog.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: catalog.AlertInvalidInput, Fields: verr.Fields})
	case isNotFound(err):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "product not found"})
	case errors.Is(err, catalog.ErrNotStored):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "product is not stored locally"})
	default:
		h.log.Error("API request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}
