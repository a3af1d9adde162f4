package httpapi

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"medpos/backend/internal/domain"
	"medpos/backend/internal/inventory"
	"medpos/backend/internal/search"
)

type itemRequest struct {
	domain.InventoryItem
	AdminPassword string `json:"admin_password"`
}

type itemUpdateRequest struct {
	domain.ItemUpdate
	AdminPassword string `json:"admin_password"`
}

type adjustRequest struct {
	Delta         int    `json:"delta"`
	AdminPassword string `json:"admin_password"`
}

func (a *API) handleListInventory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	items, err := a.engine.ListInventory(r.Context(), domain.ItemFilter{
		Query:    query.Get("q"),
		Category: query.Get("category"),
		Limit:    parsePositiveLimit(query.Get("limit"), 0, 1000),
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) handleSuggestItems(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := parsePositiveLimit(query.Get("limit"), search.DefaultSuggestLimit, 50)
	items, err := a.engine.SuggestItems(r.Context(), query.Get("prefix"), limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) handleLowStock(w http.ResponseWriter, r *http.Request) {
	threshold := inventory.WatcherThreshold
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("threshold must be an integer"))
			return
		}
		threshold = parsed
	}
	items, err := a.engine.LowStock(r.Context(), threshold)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"threshold": threshold, "items": items})
}

func (a *API) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item, err := a.engine.GetItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (a *API) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	password, ok := a.adminPassword(w, r, req.AdminPassword)
	if !ok {
		return
	}
	item, err := a.engine.CreateItem(r.Context(), req.InventoryItem, password)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (a *API) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var req itemUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	password, ok := a.adminPassword(w, r, req.AdminPassword)
	if !ok {
		return
	}
	item, err := a.engine.UpdateItem(r.Context(), chi.URLParam(r, "id"), req.ItemUpdate, password)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (a *API) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	password, ok := a.adminPassword(w, r, "")
	if !ok {
		return
	}
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	if err := a.engine.DeleteItem(r.Context(), chi.URLParam(r, "id"), force, password); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleAdjustStock(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	password, ok := a.adminPassword(w, r, req.AdminPassword)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	qty, err := a.engine.AdjustStock(r.Context(), id, req.Delta, password)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "quantity": qty})
}

// handleImportInventory accepts either a multipart upload in field "file" or
// a raw CSV body.
func (a *API) handleImportInventory(w http.ResponseWriter, r *http.Request) {
	var (
		body     io.Reader = r.Body
		fromForm string
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxImportBody); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("multipart field \"file\" is required"))
			return
		}
		defer file.Close()
		body = file
		fromForm = r.FormValue("admin_password")
	}

	password, ok := a.adminPassword(w, r, fromForm)
	if !ok {
		return
	}
	report, err := a.engine.ImportInventory(r.Context(), body, password)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
