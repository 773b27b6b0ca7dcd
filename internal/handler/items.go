package handler

import (
	"net/http"

	"scanventory-api/internal/service"
	"scanventory-api/pkg/apierror"
	"scanventory-api/pkg/response"
	"scanventory-api/pkg/uid"

	"github.com/go-chi/chi/v5"
)

// ItemHandler handles pantry item HTTP requests.
type ItemHandler struct {
	items *service.ItemService
}

// NewItemHandler creates a new item handler.
func NewItemHandler(items *service.ItemService) *ItemHandler {
	return &ItemHandler{items: items}
}

// List handles GET /api/items
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.items.List(r.Context(), service.ItemQuery{
		Shelf:    q.Get("shelf"),
		Category: q.Get("category"),
		Search:   q.Get("search"),
		SortBy:   q.Get("sortBy"),
		Order:    q.Get("order"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.List(w, items, len(items))
}

// Get handles GET /api/items/{id}
func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	item, err := h.items.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.OK(w, item)
}

// Create handles POST /api/items
func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in service.ItemInput
	if !decodeJSON(w, r, &in) {
		return
	}

	item, err := h.items.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Created(w, item)
}

// Update handles PUT /api/items/{id}
func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	var patch service.ItemPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	change, err := h.items.Update(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeChange(w, change)
}

// Delete handles DELETE /api/items/{id}
func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	if err := h.items.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	response.Message(w, "Item deleted successfully", 1)
}

type quantityRequest struct {
	Delta *int `json:"delta"`
}

// AdjustQuantity handles PATCH /api/items/{id}/quantity
func (h *ItemHandler) AdjustQuantity(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	var req quantityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Delta == nil || *req.Delta == 0 {
		response.Error(w, apierror.ValidationError("", apierror.FieldError{Field: "delta", Message: "must be a non-zero integer"}))
		return
	}

	change, err := h.items.AdjustQuantity(r.Context(), id, *req.Delta)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeChange(w, change)
}

type scanRequest struct {
	Barcode string `json:"barcode"`
	Action  string `json:"action"`
}

// Scan handles POST /api/items/scan
func (h *ItemHandler) Scan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.items.Scan(r.Context(), req.Barcode, req.Action)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.OK(w, result)
}

func writeChange(w http.ResponseWriter, change *service.ItemChange) {
	if change.Deleted {
		response.Message(w, "Item removed because its quantity reached 0", 1)
		return
	}
	response.OK(w, change.Item)
}

// itemID reads the {id} URL parameter. Identifiers are always UUIDs, so
// anything else cannot exist.
func itemID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if !uid.IsValid(id) {
		response.Error(w, apierror.NotFound("Item not found"))
		return "", false
	}
	return id, true
}
