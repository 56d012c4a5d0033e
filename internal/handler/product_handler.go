package handler

import (
	"context"
	"net/http"
	"strings"

	"invoiceflow/internal/catalog"
	"invoiceflow/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Catalog is the part of the synchronizer the HTTP API drives.
type Catalog interface {
	Ready() bool
	Product(id string) (model.Product, bool)
	Search(query string) []model.Product
	LowStock() []model.Product
	FindDuplicates(partial string) catalog.DuplicateReport
	Add(ctx context.Context, input model.ProductInput) (string, error)
	Update(ctx context.Context, id string, edited model.ProductInput, lastKnown model.Product) (model.ProductPatch, error)
	Remove(ctx context.Context, id string, confirmer catalog.Confirmer) (bool, error)
	AdjustStock(ctx context.Context, id string, delta int64) (int64, error)
}

// UpdateRequest is the body of PATCH /api/products/{id}. LastKnown is the
// product as the client saw it when editing began; when omitted the
// current snapshot is used.
type UpdateRequest struct {
	Edited    model.ProductInput `json:"edited"`
	LastKnown *model.Product     `json:"lastKnown"`
}

// StockRequest is the body of POST /api/products/{id}/stock.
type StockRequest struct {
	Delta int64 `json:"delta"`
}

// DuplicateResponse is the role-projected duplicate name report.
type DuplicateResponse struct {
	Suggestions []catalog.ExportRecord `json:"suggestions"`
	Exact       bool                   `json:"exact"`
}

// ConfirmHeader carries the answer to the delete confirmation.
const ConfirmHeader = "X-Confirm"

// ProductHandler handles product-related HTTP requests.
type ProductHandler struct {
	catalog Catalog
	logger  zerolog.Logger
}

// NewProductHandler creates a new product handler.
func NewProductHandler(c Catalog, logger zerolog.Logger) *ProductHandler {
	return &ProductHandler{
		catalog: c,
		logger:  logger.With().Str("handler", "product").Logger(),
	}
}

// Search handles GET /api/products?q= requests.
func (h *ProductHandler) Search(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	products := h.catalog.Search(r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, catalog.Project(products, roleOf(r)))
}

// LowStock handles GET /api/products/low-stock requests.
func (h *ProductHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	writeJSON(w, http.StatusOK, catalog.Project(h.catalog.LowStock(), roleOf(r)))
}

// Duplicates handles GET /api/products/duplicates?name= requests.
func (h *ProductHandler) Duplicates(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	report := h.catalog.FindDuplicates(r.URL.Query().Get("name"))
	writeJSON(w, http.StatusOK, DuplicateResponse{
		Suggestions: catalog.Project(report.Suggestions, roleOf(r)),
		Exact:       report.Exact,
	})
}

// GetByID handles GET /api/products/{id} requests.
func (h *ProductHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	product, ok := h.catalog.Product(chi.URLParam(r, "id"))
	if !ok {
		writeDomainError(w, model.ErrProductNotFound, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, catalog.Project([]model.Product{product}, roleOf(r))[0])
}

// Create handles POST /api/products requests.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	input := model.DefaultInput()
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	id, err := h.catalog.Add(r.Context(), input)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// Update handles PATCH /api/products/{id} requests.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	current, found := h.catalog.Product(id)
	lastKnown := current
	if req.LastKnown != nil {
		lastKnown = *req.LastKnown
	} else if !found {
		writeDomainError(w, model.ErrProductNotFound, h.logger)
		return
	}

	// Roles without cost visibility never send a purchase price, so the
	// stored one is carried through unchanged.
	if !roleOf(r).CanSeeCost() && found {
		req.Edited.PurchasePrice = model.FormValue(current.PurchasePrice.String())
		lastKnown.PurchasePrice = current.PurchasePrice
	}

	patch, err := h.catalog.Update(r.Context(), id, req.Edited, lastKnown)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"id": id, "updated": patch.Fields()})
}

// AdjustStock handles POST /api/products/{id}/stock requests.
func (h *ProductHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req StockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	stock, err := h.catalog.AdjustStock(r.Context(), id, req.Delta)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"id": id, "stock": stock})
}

// Delete handles DELETE /api/products/{id} requests. The confirmation is
// answered by the X-Confirm header.
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	confirmed := strings.EqualFold(strings.TrimSpace(r.Header.Get(ConfirmHeader)), "yes")

	removed, err := h.catalog.Remove(r.Context(), id, catalog.Answer(confirmed))
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	if !removed {
		writeJSON(w, http.StatusPreconditionRequired, model.ErrorResponse{
			Error:   model.ErrCodeConfirmation,
			Message: catalog.DeleteConfirmation,
		})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductHandler) ready(w http.ResponseWriter) bool {
	if h.catalog.Ready() {
		return true
	}
	writeDomainError(w, model.ErrCatalogNotReady, h.logger)
	return false
}
