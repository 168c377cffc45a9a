package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lamiti/shopsync/internal/lifecycle"
	syncpkg "github.com/lamiti/shopsync/internal/sync"
	"github.com/lamiti/shopsync/internal/types"
	"github.com/lamiti/shopsync/internal/validation"
)

// Handler implements the API handlers exposed to the UI layer.
type Handler struct {
	coordinator *syncpkg.Coordinator
	apiKey      string
	version     string
}

// NewHandler creates a new Handler.
func NewHandler(c *syncpkg.Coordinator, apiKey, version string) *Handler {
	return &Handler{
		coordinator: c,
		apiKey:      apiKey,
		version:     version,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Health returns the health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	products, err := h.coordinator.Products(ctx)
	if err != nil {
		MapDomainError(w, r, err)
		return
	}
	orders, err := h.coordinator.Orders(ctx)
	if err != nil {
		MapDomainError(w, r, err)
		return
	}
	status, err := h.coordinator.Status(ctx)
	if err != nil {
		MapDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, types.HealthResponse{
		Status:       "healthy",
		Version:      h.version,
		ProductCount: int64(len(products)),
		OrderCount:   int64(len(orders)),
		QueueDepth:   int64(status.QueuePending),
	})
}

// ListProducts handles GET /api/v1/products
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.coordinator.Products(r.Context())
	if err != nil {
		MapDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

// ListCategories handles GET /api/v1/categories
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.coordinator.Categories(r.Context())
	if err != nil {
		MapDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

// createOrderRequest is the checkout payload.
type createOrderRequest struct {
	Cart            []lifecycle.CartItem  `json:"cart"`
	Customer        types.CustomerInfo    `json:"customer"`
	ShippingAddress types.ShippingAddress `json:"shipping_address"`
	PaymentMethod   string                `json:"payment_method"`
}

// CreateOrder handles POST /api/v1/orders
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	if errs := validation.ValidateCreateOrder(req.Cart, req.Customer, req.ShippingAddress); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	order, err := h.coordinator.CreateOrder(r.Context(), req.Cart, req.Customer, req.ShippingAddress, req.PaymentMethod)
	if err != nil {
		slog.Error("order creation failed", "error", err)
		MapDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

// TrackOrder handles GET /api/v1/track/{code}
func (h *Handler) TrackOrder(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	order, err := h.coordinator.OrderByTrackingCode(r.Context(), code)
	if err != nil {
		MapDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// ListOrders handles GET /api/v1/orders (admin)
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.coordinator.Orders(r.Context())
	if err != nil {
		MapDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// GetOrder handles GET /api/v1/orders/{id} (admin)
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.coordinator.OrderByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		MapDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// statusUpdateRequest is the order transition payload.
type statusUpdateRequest struct {
	Status types.OrderStatus `json:"status"`
	Note   string            `json:"note,omitempty"`
}

// UpdateOrderStatus handles PUT /api/v1/orders/{id}/status (admin)
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	if verr := validation.ValidateOrderStatus("status", req.Status); verr != nil {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", []validation.ValidationError{*verr})
		return
	}

	order, err := h.coordinator.UpdateOrderStatus(r.Context(), chi.URLParam(r, "id"), req.Status, req.Note)
	if err != nil {
		MapDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// MarkOrderRead handles POST /api/v1/orders/{id}/read (admin)
func (h *Handler) MarkOrderRead(w http.ResponseWriter, r *http.Request) {
	if err := h.coordinator.MarkOrderRead(r.Context(), chi.URLParam(r, "id")); err != nil {
		MapDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddProduct handles POST /api/v1/products (admin)
func (h *Handler) AddProduct(w http.ResponseWriter, r *http.Request) {
	var product types.Product
	if err := json.NewDecoder(r.Body).Decode(&product); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	if errs := validation.ValidateProduct(product); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	created, err := h.coordinator.AddProduct(r.Context(), product)
	if err != nil {
		MapDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdateProduct handles PUT /api/v1/products/{id} (admin)
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var product types.Product
	if err := json.NewDecoder(r.Body).Decode(&product); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}
	product.ID = chi.URLParam(r, "id")

	if errs := validation.ValidateProduct(product); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	updated, err := h.coordinator.UpdateProduct(r.Context(), product)
	if err != nil {
		MapDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeactivateProduct handles DELETE /api/v1/products/{id} (admin).
// Products are soft-deleted so they stay mergeable.
func (h *Handler) DeactivateProduct(w http.ResponseWriter, r *http.Request) {
	updated, err := h.coordinator.DeactivateProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		MapDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// LowStockProducts handles GET /api/v1/products/low-stock (admin)
func (h *Handler) LowStockProducts(w http.ResponseWriter, r *http.Request) {
	threshold := 5
	if v := r.URL.Query().Get("threshold"); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &threshold); err != nil {
			WriteProblem(w, r, http.StatusBadRequest, "threshold must be an integer")
			return
		}
	}

	products, err := h.coordinator.LowStockProducts(r.Context(), threshold)
	if err != nil {
		MapDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

// CustomerOrders handles GET /api/v1/customers/{email}/orders (admin)
func (h *Handler) CustomerOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.coordinator.CustomerOrders(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		MapDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// CustomerStats handles GET /api/v1/customers/{email}/stats (admin)
func (h *Handler) CustomerStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.coordinator.CustomerStats(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		MapDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// SyncStatus handles GET /api/v1/sync/status (admin)
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.coordinator.Status(r.Context())
	if err != nil {
		MapDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// TriggerSync handles POST /api/v1/sync/trigger (admin).
// A pass already in flight absorbs the request.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	h.coordinator.SyncNow(r.Context())
	w.WriteHeader(http.StatusAccepted)
}

// onlineRequest flips the coordinator's connectivity state.
type onlineRequest struct {
	Online bool `json:"online"`
}

// SetOnline handles PUT /api/v1/sync/online (admin).
// The UI layer reports the device's connectivity transitions here.
func (h *Handler) SetOnline(w http.ResponseWriter, r *http.Request) {
	var req onlineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}
	h.coordinator.SetOnline(r.Context(), req.Online)
	w.WriteHeader(http.StatusNoContent)
}
