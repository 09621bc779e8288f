package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/p2poffer/internal/domain"
)

// PaymentMethodService defines the methods that the payment method handler
// requires from the service layer.
type PaymentMethodService interface {
	List(ctx context.Context) ([]domain.PaymentMethod, error)
	Create(ctx context.Context, pm domain.PaymentMethod) (domain.PaymentMethod, error)
	Update(ctx context.Context, pm domain.PaymentMethod) (domain.PaymentMethod, error)
	Delete(ctx context.Context, id string) error
}

// PaymentMethodHandler serves payment method management endpoints.
type PaymentMethodHandler struct {
	methods PaymentMethodService
	logger  *slog.Logger
}

// NewPaymentMethodHandler creates a PaymentMethodHandler.
func NewPaymentMethodHandler(methods PaymentMethodService, logger *slog.Logger) *PaymentMethodHandler {
	return &PaymentMethodHandler{methods: methods, logger: logger}
}

type listPaymentMethodsResponse struct {
	PaymentMethods []domain.PaymentMethod `json:"paymentMethods"`
}

// List returns every payment method available to the user.
// GET /api/payment-methods
func (h *PaymentMethodHandler) List(w http.ResponseWriter, r *http.Request) {
	methods, err := h.methods.List(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "list payment methods", err)
		return
	}
	if methods == nil {
		methods = []domain.PaymentMethod{}
	}
	writeJSON(w, http.StatusOK, listPaymentMethodsResponse{PaymentMethods: methods})
}

// Create adds a custom payment method.
// POST /api/payment-methods
func (h *PaymentMethodHandler) Create(w http.ResponseWriter, r *http.Request) {
	var pm domain.PaymentMethod
	if err := decodeJSON(r, &pm); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := h.methods.Create(r.Context(), pm)
	if err != nil {
		writeServiceError(w, r, h.logger, "create payment method", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// Update changes a custom payment method. The id comes from the path.
// PUT /api/payment-methods/{id}
func (h *PaymentMethodHandler) Update(w http.ResponseWriter, r *http.Request) {
	var pm domain.PaymentMethod
	if err := decodeJSON(r, &pm); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	pm.ID = r.PathValue("id")
	updated, err := h.methods.Update(r.Context(), pm)
	if err != nil {
		writeServiceError(w, r, h.logger, "update payment method", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Delete removes a custom payment method.
// DELETE /api/payment-methods/{id}
func (h *PaymentMethodHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.methods.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, h.logger, "delete payment method", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
