package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/p2poffer/internal/domain"
)

// OfferHistory lists submitted offers per user.
type OfferHistory interface {
	History(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.OfferRecord, error)
}

// OfferHandler serves the submitted offer history.
type OfferHandler struct {
	history OfferHistory
	logger  *slog.Logger
}

// NewOfferHandler creates an OfferHandler.
func NewOfferHandler(history OfferHistory, logger *slog.Logger) *OfferHandler {
	return &OfferHandler{history: history, logger: logger}
}

type listOffersResponse struct {
	Offers []domain.OfferRecord `json:"offers"`
}

// List returns the caller's submitted offers, newest first.
// GET /api/offers?user_id=...&limit=50&offset=0
func (h *OfferHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		userID = strings.TrimSpace(r.Header.Get("X-User-ID"))
	}
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id query parameter or X-User-ID header required")
		return
	}

	offers, err := h.history.History(r.Context(), userID, parseListOpts(r))
	if err != nil {
		writeServiceError(w, r, h.logger, "list offers", err)
		return
	}
	if offers == nil {
		offers = []domain.OfferRecord{}
	}
	writeJSON(w, http.StatusOK, listOffersResponse{Offers: offers})
}
