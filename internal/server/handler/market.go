package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/p2poffer/internal/domain"
	"github.com/alanyoungcy/p2poffer/internal/service"
)

// PriceService defines the methods that the market handler requires from
// the service layer.
type PriceService interface {
	GetPrice(ctx context.Context, key domain.PriceKey) (service.Quote, error)
}

// MarketHandler serves market price lookups.
type MarketHandler struct {
	prices PriceService
	logger *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(prices PriceService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{prices: prices, logger: logger}
}

// GetPrice returns the latest market price for a currency and wallet.
// GET /api/market/price?currency=BTC&walletType=SPOT
func (h *MarketHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key := domain.PriceKey{
		Currency:   strings.ToUpper(strings.TrimSpace(q.Get("currency"))),
		WalletType: domain.WalletType(strings.ToUpper(strings.TrimSpace(q.Get("walletType")))),
	}

	quote, err := h.prices.GetPrice(r.Context(), key)
	if err != nil {
		writeServiceError(w, r, h.logger, "get market price", err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}
