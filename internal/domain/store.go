package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
	ListBefore(ctx context.Context, before time.Time) ([]AuditEntry, error)
}

// AuditPruner removes audit rows once they have been archived.
type AuditPruner interface {
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// OfferRecord is a submitted offer as kept in the local history.
type OfferRecord struct {
	ID         int64        `json:"id"`
	SessionID  string       `json:"sessionId"`
	UserID     string       `json:"userId"`
	OfferID    string       `json:"offerId"`
	TradeType  TradeType    `json:"tradeType"`
	Currency   string       `json:"currency"`
	WalletType WalletType   `json:"walletType"`
	Amount     float64      `json:"amount"`
	FinalPrice float64      `json:"finalPrice"`
	Payload    OfferPayload `json:"payload"`
	CreatedAt  time.Time    `json:"createdAt"`
}

// OfferStore persists the history of submitted offers.
type OfferStore interface {
	Save(ctx context.Context, rec OfferRecord) error
	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]OfferRecord, error)
}
