package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/p2poffer/internal/domain"
)

// OfferStore implements domain.OfferStore over the offer_submissions table.
type OfferStore struct {
	pool *pgxpool.Pool
}

// NewOfferStore creates an OfferStore backed by pool.
func NewOfferStore(pool *pgxpool.Pool) *OfferStore {
	return &OfferStore{pool: pool}
}

// Save records a submitted offer.
func (s *OfferStore) Save(ctx context.Context, rec domain.OfferRecord) error {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("postgres: marshal offer payload: %w", err)
	}
	const query = `
		INSERT INTO offer_submissions
			(session_id, user_id, offer_id, trade_type, currency, wallet_type, amount, final_price, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := s.pool.Exec(ctx, query,
		rec.SessionID, rec.UserID, rec.OfferID,
		string(rec.TradeType), rec.Currency, string(rec.WalletType),
		rec.Amount, rec.FinalPrice, payload,
	); err != nil {
		return fmt.Errorf("postgres: save offer %s: %w", rec.SessionID, err)
	}
	return nil
}

// ListByUser returns a user's submitted offers, newest first.
func (s *OfferStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.OfferRecord, error) {
	query, args := listQuery(`
		SELECT id, session_id, user_id, offer_id, trade_type, currency, wallet_type,
		       amount, final_price, payload, created_at
		FROM offer_submissions`,
		[]string{"user_id = $1"}, []any{userID}, opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list offers for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []domain.OfferRecord
	for rows.Next() {
		var (
			rec                   domain.OfferRecord
			tradeType, walletType string
			payload               []byte
		)
		if err := rows.Scan(
			&rec.ID, &rec.SessionID, &rec.UserID, &rec.OfferID,
			&tradeType, &rec.Currency, &walletType,
			&rec.Amount, &rec.FinalPrice, &payload, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan offer: %w", err)
		}
		rec.TradeType = domain.TradeType(tradeType)
		rec.WalletType = domain.WalletType(walletType)
		if err := json.Unmarshal(payload, &rec.Payload); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal offer payload %d: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: offer rows: %w", err)
	}
	return out, nil
}

var _ domain.OfferStore = (*OfferStore)(nil)
