// Package submission sends a finished trade draft to the offer creation
// endpoint. A Pipeline moves idle -> submitting -> done, or back to idle on
// failure with the error retained, and never has more than one request in
// flight.
package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/p2poffer/internal/domain"
	"github.com/alanyoungcy/p2poffer/internal/validation"
)

// State is the lifecycle position of a Pipeline.
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StateDone       State = "done"
)

// Snapshot is a read-only view of a Pipeline.
type Snapshot struct {
	State     State  `json:"state"`
	LastError string `json:"lastError,omitempty"`
	OfferID   string `json:"offerId,omitempty"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLock serialises submissions for key across processes.
func WithLock(locks domain.LockManager, key string, ttl time.Duration) Option {
	return func(p *Pipeline) {
		p.locks = locks
		p.lockKey = key
		p.lockTTL = ttl
	}
}

// WithBalanceCheck re-reads the wallet balance of SELL offers right before
// submitting. A failed read leaves the draft's balance as it was.
func WithBalanceCheck(wallets domain.WalletReader) Option {
	return func(p *Pipeline) { p.wallets = wallets }
}

// Pipeline submits one draft. It is safe for concurrent use.
type Pipeline struct {
	creator domain.OfferCreator
	wallets domain.WalletReader
	locks   domain.LockManager
	lockKey string
	lockTTL time.Duration
	logger  *slog.Logger

	inFlight atomic.Bool

	mu      sync.Mutex
	state   State
	lastErr error
	result  domain.OfferResult
}

// New creates an idle Pipeline that submits through creator.
func New(creator domain.OfferCreator, logger *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		creator: creator,
		logger:  logger.With(slog.String("component", "submission")),
		state:   StateIdle,
		lockTTL: 30 * time.Second,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Submitting reports whether a request is in flight.
func (p *Pipeline) Submitting() bool {
	return p.inFlight.Load()
}

// Snapshot returns the current state.
func (p *Pipeline) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Snapshot{State: p.state, OfferID: p.result.OfferID()}
	if p.lastErr != nil {
		s.LastError = p.lastErr.Error()
	}
	return s
}

// Submit validates d and sends it. A call made while another is in flight
// returns domain.ErrSubmissionInFlight without contacting the endpoint. A
// pipeline that already succeeded refuses further submissions the same way.
func (p *Pipeline) Submit(ctx context.Context, d domain.TradeDraft) (domain.OfferResult, error) {
	if !p.inFlight.CompareAndSwap(false, true) {
		return domain.OfferResult{}, fmt.Errorf("submission: %w", domain.ErrSubmissionInFlight)
	}
	defer p.inFlight.Store(false)

	p.mu.Lock()
	if p.state == StateDone {
		p.mu.Unlock()
		return domain.OfferResult{}, fmt.Errorf("submission: already submitted: %w", domain.ErrSubmissionInFlight)
	}
	p.state = StateSubmitting
	p.mu.Unlock()

	res, err := p.submit(ctx, d)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.state = StateIdle
		p.lastErr = err
		p.logger.Warn("offer submission failed", slog.String("error", err.Error()))
		return domain.OfferResult{}, err
	}
	p.state = StateDone
	p.lastErr = nil
	p.result = res
	p.logger.Info("offer submitted", slog.String("offer_id", res.OfferID()))
	return res, nil
}

func (p *Pipeline) submit(ctx context.Context, d domain.TradeDraft) (domain.OfferResult, error) {
	if p.locks != nil && p.lockKey != "" {
		unlock, err := p.locks.Acquire(ctx, p.lockKey, p.lockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				return domain.OfferResult{}, fmt.Errorf("submission: lock %s: %w", p.lockKey, domain.ErrSubmissionInFlight)
			}
			return domain.OfferResult{}, fmt.Errorf("submission: lock %s: %w", p.lockKey, err)
		}
		defer unlock()
	}

	d = p.refreshBalance(ctx, d)
	if vs := validation.Draft(d); len(vs) > 0 {
		return domain.OfferResult{}, fmt.Errorf("submission: %w: %s",
			domain.ErrValidation, strings.Join(validation.Messages(vs), "; "))
	}

	payload, err := BuildPayload(d)
	if err != nil {
		return domain.OfferResult{}, err
	}
	res, err := p.creator.CreateOffer(ctx, payload)
	if err != nil {
		return domain.OfferResult{}, fmt.Errorf("submission: create offer: %w", err)
	}
	return res, nil
}

func (p *Pipeline) refreshBalance(ctx context.Context, d domain.TradeDraft) domain.TradeDraft {
	if p.wallets == nil || d.TradeType != domain.TradeTypeSell || !d.PriceKey().Valid() {
		return d
	}
	bal, err := p.wallets.GetWalletBalance(ctx, d.WalletType, d.Currency.Code())
	if err != nil {
		p.logger.Warn("balance re-check failed",
			slog.String("key", d.PriceKey().String()),
			slog.String("error", err.Error()),
		)
		return d
	}
	out := d.Clone()
	available := bal.Available()
	out.AmountConfig.AvailableBalance = &available
	return out
}
