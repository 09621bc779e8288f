package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/p2poffer/internal/domain"
	"github.com/alanyoungcy/p2poffer/internal/marketprice"
	"github.com/alanyoungcy/p2poffer/internal/submission"
	"github.com/alanyoungcy/p2poffer/internal/wizard"
)

// WizardChannelPrefix prefixes the per-session bus channel wizard lifecycle
// events are published on.
const WizardChannelPrefix = "p2p:wizard:"

// WizardChannel returns the bus channel carrying the events of one session.
func WizardChannel(sessionID string) string {
	return WizardChannelPrefix + sessionID
}

// Notifier delivers operator notifications.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// WizardConfig holds the tunables of the wizard service.
type WizardConfig struct {
	Settings      domain.PlatformSettings
	SessionTTL    time.Duration
	SubmitLockTTL time.Duration
}

// sessionEntry pairs a session with the resources it owns. mu serialises
// every access to the session, including poller completions.
type sessionEntry struct {
	mu       sync.Mutex
	sess     *wizard.Session
	handle   *marketprice.Handle
	closed   bool
	lastSeen atomic.Int64
}

// WizardService hosts offer wizard sessions. It runs the side effects tied to
// step entry (price polling, balance and payment-method fetches), drives
// submission and records lifecycle events.
type WizardService struct {
	gateway  domain.ExchangeGateway
	prices   *marketprice.Source
	locks    domain.LockManager
	audit    domain.AuditStore
	offers   domain.OfferStore
	bus      domain.SignalBus
	notifier Notifier
	cfg      WizardConfig
	logger   *slog.Logger

	baseCtx context.Context
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

// NewWizardService creates a WizardService. Locks, audit, bus and notifier
// are optional and attached with their setters.
func NewWizardService(
	gateway domain.ExchangeGateway,
	prices *marketprice.Source,
	cfg WizardConfig,
	logger *slog.Logger,
) *WizardService {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * time.Minute
	}
	if cfg.SubmitLockTTL <= 0 {
		cfg.SubmitLockTTL = 30 * time.Second
	}
	return &WizardService{
		gateway:  gateway,
		prices:   prices,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "wizard_service")),
		baseCtx:  context.Background(),
		now:      time.Now,
		sessions: make(map[string]*sessionEntry),
	}
}

// SetLocks enables cross-replica submission locking.
func (s *WizardService) SetLocks(l domain.LockManager) { s.locks = l }

// SetAudit enables audit logging of lifecycle events.
func (s *WizardService) SetAudit(a domain.AuditStore) { s.audit = a }

// SetOffers enables keeping a history of submitted offers.
func (s *WizardService) SetOffers(o domain.OfferStore) { s.offers = o }

// SetBus enables publishing lifecycle events.
func (s *WizardService) SetBus(b domain.SignalBus) { s.bus = b }

// SetNotifier enables operator notifications for submissions.
func (s *WizardService) SetNotifier(n Notifier) { s.notifier = n }

// Create starts a new session for user.
func (s *WizardService) Create(ctx context.Context, user domain.UserSnapshot) (wizard.View, error) {
	id := uuid.New().String()

	opts := []submission.Option{submission.WithBalanceCheck(s.gateway)}
	if s.locks != nil {
		opts = append(opts, submission.WithLock(s.locks, "p2p:submit:"+id, s.cfg.SubmitLockTTL))
	}
	pipeline := submission.New(s.gateway, s.logger, opts...)

	e := &sessionEntry{sess: wizard.NewSession(id, user, s.cfg.Settings, pipeline)}
	e.lastSeen.Store(s.now().UnixNano())

	s.mu.Lock()
	s.sessions[id] = e
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "wizard session created",
		slog.String("session_id", id),
		slog.String("user_id", user.ID),
	)
	s.record(ctx, "wizard.created", map[string]any{"session_id": id, "user_id": user.ID})

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.View(), nil
}

// Get returns the current view of a session.
func (s *WizardService) Get(ctx context.Context, id string) (wizard.View, error) {
	return s.mutate(ctx, id, func(*sessionEntry) error { return nil })
}

// Apply runs a patch against the session's draft.
func (s *WizardService) Apply(ctx context.Context, id string, p wizard.Patch) (wizard.View, error) {
	return s.mutate(ctx, id, func(e *sessionEntry) error {
		e.sess.Apply(p)
		return nil
	})
}

// Next advances the session. On the review step it submits the offer.
func (s *WizardService) Next(ctx context.Context, id string) (wizard.View, error) {
	var submit bool
	view, err := s.mutate(ctx, id, func(e *sessionEntry) error {
		var err error
		submit, err = e.sess.Next()
		return err
	})
	if err != nil || !submit {
		return view, err
	}
	return s.Submit(ctx, id)
}

// Prev moves the session back one step.
func (s *WizardService) Prev(ctx context.Context, id string) (wizard.View, error) {
	return s.mutate(ctx, id, func(e *sessionEntry) error {
		e.sess.Prev()
		return nil
	})
}

// GoTo jumps the session to step n.
func (s *WizardService) GoTo(ctx context.Context, id string, n int) (wizard.View, error) {
	return s.mutate(ctx, id, func(e *sessionEntry) error {
		return e.sess.GoTo(n)
	})
}

// AutoAdjust raises a below-minimum amount to the buffered minimum.
func (s *WizardService) AutoAdjust(ctx context.Context, id string) (wizard.View, error) {
	return s.mutate(ctx, id, func(e *sessionEntry) error {
		return e.sess.AutoAdjust()
	})
}

// Submit sends the session's offer. The session lock is released while the
// request is in flight; the pipeline guarantees a single attempt at a time.
// On success the session is closed and its final view returned.
func (s *WizardService) Submit(ctx context.Context, id string) (wizard.View, error) {
	e, err := s.lookup(id)
	if err != nil {
		return wizard.View{}, err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return wizard.View{}, fmt.Errorf("service: session %s: %w", id, domain.ErrNotFound)
	}
	pipeline := e.sess.Pipeline()
	if pipeline.Submitting() {
		e.mu.Unlock()
		return wizard.View{}, fmt.Errorf("service: submit %s: %w", id, domain.ErrSubmissionInFlight)
	}
	if !e.sess.CanComplete() {
		e.mu.Unlock()
		return wizard.View{}, fmt.Errorf("service: submit %s: %w", id, domain.ErrStepIncomplete)
	}
	draft := e.sess.Draft()
	user := e.sess.User()
	e.mu.Unlock()

	res, subErr := pipeline.Submit(ctx, draft)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastSeen.Store(s.now().UnixNano())

	if subErr != nil {
		if errors.Is(subErr, domain.ErrSubmissionInFlight) {
			return e.sess.View(), subErr
		}
		s.record(ctx, "offer.failed", map[string]any{
			"session_id": id,
			"user_id":    user.ID,
			"error":      subErr.Error(),
		})
		s.notify(ctx, "offer_failed", "Offer submission failed",
			fmt.Sprintf("%s %s offer by %s: %v", draft.TradeType, draft.Currency.Code(), user.ID, subErr))
		return e.sess.View(), subErr
	}

	s.stopPolling(e)
	e.sess.Complete(res)
	view := e.sess.View()
	e.closed = true
	s.remove(id)

	s.record(ctx, "offer.submitted", map[string]any{
		"session_id":  id,
		"user_id":     user.ID,
		"offer_id":    res.OfferID(),
		"type":        string(draft.TradeType),
		"currency":    draft.Currency.Code(),
		"wallet_type": string(draft.WalletType),
		"amount":      draft.AmountConfig.Total,
		"final_price": draft.PriceConfig.FinalPrice,
	})
	s.saveOffer(ctx, id, user, draft, res)
	s.notify(ctx, "offer_created", "Offer created",
		fmt.Sprintf("%s %g %s at %g (offer %s)", draft.TradeType, draft.AmountConfig.Total,
			draft.Currency.Code(), draft.PriceConfig.FinalPrice, res.OfferID()))
	return view, nil
}

// History returns the offers user has submitted, newest first.
func (s *WizardService) History(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.OfferRecord, error) {
	if s.offers == nil {
		return []domain.OfferRecord{}, nil
	}
	recs, err := s.offers.ListByUser(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("service: offer history %s: %w", userID, err)
	}
	return recs, nil
}

// Cancel discards a session and its draft.
func (s *WizardService) Cancel(ctx context.Context, id string) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return fmt.Errorf("service: session %s: %w", id, domain.ErrNotFound)
	}
	s.stopPolling(e)
	e.closed = true
	s.remove(id)

	s.record(ctx, "wizard.cancelled", map[string]any{"session_id": id, "user_id": e.sess.User().ID})
	return nil
}

// Active returns the number of open sessions.
func (s *WizardService) Active() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Run expires idle sessions until ctx is cancelled, then stops every poller.
func (s *WizardService) Run(ctx context.Context) error {
	interval := s.cfg.SessionTTL / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return nil
		case <-ticker.C:
			s.expire(ctx)
		}
	}
}

func (s *WizardService) expire(ctx context.Context) {
	cutoff := s.now().Add(-s.cfg.SessionTTL).UnixNano()

	s.mu.RLock()
	var stale []string
	for id, e := range s.sessions {
		if e.lastSeen.Load() < cutoff {
			stale = append(stale, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range stale {
		e, err := s.lookup(id)
		if err != nil {
			continue
		}
		e.mu.Lock()
		if !e.closed && e.lastSeen.Load() < cutoff && !e.sess.Pipeline().Submitting() {
			s.stopPolling(e)
			e.closed = true
			s.remove(id)
			s.record(ctx, "wizard.expired", map[string]any{"session_id": id, "user_id": e.sess.User().ID})
		}
		e.mu.Unlock()
	}
}

func (s *WizardService) closeAll() {
	s.mu.Lock()
	entries := make([]*sessionEntry, 0, len(s.sessions))
	for id, e := range s.sessions {
		entries = append(entries, e)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, e := range entries {
		e.mu.Lock()
		s.stopPolling(e)
		e.closed = true
		e.mu.Unlock()
	}
}

func (s *WizardService) lookup(id string) (*sessionEntry, error) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("service: session %s: %w", id, domain.ErrNotFound)
	}
	return e, nil
}

func (s *WizardService) remove(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// position is what syncEffects compares against to decide which step-entry
// work a mutation triggered.
type position struct {
	step      int
	key       domain.PriceKey
	tradeType domain.TradeType
}

func positionOf(sess *wizard.Session) position {
	d := sess.Draft()
	return position{step: sess.CurrentStep(), key: d.PriceKey(), tradeType: d.TradeType}
}

// fetches lists the gateway reads a mutation needs. They run after the
// session lock is released and their results are applied under it again.
type fetches struct {
	balance    bool
	balanceKey domain.PriceKey
	methods    bool
}

func (f fetches) empty() bool { return !f.balance && !f.methods }

// mutate runs fn with the session locked and then reconciles the step-entry
// side effects with the session's new position. When fn fails the session's
// unchanged view is returned with the error.
func (s *WizardService) mutate(ctx context.Context, id string, fn func(e *sessionEntry) error) (wizard.View, error) {
	e, err := s.lookup(id)
	if err != nil {
		return wizard.View{}, err
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return wizard.View{}, fmt.Errorf("service: session %s: %w", id, domain.ErrNotFound)
	}
	e.lastSeen.Store(s.now().UnixNano())

	prev := positionOf(e.sess)
	if err := fn(e); err != nil {
		view := e.sess.View()
		e.mu.Unlock()
		return view, err
	}
	next := positionOf(e.sess)
	todo := s.syncEffects(e, prev, next)
	view := e.sess.View()
	e.mu.Unlock()

	if next.step != prev.step {
		s.publish(ctx, "wizard.step", id, map[string]any{
			"from": prev.step,
			"to":   next.step,
			"name": wizard.StepName(next.step),
		})
	}
	if todo.empty() {
		return view, nil
	}
	return s.runFetches(ctx, e, todo)
}

// syncEffects starts and stops price polling for the session's new position
// and reports which fetches are due. Entering the amount step, or changing
// the key or trade type on it, fetches the balance for a SELL draft; leaving
// the step stops polling. Entering the payment step fetches the available
// methods. Called with e.mu held.
func (s *WizardService) syncEffects(e *sessionEntry, prev, next position) fetches {
	var todo fetches

	if next.step == wizard.StepAmount {
		if e.handle == nil || e.handle.Key() != next.key {
			s.startPolling(e, next.key)
		}
		changed := prev.step != wizard.StepAmount || prev.key != next.key || prev.tradeType != next.tradeType
		if next.tradeType == domain.TradeTypeSell && next.key.Valid() && changed {
			todo.balance = true
			todo.balanceKey = next.key
		}
	} else if e.handle != nil {
		s.stopPolling(e)
	}

	if next.step == wizard.StepPayment && prev.step != wizard.StepPayment {
		todo.methods = true
	}
	return todo
}

// runFetches performs the gateway reads without holding the session lock and
// applies the results if the session is still open. A balance for a key the
// draft has since moved away from is dropped.
func (s *WizardService) runFetches(ctx context.Context, e *sessionEntry, todo fetches) (wizard.View, error) {
	var (
		bal        domain.WalletBalance
		balErr     error
		methods    []domain.PaymentMethod
		methodsErr error
	)
	if todo.balance {
		key := todo.balanceKey
		bal, balErr = s.gateway.GetWalletBalance(ctx, key.WalletType, key.Currency)
		if balErr != nil {
			s.logger.WarnContext(ctx, "wallet balance fetch failed",
				slog.String("session_id", e.sess.ID),
				slog.String("key", key.String()),
				slog.String("error", balErr.Error()),
			)
		}
	}
	if todo.methods {
		methods, methodsErr = s.gateway.ListPaymentMethods(ctx)
		if methodsErr != nil {
			s.logger.WarnContext(ctx, "payment methods fetch failed",
				slog.String("session_id", e.sess.ID),
				slog.String("error", methodsErr.Error()),
			)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return wizard.View{}, fmt.Errorf("service: session %s: %w", e.sess.ID, domain.ErrNotFound)
	}
	if todo.balance {
		d := e.sess.Draft()
		if d.PriceKey() == todo.balanceKey && d.TradeType == domain.TradeTypeSell {
			e.sess.ApplyBalance(todo.balanceKey, bal, balErr)
		}
	}
	if todo.methods {
		e.sess.SetAvailableMethods(methods, methodsErr)
	}
	return e.sess.View(), nil
}

func (s *WizardService) startPolling(e *sessionEntry, key domain.PriceKey) {
	if e.handle != nil {
		e.handle.Stop()
		e.handle = nil
	}
	if !key.Valid() {
		e.sess.ResetMarket(false)
		return
	}
	e.sess.ResetMarket(true)
	e.handle = s.prices.Start(s.baseCtx, key, func(h *marketprice.Handle, snap marketprice.Snapshot) {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.closed || e.handle != h {
			return
		}
		e.sess.ApplyMarket(snap.Key, snap.Price, snap.Loading, snap.UpdatedAt, snap.Err)
	})
}

func (s *WizardService) stopPolling(e *sessionEntry) {
	if e.handle == nil {
		return
	}
	e.handle.Stop()
	e.handle = nil
	e.sess.ResetMarket(false)
}

func (s *WizardService) saveOffer(ctx context.Context, id string, user domain.UserSnapshot, draft domain.TradeDraft, res domain.OfferResult) {
	if s.offers == nil {
		return
	}
	payload, err := submission.BuildPayload(draft)
	if err == nil {
		err = s.offers.Save(ctx, domain.OfferRecord{
			SessionID:  id,
			UserID:     user.ID,
			OfferID:    res.OfferID(),
			TradeType:  draft.TradeType,
			Currency:   draft.Currency.Code(),
			WalletType: draft.WalletType,
			Amount:     draft.AmountConfig.Total,
			FinalPrice: draft.PriceConfig.FinalPrice,
			Payload:    payload,
		})
	}
	if err != nil {
		s.logger.WarnContext(ctx, "save offer history failed",
			slog.String("session_id", id),
			slog.String("error", err.Error()),
		)
	}
}

func (s *WizardService) record(ctx context.Context, event string, detail map[string]any) {
	sessionID, _ := detail["session_id"].(string)
	s.publish(ctx, event, sessionID, detail)
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (s *WizardService) publish(ctx context.Context, event, sessionID string, detail map[string]any) {
	if s.bus == nil {
		return
	}
	evt, _ := json.Marshal(map[string]any{
		"event":      event,
		"session_id": sessionID,
		"detail":     detail,
		"timestamp":  s.now().UTC().Format(time.RFC3339Nano),
	})
	if err := s.bus.Publish(ctx, WizardChannel(sessionID), evt); err != nil {
		s.logger.WarnContext(ctx, "publish wizard event failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (s *WizardService) notify(ctx context.Context, event, title, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event, title, message); err != nil {
		s.logger.WarnContext(ctx, "notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
