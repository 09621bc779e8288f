package wizard

import (
	"fmt"
	"time"

	"github.com/alanyoungcy/p2poffer/internal/amount"
	"github.com/alanyoungcy/p2poffer/internal/domain"
	"github.com/alanyoungcy/p2poffer/internal/submission"
	"github.com/alanyoungcy/p2poffer/internal/validation"
)

// MarketStatus mirrors the poller state for the current price key.
type MarketStatus struct {
	Loading   bool      `json:"loading"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
	Error     string    `json:"error,omitempty"`
}

// Session is one user's pass through the wizard: the draft, the step machine
// and the submission pipeline, plus read-only snapshots of the user and the
// platform settings taken at creation. A Session is not safe for concurrent
// use; callers serialise access.
type Session struct {
	ID        string
	CreatedAt time.Time

	user     domain.UserSnapshot
	settings domain.PlatformSettings
	draft    domain.TradeDraft
	machine  *Machine
	pipeline *submission.Pipeline

	market     MarketStatus
	methods    []domain.PaymentMethod
	methodsErr string
	balanceErr string
	result     *domain.OfferResult
}

// NewSession creates a session on step 1 with a draft seeded from the
// platform defaults and the user's country.
func NewSession(id string, user domain.UserSnapshot, settings domain.PlatformSettings, pipeline *submission.Pipeline) *Session {
	s := &Session{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		user:      user,
		settings:  settings,
		draft:     initialDraft(user, settings),
		machine:   NewMachine(),
		pipeline:  pipeline,
	}
	s.evaluate()
	return s
}

func initialDraft(user domain.UserSnapshot, settings domain.PlatformSettings) domain.TradeDraft {
	visibility := settings.DefaultVisibility
	if visibility == "" {
		visibility = domain.VisibilityPublic
	}
	d := domain.TradeDraft{
		PriceConfig: domain.PriceConfig{
			Model:      domain.PriceModelMarket,
			MarginType: domain.MarginPercentage,
		},
		PaymentMethods: []domain.PaymentMethod{},
		TradeSettings: domain.TradeSettings{
			AutoCancel:  settings.DefaultAutoCancel,
			Visibility:  visibility,
			KYCRequired: settings.KYCRequiredDefault,
		},
		LocationSettings: domain.LocationSettings{
			Country:      user.Country,
			Restrictions: []string{},
		},
	}
	derive(&d)
	return d
}

// User returns the user snapshot.
func (s *Session) User() domain.UserSnapshot { return s.user }

// Draft returns a copy of the current draft.
func (s *Session) Draft() domain.TradeDraft { return s.draft.Clone() }

// CurrentStep returns the active step.
func (s *Session) CurrentStep() int { return s.machine.Current() }

// Pipeline returns the session's submission pipeline.
func (s *Session) Pipeline() *submission.Pipeline { return s.pipeline }

// Apply runs p through the reducer and re-checks the current step.
func (s *Session) Apply(p Patch) {
	s.draft = Apply(s.draft, p)
	s.evaluate()
}

// Next advances one step. On the review step it reports submit=true instead.
func (s *Session) Next() (submit bool, err error) {
	s.evaluate()
	submit, err = s.machine.Next()
	if err == nil && !submit {
		s.evaluate()
	}
	return submit, err
}

// Prev moves back one step.
func (s *Session) Prev() {
	s.machine.Prev()
	s.evaluate()
}

// GoTo jumps to step n.
func (s *Session) GoTo(n int) error {
	s.evaluate()
	if err := s.machine.GoToStep(n); err != nil {
		return err
	}
	s.evaluate()
	return nil
}

// AutoAdjust sets the amount to the buffered minimum. It is only available
// while the amount is below the minimum trade limit.
func (s *Session) AutoAdjust() error {
	if !validation.CanAutoAdjust(validation.AmountStep(s.draft)) {
		return fmt.Errorf("wizard: auto adjust: %w: amount is not below the minimum", domain.ErrInvalidInput)
	}
	s.Apply(SetAmount{Value: amount.New(s.draft).CalculateMinimumAmount()})
	return nil
}

// ApplyMarket records a poller result. The price patch is dropped when key is
// no longer the draft's key.
func (s *Session) ApplyMarket(key domain.PriceKey, price float64, loading bool, updatedAt time.Time, err error) {
	if key != s.draft.PriceKey() {
		return
	}
	s.market = MarketStatus{Loading: loading, UpdatedAt: updatedAt}
	if err != nil {
		s.market.Error = err.Error()
	}
	if !updatedAt.IsZero() {
		s.Apply(SetMarketPrice{Key: key, Price: price})
	}
}

// ResetMarket clears the poller status, e.g. after the poller was stopped.
func (s *Session) ResetMarket(loading bool) {
	s.market = MarketStatus{Loading: loading}
}

// ApplyBalance records a balance fetch for key. A fetch error leaves the
// balance unknown so a SELL draft can still progress.
func (s *Session) ApplyBalance(key domain.PriceKey, bal domain.WalletBalance, err error) {
	if err != nil {
		s.balanceErr = err.Error()
		s.Apply(SetAvailableBalance{Key: key})
		return
	}
	s.balanceErr = ""
	available := bal.Available()
	s.Apply(SetAvailableBalance{Key: key, Balance: &available})
}

// SetAvailableMethods stores the payment methods offered on the payment step.
func (s *Session) SetAvailableMethods(methods []domain.PaymentMethod, err error) {
	if err != nil {
		s.methodsErr = err.Error()
		return
	}
	s.methodsErr = ""
	s.methods = methods
}

// CanComplete reports whether the Complete control is enabled.
func (s *Session) CanComplete() bool {
	return s.machine.CanComplete(s.pipeline != nil && s.pipeline.Submitting())
}

// Complete records a successful submission and clears the draft.
func (s *Session) Complete(res domain.OfferResult) {
	s.result = &res
	s.draft = initialDraft(s.user, s.settings)
}

// Done reports whether the offer has been created.
func (s *Session) Done() bool { return s.result != nil }

// StepViolations runs the checks of step n against d. The user requirements
// step has no blocking checks; the review step re-runs every other step.
func StepViolations(n int, d domain.TradeDraft) []validation.Violation {
	switch n {
	case StepTradeType:
		return validation.TradeTypeStep(d)
	case StepWallet:
		return validation.WalletStep(d)
	case StepCurrency:
		return validation.CurrencyStep(d)
	case StepAmount:
		return validation.AmountStep(d)
	case StepPayment:
		return validation.PaymentStep(d)
	case StepSettings:
		return validation.SettingsStep(d)
	case StepLocation:
		return validation.LocationStep(d)
	case StepReview:
		return validation.Draft(d)
	default:
		return nil
	}
}

func (s *Session) evaluate() {
	n := s.machine.Current()
	if len(StepViolations(n, s.draft)) == 0 {
		s.machine.MarkComplete(n)
	}
}

// View is the wire representation of a session.
type View struct {
	ID                  string                 `json:"id"`
	CurrentStep         int                    `json:"currentStep"`
	StepName            string                 `json:"stepName"`
	CompletedSteps      []int                  `json:"completedSteps"`
	CanContinue         bool                   `json:"canContinue"`
	CanComplete         bool                   `json:"canComplete"`
	Draft               domain.TradeDraft      `json:"draft"`
	Derived             Derived                `json:"derived"`
	Violations          []validation.Violation `json:"violations"`
	CanAutoAdjust       bool                   `json:"canAutoAdjust"`
	Market              MarketStatus           `json:"market"`
	AvailableMethods    []domain.PaymentMethod `json:"availableMethods,omitempty"`
	PaymentMethodsError string                 `json:"paymentMethodsError,omitempty"`
	BalanceError        string                 `json:"balanceError,omitempty"`
	Submission          submission.Snapshot    `json:"submission"`
	OfferID             string                 `json:"offerId,omitempty"`
}

// View renders the session.
func (s *Session) View() View {
	n := s.machine.Current()
	vs := StepViolations(n, s.draft)
	if vs == nil {
		vs = []validation.Violation{}
	}
	v := View{
		ID:                  s.ID,
		CurrentStep:         n,
		StepName:            StepName(n),
		CompletedSteps:      s.machine.CompletedSteps(),
		CanContinue:         s.machine.CanContinue(),
		CanComplete:         s.CanComplete(),
		Draft:               s.draft.Clone(),
		Derived:             Derive(s.draft),
		Violations:          vs,
		CanAutoAdjust:       n == StepAmount && validation.CanAutoAdjust(vs),
		Market:              s.market,
		AvailableMethods:    s.methods,
		PaymentMethodsError: s.methodsErr,
		BalanceError:        s.balanceErr,
	}
	if s.pipeline != nil {
		v.Submission = s.pipeline.Snapshot()
	}
	if s.result != nil {
		v.OfferID = s.result.OfferID()
	}
	return v
}
