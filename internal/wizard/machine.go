package wizard

import (
	"fmt"
	"sort"

	"github.com/alanyoungcy/p2poffer/internal/domain"
)

// Step numbers of the offer wizard.
const (
	StepTradeType = iota + 1
	StepWallet
	StepCurrency
	StepAmount
	StepPayment
	StepSettings
	StepLocation
	StepRequirements
	StepReview

	StepCount = StepReview
)

var stepNames = map[int]string{
	StepTradeType:    "trade_type",
	StepWallet:       "wallet",
	StepCurrency:     "currency",
	StepAmount:       "amount_price",
	StepPayment:      "payment_methods",
	StepSettings:     "trade_settings",
	StepLocation:     "location",
	StepRequirements: "user_requirements",
	StepReview:       "review",
}

// StepName returns the stable identifier of a step.
func StepName(n int) string {
	return stepNames[n]
}

// Machine owns the ordered step sequence and which steps are complete.
// Completion is monotonic: the machine never un-marks a step.
type Machine struct {
	current   int
	completed map[int]bool
}

// NewMachine returns a machine positioned on the first step.
func NewMachine() *Machine {
	return &Machine{current: StepTradeType, completed: make(map[int]bool)}
}

// Current returns the active step.
func (m *Machine) Current() int { return m.current }

// GoToStep moves to step n. Backward moves are always legal. Forward moves
// require every step from the current one up to n-1 to be complete.
func (m *Machine) GoToStep(n int) error {
	if n < 1 || n > StepCount {
		return fmt.Errorf("wizard: go to step %d: %w", n, domain.ErrInvalidStep)
	}
	for k := m.current; k < n; k++ {
		if !m.IsStepComplete(k) {
			return fmt.Errorf("wizard: go to step %d: step %d: %w", n, k, domain.ErrStepIncomplete)
		}
	}
	m.current = n
	return nil
}

// Next advances one step. On the last step it does not move and reports
// submit=true so the caller can start the submission instead.
func (m *Machine) Next() (submit bool, err error) {
	if m.current == StepCount {
		return true, nil
	}
	if !m.CanContinue() {
		return false, fmt.Errorf("wizard: next from step %d: %w", m.current, domain.ErrStepIncomplete)
	}
	m.current++
	return false, nil
}

// Prev moves back one step; it is a no-op on the first step.
func (m *Machine) Prev() {
	if m.current > 1 {
		m.current--
	}
}

// MarkComplete records step n as complete. Out-of-range steps are ignored.
func (m *Machine) MarkComplete(n int) {
	if n < 1 || n > StepCount {
		return
	}
	m.completed[n] = true
}

// IsStepComplete reports whether step n is behind the current step or has
// been marked complete.
func (m *Machine) IsStepComplete(n int) bool {
	return n < m.current || m.completed[n]
}

// CanContinue reports whether the Continue control is enabled.
func (m *Machine) CanContinue() bool {
	return m.IsStepComplete(m.current)
}

// CanComplete reports whether the Complete control on the last step is
// enabled. It is disabled while a submission is in flight.
func (m *Machine) CanComplete(submitting bool) bool {
	return m.current == StepCount && m.IsStepComplete(StepCount) && !submitting
}

// CompletedSteps returns the marked steps in ascending order.
func (m *Machine) CompletedSteps() []int {
	out := make([]int, 0, len(m.completed))
	for n := range m.completed {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}
