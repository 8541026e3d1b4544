// Package budget is the differential-privacy epsilon accountant: a
// mutex-guarded map of per-context epsilon totals under sequential
// composition.
package budget

import (
	"sync"

	"github.com/savegress/fhirguard/pkg/ferrors"
)

type entry struct {
	total     float64
	consumed  float64
}

// Accountant tracks privacy-budget consumption per context under sequential
// composition. A context is typically a resource id or a dataset name; the
// caller decides the granularity.
type Accountant struct {
	mu       sync.RWMutex
	contexts map[string]*entry

	// AdvancedComposition, when true, would use a tighter composition bound
	// than plain summation. fhirguard does not implement advanced
	// composition; setting this flag falls back to sequential composition
	// and records a warning instead of silently under- or over-counting.
	AdvancedComposition bool
	warnings            []string
}

// New returns an empty Accountant.
func New() *Accountant {
	return &Accountant{contexts: make(map[string]*entry)}
}

// SetTotal establishes the total epsilon budget available to context. It may
// be called once per context; calling it again for the same context resets
// consumption to zero.
func (a *Accountant) SetTotal(context string, total float64) error {
	if total <= 0 {
		return &ferrors.ConfigurationError{Detail: "privacy budget total must be positive"}
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.AdvancedComposition {
		a.warnings = append(a.warnings, "advanced_composition requested for context "+context+"; falling back to sequential composition")
	}

	a.contexts[context] = &entry{total: total}
	return nil
}

// Consume charges epsilon against context's remaining budget. It returns a
// *ferrors.BudgetExhaustedError, leaving the accountant state unmodified,
// when the charge would exceed what remains.
func (a *Accountant) Consume(context string, epsilon float64) error {
	if epsilon <= 0 {
		return &ferrors.InvalidInputError{Detail: "epsilon to consume must be positive"}
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.contexts[context]
	if !ok {
		return &ferrors.ConfigurationError{Detail: "privacy budget not initialized for context " + context}
	}

	remaining := e.total - e.consumed
	if epsilon > remaining {
		return &ferrors.BudgetExhaustedError{Context: context, Requested: epsilon, Remaining: remaining}
	}

	e.consumed += epsilon
	return nil
}

// Consumed returns the epsilon spent so far for context.
func (a *Accountant) Consumed(context string) float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if e, ok := a.contexts[context]; ok {
		return e.consumed
	}
	return 0
}

// Remaining returns the epsilon left for context, or 0 if the context was
// never initialized.
func (a *Accountant) Remaining(context string) float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if e, ok := a.contexts[context]; ok {
		return e.total - e.consumed
	}
	return 0
}

// Reset clears consumption for context back to zero without changing its
// total.
func (a *Accountant) Reset(context string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if e, ok := a.contexts[context]; ok {
		e.consumed = 0
	}
}

// Warnings returns any advanced-composition fallback notices accumulated by
// SetTotal calls.
func (a *Accountant) Warnings() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.warnings
}
