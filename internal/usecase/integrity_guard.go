package usecase

import (
	"fmt"
	"sync"

	"github.com/iho/finledger/internal/domain"
)

// ScopeAll blocks writes in every currency.
const ScopeAll = "*"

// IntegrityGuard fences off ledger writes after a data-integrity failure.
// A detected imbalance holds its currency; a partial rollback holds
// everything. Holds live in process, alongside the coordinator's active
// context map, and stay in place until an operator resolves the underlying
// records and calls Release.
type IntegrityGuard struct {
	mu   sync.RWMutex
	held map[string]string
}

// NewIntegrityGuard creates an IntegrityGuard with no active holds.
func NewIntegrityGuard() *IntegrityGuard {
	return &IntegrityGuard{held: make(map[string]string)}
}

// Hold blocks writes to scope until Release. The reason travels with every
// rejected write.
func (g *IntegrityGuard) Hold(scope, reason string) {
	if g == nil {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.held[scope] = reason
}

// Release lifts the hold on a scope.
func (g *IntegrityGuard) Release(scope string) {
	if g == nil {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.held, scope)
}

// Check returns ErrIntegrityHold when the scope, or everything, is held.
func (g *IntegrityGuard) Check(scope string) error {
	if g == nil {
		return nil
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	if reason, ok := g.held[ScopeAll]; ok {
		return fmt.Errorf("%w: %s", domain.ErrIntegrityHold, reason)
	}

	if reason, ok := g.held[scope]; ok {
		return fmt.Errorf("%w: %s (scope %s)", domain.ErrIntegrityHold, reason, scope)
	}

	return nil
}
