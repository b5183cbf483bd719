package usecase_test

import (
	"errors"
	"testing"

	"github.com/iho/finledger/internal/domain"
	"github.com/iho/finledger/internal/usecase"
)

func TestIntegrityGuard(t *testing.T) {
	guard := usecase.NewIntegrityGuard()

	if err := guard.Check("USD"); err != nil {
		t.Fatalf("expected no hold, got %v", err)
	}

	guard.Hold("USD", "trial balance off by 10")
	if err := guard.Check("USD"); !errors.Is(err, domain.ErrIntegrityHold) {
		t.Errorf("expected ErrIntegrityHold, got %v", err)
	}
	if err := guard.Check("EUR"); err != nil {
		t.Errorf("expected EUR to stay open, got %v", err)
	}

	guard.Release("USD")
	if err := guard.Check("USD"); err != nil {
		t.Errorf("expected hold released, got %v", err)
	}

	t.Run("global hold blocks every scope", func(t *testing.T) {
		guard.Hold(usecase.ScopeAll, "partial rollback of context ctx-1")
		defer guard.Release(usecase.ScopeAll)

		if err := guard.Check("EUR"); !errors.Is(err, domain.ErrIntegrityHold) {
			t.Errorf("expected ErrIntegrityHold, got %v", err)
		}
	})

	t.Run("nil guard allows writes", func(t *testing.T) {
		var nilGuard *usecase.IntegrityGuard

		nilGuard.Hold("USD", "ignored")
		if err := nilGuard.Check("USD"); err != nil {
			t.Errorf("expected nil guard to pass, got %v", err)
		}
		nilGuard.Release("USD")
	})
}
