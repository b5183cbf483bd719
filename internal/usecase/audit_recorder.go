package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/iho/finledger/internal/domain"
)

// auditRecorder appends audit records for successful and failed operations.
// Audit writes never fail the business operation; a write error is logged
// and dropped.
type auditRecorder struct {
	auditRepo AuditRepository
	idGen     IDGenerator
}

func (a *auditRecorder) record(ctx context.Context, action, resourceType, resourceID string, before, after any, opErr error) {
	if a.auditRepo == nil {
		return
	}

	rec := &domain.AuditRecord{
		ID:           a.idGen.Generate(),
		Actor:        actorFromContext(ctx),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		BeforeState:  domain.MarshalState(before),
		AfterState:   domain.MarshalState(after),
		Status:       domain.AuditStatusSuccess,
		CreatedAt:    time.Now().UTC(),
	}

	if opErr != nil {
		rec.Status = domain.AuditStatusFailure
		rec.ErrorMessage = opErr.Error()
	}

	if err := a.auditRepo.Create(ctx, rec); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("action", action).Msg("failed to write audit record")
	}
}

// recordTx is the in-transaction variant, used when the audit record must be
// atomic with the state change it describes.
func (a *auditRecorder) recordTx(ctx context.Context, tx Transaction, action, resourceType, resourceID string, before, after any) error {
	if a.auditRepo == nil {
		return nil
	}

	return a.auditRepo.CreateTx(ctx, tx, &domain.AuditRecord{
		ID:           a.idGen.Generate(),
		Actor:        actorFromContext(ctx),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		BeforeState:  domain.MarshalState(before),
		AfterState:   domain.MarshalState(after),
		Status:       domain.AuditStatusSuccess,
		CreatedAt:    time.Now().UTC(),
	})
}

type actorContextKey struct{}

// WithActor attaches the acting principal to the context for audit trails.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func actorFromContext(ctx context.Context) string {
	if actor, ok := ctx.Value(actorContextKey{}).(string); ok {
		return actor
	}

	return "system"
}
