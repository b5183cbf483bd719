package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/finledger/internal/domain"
)

// Coordinator orchestrates saga-style distributed transactions. Operations
// are applied eagerly against registered collaborators; compensations are
// stored and replayed in strict reverse order on rollback. The map of active
// contexts is shared mutable state; distinct contexts proceed independently.
type Coordinator struct {
	auditRecorder

	mu       sync.RWMutex
	active   map[string]*domain.TransactionContext
	services map[string]Collaborator

	sagaRepo   SagaRepository
	outboxRepo OutboxRepository
	txManager  TransactionManager
	idGen      IDGenerator
	logger     zerolog.Logger
	timeout    time.Duration
	guard      *IntegrityGuard
}

// CoordinatorConfig holds dependencies for the Coordinator.
type CoordinatorConfig struct {
	SagaRepo   SagaRepository
	OutboxRepo OutboxRepository
	AuditRepo  AuditRepository
	TxManager  TransactionManager
	IDGen      IDGenerator
	Logger     zerolog.Logger
	Timeout    time.Duration
	Guard      *IntegrityGuard
}

// NewCoordinator creates a new Coordinator.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultContextTimeout
	}

	return &Coordinator{
		auditRecorder: auditRecorder{auditRepo: cfg.AuditRepo, idGen: cfg.IDGen},
		active:        make(map[string]*domain.TransactionContext),
		services:      make(map[string]Collaborator),
		sagaRepo:      cfg.SagaRepo,
		outboxRepo:    cfg.OutboxRepo,
		txManager:     cfg.TxManager,
		idGen:         cfg.IDGen,
		logger:        cfg.Logger,
		timeout:       cfg.Timeout,
		guard:         cfg.Guard,
	}
}

// RegisterCollaborator registers the collaborator handling a service name.
// Registration happens at wiring time, before any context is begun.
func (c *Coordinator) RegisterCollaborator(service string, collaborator Collaborator) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.services[service] = collaborator
}

// BeginTransaction allocates a new transaction context and returns its ID.
func (c *Coordinator) BeginTransaction(ctx context.Context, owner string) (string, error) {
	now := time.Now().UTC()

	tc := &domain.TransactionContext{
		ID:        c.idGen.Generate(),
		Owner:     owner,
		Status:    domain.ContextStatusActive,
		Deadline:  now.Add(c.timeout),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := c.sagaRepo.CreateContext(ctx, tc); err != nil {
		return "", err
	}

	c.mu.Lock()
	c.active[tc.ID] = tc
	c.mu.Unlock()

	c.record(ctx, domain.AuditActionContextBegin, domain.AggregateTypeContext, tc.ID, nil, tc, nil)
	c.logger.Info().Str("context_id", tc.ID).Str("owner", owner).Msg("began distributed transaction")

	return tc.ID, nil
}

// AddOperation executes one saga step against the named collaborator and, on
// success, appends it with its compensation payload. Execution failure
// leaves the context unmodified; the caller decides whether to roll back the
// already-applied prior steps.
func (c *Coordinator) AddOperation(ctx context.Context, contextID, service, operation string, payload, compensation map[string]any) (int, error) {
	c.mu.RLock()
	tc, ok := c.active[contextID]
	collaborator := c.services[service]
	c.mu.RUnlock()

	if !ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrContextNotFound, contextID)
	}

	if collaborator == nil {
		return 0, fmt.Errorf("%w: %s", domain.ErrUnknownService, service)
	}

	if tc.Status.Terminal() {
		return 0, fmt.Errorf("%w: %s is %s", domain.ErrContextTerminal, contextID, tc.Status)
	}

	if tc.Expired(time.Now().UTC()) {
		return 0, fmt.Errorf("%w: %s", domain.ErrContextTimeout, contextID)
	}

	result, err := collaborator.Execute(ctx, operation, payload)
	if err != nil {
		c.record(ctx, domain.AuditActionContextOperation, domain.AggregateTypeContext, contextID, nil, nil, err)

		return 0, fmt.Errorf("executing %s.%s: %w", service, operation, err)
	}

	op := domain.SagaOperation{
		Service:      service,
		Operation:    operation,
		Payload:      payload,
		Compensation: compensation,
		AppliedAt:    time.Now().UTC(),
	}

	if result != nil {
		// Collaborator results enrich the compensation payload so the
		// inverse call can reference created resources.
		if op.Compensation == nil {
			op.Compensation = make(map[string]any, len(result))
		}

		for k, v := range result {
			if _, exists := op.Compensation[k]; !exists {
				op.Compensation[k] = v
			}
		}
	}

	c.mu.Lock()
	op.Ordinal = len(tc.Operations) + 1
	tc.Operations = append(tc.Operations, op)
	tc.UpdatedAt = op.AppliedAt
	c.mu.Unlock()

	if err := c.sagaRepo.AppendOperation(ctx, contextID, &op); err != nil {
		c.logger.Error().Err(err).Str("context_id", contextID).Msg("failed to persist saga operation")
	}

	c.record(ctx, domain.AuditActionContextOperation, domain.AggregateTypeContext, contextID, nil, op, nil)

	return op.Ordinal, nil
}

// CommitTransaction marks the context committed. All effects were already
// applied as operations succeeded, so no further action is taken. A context
// past its deadline cannot commit; the sweeper expires and compensates it.
func (c *Coordinator) CommitTransaction(ctx context.Context, contextID string) (*domain.TransactionContext, error) {
	now := time.Now().UTC()

	c.mu.Lock()
	tc, ok := c.active[contextID]
	switch {
	case !ok:
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrContextNotFound, contextID)
	case tc.Status.Terminal():
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s is %s", domain.ErrContextTerminal, contextID, tc.Status)
	case tc.Expired(now):
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrContextTimeout, contextID)
	}

	tc.Status = domain.ContextStatusCommitted
	tc.UpdatedAt = now
	delete(c.active, contextID)
	c.mu.Unlock()

	if err := c.sagaRepo.UpdateStatus(ctx, contextID, tc.Status, tc.UpdatedAt); err != nil {
		c.logger.Error().Err(err).Str("context_id", contextID).Msg("failed to persist context status")
	}

	c.record(ctx, domain.AuditActionContextCommit, domain.AggregateTypeContext, contextID, nil, tc, nil)
	c.logger.Info().Str("context_id", contextID).Int("operations", len(tc.Operations)).Msg("committed distributed transaction")

	return tc, nil
}

// RollbackTransaction compensates every applied operation in strict reverse
// order. Compensation failures are logged and rollback continues best-effort;
// any failure yields PartiallyRolledBack with the failed ordinals surfaced
// for manual remediation.
func (c *Coordinator) RollbackTransaction(ctx context.Context, contextID string) (*domain.RollbackResult, error) {
	now := time.Now().UTC()

	c.mu.Lock()
	tc, ok := c.active[contextID]
	switch {
	case !ok:
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrContextNotFound, contextID)
	case tc.Status.Terminal():
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s is %s", domain.ErrContextTerminal, contextID, tc.Status)
	case tc.Expired(now):
		// Left in place for the sweeper, which expires and compensates it.
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrContextTimeout, contextID)
	}

	delete(c.active, contextID)
	c.mu.Unlock()

	return c.compensate(ctx, tc, domain.ContextStatusRolledBack)
}

// compensate runs the LIFO compensation pass and finalizes the context with
// terminalStatus (RolledBack, or PartiallyRolledBack on any failure).
func (c *Coordinator) compensate(ctx context.Context, tc *domain.TransactionContext, terminalStatus domain.ContextStatus) (*domain.RollbackResult, error) {
	result := &domain.RollbackResult{ContextID: tc.ID}

	for i := len(tc.Operations) - 1; i >= 0; i-- {
		op := tc.Operations[i]

		c.mu.RLock()
		collaborator := c.services[op.Service]
		c.mu.RUnlock()

		if collaborator == nil {
			c.logger.Error().Str("context_id", tc.ID).Str("service", op.Service).Int("ordinal", op.Ordinal).
				Msg("no collaborator registered for compensation")
			result.FailedOrdinals = append(result.FailedOrdinals, op.Ordinal)

			continue
		}

		if err := collaborator.Compensate(ctx, op.Operation, op.Compensation); err != nil {
			c.logger.Error().Err(err).Str("context_id", tc.ID).Str("service", op.Service).Int("ordinal", op.Ordinal).
				Msg("compensation failed, continuing rollback")
			result.FailedOrdinals = append(result.FailedOrdinals, op.Ordinal)

			continue
		}

		result.Compensated++
	}

	status := terminalStatus
	if len(result.FailedOrdinals) > 0 {
		status = domain.ContextStatusPartiallyRolledBack
	}

	now := time.Now().UTC()
	tc.Status = status
	tc.UpdatedAt = now
	result.Status = status
	result.CompletedAt = now

	if err := c.sagaRepo.UpdateStatus(ctx, tc.ID, status, now); err != nil {
		c.logger.Error().Err(err).Str("context_id", tc.ID).Msg("failed to persist context status")
	}

	c.publishRollback(ctx, tc, result)
	c.record(ctx, domain.AuditActionContextRollback, domain.AggregateTypeContext, tc.ID, nil, result, nil)

	if status == domain.ContextStatusPartiallyRolledBack {
		c.record(ctx, domain.AuditActionContextRollback, domain.AggregateTypeContext, tc.ID, nil, result,
			fmt.Errorf("%w: ordinals %v", domain.ErrPartialRollback, result.FailedOrdinals))

		// Some collaborator effects are still applied. Fence off all ledger
		// writes until an operator remediates the stuck ordinals.
		c.guard.Hold(ScopeAll,
			fmt.Sprintf("partial rollback of context %s, ordinals %v", tc.ID, result.FailedOrdinals))
	}

	c.logger.Info().Str("context_id", tc.ID).Str("status", string(status)).
		Int("compensated", result.Compensated).Ints("failed", result.FailedOrdinals).
		Msg("rollback finished")

	return result, nil
}

func (c *Coordinator) publishRollback(ctx context.Context, tc *domain.TransactionContext, result *domain.RollbackResult) {
	tx, err := c.txManager.Begin(ctx)
	if err != nil {
		c.logger.Error().Err(err).Str("context_id", tc.ID).Msg("failed to open tx for rollback event")
		return
	}
	defer tx.Rollback(ctx)

	event := &domain.OutboxEvent{
		ID:            c.idGen.Generate(),
		AggregateID:   tc.ID,
		AggregateType: domain.AggregateTypeContext,
		EventType:     domain.EventTypeTransactionRolledBack,
		Payload: domain.MarshalState(domain.TransactionRolledBackEvent{
			ContextID:      tc.ID,
			Owner:          tc.Owner,
			Status:         string(result.Status),
			Compensated:    result.Compensated,
			FailedOrdinals: result.FailedOrdinals,
		}),
		CreatedAt: time.Now().UTC(),
	}

	if err := c.outboxRepo.Create(ctx, tx, event); err != nil {
		c.logger.Error().Err(err).Str("context_id", tc.ID).Msg("failed to queue rollback event")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		c.logger.Error().Err(err).Str("context_id", tc.ID).Msg("failed to commit rollback event")
	}
}

// GetContext returns a snapshot of an active context.
func (c *Coordinator) GetContext(contextID string) (*domain.TransactionContext, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tc, ok := c.active[contextID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrContextNotFound, contextID)
	}

	snapshot := *tc
	snapshot.Operations = append([]domain.SagaOperation(nil), tc.Operations...)

	return &snapshot, nil
}

// SweepExpired rolls back every active context past its deadline, marking it
// Expired before compensation. Returns the number of contexts swept.
func (c *Coordinator) SweepExpired(ctx context.Context) int {
	now := time.Now().UTC()

	c.mu.Lock()
	var expired []*domain.TransactionContext
	for id, tc := range c.active {
		if tc.Expired(now) {
			tc.Status = domain.ContextStatusExpired
			tc.UpdatedAt = now
			expired = append(expired, tc)
			delete(c.active, id)
		}
	}
	c.mu.Unlock()

	for _, tc := range expired {
		if err := c.sagaRepo.UpdateStatus(ctx, tc.ID, domain.ContextStatusExpired, now); err != nil {
			c.logger.Error().Err(err).Str("context_id", tc.ID).Msg("failed to persist expired status")
		}

		c.record(ctx, domain.AuditActionContextExpire, domain.AggregateTypeContext, tc.ID, nil, tc,
			domain.ErrContextTimeout)

		if _, err := c.compensate(ctx, tc, domain.ContextStatusExpired); err != nil {
			c.logger.Error().Err(err).Str("context_id", tc.ID).Msg("failed to roll back expired context")
		}
	}

	return len(expired)
}

// StartSweeper runs the expiry sweep until the context is cancelled.
func (c *Coordinator) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = SweepInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("coordinator sweeper shutting down")
			return
		case <-ticker.C:
			if n := c.SweepExpired(ctx); n > 0 {
				c.logger.Warn().Int("count", n).Msg("expired distributed transactions rolled back")
			}
		}
	}
}
