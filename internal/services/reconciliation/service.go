// Package reconciliation drives matching decisions into bookkeeping: batch
// runs per account, allocation commits, reverts and review decisions.
package reconciliation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"bank-reconciliation-engine/internal/apperr"
	"bank-reconciliation-engine/internal/repository"
	"bank-reconciliation-engine/internal/services/matching"
	"bank-reconciliation-engine/internal/services/review"
)

// SystemActor is recorded as the performer of automatic decisions.
const SystemActor = "system"

// Policy holds the decision thresholds and commit tuning.
type Policy struct {
	AutoApplyThreshold float64
	ReviewThreshold    float64
	MaxCommitAttempts  int
	RetryBackoff       time.Duration
	Workers            int
}

func DefaultPolicy() Policy {
	return Policy{
		AutoApplyThreshold: 0.90,
		ReviewThreshold:    0.60,
		MaxCommitAttempts:  3,
		RetryBackoff:       10 * time.Millisecond,
		Workers:            4,
	}
}

func (p Policy) Validate() error {
	const op = "validate policy"
	switch {
	case p.AutoApplyThreshold < 0 || p.AutoApplyThreshold > 1:
		return apperr.Validation(op, "auto_apply_threshold %.2f outside [0,1]", p.AutoApplyThreshold)
	case p.ReviewThreshold < 0 || p.ReviewThreshold > 1:
		return apperr.Validation(op, "review_threshold %.2f outside [0,1]", p.ReviewThreshold)
	case p.ReviewThreshold > p.AutoApplyThreshold:
		return apperr.Validation(op, "review_threshold %.2f above auto_apply_threshold %.2f", p.ReviewThreshold, p.AutoApplyThreshold)
	case p.MaxCommitAttempts < 1:
		return apperr.Validation(op, "max_commit_attempts must be at least 1")
	case p.RetryBackoff < 0:
		return apperr.Validation(op, "retry_backoff must not be negative")
	case p.Workers < 1:
		return apperr.Validation(op, "workers must be at least 1")
	}
	return nil
}

type ReconciliationService struct {
	db           *gorm.DB
	accounts     *repository.AccountRepository
	transactions *repository.BankTransactionRepository
	receivables  *repository.ReceivableRepository
	allocations  *repository.AllocationRepository
	audit        *repository.AuditRepository
	runs         *repository.RunRepository
	queue        *review.Queue
	matcher      *matching.Service

	policy     Policy
	publisher  EventPublisher
	logger     *slog.Logger
	onProgress func(Progress)
	now        func() time.Time

	locks         lockManager
	progressCache sync.Map // runID -> Progress
}

type Option func(*ReconciliationService)

func WithPublisher(p EventPublisher) Option {
	return func(s *ReconciliationService) {
		s.publisher = p
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *ReconciliationService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithProgress registers a callback invoked after every processed
// transaction of a run.
func WithProgress(fn func(Progress)) Option {
	return func(s *ReconciliationService) {
		s.onProgress = fn
	}
}

// WithMatchingService replaces the matching service built from cfg.
func WithMatchingService(m *matching.Service) Option {
	return func(s *ReconciliationService) {
		s.matcher = m
	}
}

func withClock(now func() time.Time) Option {
	return func(s *ReconciliationService) {
		s.now = now
	}
}

func NewReconciliationService(db *gorm.DB, cfg matching.Config, policy Policy, opts ...Option) (*ReconciliationService, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	s := &ReconciliationService{
		db:           db,
		accounts:     repository.NewAccountRepository(db),
		transactions: repository.NewBankTransactionRepository(db),
		receivables:  repository.NewReceivableRepository(db),
		allocations:  repository.NewAllocationRepository(db),
		audit:        repository.NewAuditRepository(db),
		runs:         repository.NewRunRepository(db),
		queue:        review.NewQueue(repository.NewReviewRepository(db)),
		policy:       policy,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.publisher == nil {
		s.publisher = LogPublisher{Logger: s.logger}
	}
	if s.matcher == nil {
		m, err := matching.NewService(s.receivables, cfg)
		if err != nil {
			return nil, err
		}
		s.matcher = m
	}
	return s, nil
}

func (s *ReconciliationService) Policy() Policy {
	return s.policy
}

// store bundles the repositories bound to one database transaction.
type store struct {
	tx           *gorm.DB
	transactions *repository.BankTransactionRepository
	receivables  *repository.ReceivableRepository
	allocations  *repository.AllocationRepository
	trail        *auditTrail
}

// commit runs fn in a single database transaction while holding the locks of
// the given receivables. Events recorded by fn are published after commit.
func (s *ReconciliationService) commit(ctx context.Context, lockIDs []uuid.UUID, fn func(st *store) error) error {
	unlock := s.locks.lock(lockIDs...)
	defer unlock()

	var trail *auditTrail
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		trail = &auditTrail{ctx: ctx, audit: s.audit.WithTx(tx), now: s.now()}
		return fn(&store{
			tx:           tx,
			transactions: s.transactions.WithTx(tx),
			receivables:  s.receivables.WithTx(tx),
			allocations:  s.allocations.WithTx(tx),
			trail:        trail,
		})
	})
	if err != nil {
		return err
	}

	for _, ev := range trail.events {
		if perr := s.publisher.Publish(ctx, ev); perr != nil {
			s.logger.Warn("publishing event failed",
				"action", ev.Action,
				"transaction_id", ev.TransactionID,
				"error", perr)
		}
	}
	return nil
}

func (s *ReconciliationService) logFailure(op string, txID uuid.UUID, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindOverAllocation || kind == apperr.KindInternal {
		s.logger.Error(fmt.Sprintf("%s failed", op), "transaction_id", txID, "kind", kind, "error", err)
		return
	}
	s.logger.Warn(fmt.Sprintf("%s failed", op), "transaction_id", txID, "kind", kind, "error", err)
}
