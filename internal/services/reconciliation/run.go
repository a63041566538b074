package reconciliation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"bank-reconciliation-engine/internal/apperr"
	"bank-reconciliation-engine/internal/models"
)

// TransactionError is one per-transaction failure recorded by a run.
type TransactionError struct {
	TransactionID uuid.UUID   `json:"transaction_id"`
	Kind          apperr.Kind `json:"kind"`
	Message       string      `json:"message"`
}

// Summary is the outcome of one batch run over an account.
type Summary struct {
	RunID           uuid.UUID          `json:"run_id"`
	AccountID       uuid.UUID          `json:"account_id"`
	Processed       int                `json:"processed"`
	AutoMatched     int                `json:"auto_matched"`
	QueuedForReview int                `json:"queued_for_review"`
	Unresolved      int                `json:"unresolved"`
	Skipped         int                `json:"skipped"`
	NotAttempted    int                `json:"not_attempted"`
	Cancelled       bool               `json:"cancelled"`
	Errors          []TransactionError `json:"errors"`
}

// Progress is the live state of a run as seen by pollers.
type Progress struct {
	RunID          uuid.UUID `json:"run_id"`
	AccountID      uuid.UUID `json:"account_id"`
	ProcessedCount int       `json:"processed"`
	Total          int       `json:"total"`
	Status         string    `json:"status"`
	Summary        *Summary  `json:"summary,omitempty"`
}

type outcome int

const (
	outcomeAutoMatched outcome = iota
	outcomeQueued
	outcomeUnresolved
	outcomeSkipped
)

// RunAccount reconciles every UNMATCHED transaction of an account in value
// date order. Per-transaction failures land in the summary; only failures to
// start or finish the run itself are returned.
func (s *ReconciliationService) RunAccount(ctx context.Context, accountID uuid.UUID) (*Summary, error) {
	run, err := s.createRun(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, run)
}

// RunAll reconciles every account concurrently, one worker per account.
func (s *ReconciliationService) RunAll(ctx context.Context) ([]*Summary, error) {
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}

	summaries := make([]*Summary, len(accounts))
	var g errgroup.Group
	g.SetLimit(s.policy.Workers)
	for i, account := range accounts {
		i, account := i, account
		g.Go(func() error {
			summary, err := s.RunAccount(ctx, account.ID)
			if err != nil {
				return fmt.Errorf("account %s: %w", account.Name, err)
			}
			summaries[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return compact(summaries), err
	}
	return summaries, nil
}

// StartRun creates the run record and processes it in the background. The
// returned id can be polled through Progress.
func (s *ReconciliationService) StartRun(ctx context.Context, accountID uuid.UUID) (uuid.UUID, error) {
	run, err := s.createRun(ctx, accountID)
	if err != nil {
		return uuid.Nil, err
	}
	go func() {
		if _, err := s.execute(context.WithoutCancel(ctx), run); err != nil {
			s.logger.Error("background run failed", "run_id", run.ID, "error", err)
		}
	}()
	return run.ID, nil
}

// Progress reports a run's live state, falling back to the persisted record
// for runs this process did not execute.
func (s *ReconciliationService) Progress(ctx context.Context, runID uuid.UUID) (*Progress, error) {
	if v, ok := s.progressCache.Load(runID); ok {
		p := v.(Progress)
		return &p, nil
	}

	run, err := s.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	p := &Progress{
		RunID:          run.ID,
		ProcessedCount: run.Processed,
		Total:          run.Total,
		Status:         run.Status,
	}
	if run.AccountID != nil {
		p.AccountID = *run.AccountID
	}
	if run.Status != models.RunProcessing {
		p.Summary = summaryFromRun(run)
	}
	return p, nil
}

func (s *ReconciliationService) createRun(ctx context.Context, accountID uuid.UUID) (*models.ReconciliationRun, error) {
	if _, err := s.accounts.GetByID(ctx, accountID); err != nil {
		return nil, err
	}
	now := s.now()
	run := &models.ReconciliationRun{
		ID:        uuid.New(),
		AccountID: &accountID,
		Status:    models.RunProcessing,
		StartedAt: now,
		CreatedAt: now,
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("creating run: %w", err)
	}
	return run, nil
}

func (s *ReconciliationService) execute(ctx context.Context, run *models.ReconciliationRun) (*Summary, error) {
	accountID := *run.AccountID
	summary := &Summary{RunID: run.ID, AccountID: accountID, Errors: []TransactionError{}}
	logger := s.logger.With("run_id", run.ID, "account_id", accountID)

	total, err := s.transactions.CountByAccount(ctx, accountID)
	if err != nil {
		return nil, s.abort(run, fmt.Errorf("counting transactions: %w", err))
	}
	ids, err := s.transactions.IDsByStatus(ctx, accountID, models.TransactionUnmatched)
	if err != nil {
		return nil, s.abort(run, fmt.Errorf("loading unmatched transactions: %w", err))
	}
	summary.Skipped = int(total) - len(ids)
	run.Total = len(ids)
	logger.Info("reconciliation run started", "unmatched", len(ids), "skipped", summary.Skipped)
	s.publishProgress(Progress{RunID: run.ID, AccountID: accountID, Total: len(ids), Status: models.RunProcessing})

	// In-flight commits are never interrupted; cancellation is observed
	// between transactions.
	work := context.WithoutCancel(ctx)
	for i, id := range ids {
		if ctx.Err() != nil {
			summary.Cancelled = true
			summary.NotAttempted = len(ids) - i
			break
		}

		summary.Processed++
		result, err := s.processTransaction(work, id)
		if err != nil {
			summary.Errors = append(summary.Errors, TransactionError{
				TransactionID: id,
				Kind:          apperr.KindOf(err),
				Message:       err.Error(),
			})
			s.logFailure("reconcile transaction", id, err)
		} else {
			switch result {
			case outcomeAutoMatched:
				summary.AutoMatched++
			case outcomeQueued:
				summary.QueuedForReview++
			case outcomeUnresolved:
				summary.Unresolved++
			case outcomeSkipped:
				summary.Skipped++
			}
		}

		s.publishProgress(Progress{RunID: run.ID, AccountID: accountID, ProcessedCount: i + 1, Total: len(ids), Status: models.RunProcessing})
	}

	if err := s.finishRun(work, run, summary); err != nil {
		return summary, err
	}
	logger.Info("reconciliation run finished",
		"processed", summary.Processed,
		"auto_matched", summary.AutoMatched,
		"queued_for_review", summary.QueuedForReview,
		"unresolved", summary.Unresolved,
		"skipped", summary.Skipped,
		"not_attempted", summary.NotAttempted,
		"errors", len(summary.Errors),
		"cancelled", summary.Cancelled)
	return summary, nil
}

// processTransaction evaluates one transaction and commits the decision,
// starting over from a fresh read whenever the commit loses a race.
func (s *ReconciliationService) processTransaction(ctx context.Context, txID uuid.UUID) (outcome, error) {
	var result outcome
	err := withRetry(ctx, s.logger, s.policy.MaxCommitAttempts, s.policy.RetryBackoff, func(int) error {
		var err error
		result, err = s.decide(ctx, txID)
		return err
	})
	return result, err
}

func (s *ReconciliationService) decide(ctx context.Context, txID uuid.UUID) (outcome, error) {
	bt, err := s.transactions.GetByID(ctx, txID)
	if err != nil {
		return 0, err
	}
	if bt.Status != models.TransactionUnmatched {
		return outcomeSkipped, nil
	}

	hyps, err := s.matcher.Match(ctx, bt)
	if err != nil {
		return 0, err
	}
	if len(hyps) == 0 || hyps[0].Confidence < s.policy.ReviewThreshold {
		return outcomeUnresolved, nil
	}

	if hyps[0].Confidence >= s.policy.AutoApplyThreshold {
		if _, err := s.Apply(ctx, hyps[0], models.AllocationAuto, SystemActor); err != nil {
			return 0, err
		}
		return outcomeAutoMatched, nil
	}

	if err := s.queueForReview(ctx, txID, hyps); err != nil {
		return 0, err
	}
	return outcomeQueued, nil
}

func (s *ReconciliationService) finishRun(ctx context.Context, run *models.ReconciliationRun, summary *Summary) error {
	errs, err := json.Marshal(summary.Errors)
	if err != nil {
		return fmt.Errorf("encoding run errors: %w", err)
	}
	now := s.now()
	run.Status = models.RunCompleted
	if summary.Cancelled {
		run.Status = models.RunCancelled
	}
	run.Processed = summary.Processed
	run.AutoMatched = summary.AutoMatched
	run.QueuedForReview = summary.QueuedForReview
	run.Unresolved = summary.Unresolved
	run.Skipped = summary.Skipped
	run.NotAttempted = summary.NotAttempted
	run.ErrorCount = len(summary.Errors)
	run.Errors = errs
	run.CompletedAt = &now

	final := Progress{
		RunID:          run.ID,
		AccountID:      summary.AccountID,
		ProcessedCount: summary.Processed,
		Total:          run.Total,
		Status:         run.Status,
		Summary:        summary,
	}
	if err := s.runs.Save(ctx, run); err != nil {
		// the stored record is stale, so the cache keeps serving the result
		s.publishProgress(final)
		return fmt.Errorf("saving run %s: %w", run.ID, err)
	}

	// finished runs are served from the database
	s.progressCache.Delete(run.ID)
	if s.onProgress != nil {
		s.onProgress(final)
	}
	return nil
}

// abort marks a run that could not get going as cancelled and returns err.
func (s *ReconciliationService) abort(run *models.ReconciliationRun, err error) error {
	now := s.now()
	run.Status = models.RunCancelled
	run.CompletedAt = &now
	if saveErr := s.runs.Save(context.Background(), run); saveErr != nil {
		s.logger.Error("saving aborted run failed", "run_id", run.ID, "error", saveErr)
	}
	s.progressCache.Delete(run.ID)
	return err
}

func (s *ReconciliationService) publishProgress(p Progress) {
	s.progressCache.Store(p.RunID, p)
	if s.onProgress != nil {
		s.onProgress(p)
	}
}

func summaryFromRun(run *models.ReconciliationRun) *Summary {
	summary := &Summary{
		RunID:           run.ID,
		Processed:       run.Processed,
		AutoMatched:     run.AutoMatched,
		QueuedForReview: run.QueuedForReview,
		Unresolved:      run.Unresolved,
		Skipped:         run.Skipped,
		NotAttempted:    run.NotAttempted,
		Cancelled:       run.Status == models.RunCancelled,
		Errors:          []TransactionError{},
	}
	if run.AccountID != nil {
		summary.AccountID = *run.AccountID
	}
	if len(run.Errors) > 0 {
		_ = json.Unmarshal(run.Errors, &summary.Errors)
	}
	return summary
}

func compact(summaries []*Summary) []*Summary {
	out := summaries[:0]
	for _, s := range summaries {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}
