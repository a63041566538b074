package reconciliation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bank-reconciliation-engine/internal/apperr"
	"bank-reconciliation-engine/internal/models"
	"bank-reconciliation-engine/internal/repository"
)

const maxDescriptionLength = 1024

// TransactionRecord is a normalized statement line handed over by the
// ingestion side.
type TransactionRecord struct {
	AccountID         uuid.UUID       `json:"account_id"`
	ValueDate         time.Time       `json:"value_date"`
	Amount            decimal.Decimal `json:"amount"`
	Description       string          `json:"description"`
	CounterpartyID    *string         `json:"counterparty_id"`
	ExternalReference string          `json:"external_reference"`
}

func (r TransactionRecord) Validate() error {
	const op = "validate transaction"
	switch {
	case r.ValueDate.IsZero():
		return apperr.Validation(op, "value_date is required")
	case r.Amount.IsZero():
		return apperr.Validation(op, "amount must not be zero")
	case !r.Amount.Equal(r.Amount.Round(2)):
		return apperr.Validation(op, "amount %s has more than two decimals", r.Amount)
	case strings.TrimSpace(r.ExternalReference) == "":
		return apperr.Validation(op, "external_reference is required")
	case len(r.Description) > maxDescriptionLength:
		return apperr.Validation(op, "description longer than %d characters", maxDescriptionLength)
	}
	return nil
}

// RecordError reports why one record of an import was refused.
type RecordError struct {
	Index             int    `json:"index"`
	ExternalReference string `json:"external_reference"`
	Message           string `json:"message"`
}

type ImportResult struct {
	Imported   int           `json:"imported"`
	Duplicates int           `json:"duplicates"`
	Rejected   []RecordError `json:"rejected"`
}

// ImportTransactions stores records as UNMATCHED transactions. Records whose
// external reference already exists for the account are skipped.
func (s *ReconciliationService) ImportTransactions(ctx context.Context, accountID uuid.UUID, records []TransactionRecord) (*ImportResult, error) {
	if _, err := s.accounts.GetByID(ctx, accountID); err != nil {
		return nil, err
	}

	result := &ImportResult{Rejected: []RecordError{}}
	now := s.now()
	for i, rec := range records {
		if rec.AccountID == uuid.Nil {
			rec.AccountID = accountID
		}
		err := rec.Validate()
		if err == nil && rec.AccountID != accountID {
			err = apperr.Validation("validate transaction", "record belongs to account %s", rec.AccountID)
		}
		if err != nil {
			result.Rejected = append(result.Rejected, RecordError{Index: i, ExternalReference: rec.ExternalReference, Message: err.Error()})
			continue
		}

		tx := &models.BankTransaction{
			ID:                uuid.New(),
			AccountID:         accountID,
			ValueDate:         rec.ValueDate,
			Amount:            rec.Amount.Round(2),
			Description:       strings.TrimSpace(rec.Description),
			CounterpartyID:    rec.CounterpartyID,
			ExternalReference: strings.TrimSpace(rec.ExternalReference),
			Status:            models.TransactionUnmatched,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		inserted, err := s.transactions.Insert(ctx, tx)
		if err != nil {
			return result, fmt.Errorf("inserting transaction %s: %w", rec.ExternalReference, err)
		}
		if inserted {
			result.Imported++
		} else {
			result.Duplicates++
		}
	}

	s.logger.Info("transactions imported",
		"account_id", accountID,
		"imported", result.Imported,
		"duplicates", result.Duplicates,
		"rejected", len(result.Rejected))
	return result, nil
}

type AccountInput struct {
	Name     string `json:"name"`
	IBAN     string `json:"iban"`
	Currency string `json:"currency"`
}

func (s *ReconciliationService) CreateAccount(ctx context.Context, in AccountInput) (*models.BankAccount, error) {
	const op = "create account"
	if strings.TrimSpace(in.Name) == "" {
		return nil, apperr.Validation(op, "name is required")
	}
	if strings.TrimSpace(in.IBAN) == "" {
		return nil, apperr.Validation(op, "iban is required")
	}
	if len(in.Currency) != 3 {
		return nil, apperr.Validation(op, "currency must be a three-letter code")
	}
	account := &models.BankAccount{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(in.Name),
		IBAN:      strings.ToUpper(strings.ReplaceAll(in.IBAN, " ", "")),
		Currency:  strings.ToUpper(in.Currency),
		CreatedAt: s.now(),
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("creating account: %w", err)
	}
	return account, nil
}

// ReceivableInput registers an open receivable on behalf of the invoicing
// side.
type ReceivableInput struct {
	Number           string          `json:"number"`
	CounterpartyID   string          `json:"counterparty_id"`
	CounterpartyName string          `json:"counterparty_name"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	DueDate          time.Time       `json:"due_date"`
}

// RegisterReceivable stores a new UNPAID receivable. When the number is
// already known the stored receivable is returned with created=false.
func (s *ReconciliationService) RegisterReceivable(ctx context.Context, in ReceivableInput) (rec *models.Receivable, created bool, err error) {
	const op = "register receivable"
	switch {
	case strings.TrimSpace(in.Number) == "":
		return nil, false, apperr.Validation(op, "number is required")
	case !in.TotalAmount.IsPositive():
		return nil, false, apperr.Validation(op, "total_amount must be positive")
	case in.DueDate.IsZero():
		return nil, false, apperr.Validation(op, "due_date is required")
	}

	now := s.now()
	rec = &models.Receivable{
		ID:               uuid.New(),
		Number:           strings.TrimSpace(in.Number),
		CounterpartyID:   in.CounterpartyID,
		CounterpartyName: strings.TrimSpace(in.CounterpartyName),
		TotalAmount:      in.TotalAmount.Round(2),
		AllocatedAmount:  decimal.Zero,
		PaymentStatus:    models.PaymentUnpaid,
		DueDate:          in.DueDate,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	created, err = s.receivables.Create(ctx, rec)
	if err != nil {
		return nil, false, fmt.Errorf("creating receivable: %w", err)
	}
	if !created {
		rec, err = s.receivables.GetByNumber(ctx, rec.Number)
		if err != nil {
			return nil, false, err
		}
	}
	return rec, created, nil
}

// SearchReceivables looks receivables up by counterparty name or number for
// manual review decisions. An empty query lists everything in statuses.
func (s *ReconciliationService) SearchReceivables(ctx context.Context, query string, statuses []models.PaymentStatus) ([]models.Receivable, error) {
	for _, st := range statuses {
		switch st {
		case models.PaymentUnpaid, models.PaymentPartiallyPaid, models.PaymentPaid:
		default:
			return nil, apperr.Validation("search receivables", "unknown payment status %q", st)
		}
	}
	return s.receivables.Search(ctx, strings.TrimSpace(query), statuses)
}

// ReceivableView is a receivable with its allocation history.
type ReceivableView struct {
	models.Receivable
	Allocations []models.PaymentAllocation `json:"allocations"`
}

func (s *ReconciliationService) GetReceivable(ctx context.Context, id uuid.UUID) (*ReceivableView, error) {
	rec, err := s.receivables.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	allocs, err := s.allocations.ByReceivable(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ReceivableView{Receivable: *rec, Allocations: allocs}, nil
}

func (s *ReconciliationService) GetTransaction(ctx context.Context, id uuid.UUID) (*models.BankTransaction, error) {
	return s.transactions.GetByID(ctx, id)
}

// TransactionPage is one page of an account's transactions.
type TransactionPage struct {
	Transactions []models.BankTransaction `json:"transactions"`
	NextCursor   string                   `json:"next_cursor"`
	HasMore      bool                     `json:"has_more"`
	Stats        []repository.StatusStats `json:"stats"`
}

func (s *ReconciliationService) ListTransactions(ctx context.Context, accountID uuid.UUID, status, cursor string, limit int, search string) (*TransactionPage, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	txs, next, more, err := s.transactions.List(ctx, accountID, status, cursor, limit, search)
	if err != nil {
		return nil, err
	}
	stats, err := s.transactions.Stats(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &TransactionPage{Transactions: txs, NextCursor: next, HasMore: more, Stats: stats}, nil
}

func (s *ReconciliationService) AuditTrail(ctx context.Context, txID uuid.UUID) ([]models.MatchAuditLog, error) {
	if _, err := s.transactions.GetByID(ctx, txID); err != nil {
		return nil, err
	}
	return s.audit.ByTransaction(ctx, txID)
}
