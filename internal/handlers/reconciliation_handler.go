package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bank-reconciliation-engine/internal/models"
	service "bank-reconciliation-engine/internal/services/reconciliation"
)

type ReconciliationHandler struct {
	service *service.ReconciliationService
}

func NewReconciliationHandler(s *service.ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{service: s}
}

func (h *ReconciliationHandler) CreateAccount(c *gin.Context) {
	var payload service.AccountInput
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "invalid payload")
		return
	}

	account, err := h.service.CreateAccount(c.Request.Context(), payload)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "account created", "account": account})
}

type transactionPayload struct {
	ValueDate         string          `json:"value_date"`
	Amount            decimal.Decimal `json:"amount"`
	Description       string          `json:"description"`
	CounterpartyID    *string         `json:"counterparty_id"`
	ExternalReference string          `json:"external_reference"`
}

// ImportTransactions stores already-normalized statement lines for an account.
func (h *ReconciliationHandler) ImportTransactions(c *gin.Context) {
	accountID, ok := uuidParam(c, "accountId")
	if !ok {
		return
	}

	var payload struct {
		Transactions []transactionPayload `json:"transactions"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	if len(payload.Transactions) == 0 {
		badRequest(c, "transactions required")
		return
	}

	records := make([]service.TransactionRecord, 0, len(payload.Transactions))
	for i, p := range payload.Transactions {
		valueDate, err := parseDate(p.ValueDate)
		if err != nil {
			badRequest(c, "transaction "+strconv.Itoa(i)+": "+err.Error())
			return
		}
		records = append(records, service.TransactionRecord{
			AccountID:         accountID,
			ValueDate:         valueDate,
			Amount:            p.Amount,
			Description:       p.Description,
			CounterpartyID:    p.CounterpartyID,
			ExternalReference: p.ExternalReference,
		})
	}

	result, err := h.service.ImportTransactions(c.Request.Context(), accountID, records)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ReconciliationHandler) ListTransactions(c *gin.Context) {
	accountID, ok := uuidParam(c, "accountId")
	if !ok {
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			badRequest(c, "invalid limit")
			return
		}
		limit = n
	}

	page, err := h.service.ListTransactions(c.Request.Context(), accountID, c.Query("status"), c.Query("cursor"), limit, c.Query("search"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items":       page.Transactions,
		"next_cursor": page.NextCursor,
		"has_more":    page.HasMore,
		"stats":       page.Stats,
	})
}

func (h *ReconciliationHandler) GetTransaction(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	tx, err := h.service.GetTransaction(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

func (h *ReconciliationHandler) CreateReceivable(c *gin.Context) {
	var payload struct {
		Number           string          `json:"number"`
		CounterpartyID   string          `json:"counterparty_id"`
		CounterpartyName string          `json:"counterparty_name"`
		TotalAmount      decimal.Decimal `json:"total_amount"`
		DueDate          string          `json:"due_date"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	dueDate, err := parseDate(payload.DueDate)
	if err != nil {
		respondError(c, err)
		return
	}

	rec, created, err := h.service.RegisterReceivable(c.Request.Context(), service.ReceivableInput{
		Number:           payload.Number,
		CounterpartyID:   payload.CounterpartyID,
		CounterpartyName: payload.CounterpartyName,
		TotalAmount:      payload.TotalAmount,
		DueDate:          dueDate,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	if !created {
		c.JSON(http.StatusOK, gin.H{"message": "receivable already registered", "receivable": rec})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "receivable created", "receivable": rec})
}

// SearchReceivables serves ?search=rossi&status=UNPAID,PARTIALLY_PAID.
func (h *ReconciliationHandler) SearchReceivables(c *gin.Context) {
	var statuses []models.PaymentStatus
	for _, raw := range strings.Split(c.Query("status"), ",") {
		if raw = strings.TrimSpace(raw); raw != "" {
			statuses = append(statuses, models.PaymentStatus(strings.ToUpper(raw)))
		}
	}

	recs, err := h.service.SearchReceivables(c.Request.Context(), c.Query("search"), statuses)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": recs, "count": len(recs)})
}

func (h *ReconciliationHandler) GetReceivable(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	view, err := h.service.GetReceivable(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// StartRun kicks off a background run for an account.
func (h *ReconciliationHandler) StartRun(c *gin.Context) {
	var payload struct {
		AccountID string `json:"account_id"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	accountID, err := uuid.Parse(payload.AccountID)
	if err != nil {
		badRequest(c, "invalid account ID")
		return
	}

	runID, err := h.service.StartRun(c.Request.Context(), accountID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"run_id": runID.String(),
		"status": "processing",
	})
}

func (h *ReconciliationHandler) GetRunProgress(c *gin.Context) {
	runID, ok := uuidParam(c, "runId")
	if !ok {
		return
	}
	progress, err := h.service.Progress(c.Request.Context(), runID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

type decisionPayload struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

// bindDecision reads an optional actor/reason body.
func bindDecision(c *gin.Context) (decisionPayload, bool) {
	var payload decisionPayload
	if c.Request.ContentLength == 0 {
		return payload, true
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "invalid payload")
		return payload, false
	}
	return payload, true
}

func (h *ReconciliationHandler) RevertTransaction(c *gin.Context) {
	h.transition(c, "transaction reverted", h.service.Revert)
}

func (h *ReconciliationHandler) IgnoreTransaction(c *gin.Context) {
	h.transition(c, "transaction ignored", h.service.Ignore)
}

func (h *ReconciliationHandler) ResetTransaction(c *gin.Context) {
	h.transition(c, "transaction reset", h.service.Reset)
}

func (h *ReconciliationHandler) transition(c *gin.Context, message string, op func(ctx context.Context, id uuid.UUID, actor, reason string) error) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	payload, ok := bindDecision(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := op(ctx, id, actorOr(payload.Actor), payload.Reason); err != nil {
		respondError(c, err)
		return
	}
	tx, err := h.service.GetTransaction(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "transaction": tx})
}

func (h *ReconciliationHandler) AuditTrail(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	entries, err := h.service.AuditTrail(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": entries})
}
