package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func (h *ReconciliationHandler) ListReviews(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			badRequest(c, "invalid limit")
			return
		}
		limit = n
	}

	items, err := h.service.PendingReviews(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *ReconciliationHandler) GetReview(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	item, err := h.service.GetReview(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *ReconciliationHandler) AcceptReview(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var payload struct {
		ReceivableID string `json:"receivable_id"`
		Actor        string `json:"actor"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	receivableID, err := uuid.Parse(payload.ReceivableID)
	if err != nil {
		badRequest(c, "invalid receivable ID")
		return
	}

	alloc, err := h.service.AcceptReview(c.Request.Context(), id, receivableID, actorOr(payload.Actor))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "review accepted", "allocation": alloc})
}

func (h *ReconciliationHandler) RejectReview(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var payload struct {
		Ignore bool   `json:"ignore"`
		Actor  string `json:"actor"`
		Reason string `json:"reason"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&payload); err != nil {
			badRequest(c, "invalid payload")
			return
		}
	}

	if err := h.service.RejectReview(c.Request.Context(), id, payload.Ignore, actorOr(payload.Actor), payload.Reason); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "review rejected", "ignored": payload.Ignore})
}
