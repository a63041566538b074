package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bank-reconciliation-engine/internal/apperr"
)

const defaultActor = "api"

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindStateConflict, apperr.KindConcurrencyConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	c.JSON(statusFor(kind), gin.H{"error": err.Error(), "kind": kind})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "kind": apperr.KindValidation})
}

// uuidParam parses a path parameter, answering 400 when it is malformed.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// parseDate accepts ISO dates, RFC 3339 timestamps and dd-mm-yyyy.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", time.RFC3339, "02-01-2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, apperr.Validation("parse date", "invalid date %q, expected yyyy-mm-dd", s)
}

func actorOr(actor string) string {
	if strings.TrimSpace(actor) == "" {
		return defaultActor
	}
	return actor
}
