package routes

import (
	"github.com/gin-gonic/gin"

	handler "bank-reconciliation-engine/internal/handlers"
	service "bank-reconciliation-engine/internal/services/reconciliation"
)

func RegisterRoutes(r *gin.Engine, reconService *service.ReconciliationService) {
	reconHandler := handler.NewReconciliationHandler(reconService)

	api := r.Group("/api")

	// Health check
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	accounts := api.Group("/accounts")
	accounts.POST("", reconHandler.CreateAccount)
	accounts.POST("/:accountId/transactions", reconHandler.ImportTransactions)
	accounts.GET("/:accountId/transactions", reconHandler.ListTransactions)

	receivables := api.Group("/receivables")
	receivables.POST("", reconHandler.CreateReceivable)
	receivables.GET("", reconHandler.SearchReceivables)
	receivables.GET("/:id", reconHandler.GetReceivable)

	// Reconciliation run routes
	recon := api.Group("/reconciliation")
	recon.POST("/runs", reconHandler.StartRun)
	recon.GET("/runs/:runId", reconHandler.GetRunProgress)

	// Transaction-level routes
	tx := api.Group("/transactions")
	tx.GET("/:id", reconHandler.GetTransaction)
	tx.GET("/:id/audit", reconHandler.AuditTrail)
	tx.POST("/:id/revert", reconHandler.RevertTransaction)
	tx.POST("/:id/ignore", reconHandler.IgnoreTransaction)
	tx.POST("/:id/reset", reconHandler.ResetTransaction)

	review := api.Group("/review")
	{
		review.GET("", reconHandler.ListReviews)
		review.GET("/:id", reconHandler.GetReview)
		review.POST("/:id/accept", reconHandler.AcceptReview)
		review.POST("/:id/reject", reconHandler.RejectReview)
	}
}
