package main

import (
	"log"
	"os"
	"time"

	"bank-reconciliation-engine/internal/config"
	"bank-reconciliation-engine/internal/logging"
	"bank-reconciliation-engine/internal/routes"
	service "bank-reconciliation-engine/internal/services/reconciliation"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	settings, err := config.Load()
	if err != nil {
		log.Fatalf("loading configuration: %v", err)
	}

	logger, err := logging.Setup(os.Stderr, settings.LogLevel, settings.LogFormat)
	if err != nil {
		log.Fatalf("configuring logging: %v", err)
	}

	db, err := config.InitDB(settings)
	if err != nil {
		log.Fatalf("connecting database: %v", err)
	}
	if err := config.Migrate(db); err != nil {
		log.Fatalf("%v", err)
	}

	reconService, err := service.NewReconciliationService(db, settings.Matching, settings.Policy,
		service.WithLogger(logger))
	if err != nil {
		log.Fatalf("building reconciliation service: %v", err)
	}

	r := gin.Default()
	// CORS config
	r.Use(cors.New(cors.Config{
		AllowOrigins:     settings.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, reconService)

	logger.Info("server listening", "port", settings.Port, "driver", settings.DBDriver)
	if err := r.Run(":" + settings.Port); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
