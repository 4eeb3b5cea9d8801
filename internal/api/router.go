package api

import (
	"github.com/gin-gonic/gin"

	"github.com/colby/bambulog/internal/api/handler"
	"github.com/colby/bambulog/internal/api/middleware"
	"github.com/colby/bambulog/internal/config"
	"github.com/colby/bambulog/internal/repository"
)

// SetupRouter configures the Gin router with all routes
func SetupRouter(jobRepo *repository.JobRepository, cfg *config.ServerConfig) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.CORS.AllowAllOrigins,
	}))

	healthHandler := handler.NewHealthHandler()
	jobHandler := handler.NewJobHandler(jobRepo)

	// Health check
	r.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/jobs", jobHandler.ListJobs)
		v1.GET("/jobs/:id", jobHandler.GetJob)

		// Watermark for downstream pollers
		v1.GET("/watermark", jobHandler.Watermark)

		// Stats
		v1.GET("/stats", jobHandler.Stats)
	}

	return r
}
