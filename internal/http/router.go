package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/mealforge/mealforge-backend/internal/http/handlers"
	httpMW "github.com/mealforge/mealforge-backend/internal/http/middleware"
	"github.com/mealforge/mealforge-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	AuthMiddleware *httpMW.AuthMiddleware

	MealGenerationHandler *httpH.MealGenerationHandler
	HealthHandler         *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")

	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		if cfg.MealGenerationHandler != nil {
			protected.POST("/meal-plans/generate", cfg.MealGenerationHandler.GeneratePlan)
			protected.GET("/meal-plans/generation-status", cfg.MealGenerationHandler.GenerationStatus)
			protected.POST("/meals/:id/select", cfg.MealGenerationHandler.SelectMeal)
		}
	}

	return r
}
