package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mealforge/mealforge-backend/internal/http/response"
	"github.com/mealforge/mealforge-backend/internal/platform/logger"
	"github.com/mealforge/mealforge-backend/internal/services"
)

type MealGenerationHandler struct {
	log     *logger.Logger
	service services.MealGenerationService
}

func NewMealGenerationHandler(log *logger.Logger, service services.MealGenerationService) *MealGenerationHandler {
	return &MealGenerationHandler{
		log:     log.With("handler", "MealGenerationHandler"),
		service: service,
	}
}

// POST /api/meal-plans/generate
func (h *MealGenerationHandler) GeneratePlan(c *gin.Context) {
	var req services.SubmitPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_plan", err)
		return
	}

	job, err := h.service.SubmitPlan(c.Request.Context(), req)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}

	response.RespondOK(c, gin.H{
		"jobId":   job.ID,
		"status":  job.Status,
		"message": "Meal generation started. Poll the status endpoint for progress.",
	})
}

// GET /api/meal-plans/generation-status?jobId=&planName=&status=
func (h *MealGenerationHandler) GenerationStatus(c *gin.Context) {
	filter := services.StatusFilter{
		PlanName: strings.TrimSpace(c.Query("planName")),
		Status:   strings.TrimSpace(c.Query("status")),
	}
	if raw := strings.TrimSpace(c.Query("jobId")); raw != "" {
		jobID, err := uuid.Parse(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("jobId must be a UUID"))
			return
		}
		filter.JobID = &jobID
	}

	result, err := h.service.QueryStatus(c.Request.Context(), filter)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}

	response.RespondOK(c, gin.H{
		"jobs":  result.Jobs,
		"meals": result.Meals,
	})
}

// POST /api/meals/:id/select
func (h *MealGenerationHandler) SelectMeal(c *gin.Context) {
	mealID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("meal id must be a UUID"))
		return
	}

	var body struct {
		Selected bool `json:"selected"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	meal, err := h.service.SetMealSelected(c.Request.Context(), mealID, body.Selected)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}

	response.RespondOK(c, gin.H{"meal": meal})
}
