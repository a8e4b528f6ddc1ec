package domain

import (
	"github.com/mealforge/mealforge-backend/internal/domain/meals"
	"github.com/mealforge/mealforge-backend/internal/domain/user"
)

const (
	JobStatusPending    = meals.JobStatusPending
	JobStatusProcessing = meals.JobStatusProcessing
	JobStatusCompleted  = meals.JobStatusCompleted
	JobStatusFailed     = meals.JobStatusFailed
)

var (
	TerminalStatuses = meals.TerminalStatuses
	IsTerminalStatus = meals.IsTerminalStatus
)

type (
	User = user.User

	Group         = meals.Group
	GroupRequest  = meals.GroupRequest
	GenerationJob = meals.GenerationJob
	GeneratedMeal = meals.GeneratedMeal
	MealSummary   = meals.MealSummary
)
