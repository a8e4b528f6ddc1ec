package services

import (
	"context"

	types "github.com/mealforge/mealforge-backend/internal/domain"
)

// GenerationRequest is the single batched request sent to the external
// generator: one call per job, all groups combined.
type GenerationRequest struct {
	PlanName  string               `json:"planName"`
	WeekStart string               `json:"weekStart"`
	Notes     string               `json:"notes,omitempty"`
	Groups    []types.GroupRequest `json:"groups"`
}

// GeneratedRecipe is one recipe as returned by the generator, before it is
// persisted as a GeneratedMeal row.
type GeneratedRecipe struct {
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	PrepMinutes  int      `json:"prep_minutes"`
	CookMinutes  int      `json:"cook_minutes"`
	TotalMinutes int      `json:"total_minutes"`
	Servings     int      `json:"servings"`
	Ingredients  []string `json:"ingredients"`
	Instructions []string `json:"instructions"`
	Tags         []string `json:"tags,omitempty"`
	DietaryInfo  []string `json:"dietary_info,omitempty"`
	Difficulty   string   `json:"difficulty,omitempty"`
}

// MealGenerator is the external generative collaborator. Results are keyed
// by group name, each value an ordered recipe list. Any returned error
// aborts the whole job; there is no partial persistence.
type MealGenerator interface {
	GenerateMeals(ctx context.Context, req GenerationRequest) (map[string][]GeneratedRecipe, error)
	Close() error
}
