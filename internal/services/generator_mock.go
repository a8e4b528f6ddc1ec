package services

import (
	"context"
	"fmt"
)

// mockMealGenerator produces deterministic recipes without any external
// call. Used in the development store mode and by tests.
type mockMealGenerator struct{}

func NewMockMealGenerator() MealGenerator {
	return &mockMealGenerator{}
}

func (m *mockMealGenerator) GenerateMeals(_ context.Context, req GenerationRequest) (map[string][]GeneratedRecipe, error) {
	out := make(map[string][]GeneratedRecipe, len(req.Groups))
	for _, g := range req.Groups {
		recipes := make([]GeneratedRecipe, 0, g.MealCount)
		for i := 0; i < g.MealCount; i++ {
			recipes = append(recipes, GeneratedRecipe{
				Title:        fmt.Sprintf("%s meal %d", g.GroupName, i+1),
				Description:  fmt.Sprintf("Placeholder recipe %d for %s (%s)", i+1, g.GroupName, req.PlanName),
				PrepMinutes:  10,
				CookMinutes:  20,
				TotalMinutes: 30,
				Servings:     int(g.AdultEquivalent + 0.5),
				Ingredients:  []string{"ingredient a", "ingredient b"},
				Instructions: []string{"prep", "cook", "serve"},
				Tags:         []string{"mock"},
				DietaryInfo:  g.DietaryRestrictions,
				Difficulty:   "easy",
			})
		}
		out[g.GroupName] = recipes
	}
	return out, nil
}

func (m *mockMealGenerator) Close() error { return nil }
