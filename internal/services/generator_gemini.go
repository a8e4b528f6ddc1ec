package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/mealforge/mealforge-backend/internal/platform/envutil"
	"github.com/mealforge/mealforge-backend/internal/platform/logger"
)

// geminiMealGenerator talks to the Google Gemini API. One GenerateContent
// call per job; the prompt batches every group and asks for strict JSON.
type geminiMealGenerator struct {
	client *genai.Client
	model  *genai.GenerativeModel
	log    *logger.Logger
}

func NewGeminiMealGenerator(ctx context.Context, baseLog *logger.Logger, apiKey string) (MealGenerator, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("missing Gemini API key")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	model := client.GenerativeModel(envutil.Str("GEMINI_MODEL", "gemini-1.5-flash"))
	return &geminiMealGenerator{
		client: client,
		model:  model,
		log:    baseLog.With("service", "GeminiMealGenerator"),
	}, nil
}

func (g *geminiMealGenerator) GenerateMeals(ctx context.Context, req GenerationRequest) (map[string][]GeneratedRecipe, error) {
	prompt, err := buildGenerationPrompt(req)
	if err != nil {
		return nil, err
	}

	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no content generated")
	}
	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return nil, fmt.Errorf("generated content is not text")
	}

	out, err := parseGeneratedMeals(string(text))
	if err != nil {
		return nil, fmt.Errorf("failed to parse generated meals: %w", err)
	}
	return out, nil
}

func (g *geminiMealGenerator) Close() error {
	return g.client.Close()
}

func buildGenerationPrompt(req GenerationRequest) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("You are a meal planning assistant for a household.\n")
	b.WriteString("Generate meal suggestions for the week described by this request:\n\n")
	b.Write(payload)
	b.WriteString("\n\nFor EACH group, produce exactly the requested meal_count recipes, ")
	b.WriteString("scaled by the group's adult_equivalent factor and honoring its dietary_restrictions.\n")
	b.WriteString("Respond with ONLY a JSON object mapping each group_name to an array of recipes. ")
	b.WriteString("Each recipe must have the fields: title, description, prep_minutes, cook_minutes, ")
	b.WriteString("total_minutes, servings, ingredients (array of strings), instructions (ordered array ")
	b.WriteString("of strings), tags, dietary_info, difficulty (easy|medium|hard).\n")
	b.WriteString("No markdown, no commentary, JSON only.")
	return b.String(), nil
}

func parseGeneratedMeals(raw string) (map[string][]GeneratedRecipe, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var out map[string][]GeneratedRecipe
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return nil, err
	}
	return out, nil
}
