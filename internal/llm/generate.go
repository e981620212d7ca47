package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/larderhq/larder/pkg/larder/recipes"
)

const generateSystem = "You are a recipe generator for a meal-planning app. Reply with ONLY a JSON " +
	"object: {\"name\": string, \"cuisine\": string, \"instructions\": [string], " +
	"\"ingredients\": [{\"name\": string, \"quantity_grams\": float}]}."

type recipePayload struct {
	Name         string   `json:"name"`
	Cuisine      string   `json:"cuisine"`
	Instructions []string `json:"instructions"`
	Ingredients  []struct {
		Name          string  `json:"name"`
		QuantityGrams float64 `json:"quantity_grams"`
	} `json:"ingredients"`
}

// Generate implements recipes.Generator. variance maps onto sampling
// temperature so duplicate-driven retries explore further from the
// previous answer.
func (c *Client) Generate(ctx context.Context, req recipes.Request, variance float64) (recipes.GeneratedRecipe, error) {
	var prompt strings.Builder
	prompt.WriteString("Generate one recipe.")
	if req.Cuisine != "" {
		fmt.Fprintf(&prompt, " Cuisine: %s.", req.Cuisine)
	}
	if len(req.Constraints) > 0 {
		fmt.Fprintf(&prompt, " Constraints: %s.", strings.Join(req.Constraints, "; "))
	}

	temperature := 0.7 + 0.5*variance
	text, err := c.Chat(ctx, generateSystem, prompt.String(), temperature)
	if err != nil {
		return recipes.GeneratedRecipe{}, err
	}

	raw := extractJSON(text)
	if raw == nil {
		return recipes.GeneratedRecipe{}, fmt.Errorf("llm: no JSON in recipe response")
	}
	var payload recipePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return recipes.GeneratedRecipe{}, fmt.Errorf("llm: recipe response: %w", err)
	}
	if payload.Name == "" || len(payload.Ingredients) == 0 {
		return recipes.GeneratedRecipe{}, fmt.Errorf("llm: recipe response missing name or ingredients")
	}

	out := recipes.GeneratedRecipe{
		Name:         payload.Name,
		Cuisine:      payload.Cuisine,
		Instructions: payload.Instructions,
	}
	for _, ing := range payload.Ingredients {
		out.Ingredients = append(out.Ingredients, recipes.GeneratedIngredient{
			Name:          ing.Name,
			QuantityGrams: ing.QuantityGrams,
		})
	}
	return out, nil
}
