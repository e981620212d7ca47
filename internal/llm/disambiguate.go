package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/larderhq/larder/pkg/larder/enrich"
	"github.com/larderhq/larder/pkg/larder/internalerr"
)

const disambiguateSystem = "You are a food catalog assistant. Given a food mention and candidate " +
	"nutrition database records, pick the best record and name the item. " +
	"Reply with ONLY a JSON object: {\"record_index\": int, \"canonical_name\": string, " +
	"\"aliases\": [string], \"category\": string, \"confidence\": float between 0 and 1}."

// selectionPayload is the loosely-typed wire form of a disambiguation
// answer. Confidence is a pointer so an absent field is distinguishable
// from zero and can fail closed.
type selectionPayload struct {
	RecordIndex   *int     `json:"record_index"`
	CanonicalName string   `json:"canonical_name"`
	Aliases       []string `json:"aliases"`
	Category      string   `json:"category"`
	Confidence    *float64 `json:"confidence"`
}

// Disambiguate implements enrich.Disambiguator. A response that does not
// parse into the expected schema is a resolver failure, never a partial
// success; a parseable response with missing or out-of-range confidence
// is returned with Confidence 0.
func (c *Client) Disambiguate(ctx context.Context, mentionContext string, records []enrich.Record) (enrich.Selection, error) {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Mention: %s\nCandidate records:\n", mentionContext)
	for i, r := range records {
		fmt.Fprintf(&prompt, "%d. %s (kcal=%.0f protein=%.1f carbs=%.1f fat=%.1f per 100g)\n",
			i, r.Description, r.Nutrition.Calories, r.Nutrition.Protein, r.Nutrition.Carbs, r.Nutrition.Fat)
	}

	text, err := c.Chat(ctx, disambiguateSystem, prompt.String(), 0)
	if err != nil {
		return enrich.Selection{}, err
	}

	raw := extractJSON(text)
	if raw == nil {
		return enrich.Selection{}, &internalerr.EnrichmentFailure{Reason: internalerr.ReasonLLMMalformed}
	}
	var payload selectionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return enrich.Selection{}, &internalerr.EnrichmentFailure{Reason: internalerr.ReasonLLMMalformed, Err: err}
	}
	if payload.RecordIndex == nil || payload.CanonicalName == "" {
		return enrich.Selection{}, &internalerr.EnrichmentFailure{Reason: internalerr.ReasonLLMMalformed}
	}

	sel := enrich.Selection{
		RecordIndex:   *payload.RecordIndex,
		CanonicalName: payload.CanonicalName,
		Aliases:       payload.Aliases,
		Category:      payload.Category,
	}
	if payload.Confidence != nil && *payload.Confidence > 0 && *payload.Confidence <= 1 {
		sel.Confidence = *payload.Confidence
	}
	return sel, nil
}
