// Package nutritiondb implements enrich.NutritionDB against a
// FoodData-Central-style search API.
package nutritiondb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/larderhq/larder/pkg/larder/enrich"
	"github.com/larderhq/larder/pkg/larder/store"
)

// Client queries the external nutrition database.
type Client struct {
	BaseURL  string
	APIKey   string
	PageSize int

	HTTPClient *http.Client
}

type searchResponse struct {
	Foods []struct {
		Description   string `json:"description"`
		FoodNutrients []struct {
			NutrientName string  `json:"nutrientName"`
			UnitName     string  `json:"unitName"`
			Value        float64 `json:"value"`
		} `json:"foodNutrients"`
	} `json:"foods"`
}

// Search returns candidate records for a food name, per 100 g.
func (c *Client) Search(ctx context.Context, query string) ([]enrich.Record, error) {
	if c.BaseURL == "" {
		return nil, fmt.Errorf("nutritiondb: base URL required")
	}
	pageSize := c.PageSize
	if pageSize <= 0 {
		pageSize = 3
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("pageSize", fmt.Sprint(pageSize))
	if c.APIKey != "" {
		params.Set("api_key", c.APIKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimRight(c.BaseURL, "/")+"/foods/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("nutritiondb: http %d", resp.StatusCode)
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	records := make([]enrich.Record, 0, len(payload.Foods))
	for _, f := range payload.Foods {
		rec := enrich.Record{Description: f.Description}
		for _, n := range f.FoodNutrients {
			assignNutrient(&rec.Nutrition, n.NutrientName, n.UnitName, n.Value)
		}
		records = append(records, rec)
	}
	return records, nil
}

// assignNutrient maps one loosely-named nutrient row onto the typed record.
func assignNutrient(n *store.Nutrition, name, unit string, value float64) {
	switch strings.ToLower(name) {
	case "energy":
		if strings.EqualFold(unit, "kcal") {
			n.Calories = value
		}
	case "protein":
		n.Protein = value
	case "carbohydrate, by difference", "carbohydrates":
		n.Carbs = value
	case "total lipid (fat)", "fat":
		n.Fat = value
	case "fiber, total dietary", "fiber":
		n.Fiber = value
	case "sugars, total including nlea", "sugars":
		n.Sugar = value
	case "sodium, na", "sodium":
		// Reported in mg; keep mg per 100 g.
		n.Sodium = value
	}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 15 * time.Second}
}
