package fixture

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

//go:embed data/foods.json
var foodsJSON []byte

// Food is an entry of the composition table, nutrients per BaseQuantity
type Food struct {
	ID              int     `json:"id"`
	Name            string  `json:"name"`
	Unit            string  `json:"unit"`
	BaseQuantity    float64 `json:"base_quantity"`
	CaloriesPerUnit float64 `json:"calories_per_unit"`
	Protein         float64 `json:"protein"`
	Carbohydrate    float64 `json:"carbohydrate"`
	Lipid           float64 `json:"lipid"`

	folded string
}

func loadFoods() ([]Food, error) {
	var foods []Food
	if err := json.Unmarshal(foodsJSON, &foods); err != nil {
		return nil, fmt.Errorf("failed to load food table: %w", err)
	}
	for i := range foods {
		foods[i].folded = fold(foods[i].Name)
	}
	return foods, nil
}

// fold lowercases s and strips diacritics so "acucar" matches "Açúcar"
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// Search returns up to limit foods whose name contains every word of query,
// ignoring case and accents. Names starting with the first word come first.
func (a *App) Search(query string, limit int) []Food {
	terms := strings.Fields(fold(query))
	results := make([]Food, 0)
	if len(terms) == 0 {
		return results
	}

	for _, f := range a.foods {
		if containsAll(f.folded, terms) {
			results = append(results, f)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		pi := strings.HasPrefix(results[i].folded, terms[0])
		pj := strings.HasPrefix(results[j].folded, terms[0])
		return pi && !pj
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

func containsAll(s string, terms []string) bool {
	for _, t := range terms {
		if !strings.Contains(s, t) {
			return false
		}
	}
	return true
}
