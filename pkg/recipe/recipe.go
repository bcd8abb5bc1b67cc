// Package recipe computes the nutrition of a recipe from its ingredients.
package recipe

import (
	"fmt"
	"math"
)

// DefaultBaseQuantity is the reference amount of food composition tables (100 g)
const DefaultBaseQuantity = 100

// Mode selects how a recipe's totals are normalized
type Mode string

const (
	ModeWeight   Mode = "weight"   // per 100 g of the finished recipe
	ModePortions Mode = "portions" // per portion
)

// Valid reports whether the mode is known
func (m Mode) Valid() bool {
	return m == ModeWeight || m == ModePortions
}

// Ingredient is a food used in a recipe, with nutrients given per BaseQuantity
type Ingredient struct {
	Name            string  `json:"name,omitempty"`
	Quantity        float64 `json:"quantity"`
	BaseQuantity    float64 `json:"base_quantity,omitempty"`
	CaloriesPerUnit float64 `json:"calories_per_unit"`
	Protein         float64 `json:"protein,omitempty"`
	Carbohydrate    float64 `json:"carbohydrate,omitempty"`
	Lipid           float64 `json:"lipid,omitempty"`
}

// Totals is the raw nutrition of all ingredients combined
type Totals struct {
	Calories     float64 `json:"total_calories"`
	Protein      float64 `json:"total_protein"`
	Carbohydrate float64 `json:"total_carbohydrate"`
	Lipid        float64 `json:"total_lipid"`
	Weight       float64 `json:"total_weight"`
}

// Nutrition is the recipe expressed as a food entry
type Nutrition struct {
	Unit            string  `json:"unit"`
	BaseQuantity    float64 `json:"base_quantity"`
	CaloriesPerUnit float64 `json:"calories_per_unit"`
	Protein         float64 `json:"protein"`
	Carbohydrate    float64 `json:"carbohydrate"`
	Lipid           float64 `json:"lipid"`
}

// CalculateTotals sums the ingredients. A missing base quantity means 100.
func CalculateTotals(ingredients []Ingredient) Totals {
	var t Totals
	for _, ing := range ingredients {
		base := ing.BaseQuantity
		if base == 0 {
			base = DefaultBaseQuantity
		}
		ratio := ing.Quantity / base

		t.Calories += ing.CaloriesPerUnit * ratio
		t.Protein += ing.Protein * ratio
		t.Carbohydrate += ing.Carbohydrate * ratio
		t.Lipid += ing.Lipid * ratio
		t.Weight += ing.Quantity
	}
	return t
}

// Normalize converts totals into per-100g (weight mode) or per-portion values.
// finalValue is the cooked weight in grams or the number of portions; zero falls
// back to the raw weight or to a single portion.
func Normalize(t Totals, mode Mode, finalValue float64) (Nutrition, error) {
	switch mode {
	case ModeWeight:
		weight := finalValue
		if weight == 0 {
			weight = t.Weight
		}
		n := Nutrition{Unit: "g", BaseQuantity: DefaultBaseQuantity}
		if weight <= 0 {
			return n, nil
		}
		return scale(n, t, DefaultBaseQuantity/weight), nil

	case ModePortions:
		portions := finalValue
		if portions == 0 {
			portions = 1
		}
		if portions < 0 {
			return Nutrition{}, fmt.Errorf("portions must be positive, got %v", portions)
		}
		return scale(Nutrition{Unit: "unid", BaseQuantity: 1}, t, 1/portions), nil

	default:
		return Nutrition{}, fmt.Errorf("unknown calculation mode: %q", mode)
	}
}

func scale(n Nutrition, t Totals, ratio float64) Nutrition {
	n.CaloriesPerUnit = round1(t.Calories * ratio)
	n.Protein = round1(t.Protein * ratio)
	n.Carbohydrate = round1(t.Carbohydrate * ratio)
	n.Lipid = round1(t.Lipid * ratio)
	return n
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
