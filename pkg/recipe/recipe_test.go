package recipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 200 g of A (100 kcal / 100 g) and 100 g of B (50 kcal / 100 g)
var ingredients = []Ingredient{
	{Name: "Ing A", Quantity: 200, BaseQuantity: 100, CaloriesPerUnit: 100, Protein: 10, Carbohydrate: 20, Lipid: 5},
	{Name: "Ing B", Quantity: 100, BaseQuantity: 100, CaloriesPerUnit: 50, Protein: 5, Carbohydrate: 10, Lipid: 2},
}

func TestCalculateTotals(t *testing.T) {
	totals := CalculateTotals(ingredients)

	assert.Equal(t, 250.0, totals.Calories)
	assert.Equal(t, 25.0, totals.Protein)
	assert.Equal(t, 50.0, totals.Carbohydrate)
	assert.Equal(t, 12.0, totals.Lipid)
	assert.Equal(t, 300.0, totals.Weight)
}

func TestCalculateTotalsDefaultsBaseQuantity(t *testing.T) {
	totals := CalculateTotals([]Ingredient{{Quantity: 50, CaloriesPerUnit: 200}})
	assert.Equal(t, 100.0, totals.Calories)
}

func TestNormalize(t *testing.T) {
	totals := CalculateTotals(ingredients)

	tests := []struct {
		name       string
		mode       Mode
		finalValue float64
		want       Nutrition
	}{
		{
			name:       "cooked weight reduction",
			mode:       ModeWeight,
			finalValue: 250,
			want:       Nutrition{Unit: "g", BaseQuantity: 100, CaloriesPerUnit: 100, Protein: 10, Carbohydrate: 20, Lipid: 4.8},
		},
		{
			name:       "raw weight",
			mode:       ModeWeight,
			finalValue: 300,
			want:       Nutrition{Unit: "g", BaseQuantity: 100, CaloriesPerUnit: 83.3, Protein: 8.3, Carbohydrate: 16.7, Lipid: 4},
		},
		{
			name:       "weight defaults to raw total",
			mode:       ModeWeight,
			finalValue: 0,
			want:       Nutrition{Unit: "g", BaseQuantity: 100, CaloriesPerUnit: 83.3, Protein: 8.3, Carbohydrate: 16.7, Lipid: 4},
		},
		{
			name:       "two portions",
			mode:       ModePortions,
			finalValue: 2,
			want:       Nutrition{Unit: "unid", BaseQuantity: 1, CaloriesPerUnit: 125, Protein: 12.5, Carbohydrate: 25, Lipid: 6},
		},
		{
			name:       "portions default to one",
			mode:       ModePortions,
			finalValue: 0,
			want:       Nutrition{Unit: "unid", BaseQuantity: 1, CaloriesPerUnit: 250, Protein: 25, Carbohydrate: 50, Lipid: 12},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(totals, tt.mode, tt.finalValue)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeZeroWeight(t *testing.T) {
	got, err := Normalize(Totals{}, ModeWeight, 0)
	require.NoError(t, err)
	assert.Equal(t, Nutrition{Unit: "g", BaseQuantity: 100}, got)
}

func TestNormalizeRejectsBadInput(t *testing.T) {
	_, err := Normalize(Totals{}, Mode("volume"), 1)
	assert.Error(t, err)

	_, err = Normalize(Totals{Calories: 10}, ModePortions, -2)
	assert.Error(t, err)
}
