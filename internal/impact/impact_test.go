package impact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jredh-dev/greenswap/pkg/models"
)

func TestCreditFor(t *testing.T) {
	tests := []struct {
		category  models.Category
		condition models.ItemCondition
		wantCO2   float64
		wantWaste float64
	}{
		{models.CategoryElectronics, models.ConditionNew, 50, 10},
		{models.CategoryBooks, models.ConditionGood, 3.5, 0.7},
		{models.CategoryFurniture, models.ConditionLikeNew, 90, 18},
		{models.CategoryAutomotive, models.ConditionPoor, 60, 12},
		{models.CategoryClothing, models.ConditionFair, 5, 1},
		{models.CategoryToys, models.ConditionGood, 5.6, 1.12},
		{models.CategoryOther, models.ConditionNew, 10, 2},
	}

	for _, tt := range tests {
		t.Run(string(tt.category)+"/"+string(tt.condition), func(t *testing.T) {
			got, err := CreditFor(tt.category, tt.condition)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantCO2, got.CO2Saved, 1e-9)
			assert.InDelta(t, tt.wantWaste, got.WasteReduced, 1e-9)
		})
	}
}

func TestCreditFor_Deterministic(t *testing.T) {
	first, err := CreditFor(models.CategoryKitchen, models.ConditionLikeNew)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		got, err := CreditFor(models.CategoryKitchen, models.ConditionLikeNew)
		require.NoError(t, err)
		assert.Equal(t, first, got)
	}
}

func TestCreditFor_InvalidInput(t *testing.T) {
	_, err := CreditFor("spaceships", models.ConditionNew)
	assert.ErrorIs(t, err, ErrInvalidCategory)

	_, err = CreditFor(models.CategoryBooks, "mint")
	assert.ErrorIs(t, err, ErrInvalidCondition)

	_, err = CreditFor("", "")
	assert.ErrorIs(t, err, ErrInvalidCategory)
}

func TestSwapCredit(t *testing.T) {
	a := &models.Item{ID: "a", Category: models.CategoryElectronics, Condition: models.ConditionNew}
	b := &models.Item{ID: "b", Category: models.CategoryBooks, Condition: models.ConditionGood}

	got, err := SwapCredit(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 53.5, got.CO2Saved, 1e-9)
	assert.InDelta(t, 10.7, got.WasteReduced, 1e-9)

	bad := &models.Item{ID: "bad", Category: "nope", Condition: models.ConditionNew}
	_, err = SwapCredit(a, bad)
	assert.ErrorIs(t, err, ErrInvalidCategory)
}

func TestValidators(t *testing.T) {
	assert.True(t, ValidCategory(models.CategoryGarden))
	assert.False(t, ValidCategory("Garden"))
	assert.True(t, ValidCondition(models.ConditionLikeNew))
	assert.False(t, ValidCondition("like_new"))
}
