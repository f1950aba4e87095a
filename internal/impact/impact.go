// Package impact estimates the environmental credit earned by reusing an
// item instead of discarding it.
package impact

import (
	"errors"
	"fmt"
	"math"

	"github.com/jredh-dev/greenswap/pkg/models"
)

var (
	ErrInvalidCategory  = errors.New("invalid category")
	ErrInvalidCondition = errors.New("invalid condition")
)

// wasteRatio is the fixed share of CO2 credit reported as waste reduced.
const wasteRatio = 0.2

// baseFactors are kg CO2-equivalent saved by reusing a new item.
var baseFactors = map[models.Category]float64{
	models.CategoryClothing:    10,
	models.CategoryElectronics: 50,
	models.CategoryFurniture:   100,
	models.CategoryBooks:       5,
	models.CategoryToys:        8,
	models.CategorySports:      15,
	models.CategoryKitchen:     20,
	models.CategoryGarden:      25,
	models.CategoryAutomotive:  200,
	models.CategoryOther:       10,
}

var conditionMultipliers = map[models.ItemCondition]float64{
	models.ConditionNew:     1.0,
	models.ConditionLikeNew: 0.9,
	models.ConditionGood:    0.7,
	models.ConditionFair:    0.5,
	models.ConditionPoor:    0.3,
}

// ValidCategory reports whether c is in the closed category set.
func ValidCategory(c models.Category) bool {
	_, ok := baseFactors[c]
	return ok
}

// ValidCondition reports whether c is in the closed condition set.
func ValidCondition(c models.ItemCondition) bool {
	_, ok := conditionMultipliers[c]
	return ok
}

// CreditFor returns the credit for one item of the given category and
// condition. Values are rounded to two decimals.
func CreditFor(category models.Category, condition models.ItemCondition) (models.Impact, error) {
	base, ok := baseFactors[category]
	if !ok {
		return models.Impact{}, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	mult, ok := conditionMultipliers[condition]
	if !ok {
		return models.Impact{}, fmt.Errorf("%w: %q", ErrInvalidCondition, condition)
	}

	co2 := round2(base * mult)
	return models.Impact{
		CO2Saved:     co2,
		WasteReduced: round2(co2 * wasteRatio),
	}, nil
}

// SwapCredit returns the combined credit of both items in a swap.
func SwapCredit(a, b *models.Item) (models.Impact, error) {
	ia, err := CreditFor(a.Category, a.Condition)
	if err != nil {
		return models.Impact{}, fmt.Errorf("item %s: %w", a.ID, err)
	}
	ib, err := CreditFor(b.Category, b.Condition)
	if err != nil {
		return models.Impact{}, fmt.Errorf("item %s: %w", b.ID, err)
	}
	return ia.Add(ib), nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
