package models

import "time"

// Category is the closed set of item categories.
type Category string

const (
	CategoryClothing    Category = "clothing"
	CategoryElectronics Category = "electronics"
	CategoryFurniture   Category = "furniture"
	CategoryBooks       Category = "books"
	CategoryToys        Category = "toys"
	CategorySports      Category = "sports"
	CategoryKitchen     Category = "kitchen"
	CategoryGarden      Category = "garden"
	CategoryAutomotive  Category = "automotive"
	CategoryOther       Category = "other"
)

// ItemCondition describes the physical state of the item.
type ItemCondition string

const (
	ConditionNew     ItemCondition = "new"
	ConditionLikeNew ItemCondition = "like-new"
	ConditionGood    ItemCondition = "good"
	ConditionFair    ItemCondition = "fair"
	ConditionPoor    ItemCondition = "poor"
)

// Item is a listing that can be offered in swaps.
type Item struct {
	ID          string        `json:"id"`
	OwnerID     string        `json:"owner_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Category    Category      `json:"category"`
	Condition   ItemCondition `json:"condition"`
	Available   bool          `json:"is_available"`
	Impact      Impact        `json:"environmental_impact"`
	// PendingSwapIDs is populated from the offer table on reads.
	PendingSwapIDs []string  `json:"pending_swaps"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
