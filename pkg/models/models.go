package models

import "time"

// Impact is an environmental credit estimate in kilograms.
type Impact struct {
	CO2Saved     float64 `json:"co2_saved"`
	WasteReduced float64 `json:"waste_reduced"`
}

// Add returns the componentwise sum of two impacts.
func (i Impact) Add(o Impact) Impact {
	return Impact{
		CO2Saved:     i.CO2Saved + o.CO2Saved,
		WasteReduced: i.WasteReduced + o.WasteReduced,
	}
}

// IsZero reports whether no credit has been recorded.
func (i Impact) IsZero() bool {
	return i.CO2Saved == 0 && i.WasteReduced == 0
}

// User is a swap participant. Ledger and rating fields are aggregates
// maintained by the swap engine and the review service respectively.
type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	CO2Saved       float64   `json:"co2_saved"`
	WasteReduced   float64   `json:"waste_reduced"`
	SwapsCompleted int       `json:"swaps_completed"`
	RatingAverage  float64   `json:"rating_average"`
	RatingCount    int       `json:"rating_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Ledger returns the user's accumulated impact credit.
func (u *User) Ledger() Impact {
	return Impact{CO2Saved: u.CO2Saved, WasteReduced: u.WasteReduced}
}
