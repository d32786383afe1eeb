package trip

import "time"

type Difficulty string

const (
	DifficultyEasy        Difficulty = "easy"
	DifficultyModerate    Difficulty = "moderate"
	DifficultyChallenging Difficulty = "challenging"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyModerate, DifficultyChallenging:
		return true
	}
	return false
}

// Trip is a sellable tour product. Customers only ever see active trips.
type Trip struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Slug         string     `json:"slug"`
	Description  string     `json:"description"`
	DurationDays int        `json:"duration_days"`
	Difficulty   Difficulty `json:"difficulty"`
	Price        float64    `json:"price"`
	Region       string     `json:"region"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TripPatch carries operator edits; nil fields are left unchanged.
type TripPatch struct {
	Title        *string     `json:"title"`
	Slug         *string     `json:"slug"`
	Description  *string     `json:"description"`
	DurationDays *int        `json:"duration_days"`
	Difficulty   *Difficulty `json:"difficulty"`
	Price        *float64    `json:"price"`
	Region       *string     `json:"region"`
	IsActive     *bool       `json:"is_active"`
}
