package contact

import "time"

// Inquiry is the contact form payload as the site posts it.
type Inquiry struct {
	FirstName       string   `json:"firstName"`
	LastName        string   `json:"lastName"`
	Email           string   `json:"email"`
	Phone           string   `json:"phone"`
	TravelDates     string   `json:"travelDates"`
	GroupSize       string   `json:"groupSize"`
	ExperienceLevel string   `json:"experienceLevel"`
	TourTypes       []string `json:"tourTypes"`
	Regions         []string `json:"regions"`
	Message         string   `json:"message"`
}

type Stored struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}
