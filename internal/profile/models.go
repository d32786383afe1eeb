package profile

import "time"

type ExperienceLevel string

const (
	ExperienceBeginner     ExperienceLevel = "beginner"
	ExperienceIntermediate ExperienceLevel = "intermediate"
	ExperienceAdvanced     ExperienceLevel = "advanced"
	ExperienceExpert       ExperienceLevel = "expert"
)

func (l ExperienceLevel) Valid() bool {
	switch l {
	case ExperienceBeginner, ExperienceIntermediate, ExperienceAdvanced, ExperienceExpert:
		return true
	}
	return false
}

// Profile shares its id with the auth identity it was created alongside.
type Profile struct {
	ID                    string          `json:"id"`
	Email                 string          `json:"email"`
	FullName              string          `json:"full_name"`
	Phone                 string          `json:"phone"`
	ExperienceLevel       ExperienceLevel `json:"experience_level"`
	DietaryRequirements   string          `json:"dietary_requirements"`
	EmergencyContactName  string          `json:"emergency_contact_name"`
	EmergencyContactPhone string          `json:"emergency_contact_phone"`
	TravelNotes           string          `json:"travel_notes"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

type ProfilePatch struct {
	FullName              *string          `json:"full_name"`
	Phone                 *string          `json:"phone"`
	ExperienceLevel       *ExperienceLevel `json:"experience_level"`
	DietaryRequirements   *string          `json:"dietary_requirements"`
	EmergencyContactName  *string          `json:"emergency_contact_name"`
	EmergencyContactPhone *string          `json:"emergency_contact_phone"`
	TravelNotes           *string          `json:"travel_notes"`
}
