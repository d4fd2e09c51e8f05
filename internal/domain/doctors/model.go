package doctors

import (
	"time"

	"github.com/google/uuid"
)

// Doctor maps to the doctors table. FirstName, LastName and Email are joined
// in from the linked user account on every read; they are never written
// through this package.
type Doctor struct {
	ID                uuid.UUID `db:"id" json:"id"`
	UserID            uuid.UUID `db:"user_id" json:"user_id"`
	LicenseNumber     string    `db:"license_number" json:"license_number"`
	Specialization    string    `db:"specialization" json:"specialization"`
	YearsOfExperience int       `db:"years_of_experience" json:"years_of_experience"`
	Education         *string   `db:"education" json:"education,omitempty"`
	Certifications    *string   `db:"certifications" json:"certifications,omitempty"`
	OfficeLocation    *string   `db:"office_location" json:"office_location,omitempty"`
	OfficeHours       *string   `db:"office_hours" json:"office_hours,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`

	FirstName string `db:"-" json:"first_name"`
	LastName  string `db:"-" json:"last_name"`
	Email     string `db:"-" json:"email"`
}

// FullName returns the doctor's display name.
func (d *Doctor) FullName() string {
	return d.FirstName + " " + d.LastName
}

// CreateInput is the payload for creating a doctor profile.
type CreateInput struct {
	UserID            uuid.UUID `json:"user_id"`
	LicenseNumber     string    `json:"license_number"`
	Specialization    string    `json:"specialization"`
	YearsOfExperience int       `json:"years_of_experience"`
	Education         *string   `json:"education,omitempty"`
	Certifications    *string   `json:"certifications,omitempty"`
	OfficeLocation    *string   `json:"office_location,omitempty"`
	OfficeHours       *string   `json:"office_hours,omitempty"`
}

// UpdateInput carries the updatable profile fields. Absent fields keep their
// stored value; user_id and license_number are immutable and have no slot
// here, so sending them is a no-op.
type UpdateInput struct {
	Specialization    *string `json:"specialization"`
	YearsOfExperience *int    `json:"years_of_experience"`
	Education         *string `json:"education"`
	Certifications    *string `json:"certifications"`
	OfficeLocation    *string `json:"office_location"`
	OfficeHours       *string `json:"office_hours"`
}
