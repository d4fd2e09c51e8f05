package patients

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patients table. FirstName, LastName and Email are
// joined in from the linked user account on every read.
type Patient struct {
	ID                   uuid.UUID `db:"id" json:"id"`
	UserID               uuid.UUID `db:"user_id" json:"user_id"`
	MedicalRecordNumber  string    `db:"medical_record_number" json:"medical_record_number"`
	Address              *string   `db:"address" json:"address,omitempty"`
	EmergencyContactName *string   `db:"emergency_contact_name" json:"emergency_contact_name,omitempty"`
	EmergencyContact     *string   `db:"emergency_contact" json:"emergency_contact,omitempty"`
	BloodType            *string   `db:"blood_type" json:"blood_type,omitempty"`
	Allergies            *string   `db:"allergies" json:"allergies,omitempty"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`

	FirstName string `db:"-" json:"first_name"`
	LastName  string `db:"-" json:"last_name"`
	Email     string `db:"-" json:"email"`
}

// FullName returns the patient's display name.
func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

// CreateInput is the payload for creating a patient profile.
type CreateInput struct {
	UserID               uuid.UUID `json:"user_id"`
	MedicalRecordNumber  string    `json:"medical_record_number"`
	Address              *string   `json:"address,omitempty"`
	EmergencyContactName *string   `json:"emergency_contact_name,omitempty"`
	EmergencyContact     *string   `json:"emergency_contact,omitempty"`
	BloodType            *string   `json:"blood_type,omitempty"`
	Allergies            *string   `json:"allergies,omitempty"`
}

// UpdateInput carries the updatable profile fields. Absent fields keep their
// stored value; user_id and medical_record_number are immutable.
type UpdateInput struct {
	Address              *string `json:"address"`
	EmergencyContactName *string `json:"emergency_contact_name"`
	EmergencyContact     *string `json:"emergency_contact"`
	BloodType            *string `json:"blood_type"`
	Allergies            *string `json:"allergies"`
}
