package appointments

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Appointment statuses. Membership is validated on update; transitions are
// deliberately unconstrained so admins can correct mistakes after the fact
// (e.g. NO_SHOW back to COMPLETED).
const (
	StatusScheduled  = "SCHEDULED"
	StatusConfirmed  = "CONFIRMED"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusCancelled  = "CANCELLED"
	StatusNoShow     = "NO_SHOW"
)

var validAppointmentStatuses = map[string]bool{
	StatusScheduled:  true,
	StatusConfirmed:  true,
	StatusInProgress: true,
	StatusCompleted:  true,
	StatusCancelled:  true,
	StatusNoShow:     true,
}

// activeStatus reports whether an appointment in this status holds its slot.
func activeStatus(s string) bool {
	return s == StatusScheduled || s == StatusConfirmed
}

// Appointment maps to the appointments table. PatientName and DoctorName are
// joined in from the linked user accounts on every read.
type Appointment struct {
	ID              uuid.UUID `db:"id" json:"id"`
	PatientID       uuid.UUID `db:"patient_id" json:"patient_id"`
	DoctorID        uuid.UUID `db:"doctor_id" json:"doctor_id"`
	AppointmentDate time.Time `db:"appointment_date" json:"appointment_date"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	Status          string    `db:"status" json:"status"`
	ReasonForVisit  *string   `db:"reason_for_visit" json:"reason_for_visit,omitempty"`
	Notes           *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`

	PatientName string `db:"-" json:"patient_name"`
	DoctorName  string `db:"-" json:"doctor_name"`
}

// IsUpcomingAt reports whether the appointment is in the future and still
// holds its slot at the given instant.
func (a *Appointment) IsUpcomingAt(now time.Time) bool {
	return a.AppointmentDate.After(now) && activeStatus(a.Status)
}

// IsPastAt reports whether the appointment is behind the given instant,
// regardless of status.
func (a *Appointment) IsPastAt(now time.Time) bool {
	return a.AppointmentDate.Before(now)
}

// MarshalJSON augments the row with the computed is_upcoming / is_past flags.
func (a *Appointment) MarshalJSON() ([]byte, error) {
	type Alias Appointment
	now := time.Now()
	return json.Marshal(&struct {
		*Alias
		IsUpcoming bool `json:"is_upcoming"`
		IsPast     bool `json:"is_past"`
	}{
		Alias:      (*Alias)(a),
		IsUpcoming: a.IsUpcomingAt(now),
		IsPast:     a.IsPastAt(now),
	})
}

// CreateInput is the payload for booking an appointment. Status is not
// accepted; new bookings always start SCHEDULED.
type CreateInput struct {
	PatientID       uuid.UUID  `json:"patient_id"`
	DoctorID        uuid.UUID  `json:"doctor_id"`
	AppointmentDate *time.Time `json:"appointment_date"`
	DurationMinutes int        `json:"duration_minutes"`
	ReasonForVisit  *string    `json:"reason_for_visit,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
}

// UpdateInput carries the updatable fields. Absent fields keep their stored
// value; patient_id and doctor_id are immutable. Which of these a caller may
// actually write is decided per role, and out-of-scope fields are dropped
// without error.
type UpdateInput struct {
	AppointmentDate *time.Time `json:"appointment_date"`
	DurationMinutes *int       `json:"duration_minutes"`
	Status          *string    `json:"status"`
	ReasonForVisit  *string    `json:"reason_for_visit"`
	Notes           *string    `json:"notes"`
}
