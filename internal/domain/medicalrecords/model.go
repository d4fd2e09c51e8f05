package medicalrecords

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MedicalRecord maps to the medical_records table. VitalSigns is free-form
// JSONB (blood pressure, temperature, and whatever else the visit captured).
// PatientName and DoctorName are joined in from the linked user accounts.
type MedicalRecord struct {
	ID                    uuid.UUID              `db:"id" json:"id"`
	PatientID             uuid.UUID              `db:"patient_id" json:"patient_id"`
	DoctorID              uuid.UUID              `db:"doctor_id" json:"doctor_id"`
	VisitDate             time.Time              `db:"visit_date" json:"visit_date"`
	Diagnosis             string                 `db:"diagnosis" json:"diagnosis"`
	TreatmentNotes        string                 `db:"treatment_notes" json:"treatment_notes"`
	Symptoms              *string                `db:"symptoms" json:"symptoms,omitempty"`
	VitalSigns            map[string]interface{} `db:"vital_signs" json:"vital_signs,omitempty"`
	MedicationsPrescribed *string                `db:"medications_prescribed" json:"medications_prescribed,omitempty"`
	FollowUpRequired      bool                   `db:"follow_up_required" json:"follow_up_required"`
	FollowUpDate          *time.Time             `db:"follow_up_date" json:"follow_up_date,omitempty"`
	LabResults            *string                `db:"lab_results" json:"lab_results,omitempty"`
	ImagingResults        *string                `db:"imaging_results" json:"imaging_results,omitempty"`
	CreatedAt             time.Time              `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time              `db:"updated_at" json:"updated_at"`

	PatientName string `db:"-" json:"patient_name"`
	DoctorName  string `db:"-" json:"doctor_name"`
}

// IsRecentAt reports whether the visit happened within the 30 days before the
// given instant. A visit exactly 30 days old is no longer recent.
func (m *MedicalRecord) IsRecentAt(now time.Time) bool {
	return m.VisitDate.After(now.AddDate(0, 0, -30))
}

// MarshalJSON augments the row with the computed is_recent flag.
func (m *MedicalRecord) MarshalJSON() ([]byte, error) {
	type Alias MedicalRecord
	return json.Marshal(&struct {
		*Alias
		IsRecent bool `json:"is_recent"`
	}{
		Alias:    (*Alias)(m),
		IsRecent: m.IsRecentAt(time.Now()),
	})
}

// CreateInput is the payload for filing a medical record.
type CreateInput struct {
	PatientID             uuid.UUID              `json:"patient_id"`
	DoctorID              uuid.UUID              `json:"doctor_id"`
	VisitDate             *time.Time             `json:"visit_date"`
	Diagnosis             string                 `json:"diagnosis"`
	TreatmentNotes        string                 `json:"treatment_notes"`
	Symptoms              *string                `json:"symptoms,omitempty"`
	VitalSigns            map[string]interface{} `json:"vital_signs,omitempty"`
	MedicationsPrescribed *string                `json:"medications_prescribed,omitempty"`
	FollowUpRequired      bool                   `json:"follow_up_required"`
	FollowUpDate          *time.Time             `json:"follow_up_date,omitempty"`
	LabResults            *string                `json:"lab_results,omitempty"`
	ImagingResults        *string                `json:"imaging_results,omitempty"`
}

// UpdateInput carries the updatable fields. Absent fields keep their stored
// value. The record's parties and visit_date are fixed at creation; there is
// no slot for them here.
type UpdateInput struct {
	Diagnosis             *string                `json:"diagnosis"`
	TreatmentNotes        *string                `json:"treatment_notes"`
	Symptoms              *string                `json:"symptoms"`
	VitalSigns            map[string]interface{} `json:"vital_signs"`
	MedicationsPrescribed *string                `json:"medications_prescribed"`
	FollowUpRequired      *bool                  `json:"follow_up_required"`
	FollowUpDate          *time.Time             `json:"follow_up_date"`
	LabResults            *string                `json:"lab_results"`
	ImagingResults        *string                `json:"imaging_results"`
}
