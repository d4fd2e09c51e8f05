package medicalrecords

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the storage contract for medical records.
//
// Search understands scope keys doctor_id and patient_id plus the filters
// follow_up_required, date_from, date_to, and q (case-insensitive across
// diagnosis, symptoms, treatment notes, prescribed medications, and the
// patient's name). Results are ordered by visit_date descending.
type Repository interface {
	Create(ctx context.Context, m *MedicalRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*MedicalRecord, error)
	Update(ctx context.Context, m *MedicalRecord) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*MedicalRecord, int, error)
}
