package patients

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the patients storage contract. Search understands the scope
// keys "user_id" and "linked_doctor_id" plus the filters "blood_type" and
// "q" (name or medical record number).
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error)
	GetByMRN(ctx context.Context, mrn string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error)
	// ExistsLinkedDoctor reports whether the patient shares at least one
	// appointment with the doctor.
	ExistsLinkedDoctor(ctx context.Context, patientID, doctorID uuid.UUID) (bool, error)
}
