package appointments

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the appointments storage contract. Search understands the
// scope keys "doctor_id" and "patient_id" plus the filters "status", "date"
// (calendar day), "date_from", "date_to" and "q" (patient/doctor name,
// reason, notes). Results are ordered by appointment_date ascending.
type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Appointment, int, error)
	// ExistsActiveAt reports whether the doctor already has a SCHEDULED or
	// CONFIRMED appointment at exactly the given instant.
	ExistsActiveAt(ctx context.Context, doctorID uuid.UUID, at time.Time) (bool, error)
}
