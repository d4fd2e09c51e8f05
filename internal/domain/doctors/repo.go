package doctors

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the doctors storage contract. Search understands the keys
// "specialization" (substring match) and "q" (name or specialization).
type Repository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error)
	GetByLicense(ctx context.Context, license string) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Doctor, int, error)
}
