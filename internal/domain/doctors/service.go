package doctors

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/domain/users"
	"github.com/clinicore/clinicore/internal/platform/auth"
	"github.com/clinicore/clinicore/internal/platform/db"
	"github.com/clinicore/clinicore/internal/platform/mutation"
)

// UserDirectory is the slice of the users store this service needs.
type UserDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*users.User, error)
}

type Service struct {
	repo   Repository
	users  UserDirectory
	policy *auth.Engine
}

func NewService(repo Repository, users UserDirectory, policy *auth.Engine) *Service {
	return &Service{repo: repo, users: users, policy: policy}
}

// Get loads a doctor by id. The directory is public, so every caller sees
// every profile.
func (s *Service) Get(ctx context.Context, p auth.Principal, id uuid.UUID) (*Doctor, error) {
	dec := s.policy.Evaluate(p, auth.EntityDoctor, auth.OpGet)
	if !dec.Allowed || dec.Scope == auth.ScopeNone {
		return nil, mutation.NotFound("Doctor not found")
	}
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mutation.NotFound("Doctor not found")
	}
	return d, nil
}

// GetByLicense loads a doctor by license number.
func (s *Service) GetByLicense(ctx context.Context, p auth.Principal, license string) (*Doctor, error) {
	dec := s.policy.Evaluate(p, auth.EntityDoctor, auth.OpGet)
	if !dec.Allowed || dec.Scope == auth.ScopeNone {
		return nil, mutation.NotFound("Doctor not found")
	}
	d, err := s.repo.GetByLicense(ctx, license)
	if err != nil {
		return nil, mutation.NotFound("Doctor not found")
	}
	return d, nil
}

// List returns the directory, optionally filtered by specialization.
func (s *Service) List(ctx context.Context, p auth.Principal, specialization string, limit, offset int) ([]*Doctor, int, error) {
	dec := s.policy.Evaluate(p, auth.EntityDoctor, auth.OpList)
	if !dec.Allowed || dec.Scope == auth.ScopeNone {
		return []*Doctor{}, 0, nil
	}
	params := map[string]string{}
	if specialization != "" {
		params["specialization"] = specialization
	}
	return s.repo.Search(ctx, params, limit, offset)
}

// Search matches doctors by name or specialization.
func (s *Service) Search(ctx context.Context, p auth.Principal, params map[string]string, limit, offset int) ([]*Doctor, int, error) {
	dec := s.policy.Evaluate(p, auth.EntityDoctor, auth.OpSearch)
	if !dec.Allowed || dec.Scope == auth.ScopeNone {
		return []*Doctor{}, 0, nil
	}
	return s.repo.Search(ctx, params, limit, offset)
}

// Create adds a doctor profile for an existing user. Admin only.
func (s *Service) Create(ctx context.Context, p auth.Principal, in CreateInput) (*Doctor, error) {
	dec := s.policy.Evaluate(p, auth.EntityDoctor, auth.OpCreate)
	if !dec.Allowed {
		return nil, mutation.Denied(dec.Reason)
	}
	if in.UserID == uuid.Nil {
		return nil, mutation.Invalid("user_id is required")
	}
	if strings.TrimSpace(in.LicenseNumber) == "" {
		return nil, mutation.Invalid("license_number is required")
	}
	if strings.TrimSpace(in.Specialization) == "" {
		return nil, mutation.Invalid("specialization is required")
	}
	if _, err := s.users.GetByID(ctx, in.UserID); err != nil {
		return nil, mutation.NotFound("User not found")
	}

	d := &Doctor{
		UserID:            in.UserID,
		LicenseNumber:     in.LicenseNumber,
		Specialization:    in.Specialization,
		YearsOfExperience: in.YearsOfExperience,
		Education:         in.Education,
		Certifications:    in.Certifications,
		OfficeLocation:    in.OfficeLocation,
		OfficeHours:       in.OfficeHours,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		if db.IsUniqueViolation(err) {
			if db.ConstraintName(err) == "doctors_user_id_key" {
				return nil, mutation.Conflict("A doctor profile already exists for this user")
			}
			return nil, mutation.Conflict("A doctor with this license number already exists")
		}
		return nil, err
	}
	return d, nil
}

// Update edits a doctor profile. Admins may edit anyone; doctors only
// themselves. License number and linked user are immutable.
func (s *Service) Update(ctx context.Context, p auth.Principal, id uuid.UUID, in UpdateInput) (*Doctor, error) {
	dec := s.policy.Evaluate(p, auth.EntityDoctor, auth.OpUpdate)
	if !dec.Allowed {
		return nil, mutation.Denied(dec.Reason)
	}

	// Existence is checked before ownership so a missing id reads the same
	// for every caller.
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mutation.NotFound("Doctor not found")
	}
	if dec.Scope == auth.ScopeMine && d.UserID != p.UserID {
		return nil, mutation.Denied("Permission denied")
	}

	if in.Specialization != nil && dec.FieldAllowed("specialization") {
		d.Specialization = *in.Specialization
	}
	if in.YearsOfExperience != nil && dec.FieldAllowed("years_of_experience") {
		d.YearsOfExperience = *in.YearsOfExperience
	}
	if in.Education != nil && dec.FieldAllowed("education") {
		d.Education = in.Education
	}
	if in.Certifications != nil && dec.FieldAllowed("certifications") {
		d.Certifications = in.Certifications
	}
	if in.OfficeLocation != nil && dec.FieldAllowed("office_location") {
		d.OfficeLocation = in.OfficeLocation
	}
	if in.OfficeHours != nil && dec.FieldAllowed("office_hours") {
		d.OfficeHours = in.OfficeHours
	}

	if err := s.repo.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}
