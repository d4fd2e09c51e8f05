package patients

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/domain/doctors"
	"github.com/clinicore/clinicore/internal/domain/users"
	"github.com/clinicore/clinicore/internal/platform/auth"
	"github.com/clinicore/clinicore/internal/platform/db"
	"github.com/clinicore/clinicore/internal/platform/mutation"
)

// UserDirectory is the slice of the users store this service needs.
type UserDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*users.User, error)
}

// DoctorDirectory resolves a doctor principal to their profile, which carries
// the doctor id the linked-patient scope is keyed on.
type DoctorDirectory interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*doctors.Doctor, error)
}

type Service struct {
	repo    Repository
	users   UserDirectory
	doctors DoctorDirectory
	policy  *auth.Engine
}

func NewService(repo Repository, users UserDirectory, doctors DoctorDirectory, policy *auth.Engine) *Service {
	return &Service{repo: repo, users: users, doctors: doctors, policy: policy}
}

// visible reports whether the patient row is inside the caller's read scope.
func (s *Service) visible(ctx context.Context, dec auth.Decision, p auth.Principal, target *Patient) bool {
	switch {
	case !dec.Allowed, dec.Scope == auth.ScopeNone:
		return false
	case dec.Scope == auth.ScopeAll:
		return true
	case dec.Scope == auth.ScopeMine:
		return target.UserID == p.UserID
	case dec.Scope == auth.ScopeLinked:
		doc, err := s.doctors.GetByUserID(ctx, p.UserID)
		if err != nil {
			return false
		}
		linked, err := s.repo.ExistsLinkedDoctor(ctx, target.ID, doc.ID)
		return err == nil && linked
	}
	return false
}

// scopeParams translates the decision into repository predicates. ok=false
// means the scope matches nothing and the caller should see an empty page.
func (s *Service) scopeParams(ctx context.Context, dec auth.Decision, p auth.Principal) (map[string]string, bool) {
	switch {
	case !dec.Allowed, dec.Scope == auth.ScopeNone:
		return nil, false
	case dec.Scope == auth.ScopeAll:
		return map[string]string{}, true
	case dec.Scope == auth.ScopeMine:
		return map[string]string{"user_id": p.UserID.String()}, true
	case dec.Scope == auth.ScopeLinked:
		doc, err := s.doctors.GetByUserID(ctx, p.UserID)
		if err != nil {
			return nil, false
		}
		return map[string]string{"linked_doctor_id": doc.ID.String()}, true
	}
	return nil, false
}

// Get loads a patient by id. Rows outside the caller's scope answer
// not-found, indistinguishable from rows that do not exist.
func (s *Service) Get(ctx context.Context, p auth.Principal, id uuid.UUID) (*Patient, error) {
	dec := s.policy.Evaluate(p, auth.EntityPatient, auth.OpGet)
	pat, err := s.repo.GetByID(ctx, id)
	if err != nil || !s.visible(ctx, dec, p, pat) {
		return nil, mutation.NotFound("Patient not found")
	}
	return pat, nil
}

// GetByMRN loads a patient by medical record number under the same scope
// rules as Get.
func (s *Service) GetByMRN(ctx context.Context, p auth.Principal, mrn string) (*Patient, error) {
	dec := s.policy.Evaluate(p, auth.EntityPatient, auth.OpGet)
	pat, err := s.repo.GetByMRN(ctx, mrn)
	if err != nil || !s.visible(ctx, dec, p, pat) {
		return nil, mutation.NotFound("Patient not found")
	}
	return pat, nil
}

// List returns the patients inside the caller's scope, optionally filtered by
// blood type.
func (s *Service) List(ctx context.Context, p auth.Principal, bloodType string, limit, offset int) ([]*Patient, int, error) {
	dec := s.policy.Evaluate(p, auth.EntityPatient, auth.OpList)
	params, ok := s.scopeParams(ctx, dec, p)
	if !ok {
		return []*Patient{}, 0, nil
	}
	if bloodType != "" {
		params["blood_type"] = bloodType
	}
	return s.repo.Search(ctx, params, limit, offset)
}

// Search matches patients by name or medical record number inside the
// caller's scope.
func (s *Service) Search(ctx context.Context, p auth.Principal, filters map[string]string, limit, offset int) ([]*Patient, int, error) {
	dec := s.policy.Evaluate(p, auth.EntityPatient, auth.OpSearch)
	params, ok := s.scopeParams(ctx, dec, p)
	if !ok {
		return []*Patient{}, 0, nil
	}
	// Scope keys injected above must not be overridden by caller filters.
	for k, v := range filters {
		if _, reserved := params[k]; !reserved {
			params[k] = v
		}
	}
	return s.repo.Search(ctx, params, limit, offset)
}

// Create adds a patient profile for an existing user. Admin only.
func (s *Service) Create(ctx context.Context, p auth.Principal, in CreateInput) (*Patient, error) {
	dec := s.policy.Evaluate(p, auth.EntityPatient, auth.OpCreate)
	if !dec.Allowed {
		return nil, mutation.Denied(dec.Reason)
	}
	if in.UserID == uuid.Nil {
		return nil, mutation.Invalid("user_id is required")
	}
	if strings.TrimSpace(in.MedicalRecordNumber) == "" {
		return nil, mutation.Invalid("medical_record_number is required")
	}
	if _, err := s.users.GetByID(ctx, in.UserID); err != nil {
		return nil, mutation.NotFound("User not found")
	}

	pat := &Patient{
		UserID:               in.UserID,
		MedicalRecordNumber:  in.MedicalRecordNumber,
		Address:              in.Address,
		EmergencyContactName: in.EmergencyContactName,
		EmergencyContact:     in.EmergencyContact,
		BloodType:            in.BloodType,
		Allergies:            in.Allergies,
	}
	if err := s.repo.Create(ctx, pat); err != nil {
		if db.IsUniqueViolation(err) {
			if db.ConstraintName(err) == "patients_user_id_key" {
				return nil, mutation.Conflict("A patient profile already exists for this user")
			}
			return nil, mutation.Conflict("A patient with this medical record number already exists")
		}
		return nil, err
	}
	return pat, nil
}

// Update edits a patient profile. Admins may edit anyone, patients
// themselves, doctors the patients they share an appointment with.
func (s *Service) Update(ctx context.Context, p auth.Principal, id uuid.UUID, in UpdateInput) (*Patient, error) {
	dec := s.policy.Evaluate(p, auth.EntityPatient, auth.OpUpdate)
	if !dec.Allowed {
		return nil, mutation.Denied(dec.Reason)
	}

	pat, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mutation.NotFound("Patient not found")
	}
	switch dec.Scope {
	case auth.ScopeMine:
		if pat.UserID != p.UserID {
			return nil, mutation.Denied("Permission denied")
		}
	case auth.ScopeLinked:
		doc, err := s.doctors.GetByUserID(ctx, p.UserID)
		if err != nil {
			return nil, mutation.Denied("You can only update your patients")
		}
		linked, err := s.repo.ExistsLinkedDoctor(ctx, pat.ID, doc.ID)
		if err != nil {
			return nil, err
		}
		if !linked {
			return nil, mutation.Denied("You can only update your patients")
		}
	}

	if in.Address != nil && dec.FieldAllowed("address") {
		pat.Address = in.Address
	}
	if in.EmergencyContactName != nil && dec.FieldAllowed("emergency_contact_name") {
		pat.EmergencyContactName = in.EmergencyContactName
	}
	if in.EmergencyContact != nil && dec.FieldAllowed("emergency_contact") {
		pat.EmergencyContact = in.EmergencyContact
	}
	if in.BloodType != nil && dec.FieldAllowed("blood_type") {
		pat.BloodType = in.BloodType
	}
	if in.Allergies != nil && dec.FieldAllowed("allergies") {
		pat.Allergies = in.Allergies
	}

	if err := s.repo.Update(ctx, pat); err != nil {
		return nil, err
	}
	return pat, nil
}
