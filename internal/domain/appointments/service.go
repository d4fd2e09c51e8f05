package appointments

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/domain/doctors"
	"github.com/clinicore/clinicore/internal/domain/patients"
	"github.com/clinicore/clinicore/internal/platform/auth"
	"github.com/clinicore/clinicore/internal/platform/db"
	"github.com/clinicore/clinicore/internal/platform/mutation"
)

// DoctorDirectory is the slice of the doctors store this service needs:
// existence checks on booking plus resolving a doctor principal to their
// profile.
type DoctorDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*doctors.Doctor, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*doctors.Doctor, error)
}

// PatientDirectory is the matching slice of the patients store.
type PatientDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patients.Patient, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*patients.Patient, error)
}

type Service struct {
	repo     Repository
	doctors  DoctorDirectory
	patients PatientDirectory
	policy   *auth.Engine
}

func NewService(repo Repository, doctors DoctorDirectory, patients PatientDirectory, policy *auth.Engine) *Service {
	return &Service{repo: repo, doctors: doctors, patients: patients, policy: policy}
}

// owns reports whether the principal is a party to the appointment: the
// booked doctor for doctor principals, the booked patient for patients.
func (s *Service) owns(ctx context.Context, p auth.Principal, a *Appointment) bool {
	switch p.Role {
	case auth.RoleDoctor:
		doc, err := s.doctors.GetByUserID(ctx, p.UserID)
		return err == nil && doc.ID == a.DoctorID
	case auth.RolePatient:
		pat, err := s.patients.GetByUserID(ctx, p.UserID)
		return err == nil && pat.ID == a.PatientID
	}
	return false
}

// scopeParams translates the decision into repository predicates. ok=false
// means the scope matches nothing.
func (s *Service) scopeParams(ctx context.Context, dec auth.Decision, p auth.Principal) (map[string]string, bool) {
	if !dec.Allowed || dec.Scope == auth.ScopeNone {
		return nil, false
	}
	if dec.Scope == auth.ScopeAll {
		return map[string]string{}, true
	}
	switch p.Role {
	case auth.RoleDoctor:
		doc, err := s.doctors.GetByUserID(ctx, p.UserID)
		if err != nil {
			return nil, false
		}
		return map[string]string{"doctor_id": doc.ID.String()}, true
	case auth.RolePatient:
		pat, err := s.patients.GetByUserID(ctx, p.UserID)
		if err != nil {
			return nil, false
		}
		return map[string]string{"patient_id": pat.ID.String()}, true
	}
	return nil, false
}

// Get loads an appointment by id. Rows outside the caller's scope answer
// not-found.
func (s *Service) Get(ctx context.Context, p auth.Principal, id uuid.UUID) (*Appointment, error) {
	dec := s.policy.Evaluate(p, auth.EntityAppointment, auth.OpGet)
	if !dec.Allowed || dec.Scope == auth.ScopeNone {
		return nil, mutation.NotFound("Appointment not found")
	}
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mutation.NotFound("Appointment not found")
	}
	if dec.Scope == auth.ScopeMine && !s.owns(ctx, p, a) {
		return nil, mutation.NotFound("Appointment not found")
	}
	return a, nil
}

// List returns the appointments inside the caller's scope, narrowed by the
// given filters.
func (s *Service) List(ctx context.Context, p auth.Principal, filters map[string]string, limit, offset int) ([]*Appointment, int, error) {
	dec := s.policy.Evaluate(p, auth.EntityAppointment, auth.OpList)
	params, ok := s.scopeParams(ctx, dec, p)
	if !ok {
		return []*Appointment{}, 0, nil
	}
	// Scope keys injected above must not be overridden by caller filters.
	for k, v := range filters {
		if _, reserved := params[k]; !reserved {
			params[k] = v
		}
	}
	return s.repo.Search(ctx, params, limit, offset)
}

// ListByDoctor returns one doctor's calendar. Admins may name any doctor;
// doctors only themselves; everyone else sees an empty page.
func (s *Service) ListByDoctor(ctx context.Context, p auth.Principal, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	dec := s.policy.Evaluate(p, auth.EntityAppointment, auth.OpList)
	if !dec.Allowed || dec.Scope == auth.ScopeNone {
		return []*Appointment{}, 0, nil
	}
	if dec.Scope == auth.ScopeMine {
		if p.Role != auth.RoleDoctor {
			return []*Appointment{}, 0, nil
		}
		doc, err := s.doctors.GetByUserID(ctx, p.UserID)
		if err != nil || doc.ID != doctorID {
			return []*Appointment{}, 0, nil
		}
	}
	return s.repo.Search(ctx, map[string]string{"doctor_id": doctorID.String()}, limit, offset)
}

// ListByPatient returns one patient's bookings. Admins may name any patient,
// patients only themselves, and doctors get the slice of the named patient's
// bookings that are with them.
func (s *Service) ListByPatient(ctx context.Context, p auth.Principal, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	dec := s.policy.Evaluate(p, auth.EntityAppointment, auth.OpList)
	if !dec.Allowed || dec.Scope == auth.ScopeNone {
		return []*Appointment{}, 0, nil
	}
	params := map[string]string{"patient_id": patientID.String()}
	if dec.Scope == auth.ScopeMine {
		switch p.Role {
		case auth.RolePatient:
			pat, err := s.patients.GetByUserID(ctx, p.UserID)
			if err != nil || pat.ID != patientID {
				return []*Appointment{}, 0, nil
			}
		case auth.RoleDoctor:
			doc, err := s.doctors.GetByUserID(ctx, p.UserID)
			if err != nil {
				return []*Appointment{}, 0, nil
			}
			params["doctor_id"] = doc.ID.String()
		default:
			return []*Appointment{}, 0, nil
		}
	}
	return s.repo.Search(ctx, params, limit, offset)
}

// Create books an appointment. Doctors book their own calendar; admins book
// for any doctor. The slot must be free of SCHEDULED or CONFIRMED bookings at
// the exact instant.
func (s *Service) Create(ctx context.Context, p auth.Principal, in CreateInput) (*Appointment, error) {
	dec := s.policy.Evaluate(p, auth.EntityAppointment, auth.OpCreate)
	if !dec.Allowed {
		return nil, mutation.Denied(dec.Reason)
	}
	if in.PatientID == uuid.Nil {
		return nil, mutation.Invalid("patient_id is required")
	}
	if in.DoctorID == uuid.Nil {
		return nil, mutation.Invalid("doctor_id is required")
	}
	if in.AppointmentDate == nil {
		return nil, mutation.Invalid("appointment_date is required")
	}
	if in.DurationMinutes < 0 {
		return nil, mutation.Invalid("duration_minutes must be positive")
	}

	if _, err := s.patients.GetByID(ctx, in.PatientID); err != nil {
		return nil, mutation.NotFound("Patient or Doctor not found")
	}
	if _, err := s.doctors.GetByID(ctx, in.DoctorID); err != nil {
		return nil, mutation.NotFound("Patient or Doctor not found")
	}

	if dec.Scope == auth.ScopeMine {
		doc, err := s.doctors.GetByUserID(ctx, p.UserID)
		if err != nil || doc.ID != in.DoctorID {
			return nil, mutation.Denied("You can only create appointments for your patients")
		}
	}

	busy, err := s.repo.ExistsActiveAt(ctx, in.DoctorID, *in.AppointmentDate)
	if err != nil {
		return nil, err
	}
	if busy {
		return nil, mutation.Conflict("This time slot is already booked")
	}

	duration := in.DurationMinutes
	if duration == 0 {
		duration = 30
	}
	a := &Appointment{
		PatientID:       in.PatientID,
		DoctorID:        in.DoctorID,
		AppointmentDate: *in.AppointmentDate,
		DurationMinutes: duration,
		Status:          StatusScheduled,
		ReasonForVisit:  in.ReasonForVisit,
		Notes:           in.Notes,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		if db.IsUniqueViolation(err) {
			// Lost the race for the slot.
			return nil, mutation.Conflict("This time slot is already booked")
		}
		return nil, err
	}
	return a, nil
}

// Update edits an appointment. Out-of-scope fields in the payload are
// dropped without error, so a patient sending {notes, status} changes only
// the notes.
func (s *Service) Update(ctx context.Context, p auth.Principal, id uuid.UUID, in UpdateInput) (*Appointment, error) {
	dec := s.policy.Evaluate(p, auth.EntityAppointment, auth.OpUpdate)
	if !dec.Allowed {
		return nil, mutation.Denied(dec.Reason)
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mutation.NotFound("Appointment not found")
	}
	if dec.Scope == auth.ScopeMine && !s.owns(ctx, p, a) {
		return nil, mutation.Denied("Permission denied")
	}

	wasActive := activeStatus(a.Status)
	origDate := a.AppointmentDate

	if in.AppointmentDate != nil && dec.FieldAllowed("appointment_date") {
		a.AppointmentDate = *in.AppointmentDate
	}
	if in.DurationMinutes != nil && dec.FieldAllowed("duration_minutes") {
		if *in.DurationMinutes <= 0 {
			return nil, mutation.Invalid("duration_minutes must be positive")
		}
		a.DurationMinutes = *in.DurationMinutes
	}
	if in.Status != nil && dec.FieldAllowed("status") {
		if !validAppointmentStatuses[*in.Status] {
			return nil, mutation.Invalid(fmt.Sprintf("invalid appointment status: %s", *in.Status))
		}
		a.Status = *in.Status
	}
	if in.ReasonForVisit != nil && dec.FieldAllowed("reason_for_visit") {
		a.ReasonForVisit = in.ReasonForVisit
	}
	if in.Notes != nil && dec.FieldAllowed("notes") {
		a.Notes = in.Notes
	}

	// Re-check the slot when the appointment lands on a new instant, or when
	// an inactive booking becomes active again at its old one. The row's own
	// previous slot can never collide with itself here.
	nowActive := activeStatus(a.Status)
	dateChanged := !a.AppointmentDate.Equal(origDate)
	if nowActive && (dateChanged || !wasActive) {
		busy, err := s.repo.ExistsActiveAt(ctx, a.DoctorID, a.AppointmentDate)
		if err != nil {
			return nil, err
		}
		if busy {
			return nil, mutation.Conflict("This time slot is already booked")
		}
	}

	if err := s.repo.Update(ctx, a); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, mutation.Conflict("This time slot is already booked")
		}
		return nil, err
	}
	return a, nil
}
