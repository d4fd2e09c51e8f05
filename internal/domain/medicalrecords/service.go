package medicalrecords

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/domain/doctors"
	"github.com/clinicore/clinicore/internal/domain/patients"
	"github.com/clinicore/clinicore/internal/platform/auth"
	"github.com/clinicore/clinicore/internal/platform/mutation"
)

// DoctorDirectory is the slice of the doctors package this service needs.
type DoctorDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*doctors.Doctor, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*doctors.Doctor, error)
}

// PatientDirectory is the slice of the patients package this service needs.
type PatientDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patients.Patient, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*patients.Patient, error)
}

// Service enforces the access policy around the medical record store. Doctors
// read and write the records they authored; patients read their own history
// but never write it.
type Service struct {
	repo     Repository
	doctors  DoctorDirectory
	patients PatientDirectory
	policy   *auth.Engine
}

func NewService(repo Repository, doctors DoctorDirectory, patients PatientDirectory, policy *auth.Engine) *Service {
	return &Service{repo: repo, doctors: doctors, patients: patients, policy: policy}
}

// owns reports whether the principal is a party to the record: its author for
// doctor principals, its subject for patients.
func (s *Service) owns(ctx context.Context, p auth.Principal, m *MedicalRecord) bool {
	switch p.Role {
	case auth.RoleDoctor:
		doc, err := s.doctors.GetByUserID(ctx, p.UserID)
		return err == nil && doc.ID == m.DoctorID
	case auth.RolePatient:
		pat, err := s.patients.GetByUserID(ctx, p.UserID)
		return err == nil && pat.ID == m.PatientID
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

// Get loads a medical record by id. Rows outside the caller's scope answer
// not-found.
func (s *Service) Get(ctx context.Context, p auth.Principal, id uuid.UUID) (*MedicalRecord, error) {
	dec := s.policy.Evaluate(p, auth.EntityMedicalRecord, auth.OpGet)
	if !dec.Allowed || dec.Scope == auth.ScopeNone {
		return nil, mutation.NotFound("Medical record not found")
	}
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mutation.NotFound("Medical record not found")
	}
	if dec.Scope == auth.ScopeMine && !s.owns(ctx, p, m) {
		return nil, mutation.NotFound("Medical record not found")
	}
	return m, nil
}

// List returns the records inside the caller's scope, narrowed by the given
// filters.
func (s *Service) List(ctx context.Context, p auth.Principal, filters map[string]string, limit, offset int) ([]*MedicalRecord, int, error) {
	dec := s.policy.Evaluate(p, auth.EntityMedicalRecord, auth.OpList)
	params, ok := s.scopeParams(ctx, dec, p)
	if !ok {
		return []*MedicalRecord{}, 0, nil
	}
	// Scope keys injected above must not be overridden by caller filters.
	for k, v := range filters {
		if _, reserved := params[k]; !reserved {
			params[k] = v
		}
	}
	return s.repo.Search(ctx, params, limit, offset)
}

// ListByPatient returns one patient's history. Admins may name any patient,
// patients only themselves, and doctors get the slice of the named patient's
// records they authored.
func (s *Service) ListByPatient(ctx context.Context, p auth.Principal, patientID uuid.UUID, limit, offset int) ([]*MedicalRecord, int, error) {
	dec := s.policy.Evaluate(p, auth.EntityMedicalRecord, auth.OpList)
	if !dec.Allowed || dec.Scope == auth.ScopeNone {
		return []*MedicalRecord{}, 0, nil
	}
	params := map[string]string{"patient_id": patientID.String()}
	if dec.Scope == auth.ScopeMine {
		switch p.Role {
		case auth.RolePatient:
			pat, err := s.patients.GetByUserID(ctx, p.UserID)
			if err != nil || pat.ID != patientID {
				return []*MedicalRecord{}, 0, nil
			}
		case auth.RoleDoctor:
			doc, err := s.doctors.GetByUserID(ctx, p.UserID)
			if err != nil {
				return []*MedicalRecord{}, 0, nil
			}
			params["doctor_id"] = doc.ID.String()
		default:
			return []*MedicalRecord{}, 0, nil
		}
	}
	return s.repo.Search(ctx, params, limit, offset)
}

// ListByDoctor returns the records a doctor authored. Admins may name any
// doctor; doctors only themselves. Patients see nothing here, not even their
// own records.
func (s *Service) ListByDoctor(ctx context.Context, p auth.Principal, doctorID uuid.UUID, limit, offset int) ([]*MedicalRecord, int, error) {
	dec := s.policy.Evaluate(p, auth.EntityMedicalRecord, auth.OpList)
	if !dec.Allowed || dec.Scope == auth.ScopeNone {
		return []*MedicalRecord{}, 0, nil
	}
	if dec.Scope == auth.ScopeMine {
		if p.Role != auth.RoleDoctor {
			return []*MedicalRecord{}, 0, nil
		}
		doc, err := s.doctors.GetByUserID(ctx, p.UserID)
		if err != nil || doc.ID != doctorID {
			return []*MedicalRecord{}, 0, nil
		}
	}
	return s.repo.Search(ctx, map[string]string{"doctor_id": doctorID.String()}, limit, offset)
}

// Create files a medical record. Doctors file under their own name; admins
// under any doctor's.
func (s *Service) Create(ctx context.Context, p auth.Principal, in CreateInput) (*MedicalRecord, error) {
	dec := s.policy.Evaluate(p, auth.EntityMedicalRecord, auth.OpCreate)
	if !dec.Allowed {
		return nil, mutation.Denied(dec.Reason)
	}
	if in.PatientID == uuid.Nil {
		return nil, mutation.Invalid("patient_id is required")
	}
	if in.DoctorID == uuid.Nil {
		return nil, mutation.Invalid("doctor_id is required")
	}
	if in.VisitDate == nil {
		return nil, mutation.Invalid("visit_date is required")
	}
	if in.Diagnosis == "" {
		return nil, mutation.Invalid("diagnosis is required")
	}
	if in.TreatmentNotes == "" {
		return nil, mutation.Invalid("treatment_notes is required")
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
			return nil, mutation.Denied("You can only create medical records for your patients")
		}
	}

	m := &MedicalRecord{
		PatientID:             in.PatientID,
		DoctorID:              in.DoctorID,
		VisitDate:             *in.VisitDate,
		Diagnosis:             in.Diagnosis,
		TreatmentNotes:        in.TreatmentNotes,
		Symptoms:              in.Symptoms,
		VitalSigns:            in.VitalSigns,
		MedicationsPrescribed: in.MedicationsPrescribed,
		FollowUpRequired:      in.FollowUpRequired,
		FollowUpDate:          in.FollowUpDate,
		LabResults:            in.LabResults,
		ImagingResults:        in.ImagingResults,
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Update amends a medical record. Only its authoring doctor or an admin may
// touch it; the subject patient cannot.
func (s *Service) Update(ctx context.Context, p auth.Principal, id uuid.UUID, in UpdateInput) (*MedicalRecord, error) {
	dec := s.policy.Evaluate(p, auth.EntityMedicalRecord, auth.OpUpdate)
	if !dec.Allowed {
		return nil, mutation.Denied(dec.Reason)
	}

	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mutation.NotFound("Medical record not found")
	}
	if dec.Scope == auth.ScopeMine && !s.owns(ctx, p, m) {
		return nil, mutation.Denied("Permission denied")
	}

	if in.Diagnosis != nil && dec.FieldAllowed("diagnosis") {
		m.Diagnosis = *in.Diagnosis
	}
	if in.TreatmentNotes != nil && dec.FieldAllowed("treatment_notes") {
		m.TreatmentNotes = *in.TreatmentNotes
	}
	if in.Symptoms != nil && dec.FieldAllowed("symptoms") {
		m.Symptoms = in.Symptoms
	}
	if in.VitalSigns != nil && dec.FieldAllowed("vital_signs") {
		m.VitalSigns = in.VitalSigns
	}
	if in.MedicationsPrescribed != nil && dec.FieldAllowed("medications_prescribed") {
		m.MedicationsPrescribed = in.MedicationsPrescribed
	}
	if in.FollowUpRequired != nil && dec.FieldAllowed("follow_up_required") {
		m.FollowUpRequired = *in.FollowUpRequired
	}
	if in.FollowUpDate != nil && dec.FieldAllowed("follow_up_date") {
		m.FollowUpDate = in.FollowUpDate
	}
	if in.LabResults != nil && dec.FieldAllowed("lab_results") {
		m.LabResults = in.LabResults
	}
	if in.ImagingResults != nil && dec.FieldAllowed("imaging_results") {
		m.ImagingResults = in.ImagingResults
	}

	if err := s.repo.Update(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}
