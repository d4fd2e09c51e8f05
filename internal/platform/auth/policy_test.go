package auth

import (
	"testing"

	"github.com/google/uuid"
)

func adminPrincipal() Principal {
	return Principal{UserID: uuid.New(), Role: RoleAdmin}
}

func doctorPrincipal() Principal {
	return Principal{UserID: uuid.New(), Role: RoleDoctor}
}

func patientPrincipal() Principal {
	return Principal{UserID: uuid.New(), Role: RolePatient}
}

func TestEngine_AdminFullAccess(t *testing.T) {
	engine := NewDefaultEngine()
	admin := adminPrincipal()

	entities := []string{EntityUser, EntityDoctor, EntityPatient, EntityAppointment, EntityMedicalRecord}
	ops := []string{OpList, OpGet, OpSearch, OpCreate, OpUpdate}

	for _, entity := range entities {
		for _, op := range ops {
			d := engine.Evaluate(admin, entity, op)
			if !d.Allowed {
				t.Errorf("admin %s %s: expected allowed, got denied (%s)", op, entity, d.Reason)
			}
			if d.Scope != ScopeAll {
				t.Errorf("admin %s %s: expected scope all, got %s", op, entity, d.Scope)
			}
			if d.Fields != nil {
				t.Errorf("admin %s %s: expected unrestricted fields, got %v", op, entity, d.Fields)
			}
		}
	}
}

func TestEngine_DoctorDirectoryIsPublic(t *testing.T) {
	engine := NewDefaultEngine()

	principals := []Principal{adminPrincipal(), doctorPrincipal(), patientPrincipal(), Anonymous()}
	for _, p := range principals {
		for _, op := range []string{OpList, OpGet, OpSearch} {
			d := engine.Evaluate(p, EntityDoctor, op)
			if !d.Allowed || d.Scope != ScopeAll {
				t.Errorf("role %q %s doctor: expected allowed/all, got %+v", p.Role, op, d)
			}
		}
	}
}

func TestEngine_AnonymousReadsDegradeToNothing(t *testing.T) {
	engine := NewDefaultEngine()
	anon := Anonymous()

	for _, entity := range []string{EntityPatient, EntityAppointment, EntityMedicalRecord, EntityUser} {
		d := engine.Evaluate(anon, entity, OpList)
		if d.Allowed {
			// Absent cells are denials; anonymous list access to private
			// entities must not leak rows either way.
			if d.Scope != ScopeNone {
				t.Errorf("anonymous list %s: expected no visible rows, got scope %s", entity, d.Scope)
			}
		}
	}
}

func TestEngine_AnonymousMutationsDenied(t *testing.T) {
	engine := NewDefaultEngine()
	anon := Anonymous()

	for _, entity := range []string{EntityUser, EntityDoctor, EntityPatient, EntityAppointment, EntityMedicalRecord} {
		for _, op := range []string{OpCreate, OpUpdate} {
			d := engine.Evaluate(anon, entity, op)
			if d.Allowed {
				t.Errorf("anonymous %s %s: expected denied", op, entity)
			}
			if d.Reason == "" {
				t.Errorf("anonymous %s %s: expected a deny reason", op, entity)
			}
		}
	}
}

func TestEngine_UserSelfReadOnly(t *testing.T) {
	engine := NewDefaultEngine()

	for _, p := range []Principal{doctorPrincipal(), patientPrincipal()} {
		if d := engine.Evaluate(p, EntityUser, OpGet); !d.Allowed || d.Scope != ScopeMine {
			t.Errorf("role %s get user: expected allowed/mine, got %+v", p.Role, d)
		}
		if d := engine.Evaluate(p, EntityUser, OpList); !d.Allowed || d.Scope != ScopeNone {
			t.Errorf("role %s list user: expected allowed/none, got %+v", p.Role, d)
		}
		if d := engine.Evaluate(p, EntityUser, OpCreate); d.Allowed {
			t.Errorf("role %s create user: expected denied", p.Role)
		}
		if d := engine.Evaluate(p, EntityUser, OpUpdate); d.Allowed {
			t.Errorf("role %s update user: expected denied", p.Role)
		}
	}
}

func TestEngine_DoctorScopes(t *testing.T) {
	engine := NewDefaultEngine()
	doctor := doctorPrincipal()

	if d := engine.Evaluate(doctor, EntityDoctor, OpUpdate); !d.Allowed || d.Scope != ScopeMine {
		t.Errorf("doctor update doctor: expected allowed/mine, got %+v", d)
	}
	for _, op := range []string{OpList, OpGet, OpSearch, OpUpdate} {
		if d := engine.Evaluate(doctor, EntityPatient, op); !d.Allowed || d.Scope != ScopeLinked {
			t.Errorf("doctor %s patient: expected allowed/linked, got %+v", op, d)
		}
	}
	for _, entity := range []string{EntityAppointment, EntityMedicalRecord} {
		for _, op := range []string{OpList, OpGet, OpSearch, OpCreate, OpUpdate} {
			if d := engine.Evaluate(doctor, entity, op); !d.Allowed || d.Scope != ScopeMine {
				t.Errorf("doctor %s %s: expected allowed/mine, got %+v", op, entity, d)
			}
		}
	}
}

func TestEngine_PatientScopes(t *testing.T) {
	engine := NewDefaultEngine()
	patient := patientPrincipal()

	for _, op := range []string{OpList, OpGet, OpSearch, OpUpdate} {
		if d := engine.Evaluate(patient, EntityPatient, op); !d.Allowed || d.Scope != ScopeMine {
			t.Errorf("patient %s patient: expected allowed/mine, got %+v", op, d)
		}
	}
	for _, op := range []string{OpList, OpGet, OpSearch} {
		if d := engine.Evaluate(patient, EntityAppointment, op); !d.Allowed || d.Scope != ScopeMine {
			t.Errorf("patient %s appointment: expected allowed/mine, got %+v", op, d)
		}
		if d := engine.Evaluate(patient, EntityMedicalRecord, op); !d.Allowed || d.Scope != ScopeMine {
			t.Errorf("patient %s medical_record: expected allowed/mine, got %+v", op, d)
		}
	}
	if d := engine.Evaluate(patient, EntityMedicalRecord, OpUpdate); d.Allowed {
		t.Error("patient update medical_record: expected denied")
	}
}

func TestEngine_PatientAppointmentUpdateRestrictedToNotes(t *testing.T) {
	engine := NewDefaultEngine()
	patient := patientPrincipal()

	d := engine.Evaluate(patient, EntityAppointment, OpUpdate)
	if !d.Allowed {
		t.Fatalf("expected allowed, got denied (%s)", d.Reason)
	}
	if d.Scope != ScopeMine {
		t.Errorf("expected scope mine, got %s", d.Scope)
	}
	if len(d.Fields) != 1 || d.Fields[0] != "notes" {
		t.Fatalf("expected fields [notes], got %v", d.Fields)
	}
	if !d.FieldAllowed("notes") {
		t.Error("expected notes to be writable")
	}
	for _, field := range []string{"status", "appointment_date", "doctor_id", "reason_for_visit"} {
		if d.FieldAllowed(field) {
			t.Errorf("expected %s to be blocked for patients", field)
		}
	}
}

func TestEngine_DenyMessages(t *testing.T) {
	engine := NewDefaultEngine()

	tests := []struct {
		name   string
		p      Principal
		entity string
		op     string
		want   string
	}{
		{"doctor creating doctor", doctorPrincipal(), EntityDoctor, OpCreate, "Only admins can create doctors"},
		{"patient creating doctor", patientPrincipal(), EntityDoctor, OpCreate, "Only admins can create doctors"},
		{"doctor creating patient", doctorPrincipal(), EntityPatient, OpCreate, "Only admins can create patients"},
		{"patient creating appointment", patientPrincipal(), EntityAppointment, OpCreate, "Only doctors and admins can create appointments"},
		{"anonymous creating appointment", Anonymous(), EntityAppointment, OpCreate, "Only doctors and admins can create appointments"},
		{"patient creating medical record", patientPrincipal(), EntityMedicalRecord, OpCreate, "Only doctors and admins can create medical records"},
		{"patient updating medical record", patientPrincipal(), EntityMedicalRecord, OpUpdate, "Permission denied"},
		{"patient updating doctor", patientPrincipal(), EntityDoctor, OpUpdate, "Permission denied"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := engine.Evaluate(tt.p, tt.entity, tt.op)
			if d.Allowed {
				t.Fatalf("expected denied, got allowed with scope %s", d.Scope)
			}
			if d.Reason != tt.want {
				t.Errorf("expected reason %q, got %q", tt.want, d.Reason)
			}
		})
	}
}

func TestEngine_EvaluateIsIdempotent(t *testing.T) {
	engine := NewDefaultEngine()
	doctor := doctorPrincipal()

	first := engine.Evaluate(doctor, EntityAppointment, OpUpdate)
	for i := 0; i < 5; i++ {
		again := engine.Evaluate(doctor, EntityAppointment, OpUpdate)
		if again.Allowed != first.Allowed || again.Scope != first.Scope || again.Reason != first.Reason {
			t.Fatalf("evaluation %d differed: %+v vs %+v", i, again, first)
		}
		if len(again.Fields) != len(first.Fields) {
			t.Fatalf("evaluation %d field set differed: %v vs %v", i, again.Fields, first.Fields)
		}
	}
}

func TestDecision_FieldAllowed_NilMeansEverything(t *testing.T) {
	d := Decision{Allowed: true, Scope: ScopeAll}
	for _, field := range []string{"status", "notes", "anything"} {
		if !d.FieldAllowed(field) {
			t.Errorf("nil field set should allow %s", field)
		}
	}
}

func TestDenyMessage_Fallback(t *testing.T) {
	if got := DenyMessage(EntityUser, OpUpdate); got != "Permission denied" {
		t.Errorf("expected fallback message, got %q", got)
	}
	if got := DenyMessage(EntityDoctor, OpCreate); got != "Only admins can create doctors" {
		t.Errorf("expected doctor create message, got %q", got)
	}
}

func TestValidRole(t *testing.T) {
	for _, role := range []string{RolePatient, RoleDoctor, RoleAdmin} {
		if !ValidRole(role) {
			t.Errorf("expected %s to be valid", role)
		}
	}
	for _, role := range []string{"", "SUPERUSER", "patient", "Admin"} {
		if ValidRole(role) {
			t.Errorf("expected %q to be invalid", role)
		}
	}
}
