package auth

import "github.com/google/uuid"

// Roles carried by user accounts. Stored uppercase in the users table.
const (
	RolePatient = "PATIENT"
	RoleDoctor  = "DOCTOR"
	RoleAdmin   = "ADMIN"

	// RoleAnonymous is the implicit role of unauthenticated requests.
	RoleAnonymous = ""
)

// Entity kinds the policy engine knows about.
const (
	EntityUser          = "user"
	EntityDoctor        = "doctor"
	EntityPatient       = "patient"
	EntityAppointment   = "appointment"
	EntityMedicalRecord = "medical_record"
)

// Operations the policy engine evaluates.
const (
	OpList   = "list"
	OpGet    = "get"
	OpSearch = "search"
	OpCreate = "create"
	OpUpdate = "update"
)

// Principal identifies the caller of a service operation. The zero value is
// the anonymous principal. Services receive it explicitly on every call; it
// is never read from ambient state.
type Principal struct {
	UserID uuid.UUID
	Role   string
}

// Anonymous returns the unauthenticated principal.
func Anonymous() Principal {
	return Principal{}
}

func (p Principal) IsAnonymous() bool {
	return p.UserID == uuid.Nil
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

func (p Principal) IsDoctor() bool {
	return p.Role == RoleDoctor
}

func (p Principal) IsPatient() bool {
	return p.Role == RolePatient
}

// ValidRole reports whether role is one of the three account roles.
func ValidRole(role string) bool {
	switch role {
	case RolePatient, RoleDoctor, RoleAdmin:
		return true
	}
	return false
}
