package users

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/platform/auth"
	"github.com/clinicore/clinicore/internal/platform/db"
	"github.com/clinicore/clinicore/internal/platform/mutation"
)

type Service struct {
	repo   Repository
	policy *auth.Engine
	tokens *auth.TokenIssuer
}

func NewService(repo Repository, policy *auth.Engine, tokens *auth.TokenIssuer) *Service {
	return &Service{repo: repo, policy: policy, tokens: tokens}
}

// Register creates a PATIENT-role account. The role is never caller-selectable
// here; privileged roles are assigned through the admin users endpoint.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	if err := validateAccountFields(in.Email, in.Password, in.FirstName, in.LastName); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &User{
		Email:        strings.TrimSpace(in.Email),
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         auth.RolePatient,
		Phone:        in.Phone,
		DateOfBirth:  in.DateOfBirth,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, mutation.Conflict("A user with this email already exists")
		}
		return nil, err
	}
	return u, nil
}

// Login verifies the credentials and issues a signed token. Unknown emails,
// wrong passwords, and deactivated accounts are indistinguishable to the
// caller.
func (s *Service) Login(ctx context.Context, in LoginInput) (*User, string, error) {
	u, err := s.repo.GetByEmail(ctx, strings.TrimSpace(in.Email))
	if err != nil || !u.IsActive || !auth.CheckPassword(u.PasswordHash, in.Password) {
		return nil, "", mutation.Denied("Invalid credentials")
	}
	token, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// Me returns the authenticated principal's own account.
func (s *Service) Me(ctx context.Context, p auth.Principal) (*User, error) {
	u, err := s.repo.GetByID(ctx, p.UserID)
	if err != nil {
		return nil, mutation.NotFound("User not found")
	}
	return u, nil
}

// Get loads a user by id. Admins see any account; everyone else sees only
// their own, and a row outside the caller's scope answers not-found.
func (s *Service) Get(ctx context.Context, p auth.Principal, id uuid.UUID) (*User, error) {
	dec := s.policy.Evaluate(p, auth.EntityUser, auth.OpGet)
	if !dec.Allowed || dec.Scope == auth.ScopeNone {
		return nil, mutation.NotFound("User not found")
	}
	if dec.Scope == auth.ScopeMine && id != p.UserID {
		return nil, mutation.NotFound("User not found")
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mutation.NotFound("User not found")
	}
	return u, nil
}

// List returns all accounts for admins and an empty page for everyone else.
func (s *Service) List(ctx context.Context, p auth.Principal, limit, offset int) ([]*User, int, error) {
	dec := s.policy.Evaluate(p, auth.EntityUser, auth.OpList)
	if !dec.Allowed || dec.Scope != auth.ScopeAll {
		return []*User{}, 0, nil
	}
	return s.repo.List(ctx, limit, offset)
}

// Create is the admin account-provisioning operation and may assign any role.
func (s *Service) Create(ctx context.Context, p auth.Principal, in CreateInput) (*User, error) {
	dec := s.policy.Evaluate(p, auth.EntityUser, auth.OpCreate)
	if !dec.Allowed {
		return nil, mutation.Denied(dec.Reason)
	}
	if err := validateAccountFields(in.Email, in.Password, in.FirstName, in.LastName); err != nil {
		return nil, err
	}
	role := in.Role
	if role == "" {
		role = auth.RolePatient
	}
	role = strings.ToUpper(role)
	if !auth.ValidRole(role) {
		return nil, mutation.Invalid("invalid role: " + in.Role)
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &User{
		Email:        strings.TrimSpace(in.Email),
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         role,
		Phone:        in.Phone,
		DateOfBirth:  in.DateOfBirth,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, mutation.Conflict("A user with this email already exists")
		}
		return nil, err
	}
	return u, nil
}

func validateAccountFields(email, password, firstName, lastName string) error {
	if strings.TrimSpace(email) == "" {
		return mutation.Invalid("email is required")
	}
	if password == "" {
		return mutation.Invalid("password is required")
	}
	if strings.TrimSpace(firstName) == "" {
		return mutation.Invalid("first_name is required")
	}
	if strings.TrimSpace(lastName) == "" {
		return mutation.Invalid("last_name is required")
	}
	return nil
}
