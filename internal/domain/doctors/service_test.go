package doctors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clinicore/clinicore/internal/domain/users"
	"github.com/clinicore/clinicore/internal/platform/auth"
	"github.com/clinicore/clinicore/internal/platform/mutation"
)

type mockDoctorRepo struct {
	doctors map[uuid.UUID]*Doctor
}

func newMockDoctorRepo() *mockDoctorRepo {
	return &mockDoctorRepo{doctors: make(map[uuid.UUID]*Doctor)}
}

func (m *mockDoctorRepo) Create(ctx context.Context, d *Doctor) error {
	for _, existing := range m.doctors {
		if existing.LicenseNumber == d.LicenseNumber {
			return &pgconn.PgError{Code: "23505", ConstraintName: "doctors_license_number_key"}
		}
		if existing.UserID == d.UserID {
			return &pgconn.PgError{Code: "23505", ConstraintName: "doctors_user_id_key"}
		}
	}
	d.ID = uuid.New()
	d.CreatedAt = time.Now()
	d.UpdatedAt = d.CreatedAt
	m.doctors[d.ID] = d
	return nil
}

func (m *mockDoctorRepo) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, ok := m.doctors[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return d, nil
}

func (m *mockDoctorRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error) {
	for _, d := range m.doctors {
		if d.UserID == userID {
			return d, nil
		}
	}
	return nil, fmt.Errorf("not found")
}

func (m *mockDoctorRepo) GetByLicense(ctx context.Context, license string) (*Doctor, error) {
	for _, d := range m.doctors {
		if d.LicenseNumber == license {
			return d, nil
		}
	}
	return nil, fmt.Errorf("not found")
}

func (m *mockDoctorRepo) Update(ctx context.Context, d *Doctor) error {
	if _, ok := m.doctors[d.ID]; !ok {
		return fmt.Errorf("not found")
	}
	d.UpdatedAt = time.Now()
	m.doctors[d.ID] = d
	return nil
}

func (m *mockDoctorRepo) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Doctor, int, error) {
	var matched []*Doctor
	for _, d := range m.doctors {
		if v, ok := params["specialization"]; ok && !strings.Contains(strings.ToLower(d.Specialization), strings.ToLower(v)) {
			continue
		}
		if v, ok := params["q"]; ok {
			q := strings.ToLower(v)
			if !strings.Contains(strings.ToLower(d.FirstName), q) &&
				!strings.Contains(strings.ToLower(d.LastName), q) &&
				!strings.Contains(strings.ToLower(d.Email), q) &&
				!strings.Contains(strings.ToLower(d.Specialization), q) &&
				!strings.Contains(strings.ToLower(d.LicenseNumber), q) {
				continue
			}
		}
		matched = append(matched, d)
	}
	total := len(matched)
	if offset > len(matched) {
		offset = len(matched)
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

type mockUserDirectory struct {
	users map[uuid.UUID]*users.User
}

func (m *mockUserDirectory) GetByID(ctx context.Context, id uuid.UUID) (*users.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return u, nil
}

type fixture struct {
	repo *mockDoctorRepo
	dir  *mockUserDirectory
	svc  *Service
}

func newFixture() *fixture {
	repo := newMockDoctorRepo()
	dir := &mockUserDirectory{users: make(map[uuid.UUID]*users.User)}
	return &fixture{repo: repo, dir: dir, svc: NewService(repo, dir, auth.NewDefaultEngine())}
}

func (f *fixture) addUser(role string) *users.User {
	u := &users.User{
		ID:        uuid.New(),
		FirstName: "Greg",
		LastName:  "House",
		Role:      role,
		IsActive:  true,
	}
	u.Email = u.ID.String()[:8] + "@example.com"
	f.dir.users[u.ID] = u
	return u
}

var adminP = auth.Principal{UserID: uuid.New(), Role: auth.RoleAdmin}

func TestCreateDoctor_AdminOnly(t *testing.T) {
	f := newFixture()
	u := f.addUser(auth.RoleDoctor)
	in := CreateInput{UserID: u.ID, LicenseNumber: "MD-1001", Specialization: "Cardiology"}

	for _, p := range []auth.Principal{
		{UserID: uuid.New(), Role: auth.RoleDoctor},
		{UserID: uuid.New(), Role: auth.RolePatient},
		{},
	} {
		_, err := f.svc.Create(context.Background(), p, in)
		if !errors.Is(err, mutation.ErrDenied) {
			t.Fatalf("role %q: expected denial, got %v", p.Role, err)
		}
		if err.Error() != "Only admins can create doctors" {
			t.Errorf("role %q: message = %q", p.Role, err.Error())
		}
	}

	d, err := f.svc.Create(context.Background(), adminP, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.ID == uuid.Nil || d.LicenseNumber != "MD-1001" {
		t.Errorf("doctor = %+v", d)
	}
}

func TestCreateDoctor_RequiredFields(t *testing.T) {
	f := newFixture()
	u := f.addUser(auth.RoleDoctor)

	cases := []struct {
		name string
		in   CreateInput
		want string
	}{
		{"user_id", CreateInput{LicenseNumber: "MD-1", Specialization: "Cardiology"}, "user_id is required"},
		{"license_number", CreateInput{UserID: u.ID, Specialization: "Cardiology"}, "license_number is required"},
		{"specialization", CreateInput{UserID: u.ID, LicenseNumber: "MD-1"}, "specialization is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), adminP, tc.in)
			if !errors.Is(err, mutation.ErrInvalid) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if err.Error() != tc.want {
				t.Errorf("message = %q, want %q", err.Error(), tc.want)
			}
		})
	}
}

func TestCreateDoctor_UnknownUser(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Create(context.Background(), adminP, CreateInput{
		UserID:         uuid.New(),
		LicenseNumber:  "MD-1001",
		Specialization: "Cardiology",
	})
	if !errors.Is(err, mutation.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
	if err.Error() != "User not found" {
		t.Errorf("message = %q", err.Error())
	}
}

func TestCreateDoctor_Duplicates(t *testing.T) {
	f := newFixture()
	u := f.addUser(auth.RoleDoctor)

	if _, err := f.svc.Create(context.Background(), adminP, CreateInput{
		UserID: u.ID, LicenseNumber: "MD-1001", Specialization: "Cardiology",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Same license, different user.
	other := f.addUser(auth.RoleDoctor)
	_, err := f.svc.Create(context.Background(), adminP, CreateInput{
		UserID: other.ID, LicenseNumber: "MD-1001", Specialization: "Oncology",
	})
	if !errors.Is(err, mutation.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err.Error() != "A doctor with this license number already exists" {
		t.Errorf("message = %q", err.Error())
	}

	// Same user, different license.
	_, err = f.svc.Create(context.Background(), adminP, CreateInput{
		UserID: u.ID, LicenseNumber: "MD-2002", Specialization: "Oncology",
	})
	if !errors.Is(err, mutation.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err.Error() != "A doctor profile already exists for this user" {
		t.Errorf("message = %q", err.Error())
	}
}

func str(s string) *string { return &s }

func intp(i int) *int { return &i }

func TestUpdateDoctor_AdminAndSelf(t *testing.T) {
	f := newFixture()
	u := f.addUser(auth.RoleDoctor)
	d, err := f.svc.Create(context.Background(), adminP, CreateInput{
		UserID: u.ID, LicenseNumber: "MD-1001", Specialization: "Cardiology",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated, err := f.svc.Update(context.Background(), adminP, d.ID, UpdateInput{Specialization: str("Oncology")})
	if err != nil {
		t.Fatalf("admin update: %v", err)
	}
	if updated.Specialization != "Oncology" {
		t.Errorf("specialization = %q", updated.Specialization)
	}

	self := auth.Principal{UserID: u.ID, Role: auth.RoleDoctor}
	updated, err = f.svc.Update(context.Background(), self, d.ID, UpdateInput{YearsOfExperience: intp(12)})
	if err != nil {
		t.Fatalf("self update: %v", err)
	}
	if updated.YearsOfExperience != 12 {
		t.Errorf("years = %d", updated.YearsOfExperience)
	}
	// License number survives every update.
	if updated.LicenseNumber != "MD-1001" {
		t.Errorf("license = %q", updated.LicenseNumber)
	}

	stranger := auth.Principal{UserID: uuid.New(), Role: auth.RoleDoctor}
	_, err = f.svc.Update(context.Background(), stranger, d.ID, UpdateInput{Specialization: str("Surgery")})
	if !errors.Is(err, mutation.ErrDenied) {
		t.Fatalf("expected denial for foreign profile, got %v", err)
	}
	if err.Error() != "Permission denied" {
		t.Errorf("message = %q", err.Error())
	}

	patient := auth.Principal{UserID: uuid.New(), Role: auth.RolePatient}
	_, err = f.svc.Update(context.Background(), patient, d.ID, UpdateInput{Specialization: str("Surgery")})
	if !errors.Is(err, mutation.ErrDenied) {
		t.Fatalf("expected denial for patient, got %v", err)
	}
}

func TestUpdateDoctor_MissingIDIsNotFound(t *testing.T) {
	f := newFixture()
	// Even a caller who could never own the row sees not-found, not a denial.
	stranger := auth.Principal{UserID: uuid.New(), Role: auth.RoleDoctor}
	_, err := f.svc.Update(context.Background(), stranger, uuid.New(), UpdateInput{Specialization: str("Surgery")})
	if !errors.Is(err, mutation.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
	if err.Error() != "Doctor not found" {
		t.Errorf("message = %q", err.Error())
	}
}

func TestUpdateDoctor_PartialFieldsOnly(t *testing.T) {
	f := newFixture()
	u := f.addUser(auth.RoleDoctor)
	d, err := f.svc.Create(context.Background(), adminP, CreateInput{
		UserID: u.ID, LicenseNumber: "MD-1001", Specialization: "Cardiology",
		YearsOfExperience: 8, OfficeLocation: str("Building A"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated, err := f.svc.Update(context.Background(), adminP, d.ID, UpdateInput{Education: str("Johns Hopkins")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Education == nil || *updated.Education != "Johns Hopkins" {
		t.Errorf("education = %v", updated.Education)
	}
	if updated.Specialization != "Cardiology" || updated.YearsOfExperience != 8 {
		t.Error("untouched fields changed")
	}
	if updated.OfficeLocation == nil || *updated.OfficeLocation != "Building A" {
		t.Errorf("office_location = %v", updated.OfficeLocation)
	}
}

func TestGetDoctor_PublicDirectory(t *testing.T) {
	f := newFixture()
	u := f.addUser(auth.RoleDoctor)
	d, err := f.svc.Create(context.Background(), adminP, CreateInput{
		UserID: u.ID, LicenseNumber: "MD-1001", Specialization: "Cardiology",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	anon := auth.Principal{}
	if _, err := f.svc.Get(context.Background(), anon, d.ID); err != nil {
		t.Errorf("anonymous get: %v", err)
	}
	if _, err := f.svc.GetByLicense(context.Background(), anon, "MD-1001"); err != nil {
		t.Errorf("anonymous license lookup: %v", err)
	}
	items, total, err := f.svc.List(context.Background(), anon, "", 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Errorf("list: total=%d len=%d", total, len(items))
	}

	_, err = f.svc.Get(context.Background(), anon, uuid.New())
	if !errors.Is(err, mutation.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestSearchDoctors_Filters(t *testing.T) {
	f := newFixture()
	seed := func(first, last, spec string) {
		d := &Doctor{ID: uuid.New(), UserID: uuid.New(), LicenseNumber: uuid.New().String(),
			Specialization: spec, FirstName: first, LastName: last}
		f.repo.doctors[d.ID] = d
	}
	seed("Greg", "House", "Diagnostics")
	seed("James", "Wilson", "Oncology")
	seed("Lisa", "Cuddy", "Endocrinology")

	anon := auth.Principal{}
	items, total, err := f.svc.Search(context.Background(), anon, map[string]string{"specialization": "onc"}, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || items[0].LastName != "Wilson" {
		t.Errorf("specialization search: total=%d", total)
	}

	_, total, err = f.svc.Search(context.Background(), anon, map[string]string{"q": "wilson"}, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 {
		t.Errorf("name search: total=%d", total)
	}

	_, total, err = f.svc.Search(context.Background(), anon, nil, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 {
		t.Errorf("unfiltered search: total=%d", total)
	}
}
