package doctors

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const doctorCols = `d.id, d.user_id, d.license_number, d.specialization, d.years_of_experience,
	d.education, d.certifications, d.office_location, d.office_hours, d.created_at, d.updated_at,
	u.first_name, u.last_name, u.email`

const doctorFrom = ` FROM doctors d JOIN users u ON u.id = d.user_id`

func (r *repoPG) scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.UserID, &d.LicenseNumber, &d.Specialization, &d.YearsOfExperience,
		&d.Education, &d.Certifications, &d.OfficeLocation, &d.OfficeHours, &d.CreatedAt, &d.UpdatedAt,
		&d.FirstName, &d.LastName, &d.Email)
	return &d, err
}

func (r *repoPG) Create(ctx context.Context, d *Doctor) error {
	d.ID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO doctors (id, user_id, license_number, specialization, years_of_experience,
			education, certifications, office_location, office_hours)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		d.ID, d.UserID, d.LicenseNumber, d.Specialization, d.YearsOfExperience,
		d.Education, d.Certifications, d.OfficeLocation, d.OfficeHours)
	if err != nil {
		return err
	}
	// Reload to hydrate the joined user fields.
	fresh, err := r.GetByID(ctx, d.ID)
	if err != nil {
		return err
	}
	*d = *fresh
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return r.scanDoctor(r.pool.QueryRow(ctx, `SELECT `+doctorCols+doctorFrom+` WHERE d.id = $1`, id))
}

func (r *repoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error) {
	return r.scanDoctor(r.pool.QueryRow(ctx, `SELECT `+doctorCols+doctorFrom+` WHERE d.user_id = $1`, userID))
}

func (r *repoPG) GetByLicense(ctx context.Context, license string) (*Doctor, error) {
	return r.scanDoctor(r.pool.QueryRow(ctx, `SELECT `+doctorCols+doctorFrom+` WHERE d.license_number = $1`, license))
}

func (r *repoPG) Update(ctx context.Context, d *Doctor) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE doctors SET specialization = $1, years_of_experience = $2, education = $3,
			certifications = $4, office_location = $5, office_hours = $6, updated_at = NOW()
		WHERE id = $7`,
		d.Specialization, d.YearsOfExperience, d.Education,
		d.Certifications, d.OfficeLocation, d.OfficeHours, d.ID)
	if err != nil {
		return err
	}
	fresh, err := r.GetByID(ctx, d.ID)
	if err != nil {
		return err
	}
	*d = *fresh
	return nil
}

func (r *repoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Doctor, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	idx := 1
	if v, ok := params["specialization"]; ok {
		where += fmt.Sprintf(` AND d.specialization ILIKE $%d`, idx)
		args = append(args, "%"+v+"%")
		idx++
	}
	if v, ok := params["q"]; ok {
		where += fmt.Sprintf(` AND (u.first_name ILIKE $%d OR u.last_name ILIKE $%d OR u.email ILIKE $%d`+
			` OR d.specialization ILIKE $%d OR d.license_number ILIKE $%d)`, idx, idx, idx, idx, idx)
		args = append(args, "%"+v+"%")
		idx++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+doctorFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT ` + doctorCols + doctorFrom + where +
		fmt.Sprintf(` ORDER BY u.last_name, u.first_name LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Doctor
	for rows.Next() {
		d, err := r.scanDoctor(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, nil
}
