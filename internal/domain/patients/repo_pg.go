package patients

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const patientCols = `p.id, p.user_id, p.medical_record_number, p.address, p.emergency_contact_name,
	p.emergency_contact, p.blood_type, p.allergies, p.created_at, p.updated_at,
	u.first_name, u.last_name, u.email`

const patientFrom = ` FROM patients p JOIN users u ON u.id = p.user_id`

func (r *repoPG) scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.UserID, &p.MedicalRecordNumber, &p.Address, &p.EmergencyContactName,
		&p.EmergencyContact, &p.BloodType, &p.Allergies, &p.CreatedAt, &p.UpdatedAt,
		&p.FirstName, &p.LastName, &p.Email)
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO patients (id, user_id, medical_record_number, address, emergency_contact_name,
			emergency_contact, blood_type, allergies)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		p.ID, p.UserID, p.MedicalRecordNumber, p.Address, p.EmergencyContactName,
		p.EmergencyContact, p.BloodType, p.Allergies)
	if err != nil {
		return err
	}
	// Reload to hydrate the joined user fields.
	fresh, err := r.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	*p = *fresh
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.scanPatient(r.pool.QueryRow(ctx, `SELECT `+patientCols+patientFrom+` WHERE p.id = $1`, id))
}

func (r *repoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error) {
	return r.scanPatient(r.pool.QueryRow(ctx, `SELECT `+patientCols+patientFrom+` WHERE p.user_id = $1`, userID))
}

func (r *repoPG) GetByMRN(ctx context.Context, mrn string) (*Patient, error) {
	return r.scanPatient(r.pool.QueryRow(ctx, `SELECT `+patientCols+patientFrom+` WHERE p.medical_record_number = $1`, mrn))
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE patients SET address = $1, emergency_contact_name = $2, emergency_contact = $3,
			blood_type = $4, allergies = $5, updated_at = NOW()
		WHERE id = $6`,
		p.Address, p.EmergencyContactName, p.EmergencyContact, p.BloodType, p.Allergies, p.ID)
	if err != nil {
		return err
	}
	fresh, err := r.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	*p = *fresh
	return nil
}

func (r *repoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	idx := 1
	if v, ok := params["user_id"]; ok {
		where += fmt.Sprintf(` AND p.user_id = $%d`, idx)
		args = append(args, v)
		idx++
	}
	if v, ok := params["linked_doctor_id"]; ok {
		where += fmt.Sprintf(` AND EXISTS (SELECT 1 FROM appointments a WHERE a.patient_id = p.id AND a.doctor_id = $%d)`, idx)
		args = append(args, v)
		idx++
	}
	if v, ok := params["blood_type"]; ok {
		where += fmt.Sprintf(` AND p.blood_type = $%d`, idx)
		args = append(args, v)
		idx++
	}
	if v, ok := params["q"]; ok {
		where += fmt.Sprintf(` AND (u.first_name ILIKE $%d OR u.last_name ILIKE $%d OR u.email ILIKE $%d`+
			` OR p.medical_record_number ILIKE $%d)`, idx, idx, idx, idx)
		args = append(args, "%"+v+"%")
		idx++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+patientFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT ` + patientCols + patientFrom + where +
		fmt.Sprintf(` ORDER BY u.last_name, u.first_name LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := r.scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, nil
}

func (r *repoPG) ExistsLinkedDoctor(ctx context.Context, patientID, doctorID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM appointments WHERE patient_id = $1 AND doctor_id = $2)`,
		patientID, doctorID).Scan(&exists)
	return exists, err
}
